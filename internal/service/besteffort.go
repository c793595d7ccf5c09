package service

import "go.uber.org/zap"

// BestEffort is the outcome of a side effect that must never fail the
// operation that triggered it. Callers handle it explicitly, usually by
// calling Discard.
type BestEffort struct {
	Op  string
	Err error
}

// Discard logs a failed side effect and drops it
func (b BestEffort) Discard(logger *zap.Logger) {
	if b.Err == nil {
		return
	}
	logger.Warn("best-effort side effect failed", zap.String("op", b.Op), zap.Error(b.Err))
}
