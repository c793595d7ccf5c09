package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exchange-settlement/internal/metrics"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/exchange-settlement/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ValuationOptions configures a ValuationWorker
type ValuationOptions struct {
	Interval          time.Duration
	Concurrency       int
	UserTimeout       time.Duration
	RetentionDays     int
	ZeroRetentionDays int
}

// ValuationWorker periodically values every user's wallets into a daily
// snapshot and sweeps expired snapshots
type ValuationWorker struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	pnlRepo    *repository.WalletPnLRepository
	prices     *service.PriceService
	opts       ValuationOptions
	logger     *zap.Logger
	now        func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewValuationWorker creates a new valuation worker
func NewValuationWorker(
	db *gorm.DB,
	walletRepo *repository.WalletRepository,
	pnlRepo *repository.WalletPnLRepository,
	prices *service.PriceService,
	opts ValuationOptions,
	logger *zap.Logger,
) *ValuationWorker {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.UserTimeout <= 0 {
		opts.UserTimeout = 30 * time.Second
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	if opts.ZeroRetentionDays <= 0 {
		opts.ZeroRetentionDays = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ValuationWorker{
		db:         db,
		walletRepo: walletRepo,
		pnlRepo:    pnlRepo,
		prices:     prices,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start begins the valuation loop and blocks until Stop is called
func (w *ValuationWorker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	defer close(w.done)
	w.logger.Info("valuation worker started",
		zap.Duration("interval", w.opts.Interval),
		zap.Int("concurrency", w.opts.Concurrency))

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.ctx.Done():
			w.logger.Info("valuation worker stopped")
			return
		}
	}
}

// Stop stops the loop, cancels an in-flight run and waits for it to return
func (w *ValuationWorker) Stop() {
	w.once.Do(func() {
		w.cancel()
		if w.started.Load() {
			<-w.done
		}
	})
}

func (w *ValuationWorker) tick() {
	if err := w.RunOnce(w.ctx); err != nil {
		w.logger.Error("valuation run failed", zap.Error(err))
	}
	if _, err := w.Sweep(w.ctx); err != nil {
		w.logger.Error("valuation sweep failed", zap.Error(err))
	}
}

// RunOnce values every user owning a wallet. Users are processed on a bounded
// pool; a failing user is logged and does not affect the others.
func (w *ValuationWorker) RunOnce(ctx context.Context) error {
	start := time.Now()

	users, err := w.walletRepo.WithTx(w.db.WithContext(ctx)).GetUserIDs()
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var failed int64
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		userID := userID
		g.Go(func() error {
			if err := w.ValueUser(ctx, userID); err != nil {
				metrics.ValuationUserFailures.Inc()
				mu.Lock()
				failed++
				mu.Unlock()
				w.logger.Warn("user valuation failed", zap.Uint("user_id", userID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.ValuationRuns.Inc()
	w.logger.Info("valuation run completed",
		zap.Int("users", len(users)),
		zap.Int64("failed", failed),
		zap.Duration("took", time.Since(start)))
	return ctx.Err()
}

// ValueUser writes today's snapshot for one user
func (w *ValuationWorker) ValueUser(ctx context.Context, userID uint) error {
	ctx, cancel := context.WithTimeout(ctx, w.opts.UserTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.ValuationUserDuration.Observe(time.Since(start).Seconds())
	}()

	db := w.db.WithContext(ctx)
	wallets, err := w.walletRepo.WithTx(db).GetByUserID(userID)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}

	book, err := w.prices.Load(ctx, wallets)
	if err != nil {
		return err
	}
	totals, missing := w.prices.Value(wallets, book)
	for _, m := range missing {
		w.logger.Debug("no price for wallet",
			zap.Uint("user_id", userID),
			zap.String("type", string(m.Type)),
			zap.String("currency", m.Currency))
	}

	isZero := true
	for _, total := range totals {
		if !total.IsZero() {
			isZero = false
			break
		}
	}

	return w.pnlRepo.WithTx(db).Upsert(&models.WalletPnL{
		UserID:   userID,
		Day:      models.DayStart(w.now()),
		Balances: totals,
		IsZero:   isZero,
	})
}

// Sweep deletes snapshots past retention, and all-zero snapshots past the
// shorter zero retention. It returns the number of rows removed.
func (w *ValuationWorker) Sweep(ctx context.Context) (int64, error) {
	today := models.DayStart(w.now())
	repo := w.pnlRepo.WithTx(w.db.WithContext(ctx))

	old, err := repo.DeleteOlderThan(today.AddDate(0, 0, -w.opts.RetentionDays))
	if err != nil {
		return 0, err
	}
	zero, err := repo.DeleteZeroOlderThan(today.AddDate(0, 0, -w.opts.ZeroRetentionDays))
	if err != nil {
		return old, err
	}

	removed := old + zero
	metrics.SnapshotsSwept.Add(float64(removed))
	if removed > 0 {
		w.logger.Info("valuation snapshots swept", zap.Int64("removed", removed))
	}
	return removed, nil
}
