package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/exchange-settlement/internal/metrics"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminProfitLedger accumulates platform fee income into day buckets
type AdminProfitLedger struct {
	db     *gorm.DB
	repo   *repository.AdminProfitRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminProfitLedger creates a new AdminProfitLedger
func NewAdminProfitLedger(db *gorm.DB, repo *repository.AdminProfitRepository, logger *zap.Logger) *AdminProfitLedger {
	return &AdminProfitLedger{
		db:     db,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Record adds amount to today's (type, currency) bucket. It runs in a
// savepoint of tx, so a failure leaves the enclosing transaction usable.
// Zero amounts are not recorded.
func (l *AdminProfitLedger) Record(tx *gorm.DB, profitType models.ProfitType, currency string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative %s profit %s", ErrBookkeeping, profitType, amount.String())
	}

	record := &models.AdminProfit{
		Type:     profitType,
		Currency: currency,
		Day:      models.DayStart(l.now()),
		Amount:   amount,
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		return l.repo.WithTx(sp).Accumulate(record)
	})
	if err != nil {
		metrics.AdminProfitRecords.WithLabelValues(string(profitType), "error").Inc()
		return fmt.Errorf("%w: record %s profit: %v", ErrBookkeeping, profitType, err)
	}

	metrics.AdminProfitRecords.WithLabelValues(string(profitType), "ok").Inc()
	return nil
}

// RecordBestEffort records a fee and hands back the outcome for the caller to discard
func (l *AdminProfitLedger) RecordBestEffort(tx *gorm.DB, profitType models.ProfitType, currency string, amount decimal.Decimal) BestEffort {
	return BestEffort{
		Op:  "admin_profit." + string(profitType),
		Err: l.Record(tx, profitType, currency, amount),
	}
}

// ProfitTotal is the income of one (type, currency) pair over a period
type ProfitTotal struct {
	Type     models.ProfitType `json:"type"`
	Currency string            `json:"currency"`
	Amount   decimal.Decimal   `json:"amount"`
	Days     int               `json:"days"`
}

// Summary totals the buckets between two days, inclusive
func (l *AdminProfitLedger) Summary(ctx context.Context, from, to time.Time) ([]ProfitTotal, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end of period before start", ErrValidation)
	}
	records, err := l.repo.WithTx(l.db.WithContext(ctx)).GetBetween(models.DayStart(from), models.DayStart(to))
	if err != nil {
		return nil, err
	}

	type key struct {
		t models.ProfitType
		c string
	}
	totals := make(map[key]*ProfitTotal)
	for _, r := range records {
		k := key{r.Type, r.Currency}
		total, ok := totals[k]
		if !ok {
			total = &ProfitTotal{Type: r.Type, Currency: r.Currency, Amount: decimal.Zero}
			totals[k] = total
		}
		total.Amount = total.Amount.Add(r.Amount)
		total.Days++
	}

	result := make([]ProfitTotal, 0, len(totals))
	for _, total := range totals {
		result = append(result, *total)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].Currency < result[j].Currency
	})
	return result, nil
}
