package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/internal/worker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeTicker struct {
	prices map[string]decimal.Decimal
	broken string
}

func (f *fakeTicker) LastPrices(_ context.Context, currencies []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, c := range currencies {
		if c == f.broken {
			return nil, errors.New("ticker unavailable")
		}
		if p, ok := f.prices[c]; ok {
			out[c] = p
		}
	}
	return out, nil
}

type fixture struct {
	db     *gorm.DB
	pnl    *repository.WalletPnLRepository
	worker *worker.ValuationWorker
}

func newFixture(t *testing.T, ticker service.TickerSource) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	log := zap.NewNop()
	priceRepo := repository.NewPriceRepository(db)
	require.NoError(t, db.Create(&models.ExchangeCurrency{
		Currency: "BTC", Price: decimal.NewFromInt(20000), Enabled: true,
	}).Error)
	require.NoError(t, db.Create(&models.FiatCurrency{
		Code: "USD", Price: decimal.NewFromInt(1), Enabled: true,
	}).Error)

	pnlRepo := repository.NewWalletPnLRepository(db)
	w := worker.NewValuationWorker(
		db,
		repository.NewWalletRepository(db),
		pnlRepo,
		service.NewPriceService(db, priceRepo, ticker, log),
		worker.ValuationOptions{Concurrency: 4, UserTimeout: 5 * time.Second},
		log,
	)
	return &fixture{db: db, pnl: pnlRepo, worker: w}
}

func (f *fixture) wallet(t *testing.T, userID uint, walletType models.WalletType, currency string, balance int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Wallet{
		UserID: userID, Type: walletType, Currency: currency, Balance: decimal.NewFromInt(balance),
	}).Error)
}

func TestRunOnceWritesDailySnapshots(t *testing.T) {
	f := newFixture(t, &fakeTicker{prices: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(2000)}})
	f.wallet(t, 1, models.WalletTypeSpot, "BTC", 2)
	f.wallet(t, 1, models.WalletTypeFiat, "USD", 500)
	f.wallet(t, 1, models.WalletTypeEco, "ETH", 3)
	f.wallet(t, 1, models.WalletTypeFutures, "USDT", 700)
	f.wallet(t, 2, models.WalletTypeSpot, "BTC", 0)

	require.NoError(t, f.worker.RunOnce(context.Background()))

	today := models.DayStart(time.Now())
	snapshot, err := f.pnl.Get(1, today)
	require.NoError(t, err)
	assert.False(t, snapshot.IsZero)
	assert.Equal(t, "40000", snapshot.Balances[models.WalletTypeSpot].String())
	assert.Equal(t, "500", snapshot.Balances[models.WalletTypeFiat].String())
	assert.Equal(t, "6000", snapshot.Balances[models.WalletTypeEco].String())
	assert.Equal(t, "700", snapshot.Balances[models.WalletTypeFutures].String())

	empty, err := f.pnl.Get(2, today)
	require.NoError(t, err)
	assert.True(t, empty.IsZero)

	// a second run on the same day replaces the snapshot
	require.NoError(t, f.db.Model(&models.Wallet{}).
		Where("user_id = ? AND type = ?", 1, models.WalletTypeFiat).
		Update("balance", decimal.NewFromInt(100)).Error)
	require.NoError(t, f.worker.RunOnce(context.Background()))

	history, err := f.pnl.GetByUserID(1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "100", history[0].Balances[models.WalletTypeFiat].String())
}

func TestRunOnceIsolatesFailingUsers(t *testing.T) {
	f := newFixture(t, &fakeTicker{broken: "BAD"})
	f.wallet(t, 1, models.WalletTypeEco, "BAD", 1)
	f.wallet(t, 2, models.WalletTypeSpot, "BTC", 1)

	require.NoError(t, f.worker.RunOnce(context.Background()))

	today := models.DayStart(time.Now())
	_, err := f.pnl.Get(1, today)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	snapshot, err := f.pnl.Get(2, today)
	require.NoError(t, err)
	assert.Equal(t, "20000", snapshot.Balances[models.WalletTypeSpot].String())
}

func TestSweepRemovesExpiredSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	today := models.DayStart(time.Now())

	for _, s := range []models.WalletPnL{
		{UserID: 1, Day: today, IsZero: false},
		{UserID: 1, Day: today.AddDate(0, 0, -31), IsZero: false},
		{UserID: 2, Day: today, IsZero: true},
		{UserID: 2, Day: today.AddDate(0, 0, -2), IsZero: true},
	} {
		s := s
		s.Balances = map[models.WalletType]decimal.Decimal{}
		require.NoError(t, f.pnl.Upsert(&s))
	}

	removed, err := f.worker.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	var count int64
	require.NoError(t, f.db.Model(&models.WalletPnL{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t, nil)

	done := make(chan struct{})
	go func() {
		f.worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a worker that never started")
	}
}
