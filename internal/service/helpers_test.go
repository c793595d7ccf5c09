package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/exchange-settlement/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

func seedWallet(t *testing.T, db *gorm.DB, userID uint, walletType models.WalletType, currency, balance string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Wallet{
		UserID:   userID,
		Type:     walletType,
		Currency: currency,
		Balance:  dec(balance),
	}).Error)
}

func balanceOf(t *testing.T, env *testEnv, userID uint, walletType models.WalletType, currency string) decimal.Decimal {
	t.Helper()
	b, err := env.ledger.Balance(context.Background(), models.WalletRef{UserID: userID, Type: walletType, Currency: currency})
	require.NoError(t, err)
	return b
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification service.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) recipients() []uint {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]uint, 0, len(n.sent))
	for _, s := range n.sent {
		ids = append(ids, s.UserID)
	}
	return ids
}

type testEnv struct {
	db       *gorm.DB
	ledger   *service.WalletLedger
	profits  *service.AdminProfitLedger
	markets  *service.MarketService
	orders   *service.OrderSettlement
	futures  *service.FuturesSettlement
	p2p      *service.P2PTradeEngine
	p2pRepo  *repository.P2PRepository
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()

	ledger := service.NewWalletLedger(db, repository.NewWalletRepository(db), log)
	profits := service.NewAdminProfitLedger(db, repository.NewAdminProfitRepository(db), log)
	markets := service.NewMarketService(repository.NewMarketRepository(db), log)
	notifier := &recordingNotifier{}
	p2pRepo := repository.NewP2PRepository(db)

	return &testEnv{
		db:      db,
		ledger:  ledger,
		profits: profits,
		markets: markets,
		orders:  service.NewOrderSettlement(db, repository.NewOrderRepository(db), markets, ledger, profits, log),
		futures: service.NewFuturesSettlement(db, repository.NewFuturesOrderRepository(db), markets, ledger, profits,
			models.WalletTypeFutures, log),
		p2p:      service.NewP2PTradeEngine(db, p2pRepo, notifier, []uint{900}, log),
		p2pRepo:  p2pRepo,
		notifier: notifier,
	}
}

// seedMarket creates an active BTC/USDT market with the given percent fee rates
func seedMarket(t *testing.T, db *gorm.DB, taker, maker string, feeInBase bool) *models.Market {
	t.Helper()
	market := &models.Market{
		Symbol:          "BTC/USDT",
		Currency:        "BTC",
		Pair:            "USDT",
		AmountPrecision: 8,
		PricePrecision:  2,
		FeePrecision:    8,
		TakerFee:        dec(taker),
		MakerFee:        dec(maker),
		MinAmount:       dec("0.001"),
		FeeInBase:       feeInBase,
		Status:          models.MarketStatusActive,
	}
	require.NoError(t, db.Create(market).Error)
	return market
}
