package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profitTotal(t *testing.T, env *testEnv, profitType models.ProfitType, currency string) string {
	t.Helper()
	var records []models.AdminProfit
	require.NoError(t, env.db.Where("type = ? AND currency = ?", profitType, currency).Find(&records).Error)
	if len(records) == 0 {
		return "0"
	}
	require.Len(t, records, 1)
	return records[0].Amount.String()
}

func TestPlaceAndCloseBuyOrder(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0.1", "0.1", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "1000")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1,
		Symbol: "BTC/USDT",
		Side:   models.OrderSideBuy,
		Amount: dec("10"),
		Price:  dec("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, order.Status)
	requireDecimal(t, "500", order.Cost)
	requireDecimal(t, "0.5", order.Fee)
	assert.Equal(t, "USDT", order.FeeCurrency)
	requireDecimal(t, "500.5", order.Reserved)

	requireDecimal(t, "499.5", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))

	closed, err := env.orders.CloseOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClosed, closed.Status)

	requireDecimal(t, "499.5", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	requireDecimal(t, "10", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
	assert.Equal(t, "0.5", profitTotal(t, env, models.ProfitTypeExchangeOrder, "USDT"))
}

func TestCloseOrderIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0.1", "0.1", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "1000")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1, Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("10"), Price: dec("50"),
	})
	require.NoError(t, err)
	_, err = env.orders.CloseOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = env.orders.CloseOrder(ctx, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderTerminal))
	assert.True(t, errors.Is(err, service.ErrConflict))

	_, err = env.orders.CancelOrder(ctx, 1, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderTerminal))

	// nothing moved the second time
	requireDecimal(t, "499.5", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	requireDecimal(t, "10", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
	assert.Equal(t, "0.5", profitTotal(t, env, models.ProfitTypeExchangeOrder, "USDT"))
}

func TestCancelOrderReleasesReservation(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0.1", "0.1", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "1000")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1, Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("10"), Price: dec("50"),
	})
	require.NoError(t, err)

	// another user cannot see the order
	_, err = env.orders.CancelOrder(ctx, 2, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderNotFound))

	cancelled, err := env.orders.CancelOrder(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	requireDecimal(t, "1000", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	requireDecimal(t, "0", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
	assert.Equal(t, "0", profitTotal(t, env, models.ProfitTypeExchangeOrder, "USDT"))

	_, err = env.orders.CloseOrder(ctx, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderTerminal))
}

func TestSellOrderWithFeeInBase(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "25", "25", true)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "BTC", "4")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1, Symbol: "BTC/USDT", Side: models.OrderSideSell, Amount: dec("2"), Price: dec("100"),
	})
	require.NoError(t, err)
	requireDecimal(t, "0.5", order.Fee)
	assert.Equal(t, "BTC", order.FeeCurrency)
	assert.Equal(t, "BTC", order.ReservedCurrency)
	requireDecimal(t, "2.5", order.Reserved)

	_, err = env.orders.CloseOrder(ctx, order.ID)
	require.NoError(t, err)

	requireDecimal(t, "1.5", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
	requireDecimal(t, "200", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	assert.Equal(t, "0.5", profitTotal(t, env, models.ProfitTypeExchangeOrder, "BTC"))
}

func TestDeferredOrderActivation(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0", "0", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "100")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1, Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("1"), Price: dec("50"), Deferred: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	requireDecimal(t, "50", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))

	activated, err := env.orders.ActivateOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, activated.Status)

	_, err = env.orders.ActivateOrder(ctx, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderNotPending))
}

func TestCloseRequiresOpenOrder(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0", "0", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "100")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1, Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("1"), Price: dec("50"), Deferred: true,
	})
	require.NoError(t, err)

	_, err = env.orders.CloseOrder(ctx, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderNotOpen))
	assert.True(t, errors.Is(err, service.ErrConflict))

	var stored models.Order
	require.NoError(t, env.db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	requireDecimal(t, "50", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	requireDecimal(t, "0", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
	assert.Equal(t, "0", profitTotal(t, env, models.ProfitTypeExchangeOrder, "USDT"))

	_, err = env.orders.ActivateOrder(ctx, order.ID)
	require.NoError(t, err)

	closed, err := env.orders.CloseOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClosed, closed.Status)
	requireDecimal(t, "50", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	requireDecimal(t, "1", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
}

func TestPlaceOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0.1", "0.1", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "100")
	require.NoError(t, env.db.Create(&models.Market{
		Symbol: "ETH/USDT", Currency: "ETH", Pair: "USDT", Status: models.MarketStatusDisabled,
	}).Error)
	ctx := context.Background()

	tests := []struct {
		name string
		req  service.PlaceOrderRequest
		want error
	}{
		{"malformed symbol", service.PlaceOrderRequest{Symbol: "BTCUSDT", Side: models.OrderSideBuy, Amount: dec("1"), Price: dec("1")}, service.ErrInvalidSymbol},
		{"unknown market", service.PlaceOrderRequest{Symbol: "DOGE/USDT", Side: models.OrderSideBuy, Amount: dec("1"), Price: dec("1")}, service.ErrMarketNotFound},
		{"disabled market", service.PlaceOrderRequest{Symbol: "ETH/USDT", Side: models.OrderSideBuy, Amount: dec("1"), Price: dec("1")}, service.ErrMarketDisabled},
		{"bad side", service.PlaceOrderRequest{Symbol: "BTC/USDT", Side: "HOLD", Amount: dec("1"), Price: dec("1")}, service.ErrInvalidSide},
		{"bad type", service.PlaceOrderRequest{Symbol: "BTC/USDT", Side: models.OrderSideBuy, Type: "ICEBERG", Amount: dec("1"), Price: dec("1")}, service.ErrInvalidOrderType},
		{"zero amount", service.PlaceOrderRequest{Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("0"), Price: dec("1")}, service.ErrInvalidAmount},
		{"negative price", service.PlaceOrderRequest{Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("1"), Price: dec("-1")}, service.ErrInvalidPrice},
		{"below minimum", service.PlaceOrderRequest{Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("0.0001"), Price: dec("1")}, service.ErrBelowMinimum},
		{"insufficient funds", service.PlaceOrderRequest{Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("2"), Price: dec("50")}, service.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.UserID = 1
			_, err := env.orders.PlaceOrder(ctx, &req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	requireDecimal(t, "100", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
}

func TestCloseOrderSurvivesBookkeepingFailure(t *testing.T) {
	env := newTestEnv(t)
	seedMarket(t, env.db, "0.1", "0.1", false)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "1000")
	ctx := context.Background()

	order, err := env.orders.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID: 1, Symbol: "BTC/USDT", Side: models.OrderSideBuy, Amount: dec("10"), Price: dec("50"),
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Migrator().DropTable(&models.AdminProfit{}))

	closed, err := env.orders.CloseOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClosed, closed.Status)
	requireDecimal(t, "499.5", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
	requireDecimal(t, "10", balanceOf(t, env, 1, models.WalletTypeSpot, "BTC"))
}
