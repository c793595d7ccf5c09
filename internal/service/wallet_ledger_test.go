package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLedgerConservation(t *testing.T) {
	env := newTestEnv(t)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "1000")
	ref := models.WalletRef{UserID: 1, Type: models.WalletTypeSpot, Currency: "USDT"}

	err := env.db.Transaction(func(tx *gorm.DB) error {
		if err := env.ledger.Reserve(tx, ref, dec("300")); err != nil {
			return err
		}
		if err := env.ledger.Reserve(tx, ref, dec("200.5")); err != nil {
			return err
		}
		if err := env.ledger.Release(tx, ref, dec("300")); err != nil {
			return err
		}
		if err := env.ledger.Deduct(tx, ref, dec("50.25")); err != nil {
			return err
		}
		if err := env.ledger.Add(tx, ref, dec("10.5")); err != nil {
			return err
		}
		return env.ledger.Release(tx, ref, dec("200.5"))
	})
	require.NoError(t, err)

	// 1000 - 50.25 + 10.5
	requireDecimal(t, "960.25", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
}

func TestLedgerReserveNeverGoesNegative(t *testing.T) {
	env := newTestEnv(t)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "100")
	ref := models.WalletRef{UserID: 1, Type: models.WalletTypeSpot, Currency: "USDT"}

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.ledger.Reserve(tx, ref, dec("100.5"))
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInsufficientFunds))

	var funds *service.InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, "USDT", funds.Currency)
	requireDecimal(t, "0.5", funds.Shortfall())

	requireDecimal(t, "100", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
}

func TestLedgerDebitOnMissingWallet(t *testing.T) {
	env := newTestEnv(t)
	ref := models.WalletRef{UserID: 7, Type: models.WalletTypeEco, Currency: "ETH"}

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.ledger.Deduct(tx, ref, dec("1"))
	})
	assert.True(t, errors.Is(err, service.ErrInsufficientFunds))
}

func TestLedgerCreditCreatesWallet(t *testing.T) {
	env := newTestEnv(t)
	ref := models.WalletRef{UserID: 3, Type: models.WalletTypeSpot, Currency: "BTC"}

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.ledger.Add(tx, ref, dec("0.25"))
	})
	require.NoError(t, err)

	requireDecimal(t, "0.25", balanceOf(t, env, 3, models.WalletTypeSpot, "BTC"))

	wallets, err := env.ledger.Wallets(context.Background(), 3, "")
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestLedgerRejectsInvalidMovements(t *testing.T) {
	env := newTestEnv(t)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "100")

	tests := []struct {
		name   string
		ref    models.WalletRef
		amount string
	}{
		{"zero amount", models.WalletRef{UserID: 1, Type: models.WalletTypeSpot, Currency: "USDT"}, "0"},
		{"negative amount", models.WalletRef{UserID: 1, Type: models.WalletTypeSpot, Currency: "USDT"}, "-5"},
		{"unknown wallet type", models.WalletRef{UserID: 1, Type: "MARGIN", Currency: "USDT"}, "5"},
		{"missing currency", models.WalletRef{UserID: 1, Type: models.WalletTypeSpot}, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.db.Transaction(func(tx *gorm.DB) error {
				return env.ledger.Reserve(tx, tt.ref, dec(tt.amount))
			})
			assert.True(t, errors.Is(err, service.ErrValidation), "got %v", err)
		})
	}

	requireDecimal(t, "100", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
}

func TestLedgerRollbackRestoresBalances(t *testing.T) {
	env := newTestEnv(t)
	seedWallet(t, env.db, 1, models.WalletTypeSpot, "USDT", "100")
	ref := models.WalletRef{UserID: 1, Type: models.WalletTypeSpot, Currency: "USDT"}

	err := env.db.Transaction(func(tx *gorm.DB) error {
		if err := env.ledger.Reserve(tx, ref, dec("60")); err != nil {
			return err
		}
		// second reservation fails, taking the first one with it
		return env.ledger.Reserve(tx, ref, dec("60"))
	})
	require.Error(t, err)

	requireDecimal(t, "100", balanceOf(t, env, 1, models.WalletTypeSpot, "USDT"))
}
