package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletLedger applies balance movements inside a caller-supplied transaction.
// Reservations debit Balance immediately; Release is the exact inverse of a
// Reserve and Deduct realizes funds permanently.
type WalletLedger struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	logger     *zap.Logger
}

// NewWalletLedger creates a new WalletLedger
func NewWalletLedger(db *gorm.DB, walletRepo *repository.WalletRepository, logger *zap.Logger) *WalletLedger {
	return &WalletLedger{
		db:         db,
		walletRepo: walletRepo,
		logger:     logger,
	}
}

// Reserve debits amount from the wallet at order or trade placement
func (l *WalletLedger) Reserve(tx *gorm.DB, ref models.WalletRef, amount decimal.Decimal) error {
	return l.debit(tx, "reserve", ref, amount)
}

// Release credits back an amount previously reserved
func (l *WalletLedger) Release(tx *gorm.DB, ref models.WalletRef, amount decimal.Decimal) error {
	return l.credit(tx, "release", ref, amount)
}

// Deduct permanently removes funds from the wallet
func (l *WalletLedger) Deduct(tx *gorm.DB, ref models.WalletRef, amount decimal.Decimal) error {
	return l.debit(tx, "deduct", ref, amount)
}

// Add credits funds received from a fill or a refund
func (l *WalletLedger) Add(tx *gorm.DB, ref models.WalletRef, amount decimal.Decimal) error {
	return l.credit(tx, "add", ref, amount)
}

// Lock takes the row lock on a wallet, creating it empty if needed, and
// returns its current state. Callers use it to serialize work on a wallet
// before any balance movement.
func (l *WalletLedger) Lock(tx *gorm.DB, ref models.WalletRef) (*models.Wallet, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	return l.walletRepo.WithTx(tx).EnsureForUpdate(ref)
}

// Balance returns the available balance of a wallet, zero if it does not exist
func (l *WalletLedger) Balance(ctx context.Context, ref models.WalletRef) (decimal.Decimal, error) {
	wallet, err := l.walletRepo.WithTx(l.db.WithContext(ctx)).Get(ref)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// Wallets returns a user's wallets, optionally limited to one type
func (l *WalletLedger) Wallets(ctx context.Context, userID uint, walletType models.WalletType) ([]models.Wallet, error) {
	repo := l.walletRepo.WithTx(l.db.WithContext(ctx))
	if walletType == "" {
		return repo.GetByUserID(userID)
	}
	if !walletType.Valid() {
		return nil, ErrInvalidWallet
	}
	return repo.GetByUserIDAndType(userID, walletType)
}

func (l *WalletLedger) debit(tx *gorm.DB, op string, ref models.WalletRef, amount decimal.Decimal) error {
	if err := validateMovement(ref, amount); err != nil {
		return err
	}
	repo := l.walletRepo.WithTx(tx)

	wallet, err := repo.GetForUpdate(ref)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return &InsufficientFundsError{Currency: ref.Currency, Required: amount, Available: decimal.Zero}
		}
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet.Balance.LessThan(amount) {
		return &InsufficientFundsError{Currency: ref.Currency, Required: amount, Available: wallet.Balance}
	}

	ok, err := repo.Debit(wallet.ID, amount)
	if err != nil {
		return fmt.Errorf("failed to %s funds: %w", op, err)
	}
	if !ok {
		// the guarded update lost to a concurrent writer
		return &InsufficientFundsError{Currency: ref.Currency, Required: amount, Available: wallet.Balance}
	}

	l.logger.Debug("wallet debited",
		zap.String("op", op),
		zap.Uint("user_id", ref.UserID),
		zap.String("type", string(ref.Type)),
		zap.String("currency", ref.Currency),
		zap.String("amount", amount.String()))
	return nil
}

func (l *WalletLedger) credit(tx *gorm.DB, op string, ref models.WalletRef, amount decimal.Decimal) error {
	if err := validateMovement(ref, amount); err != nil {
		return err
	}
	repo := l.walletRepo.WithTx(tx)

	wallet, err := repo.EnsureForUpdate(ref)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	if err := repo.Credit(wallet.ID, amount); err != nil {
		return fmt.Errorf("failed to %s funds: %w", op, err)
	}

	l.logger.Debug("wallet credited",
		zap.String("op", op),
		zap.Uint("user_id", ref.UserID),
		zap.String("type", string(ref.Type)),
		zap.String("currency", ref.Currency),
		zap.String("amount", amount.String()))
	return nil
}

func validateMovement(ref models.WalletRef, amount decimal.Decimal) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func validateRef(ref models.WalletRef) error {
	if !ref.Type.Valid() {
		return ErrInvalidWallet
	}
	if ref.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	return nil
}
