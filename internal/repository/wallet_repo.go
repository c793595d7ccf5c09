package repository

import (
	"errors"

	"github.com/exchange-settlement/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
)

// WalletRepository handles wallet data access
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

// Create creates a new wallet
func (r *WalletRepository) Create(wallet *models.Wallet) error {
	return r.db.Create(wallet).Error
}

// Get retrieves a wallet by owner, type and currency
func (r *WalletRepository) Get(ref models.WalletRef) (*models.Wallet, error) {
	return r.get(r.db, ref)
}

// GetForUpdate retrieves a wallet and locks its row until the transaction ends
func (r *WalletRepository) GetForUpdate(ref models.WalletRef) (*models.Wallet, error) {
	return r.get(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), ref)
}

// EnsureForUpdate locks the wallet row, creating an empty wallet first if none exists
func (r *WalletRepository) EnsureForUpdate(ref models.WalletRef) (*models.Wallet, error) {
	wallet := &models.Wallet{
		UserID:   ref.UserID,
		Type:     ref.Type,
		Currency: ref.Currency,
		Balance:  decimal.Zero,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}, {Name: "currency"}},
		DoNothing: true,
	}).Create(wallet).Error
	if err != nil {
		return nil, err
	}
	return r.GetForUpdate(ref)
}

func (r *WalletRepository) get(db *gorm.DB, ref models.WalletRef) (*models.Wallet, error) {
	var wallet models.Wallet
	result := db.Where("user_id = ? AND type = ? AND currency = ?", ref.UserID, ref.Type, ref.Currency).
		First(&wallet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, result.Error
	}
	return &wallet, nil
}

// Credit adds amount to the wallet balance
func (r *WalletRepository) Credit(id uint, amount decimal.Decimal) error {
	return r.db.Model(&models.Wallet{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// Debit subtracts amount from the wallet balance only if the balance covers it.
// It returns false when the guard rejected the update.
func (r *WalletRepository) Debit(id uint, amount decimal.Decimal) (bool, error) {
	result := r.db.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByUserID retrieves all wallets for a user
func (r *WalletRepository) GetByUserID(userID uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	result := r.db.Where("user_id = ?", userID).Order("type, currency").Find(&wallets)
	return wallets, result.Error
}

// GetByUserIDAndType retrieves a user's wallets of one type
func (r *WalletRepository) GetByUserIDAndType(userID uint, walletType models.WalletType) ([]models.Wallet, error) {
	var wallets []models.Wallet
	result := r.db.Where("user_id = ? AND type = ?", userID, walletType).Order("currency").Find(&wallets)
	return wallets, result.Error
}

// GetUserIDs returns every user that owns at least one wallet
func (r *WalletRepository) GetUserIDs() ([]uint, error) {
	var ids []uint
	result := r.db.Model(&models.Wallet{}).Distinct("user_id").Order("user_id").Pluck("user_id", &ids)
	return ids, result.Error
}
