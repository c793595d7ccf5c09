package repository

import (
	"time"

	"github.com/exchange-settlement/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletPnLRepository handles daily valuation snapshot data access
type WalletPnLRepository struct {
	db *gorm.DB
}

// NewWalletPnLRepository creates a new WalletPnLRepository
func NewWalletPnLRepository(db *gorm.DB) *WalletPnLRepository {
	return &WalletPnLRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *WalletPnLRepository) WithTx(tx *gorm.DB) *WalletPnLRepository {
	return &WalletPnLRepository{db: tx}
}

// Upsert writes the snapshot for (user, day), replacing an existing one
func (r *WalletPnLRepository) Upsert(snapshot *models.WalletPnL) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"balances", "is_zero", "updated_at"}),
	}).Create(snapshot).Error
}

// GetByUserID retrieves a user's snapshots, newest first
func (r *WalletPnLRepository) GetByUserID(userID uint, limit int) ([]models.WalletPnL, error) {
	var snapshots []models.WalletPnL
	result := r.db.Where("user_id = ?", userID).
		Order("day DESC").
		Limit(limit).
		Find(&snapshots)
	return snapshots, result.Error
}

// Get retrieves the snapshot for a user and day
func (r *WalletPnLRepository) Get(userID uint, day time.Time) (*models.WalletPnL, error) {
	var snapshot models.WalletPnL
	result := r.db.Where("user_id = ? AND day = ?", userID, day).First(&snapshot)
	if result.Error != nil {
		return nil, result.Error
	}
	return &snapshot, nil
}

// DeleteOlderThan removes snapshots with a day before cutoff
func (r *WalletPnLRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("day < ?", cutoff).Delete(&models.WalletPnL{})
	return result.RowsAffected, result.Error
}

// DeleteZeroOlderThan removes all-zero snapshots with a day before cutoff
func (r *WalletPnLRepository) DeleteZeroOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("is_zero = ? AND day < ?", true, cutoff).Delete(&models.WalletPnL{})
	return result.RowsAffected, result.Error
}
