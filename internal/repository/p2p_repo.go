package repository

import (
	"errors"
	"time"

	"github.com/exchange-settlement/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOfferNotFound = errors.New("offer not found")
	ErrTradeNotFound = errors.New("trade not found")
)

// P2PRepository handles P2P offer, trade and message data access
type P2PRepository struct {
	db *gorm.DB
}

// NewP2PRepository creates a new P2PRepository
func NewP2PRepository(db *gorm.DB) *P2PRepository {
	return &P2PRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *P2PRepository) WithTx(tx *gorm.DB) *P2PRepository {
	return &P2PRepository{db: tx}
}

// GetOfferForUpdate retrieves an offer and locks its row
func (r *P2PRepository) GetOfferForUpdate(id uint) (*models.P2POffer, error) {
	var offer models.P2POffer
	result := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&offer, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, result.Error
	}
	return &offer, nil
}

// UpdateOffer saves inventory, status and payment method changes
func (r *P2PRepository) UpdateOffer(offer *models.P2POffer) error {
	return r.db.Model(offer).Select(
		"in_order", "status", "payment_method_id", "additional_payment_method_ids", "updated_at",
	).Updates(offer).Error
}

// CreateTrade creates a new trade
func (r *P2PRepository) CreateTrade(trade *models.P2PTrade) error {
	return r.db.Omit("Messages").Create(trade).Error
}

// GetTrade retrieves a trade with its message thread
func (r *P2PRepository) GetTrade(id uint) (*models.P2PTrade, error) {
	var trade models.P2PTrade
	result := r.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).First(&trade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetTradeForUpdate retrieves a trade without messages and locks its row
func (r *P2PRepository) GetTradeForUpdate(id uint) (*models.P2PTrade, error) {
	var trade models.P2PTrade
	result := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&trade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// UpdateTradeStatus moves a trade between statuses, guarded by the expected current status
func (r *P2PRepository) UpdateTradeStatus(id uint, from models.TradeStatus, to models.TradeStatus) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case models.TradeStatusPaid:
		updates["paid_at"] = now
	case models.TradeStatusCompleted:
		updates["completed_at"] = now
	}
	result := r.db.Model(&models.P2PTrade{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountActiveTrades counts PENDING or PAID trades in which the user is buyer or seller
func (r *P2PRepository) CountActiveTrades(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.P2PTrade{}).
		Where("(buyer_id = ? OR seller_id = ?) AND status IN ?", userID, userID, models.ActiveTradeStatuses).
		Count(&count).Error
	return count, err
}

// ClaimActiveTrade inserts the user's active-trade marker. It returns false if
// the user already holds one.
func (r *P2PRepository) ClaimActiveTrade(userID, tradeID uint) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.P2PActiveTrade{
		UserID:  userID,
		TradeID: tradeID,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseActiveTrade removes the markers held for a trade
func (r *P2PRepository) ReleaseActiveTrade(tradeID uint) error {
	return r.db.Where("trade_id = ?", tradeID).Delete(&models.P2PActiveTrade{}).Error
}

// CreateMessage appends a message to a trade thread
func (r *P2PRepository) CreateMessage(message *models.P2PTradeMessage) error {
	return r.db.Create(message).Error
}
