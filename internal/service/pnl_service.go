package service

import (
	"context"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"gorm.io/gorm"
)

const maxSnapshotDays = 90

// PnLService reads the daily valuation snapshots
type PnLService struct {
	db      *gorm.DB
	pnlRepo *repository.WalletPnLRepository
}

// NewPnLService creates a new PnLService
func NewPnLService(db *gorm.DB, pnlRepo *repository.WalletPnLRepository) *PnLService {
	return &PnLService{db: db, pnlRepo: pnlRepo}
}

// Snapshots returns a user's latest snapshots, newest first
func (s *PnLService) Snapshots(ctx context.Context, userID uint, days int) ([]models.WalletPnL, error) {
	if days <= 0 || days > maxSnapshotDays {
		days = maxSnapshotDays
	}
	return s.pnlRepo.WithTx(s.db.WithContext(ctx)).GetByUserID(userID, days)
}
