package repository

import (
	"time"

	"github.com/exchange-settlement/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminProfitRepository handles admin profit bucket data access
type AdminProfitRepository struct {
	db *gorm.DB
}

// NewAdminProfitRepository creates a new AdminProfitRepository
func NewAdminProfitRepository(db *gorm.DB) *AdminProfitRepository {
	return &AdminProfitRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *AdminProfitRepository) WithTx(tx *gorm.DB) *AdminProfitRepository {
	return &AdminProfitRepository{db: tx}
}

// Accumulate adds the record's amount to its (type, currency, day) bucket,
// inserting the bucket if it does not exist. The increment happens in the
// database so concurrent writers never lose updates.
func (r *AdminProfitRepository) Accumulate(record *models.AdminProfit) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "type"}, {Name: "currency"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("admin_profits.amount + excluded.amount"),
			"updated_at": time.Now(),
		}),
	}).Create(record).Error
}

// GetBetween retrieves the buckets whose day lies in [from, to]
func (r *AdminProfitRepository) GetBetween(from, to time.Time) ([]models.AdminProfit, error) {
	var records []models.AdminProfit
	result := r.db.Where("day >= ? AND day <= ?", from, to).
		Order("day ASC, type ASC, currency ASC").
		Find(&records)
	return records, result.Error
}
