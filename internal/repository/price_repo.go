package repository

import (
	"github.com/exchange-settlement/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceRepository reads the fiat and spot price tables
type PriceRepository struct {
	db *gorm.DB
}

// NewPriceRepository creates a new PriceRepository
func NewPriceRepository(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PriceRepository) WithTx(tx *gorm.DB) *PriceRepository {
	return &PriceRepository{db: tx}
}

// GetFiatPrices returns the prices of the requested fiat codes that are enabled
func (r *PriceRepository) GetFiatPrices(codes []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(codes))
	if len(codes) == 0 {
		return prices, nil
	}
	var rows []models.FiatCurrency
	if err := r.db.Where("code IN ? AND enabled = ?", codes, true).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		prices[row.Code] = row.Price
	}
	return prices, nil
}

// GetExchangePrices returns the prices of the requested spot currencies that are enabled
func (r *PriceRepository) GetExchangePrices(currencies []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(currencies))
	if len(currencies) == 0 {
		return prices, nil
	}
	var rows []models.ExchangeCurrency
	if err := r.db.Where("currency IN ? AND enabled = ?", currencies, true).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		prices[row.Currency] = row.Price
	}
	return prices, nil
}
