package repository

import (
	"errors"

	"github.com/exchange-settlement/internal/models"
	"gorm.io/gorm"
)

var (
	ErrMarketNotFound = errors.New("market not found")
)

// MarketRepository handles market metadata access
type MarketRepository struct {
	db *gorm.DB
}

// NewMarketRepository creates a new MarketRepository
func NewMarketRepository(db *gorm.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create creates a new market
func (r *MarketRepository) Create(market *models.Market) error {
	return r.db.Create(market).Error
}

// GetBySymbol retrieves a market by its BASE/QUOTE symbol
func (r *MarketRepository) GetBySymbol(symbol string) (*models.Market, error) {
	var market models.Market
	result := r.db.Where("symbol = ?", symbol).First(&market)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, result.Error
	}
	return &market, nil
}

// GetAll retrieves every market
func (r *MarketRepository) GetAll() ([]models.Market, error) {
	var markets []models.Market
	result := r.db.Order("symbol").Find(&markets)
	return markets, result.Error
}
