package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents whether a market accepts orders
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "ACTIVE"
	MarketStatusDisabled MarketStatus = "DISABLED"
)

// Market holds the per-symbol trading metadata consumed by settlement
type Market struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Symbol          string          `gorm:"uniqueIndex;size:40;not null" json:"symbol"`
	Currency        string          `gorm:"size:20;not null" json:"currency"`
	Pair            string          `gorm:"size:20;not null" json:"pair"`
	AmountPrecision int32           `gorm:"default:8" json:"amount_precision"`
	PricePrecision  int32           `gorm:"default:8" json:"price_precision"`
	FeePrecision    int32           `gorm:"default:8" json:"fee_precision"`
	TakerFee        decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0" json:"taker_fee"` // percent
	MakerFee        decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0" json:"maker_fee"` // percent
	MinAmount       decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"min_amount"`
	FeeInBase       bool            `gorm:"default:false" json:"fee_in_base"`
	Status          MarketStatus    `gorm:"size:10;not null;default:'ACTIVE'" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// SplitSymbol splits "BASE/QUOTE" into its currencies
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
