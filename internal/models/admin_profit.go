package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProfitType is the revenue category of an admin profit bucket
type ProfitType string

const (
	ProfitTypeExchangeOrder ProfitType = "EXCHANGE_ORDER"
	ProfitTypeFuturesOrder  ProfitType = "FUTURES_ORDER"
)

// AdminProfit aggregates platform fee income per (type, currency, day)
type AdminProfit struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Type          ProfitType      `gorm:"uniqueIndex:idx_admin_profit_bucket;size:30;not null" json:"type"`
	Currency      string          `gorm:"uniqueIndex:idx_admin_profit_bucket;size:20;not null" json:"currency"`
	Day           time.Time       `gorm:"uniqueIndex:idx_admin_profit_bucket;not null" json:"day"`
	Amount        decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"amount"`
	TransactionID *string         `gorm:"size:36" json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for AdminProfit model
func (AdminProfit) TableName() string {
	return "admin_profits"
}

// DayStart truncates t to midnight UTC
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
