package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletPnL is a daily valuation snapshot of a user's wallets, one total per wallet type
type WalletPnL struct {
	ID        uint                           `gorm:"primaryKey" json:"id"`
	UserID    uint                           `gorm:"uniqueIndex:idx_wallet_pnl_day;not null" json:"user_id"`
	Day       time.Time                      `gorm:"uniqueIndex:idx_wallet_pnl_day;not null;index" json:"day"`
	Balances  map[WalletType]decimal.Decimal `gorm:"serializer:json" json:"balances"`
	IsZero    bool                           `gorm:"default:false;index" json:"is_zero"`
	CreatedAt time.Time                      `json:"created_at"`
	UpdatedAt time.Time                      `json:"updated_at"`
}

// TableName specifies the table name for WalletPnL model
func (WalletPnL) TableName() string {
	return "wallet_pnls"
}

// FiatCurrency is the fiat price table: Price is the value of one unit in the reference currency
type FiatCurrency struct {
	Code      string          `gorm:"primaryKey;size:10" json:"code"`
	Price     decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"price"`
	Enabled   bool            `gorm:"default:true" json:"enabled"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for FiatCurrency model
func (FiatCurrency) TableName() string {
	return "fiat_currencies"
}

// ExchangeCurrency is the spot price table
type ExchangeCurrency struct {
	Currency  string          `gorm:"primaryKey;size:20" json:"currency"`
	Price     decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"price"`
	Enabled   bool            `gorm:"default:true" json:"enabled"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for ExchangeCurrency model
func (ExchangeCurrency) TableName() string {
	return "exchange_currencies"
}

// All returns every model managed by AutoMigrate
func All() []interface{} {
	return []interface{}{
		&Wallet{},
		&Market{},
		&Order{},
		&FuturesOrder{},
		&P2POffer{},
		&P2PTrade{},
		&P2PTradeMessage{},
		&P2PActiveTrade{},
		&AdminProfit{},
		&WalletPnL{},
		&FiatCurrency{},
		&ExchangeCurrency{},
	}
}
