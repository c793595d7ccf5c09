package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletType represents the product a wallet belongs to
type WalletType string

const (
	WalletTypeFiat    WalletType = "FIAT"
	WalletTypeSpot    WalletType = "SPOT"
	WalletTypeEco     WalletType = "ECO"
	WalletTypeFutures WalletType = "FUTURES"
	WalletTypeForex   WalletType = "FOREX"
	WalletTypeStock   WalletType = "STOCK"
	WalletTypeIndex   WalletType = "INDEX"
)

// WalletTypes lists every wallet type in a stable order
var WalletTypes = []WalletType{
	WalletTypeFiat,
	WalletTypeSpot,
	WalletTypeEco,
	WalletTypeFutures,
	WalletTypeForex,
	WalletTypeStock,
	WalletTypeIndex,
}

// Valid reports whether t is a known wallet type
func (t WalletType) Valid() bool {
	for _, known := range WalletTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Wallet holds the available balance of one currency for one user and product.
// There is no locked column: reservations are debited from Balance directly.
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex:idx_wallet_owner;not null" json:"user_id"`
	Type      WalletType      `gorm:"uniqueIndex:idx_wallet_owner;size:10;not null" json:"type"`
	Currency  string          `gorm:"uniqueIndex:idx_wallet_owner;size:20;not null" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Wallet model
func (Wallet) TableName() string {
	return "wallets"
}

// WalletRef identifies a wallet without loading it
type WalletRef struct {
	UserID   uint
	Type     WalletType
	Currency string
}
