package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents the order type
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderSide represents the order side
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the other side
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Valid reports whether s is BUY or SELL
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusClosed    OrderStatus = "CLOSED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal returns true once no further settlement is accepted
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusClosed || s == OrderStatusCancelled
}

// Order represents a spot exchange order
type Order struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           uint             `gorm:"index;not null" json:"user_id"`
	Symbol           string           `gorm:"size:40;not null;index" json:"symbol"`
	Side             OrderSide        `gorm:"size:10;not null" json:"side"`
	Type             OrderType        `gorm:"size:20;not null" json:"type"`
	Amount           decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"amount"`
	Price            decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"price"`
	Cost             decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"cost"`
	Fee              decimal.Decimal  `gorm:"type:decimal(36,18);not null;default:0" json:"fee"`
	FeeCurrency      string           `gorm:"size:20;not null" json:"fee_currency"`
	Reserved         decimal.Decimal  `gorm:"type:decimal(36,18);not null;default:0" json:"reserved"`
	ReservedCurrency string           `gorm:"size:20;not null" json:"reserved_currency"`
	Status           OrderStatus      `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	StopLoss         *decimal.Decimal `gorm:"type:decimal(36,18)" json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal `gorm:"type:decimal(36,18)" json:"take_profit,omitempty"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "exchange_orders"
}

// FuturesOrder represents a leveraged futures order with fill tracking
type FuturesOrder struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           uint             `gorm:"index;not null" json:"user_id"`
	Symbol           string           `gorm:"size:40;not null;index" json:"symbol"`
	Side             OrderSide        `gorm:"size:10;not null" json:"side"`
	Type             OrderType        `gorm:"size:20;not null" json:"type"`
	Leverage         int              `gorm:"not null;default:1" json:"leverage"`
	Amount           decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"amount"`
	Filled           decimal.Decimal  `gorm:"type:decimal(36,18);not null;default:0" json:"filled"`
	Remaining        decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"remaining"`
	Price            decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"price"`
	Cost             decimal.Decimal  `gorm:"type:decimal(36,18);not null" json:"cost"`
	Fee              decimal.Decimal  `gorm:"type:decimal(36,18);not null;default:0" json:"fee"`
	FeeCurrency      string           `gorm:"size:20;not null" json:"fee_currency"`
	Reserved         decimal.Decimal  `gorm:"type:decimal(36,18);not null;default:0" json:"reserved"`
	ReservedCurrency string           `gorm:"size:20;not null" json:"reserved_currency"`
	Status           OrderStatus      `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	StopLoss         *decimal.Decimal `gorm:"type:decimal(36,18)" json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal `gorm:"type:decimal(36,18)" json:"take_profit,omitempty"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName specifies the table name for FuturesOrder model
func (FuturesOrder) TableName() string {
	return "futures_orders"
}

// IsUnfilled returns true if nothing has been filled yet
func (o *FuturesOrder) IsUnfilled() bool {
	return o.Remaining.Equal(o.Amount)
}
