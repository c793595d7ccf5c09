package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus represents the P2P offer status
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "PENDING"
	OfferStatusActive    OfferStatus = "ACTIVE"
	OfferStatusCompleted OfferStatus = "COMPLETED"
	OfferStatusCancelled OfferStatus = "CANCELLED"
)

// TradeStatus represents the P2P trade status
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusPaid      TradeStatus = "PAID"
	TradeStatusCompleted TradeStatus = "COMPLETED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// ActiveTradeStatuses are the statuses that count toward the one-active-trade rule
var ActiveTradeStatuses = []TradeStatus{TradeStatusPending, TradeStatusPaid}

// IsTerminal returns true once the trade accepts no further transitions
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusCompleted || s == TradeStatusCancelled
}

// P2POffer is a seller's inventory offered to buyers
type P2POffer struct {
	ID                         uint            `gorm:"primaryKey" json:"id"`
	UserID                     uint            `gorm:"index;not null" json:"user_id"`
	Currency                   string          `gorm:"size:20;not null" json:"currency"`
	Amount                     decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"amount"`
	InOrder                    decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"in_order"`
	PaymentMethodID            uint            `gorm:"not null" json:"payment_method_id"`
	AdditionalPaymentMethodIDs []uint          `gorm:"serializer:json" json:"additional_payment_method_ids"`
	PaymentInstructions        string          `gorm:"type:text" json:"payment_instructions,omitempty"`
	Status                     OfferStatus     `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	CreatedAt                  time.Time       `json:"created_at"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

// TableName specifies the table name for P2POffer model
func (P2POffer) TableName() string {
	return "p2p_offers"
}

// Available returns the inventory not yet committed to trades
func (o *P2POffer) Available() decimal.Decimal {
	return o.Amount.Sub(o.InOrder)
}

// AcceptsPaymentMethod reports whether id is the primary or an additional method
func (o *P2POffer) AcceptsPaymentMethod(id uint) bool {
	if o.PaymentMethodID == id {
		return true
	}
	for _, m := range o.AdditionalPaymentMethodIDs {
		if m == id {
			return true
		}
	}
	return false
}

// P2PTrade is a buyer's claim against an offer
type P2PTrade struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Reference       string            `gorm:"uniqueIndex;size:36;not null" json:"reference"`
	OfferID         uint              `gorm:"index;not null" json:"offer_id"`
	BuyerID         uint              `gorm:"index;not null" json:"buyer_id"`
	SellerID        uint              `gorm:"index;not null" json:"seller_id"`
	Amount          decimal.Decimal   `gorm:"type:decimal(36,18);not null" json:"amount"`
	PaymentMethodID uint              `gorm:"not null" json:"payment_method_id"`
	Status          TradeStatus       `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Messages        []P2PTradeMessage `gorm:"foreignKey:TradeID" json:"messages,omitempty"`
}

// TableName specifies the table name for P2PTrade model
func (P2PTrade) TableName() string {
	return "p2p_trades"
}

// IsParty reports whether userID is the buyer or the seller
func (t *P2PTrade) IsParty(userID uint) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// P2PTradeMessage is one entry of a trade's message thread
type P2PTradeMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TradeID   uint      `gorm:"index;not null" json:"trade_id"`
	SenderID  uint      `gorm:"not null" json:"sender_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	System    bool      `gorm:"default:false" json:"system"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for P2PTradeMessage model
func (P2PTradeMessage) TableName() string {
	return "p2p_trade_messages"
}

// P2PActiveTrade marks a user as party to a PENDING or PAID trade.
// The primary key on UserID is what enforces one active trade per user.
type P2PActiveTrade struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	TradeID   uint      `gorm:"index;not null" json:"trade_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for P2PActiveTrade model
func (P2PActiveTrade) TableName() string {
	return "p2p_active_trades"
}
