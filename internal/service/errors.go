package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Every error returned by the settlement services wraps exactly
// one of these so handlers can classify with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrBookkeeping       = errors.New("bookkeeping failure")
)

var (
	ErrInvalidSymbol     = fmt.Errorf("%w: invalid symbol", ErrValidation)
	ErrInvalidSide       = fmt.Errorf("%w: invalid side", ErrValidation)
	ErrInvalidOrderType  = fmt.Errorf("%w: invalid order type", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidPrice      = fmt.Errorf("%w: price must be positive", ErrValidation)
	ErrInvalidLeverage   = fmt.Errorf("%w: leverage must be at least 1", ErrValidation)
	ErrBelowMinimum      = fmt.Errorf("%w: amount below market minimum", ErrValidation)
	ErrMarketDisabled    = fmt.Errorf("%w: market is not active", ErrValidation)
	ErrInvalidWallet     = fmt.Errorf("%w: invalid wallet type", ErrValidation)
	ErrPaymentMethod     = fmt.Errorf("%w: payment method not accepted by offer", ErrValidation)
	ErrSelfTrade         = fmt.Errorf("%w: cannot trade against own offer", ErrValidation)
	ErrEmptyMessage      = fmt.Errorf("%w: message body is empty", ErrValidation)
	ErrOverfill          = fmt.Errorf("%w: fill exceeds remaining amount", ErrValidation)
	ErrMarketNotFound    = fmt.Errorf("%w: market", ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("%w: order", ErrNotFound)
	ErrOfferNotFound     = fmt.Errorf("%w: offer", ErrNotFound)
	ErrTradeNotFound     = fmt.Errorf("%w: trade", ErrNotFound)
	ErrOrderTerminal     = fmt.Errorf("%w: order is closed or cancelled", ErrConflict)
	ErrOrderNotPending   = fmt.Errorf("%w: order is not pending", ErrConflict)
	ErrOrderNotOpen      = fmt.Errorf("%w: order is not open", ErrConflict)
	ErrTradeTerminal     = fmt.Errorf("%w: trade is completed or cancelled", ErrConflict)
	ErrTradeState        = fmt.Errorf("%w: trade is not in the required status", ErrConflict)
	ErrActiveTradeExists = fmt.Errorf("%w: user already has an active trade", ErrConflict)
	ErrOfferInactive     = fmt.Errorf("%w: offer is not active", ErrConflict)
	ErrOfferExhausted    = fmt.Errorf("%w: amount exceeds remaining offer inventory", ErrConflict)
	ErrPartyAction       = fmt.Errorf("%w: action not permitted for this party", ErrConflict)
	ErrNotTradeParty     = fmt.Errorf("%w: trade", ErrNotFound)
)

// InsufficientFundsError reports a reservation or deduction that would drive
// a wallet negative.
type InsufficientFundsError struct {
	Currency  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

// Shortfall is the amount missing from the wallet
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s required %s, available %s",
		e.Currency, e.Required.String(), e.Available.String())
}

// Is matches ErrInsufficientFunds
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
