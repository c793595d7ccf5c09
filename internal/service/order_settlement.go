package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/exchange-settlement/internal/metrics"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// OrderSettlement moves exchange orders through PENDING -> OPEN -> {CLOSED, CANCELLED}
// and applies their wallet effects
type OrderSettlement struct {
	db        *gorm.DB
	orderRepo *repository.OrderRepository
	markets   *MarketService
	ledger    *WalletLedger
	profits   *AdminProfitLedger
	logger    *zap.Logger
}

// NewOrderSettlement creates a new OrderSettlement
func NewOrderSettlement(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	markets *MarketService,
	ledger *WalletLedger,
	profits *AdminProfitLedger,
	logger *zap.Logger,
) *OrderSettlement {
	return &OrderSettlement{
		db:        db,
		orderRepo: orderRepo,
		markets:   markets,
		ledger:    ledger,
		profits:   profits,
		logger:    logger,
	}
}

// PlaceOrderRequest represents a request to place an exchange order
type PlaceOrderRequest struct {
	UserID     uint             `json:"-"`
	Symbol     string           `json:"symbol" binding:"required"`
	Side       models.OrderSide `json:"side" binding:"required"`
	Type       models.OrderType `json:"type"`
	Amount     decimal.Decimal  `json:"amount"`
	Price      decimal.Decimal  `json:"price"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	// Deferred orders start PENDING and wait for ActivateOrder
	Deferred bool `json:"deferred"`
}

// orderQuote is the priced, rounded form of an order before any wallet movement
type orderQuote struct {
	base             string
	quote            string
	amount           decimal.Decimal
	price            decimal.Decimal
	cost             decimal.Decimal
	fee              decimal.Decimal
	feeCurrency      string
	reserved         decimal.Decimal
	reservedCurrency string
}

// quoteOrder validates an order against its market and computes cost, fee and
// the reservation. BUY pays the taker rate and SELL the maker rate.
func quoteOrder(market *models.Market, side models.OrderSide, amount, price decimal.Decimal) (*orderQuote, error) {
	base, quote, ok := models.SplitSymbol(market.Symbol)
	if !ok {
		return nil, ErrInvalidSymbol
	}
	if market.Status != models.MarketStatusActive {
		return nil, ErrMarketDisabled
	}
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	amount = amount.Round(market.AmountPrecision)
	price = price.Round(market.PricePrecision)
	if !amount.IsPositive() || amount.LessThan(market.MinAmount) {
		return nil, ErrBelowMinimum
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	rate := market.TakerFee
	if side == models.OrderSideSell {
		rate = market.MakerFee
	}

	q := &orderQuote{
		base:   base,
		quote:  quote,
		amount: amount,
		price:  price,
		cost:   amount.Mul(price),
	}
	if market.FeeInBase {
		q.fee = amount.Mul(rate).Div(hundred).Round(market.FeePrecision)
		q.feeCurrency = base
	} else {
		q.fee = q.cost.Mul(rate).Div(hundred).Round(market.FeePrecision)
		q.feeCurrency = quote
	}

	if side == models.OrderSideBuy {
		q.reservedCurrency = quote
		q.reserved = q.cost
	} else {
		q.reservedCurrency = base
		q.reserved = amount
	}
	if q.feeCurrency == q.reservedCurrency {
		q.reserved = q.reserved.Add(q.fee)
	}
	return q, nil
}

func spotRef(userID uint, currency string) models.WalletRef {
	return models.WalletRef{UserID: userID, Type: models.WalletTypeSpot, Currency: currency}
}

// PlaceOrder reserves the order's funds and records it
func (s *OrderSettlement) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	if req.Type == "" {
		req.Type = models.OrderTypeLimit
	}
	if req.Type != models.OrderTypeLimit && req.Type != models.OrderTypeMarket {
		return nil, ErrInvalidOrderType
	}

	market, err := s.markets.Get(req.Symbol)
	if err != nil {
		return nil, err
	}
	q, err := quoteOrder(market, req.Side, req.Amount, req.Price)
	if err != nil {
		return nil, err
	}

	status := models.OrderStatusOpen
	if req.Deferred {
		status = models.OrderStatusPending
	}
	order := &models.Order{
		UserID:           req.UserID,
		Symbol:           market.Symbol,
		Side:             req.Side,
		Type:             req.Type,
		Amount:           q.amount,
		Price:            q.price,
		Cost:             q.cost,
		Fee:              q.fee,
		FeeCurrency:      q.feeCurrency,
		Reserved:         q.reserved,
		ReservedCurrency: q.reservedCurrency,
		Status:           status,
		StopLoss:         req.StopLoss,
		TakeProfit:       req.TakeProfit,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.Reserve(tx, spotRef(req.UserID, q.reservedCurrency), q.reserved); err != nil {
			return err
		}
		return s.orderRepo.WithTx(tx).Create(order)
	})
	metrics.ObserveSettlement("exchange.place", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", order.UserID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("reserved", order.Reserved.String()),
		zap.String("reserved_currency", order.ReservedCurrency))
	return order, nil
}

// ActivateOrder moves a deferred order from PENDING to OPEN
func (s *OrderSettlement) ActivateOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		var err error
		order, err = s.lockOrder(repo, 0, id)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			if order.Status.IsTerminal() {
				return ErrOrderTerminal
			}
			return ErrOrderNotPending
		}
		if ok, err := repo.Transition(id, []models.OrderStatus{models.OrderStatusPending}, models.OrderStatusOpen); err != nil {
			return err
		} else if !ok {
			return ErrOrderNotPending
		}
		order.Status = models.OrderStatusOpen
		return nil
	})
	metrics.ObserveSettlement("exchange.activate", err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CloseOrder settles a filled OPEN order: the reservation is released, cost and
// fee are deducted from the paying wallet and the proceeds are credited.
// The fee is then booked as admin profit without affecting the settlement.
func (s *OrderSettlement) CloseOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		var err error
		order, err = s.lockOrder(repo, 0, id)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return ErrOrderTerminal
		}
		if order.Status != models.OrderStatusOpen {
			return ErrOrderNotOpen
		}

		if err := s.realize(tx, order); err != nil {
			return err
		}

		ok, err := repo.Transition(id, []models.OrderStatus{models.OrderStatusOpen}, models.OrderStatusClosed)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderTerminal
		}
		order.Status = models.OrderStatusClosed

		s.profits.RecordBestEffort(tx, models.ProfitTypeExchangeOrder, order.FeeCurrency, order.Fee).Discard(s.logger)
		return nil
	})
	metrics.ObserveSettlement("exchange.close", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order closed",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", order.UserID),
		zap.String("fee", order.Fee.String()),
		zap.String("fee_currency", order.FeeCurrency))
	return order, nil
}

func (s *OrderSettlement) realize(tx *gorm.DB, order *models.Order) error {
	base, quote, ok := models.SplitSymbol(order.Symbol)
	if !ok {
		return ErrInvalidSymbol
	}
	baseRef := spotRef(order.UserID, base)
	quoteRef := spotRef(order.UserID, quote)

	if order.Reserved.IsPositive() {
		if err := s.ledger.Release(tx, spotRef(order.UserID, order.ReservedCurrency), order.Reserved); err != nil {
			return err
		}
	}

	pay, receive := quoteRef, baseRef
	paid, received := order.Cost, order.Amount
	if order.Side == models.OrderSideSell {
		pay, receive = baseRef, quoteRef
		paid, received = order.Amount, order.Cost
	}

	if err := s.ledger.Deduct(tx, pay, paid); err != nil {
		return err
	}
	if order.Fee.IsPositive() {
		if order.FeeCurrency == pay.Currency {
			if err := s.ledger.Deduct(tx, pay, order.Fee); err != nil {
				return err
			}
		} else {
			received = received.Sub(order.Fee)
		}
	}
	if received.IsPositive() {
		return s.ledger.Add(tx, receive, received)
	}
	return nil
}

// CancelOrder releases exactly the order's reservation and marks it CANCELLED.
// A zero userID skips the ownership check.
func (s *OrderSettlement) CancelOrder(ctx context.Context, userID, id uint) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		var err error
		order, err = s.lockOrder(repo, userID, id)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return ErrOrderTerminal
		}

		if order.Reserved.IsPositive() {
			ref := spotRef(order.UserID, order.ReservedCurrency)
			if err := s.ledger.Release(tx, ref, order.Reserved); err != nil {
				return err
			}
		}

		ok, err := repo.Transition(id, []models.OrderStatus{models.OrderStatusPending, models.OrderStatusOpen}, models.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderTerminal
		}
		order.Status = models.OrderStatusCancelled
		return nil
	})
	metrics.ObserveSettlement("exchange.cancel", err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder retrieves one of a user's orders
func (s *OrderSettlement) GetOrder(ctx context.Context, userID, id uint) (*models.Order, error) {
	order, err := s.orderRepo.WithTx(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if userID != 0 && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders retrieves a page of a user's orders
func (s *OrderSettlement) ListOrders(ctx context.Context, userID uint, status models.OrderStatus, page, pageSize int) ([]models.Order, int64, error) {
	return s.orderRepo.WithTx(s.db.WithContext(ctx)).GetByUserIDPaginated(userID, status, page, pageSize)
}

func (s *OrderSettlement) lockOrder(repo *repository.OrderRepository, userID, id uint) (*models.Order, error) {
	order, err := repo.GetByIDForUpdate(id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if userID != 0 && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
