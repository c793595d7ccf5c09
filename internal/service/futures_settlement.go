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

// FuturesSettlement places, fills and cancels leveraged futures orders.
// Margin and fee are reserved in the quote currency of the funding wallet type.
type FuturesSettlement struct {
	db          *gorm.DB
	orderRepo   *repository.FuturesOrderRepository
	markets     *MarketService
	ledger      *WalletLedger
	profits     *AdminProfitLedger
	fundingType models.WalletType
	logger      *zap.Logger
}

// NewFuturesSettlement creates a new FuturesSettlement
func NewFuturesSettlement(
	db *gorm.DB,
	orderRepo *repository.FuturesOrderRepository,
	markets *MarketService,
	ledger *WalletLedger,
	profits *AdminProfitLedger,
	fundingType models.WalletType,
	logger *zap.Logger,
) *FuturesSettlement {
	if !fundingType.Valid() {
		fundingType = models.WalletTypeFutures
	}
	return &FuturesSettlement{
		db:          db,
		orderRepo:   orderRepo,
		markets:     markets,
		ledger:      ledger,
		profits:     profits,
		fundingType: fundingType,
		logger:      logger,
	}
}

// PlaceFuturesOrderRequest represents a request to place a futures order
type PlaceFuturesOrderRequest struct {
	UserID     uint             `json:"-"`
	Symbol     string           `json:"symbol" binding:"required"`
	Side       models.OrderSide `json:"side" binding:"required"`
	Type       models.OrderType `json:"type"`
	Amount     decimal.Decimal  `json:"amount"`
	Price      decimal.Decimal  `json:"price"`
	Leverage   int              `json:"leverage"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
}

// FuturesPlacement is the outcome of PlaceOrder: either a new order, or the
// existing counter-order that was cancelled instead of creating one
type FuturesPlacement struct {
	Order    *models.FuturesOrder `json:"order,omitempty"`
	Netted   *models.FuturesOrder `json:"netted,omitempty"`
	Refunded decimal.Decimal      `json:"refunded"`
}

func (s *FuturesSettlement) fundingRef(userID uint, symbol string) (models.WalletRef, error) {
	_, quote, ok := models.SplitSymbol(symbol)
	if !ok {
		return models.WalletRef{}, ErrInvalidSymbol
	}
	return models.WalletRef{UserID: userID, Type: s.fundingType, Currency: quote}, nil
}

// PlaceOrder creates a futures order, or cancels the user's exactly mirroring
// unfilled OPEN order when one exists. The funding wallet row is locked before
// the counter-order scan so concurrent placements by the same user serialize.
func (s *FuturesSettlement) PlaceOrder(ctx context.Context, req *PlaceFuturesOrderRequest) (*FuturesPlacement, error) {
	if req.Type == "" {
		req.Type = models.OrderTypeLimit
	}
	if req.Type != models.OrderTypeLimit && req.Type != models.OrderTypeMarket {
		return nil, ErrInvalidOrderType
	}
	if req.Leverage == 0 {
		req.Leverage = 1
	}
	if req.Leverage < 1 {
		return nil, ErrInvalidLeverage
	}

	market, err := s.markets.Get(req.Symbol)
	if err != nil {
		return nil, err
	}
	q, err := quoteOrder(market, req.Side, req.Amount, req.Price)
	if err != nil {
		return nil, err
	}
	// futures fees are always charged in the quote currency
	if q.feeCurrency != q.quote {
		q.fee = q.fee.Mul(q.price).Round(market.FeePrecision)
		q.feeCurrency = q.quote
	}
	reserved := q.cost.Add(q.fee)

	ref, err := s.fundingRef(req.UserID, market.Symbol)
	if err != nil {
		return nil, err
	}

	placement := &FuturesPlacement{Refunded: decimal.Zero}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.Lock(tx, ref); err != nil {
			return err
		}
		repo := s.orderRepo.WithTx(tx)

		open, err := repo.GetOpenOrdersBySymbol(req.UserID, market.Symbol)
		if err != nil {
			return err
		}
		for i := range open {
			candidate := &open[i]
			if !mirrors(candidate, req.Side, req.Leverage, q.amount, q.price) {
				continue
			}

			refund := outstanding(candidate)
			if refund.IsPositive() {
				if err := s.ledger.Release(tx, ref, refund); err != nil {
					return err
				}
			}
			ok, err := repo.Transition(candidate.ID, []models.OrderStatus{models.OrderStatusOpen}, models.OrderStatusCancelled)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOrderTerminal
			}
			candidate.Status = models.OrderStatusCancelled
			placement.Netted = candidate
			placement.Refunded = refund
			return nil
		}

		if err := s.ledger.Reserve(tx, ref, reserved); err != nil {
			return err
		}
		order := &models.FuturesOrder{
			UserID:           req.UserID,
			Symbol:           market.Symbol,
			Side:             req.Side,
			Type:             req.Type,
			Leverage:         req.Leverage,
			Amount:           q.amount,
			Filled:           decimal.Zero,
			Remaining:        q.amount,
			Price:            q.price,
			Cost:             q.cost,
			Fee:              q.fee,
			FeeCurrency:      q.feeCurrency,
			Reserved:         reserved,
			ReservedCurrency: ref.Currency,
			Status:           models.OrderStatusOpen,
			StopLoss:         req.StopLoss,
			TakeProfit:       req.TakeProfit,
		}
		if err := repo.Create(order); err != nil {
			return err
		}
		placement.Order = order
		return nil
	})
	metrics.ObserveSettlement("futures.place", err)
	if err != nil {
		return nil, err
	}

	if placement.Netted != nil {
		s.logger.Info("futures order netted against counter-order",
			zap.Uint("user_id", req.UserID),
			zap.Uint("cancelled_order_id", placement.Netted.ID),
			zap.String("refunded", placement.Refunded.String()))
	} else {
		s.logger.Info("futures order placed",
			zap.Uint("order_id", placement.Order.ID),
			zap.Uint("user_id", req.UserID),
			zap.String("reserved", reserved.String()))
	}
	return placement, nil
}

// mirrors reports whether o is the exact opposite of the described order and fully unfilled
func mirrors(o *models.FuturesOrder, side models.OrderSide, leverage int, amount, price decimal.Decimal) bool {
	return o.Side == side.Opposite() &&
		o.Leverage == leverage &&
		o.Amount.Equal(amount) &&
		o.Price.Equal(price) &&
		o.IsUnfilled()
}

// realizedAt is the share of the reservation consumed once filled units have executed
func realizedAt(o *models.FuturesOrder, filled decimal.Decimal) decimal.Decimal {
	if filled.GreaterThanOrEqual(o.Amount) {
		return o.Reserved
	}
	if !filled.IsPositive() {
		return decimal.Zero
	}
	return o.Reserved.Mul(filled).DivRound(o.Amount, 18)
}

// outstanding is the part of the reservation not yet realized by fills:
// remaining x price plus the unfilled share of the fee
func outstanding(o *models.FuturesOrder) decimal.Decimal {
	return o.Reserved.Sub(realizedAt(o, o.Filled))
}

// FillOrder records an execution of amount units. The filled share of the
// reservation is realized; when nothing remains the order closes and its fee
// is booked as admin profit.
func (s *FuturesSettlement) FillOrder(ctx context.Context, id uint, amount decimal.Decimal) (*models.FuturesOrder, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var order *models.FuturesOrder
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
		if amount.GreaterThan(order.Remaining) {
			return ErrOverfill
		}

		filled := order.Filled.Add(amount)
		remaining := order.Remaining.Sub(amount)
		share := realizedAt(order, filled).Sub(realizedAt(order, order.Filled))

		if share.IsPositive() {
			ref := models.WalletRef{UserID: order.UserID, Type: s.fundingType, Currency: order.ReservedCurrency}
			if err := s.ledger.Release(tx, ref, share); err != nil {
				return err
			}
			if err := s.ledger.Deduct(tx, ref, share); err != nil {
				return err
			}
		}

		status := order.Status
		if remaining.IsZero() {
			status = models.OrderStatusClosed
		}
		if err := repo.UpdateFill(order.ID, filled, remaining, status); err != nil {
			return err
		}
		order.Filled, order.Remaining, order.Status = filled, remaining, status

		if status == models.OrderStatusClosed {
			s.profits.RecordBestEffort(tx, models.ProfitTypeFuturesOrder, order.FeeCurrency, order.Fee).Discard(s.logger)
		}
		return nil
	})
	metrics.ObserveSettlement("futures.fill", err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder refunds the unrealized reservation and marks the order
// CANCELLED. The fee share of any executed part is booked as admin profit.
// A zero userID skips the ownership check.
func (s *FuturesSettlement) CancelOrder(ctx context.Context, userID, id uint) (*models.FuturesOrder, error) {
	var order *models.FuturesOrder
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

		refund := outstanding(order)
		if refund.IsPositive() {
			ref := models.WalletRef{UserID: order.UserID, Type: s.fundingType, Currency: order.ReservedCurrency}
			if err := s.ledger.Release(tx, ref, refund); err != nil {
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

		if order.Filled.IsPositive() {
			earned := order.Fee.Mul(order.Filled).DivRound(order.Amount, 18)
			s.profits.RecordBestEffort(tx, models.ProfitTypeFuturesOrder, order.FeeCurrency, earned).Discard(s.logger)
		}
		return nil
	})
	metrics.ObserveSettlement("futures.cancel", err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder retrieves one of a user's futures orders
func (s *FuturesSettlement) GetOrder(ctx context.Context, userID, id uint) (*models.FuturesOrder, error) {
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

// ListOrders retrieves a page of a user's futures orders
func (s *FuturesSettlement) ListOrders(ctx context.Context, userID uint, status models.OrderStatus, page, pageSize int) ([]models.FuturesOrder, int64, error) {
	return s.orderRepo.WithTx(s.db.WithContext(ctx)).GetByUserIDPaginated(userID, status, page, pageSize)
}

func (s *FuturesSettlement) lockOrder(repo *repository.FuturesOrderRepository, userID, id uint) (*models.FuturesOrder, error) {
	order, err := repo.GetByIDForUpdate(id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load futures order: %w", err)
	}
	if userID != 0 && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
