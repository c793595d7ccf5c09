package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/exchange-settlement/internal/metrics"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// P2PTradeEngine manages trades against P2P offers. Funds move off-platform,
// so the engine tracks offer inventory and trade state only.
type P2PTradeEngine struct {
	db       *gorm.DB
	p2pRepo  *repository.P2PRepository
	notifier Notifier
	adminIDs []uint
	logger   *zap.Logger
}

// NewP2PTradeEngine creates a new P2PTradeEngine
func NewP2PTradeEngine(db *gorm.DB, p2pRepo *repository.P2PRepository, notifier Notifier, adminIDs []uint, logger *zap.Logger) *P2PTradeEngine {
	return &P2PTradeEngine{
		db:       db,
		p2pRepo:  p2pRepo,
		notifier: notifier,
		adminIDs: adminIDs,
		logger:   logger,
	}
}

// CreateTradeRequest represents a buyer's request to trade against an offer
type CreateTradeRequest struct {
	OfferID         uint            `json:"offer_id" binding:"required"`
	BuyerID         uint            `json:"-"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID uint            `json:"payment_method_id"`
}

// CreateTrade opens a PENDING trade and commits its amount from the offer.
// Neither party may already hold a PENDING or PAID trade.
func (e *P2PTradeEngine) CreateTrade(ctx context.Context, req *CreateTradeRequest) (*models.P2PTrade, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var trade *models.P2PTrade
	var offer *models.P2POffer
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := e.p2pRepo.WithTx(tx)

		var err error
		offer, err = repo.GetOfferForUpdate(req.OfferID)
		if err != nil {
			if errors.Is(err, repository.ErrOfferNotFound) {
				return ErrOfferNotFound
			}
			return err
		}
		if offer.UserID == req.BuyerID {
			return ErrSelfTrade
		}
		if offer.Status != models.OfferStatusActive {
			return ErrOfferInactive
		}
		if req.Amount.GreaterThan(offer.Available()) {
			return ErrOfferExhausted
		}

		method := req.PaymentMethodID
		if method == 0 {
			method = offer.PaymentMethodID
		}
		if !offer.AcceptsPaymentMethod(method) {
			return ErrPaymentMethod
		}

		for _, userID := range []uint{req.BuyerID, offer.UserID} {
			count, err := repo.CountActiveTrades(userID)
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrActiveTradeExists
			}
		}

		trade = &models.P2PTrade{
			Reference:       uuid.New().String(),
			OfferID:         offer.ID,
			BuyerID:         req.BuyerID,
			SellerID:        offer.UserID,
			Amount:          req.Amount,
			PaymentMethodID: method,
			Status:          models.TradeStatusPending,
		}
		if err := repo.CreateTrade(trade); err != nil {
			return err
		}

		// the count above is only a fast path; these inserts are what hold
		// under concurrent requests
		for _, userID := range []uint{trade.BuyerID, trade.SellerID} {
			claimed, err := repo.ClaimActiveTrade(userID, trade.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return ErrActiveTradeExists
			}
		}

		offer.InOrder = offer.InOrder.Add(req.Amount)
		if offer.InOrder.Equal(offer.Amount) {
			offer.Status = models.OfferStatusCompleted
		}
		rotatePaymentMethods(offer, method)
		if err := repo.UpdateOffer(offer); err != nil {
			return err
		}

		if offer.PaymentInstructions != "" {
			return repo.CreateMessage(&models.P2PTradeMessage{
				TradeID:  trade.ID,
				SenderID: offer.UserID,
				Body:     offer.PaymentInstructions,
				System:   true,
			})
		}
		return nil
	})
	metrics.ObserveSettlement("p2p.create", err)
	if err != nil {
		return nil, err
	}

	e.logger.Info("p2p trade created",
		zap.Uint("trade_id", trade.ID),
		zap.String("reference", trade.Reference),
		zap.Uint("offer_id", trade.OfferID),
		zap.String("amount", trade.Amount.String()),
		zap.String("offer_status", string(offer.Status)))

	amount := trade.Amount.String() + " " + offer.Currency
	e.notify(ctx, trade.BuyerID, "P2P trade created", fmt.Sprintf("You opened trade %s for %s", trade.Reference, amount))
	e.notify(ctx, trade.SellerID, "New P2P trade", fmt.Sprintf("A buyer opened trade %s for %s on your offer", trade.Reference, amount))
	for _, adminID := range e.adminIDs {
		e.notify(ctx, adminID, "P2P trade created", fmt.Sprintf("Trade %s for %s opened on offer %d", trade.Reference, amount, trade.OfferID))
	}

	return trade, nil
}

// rotatePaymentMethods makes method the offer's primary payment method and
// keeps the previous primary among the additional ones
func rotatePaymentMethods(offer *models.P2POffer, method uint) {
	if offer.PaymentMethodID == method {
		return
	}
	additional := make([]uint, 0, len(offer.AdditionalPaymentMethodIDs))
	for _, id := range offer.AdditionalPaymentMethodIDs {
		if id != method {
			additional = append(additional, id)
		}
	}
	offer.AdditionalPaymentMethodIDs = append(additional, offer.PaymentMethodID)
	offer.PaymentMethodID = method
}

// MarkPaid records that the buyer has sent payment
func (e *P2PTradeEngine) MarkPaid(ctx context.Context, tradeID, buyerID uint) (*models.P2PTrade, error) {
	trade, err := e.transition(ctx, "p2p.paid", tradeID, buyerID, models.TradeStatusPending, models.TradeStatusPaid,
		func(t *models.P2PTrade) bool { return t.BuyerID == buyerID }, nil)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, trade.SellerID, "P2P trade paid", fmt.Sprintf("The buyer marked trade %s as paid", trade.Reference))
	return trade, nil
}

// Release completes a paid trade once the seller confirms receipt of payment
func (e *P2PTradeEngine) Release(ctx context.Context, tradeID, sellerID uint) (*models.P2PTrade, error) {
	trade, err := e.transition(ctx, "p2p.release", tradeID, sellerID, models.TradeStatusPaid, models.TradeStatusCompleted,
		func(t *models.P2PTrade) bool { return t.SellerID == sellerID },
		func(tx *gorm.DB, t *models.P2PTrade) error {
			return e.p2pRepo.WithTx(tx).ReleaseActiveTrade(t.ID)
		})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, trade.BuyerID, "P2P trade completed", fmt.Sprintf("The seller released trade %s", trade.Reference))
	return trade, nil
}

// Cancel cancels a PENDING trade and returns its amount to the offer
func (e *P2PTradeEngine) Cancel(ctx context.Context, tradeID, userID uint) (*models.P2PTrade, error) {
	trade, err := e.transition(ctx, "p2p.cancel", tradeID, userID, models.TradeStatusPending, models.TradeStatusCancelled,
		func(t *models.P2PTrade) bool { return t.IsParty(userID) },
		func(tx *gorm.DB, t *models.P2PTrade) error {
			repo := e.p2pRepo.WithTx(tx)
			offer, err := repo.GetOfferForUpdate(t.OfferID)
			if err != nil {
				return err
			}
			offer.InOrder = offer.InOrder.Sub(t.Amount)
			if offer.InOrder.IsNegative() {
				offer.InOrder = decimal.Zero
			}
			if offer.Status == models.OfferStatusCompleted {
				offer.Status = models.OfferStatusActive
			}
			if err := repo.UpdateOffer(offer); err != nil {
				return err
			}
			return repo.ReleaseActiveTrade(t.ID)
		})
	if err != nil {
		return nil, err
	}

	counterparty := trade.SellerID
	if userID == trade.SellerID {
		counterparty = trade.BuyerID
	}
	e.notify(ctx, counterparty, "P2P trade cancelled", fmt.Sprintf("Trade %s was cancelled", trade.Reference))
	return trade, nil
}

// transition locks a trade, checks who may act and its current status, then
// moves it to the target status and runs the extra work in the same transaction
func (e *P2PTradeEngine) transition(
	ctx context.Context,
	op string,
	tradeID, userID uint,
	from, to models.TradeStatus,
	allowed func(*models.P2PTrade) bool,
	apply func(*gorm.DB, *models.P2PTrade) error,
) (*models.P2PTrade, error) {
	var trade *models.P2PTrade
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := e.p2pRepo.WithTx(tx)
		var err error
		trade, err = e.lockTrade(repo, tradeID, userID)
		if err != nil {
			return err
		}
		if !allowed(trade) {
			return ErrPartyAction
		}
		if trade.Status.IsTerminal() {
			return ErrTradeTerminal
		}
		if trade.Status != from {
			return ErrTradeState
		}

		ok, err := repo.UpdateTradeStatus(trade.ID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTradeState
		}
		trade.Status = to

		if apply != nil {
			return apply(tx, trade)
		}
		return nil
	})
	metrics.ObserveSettlement(op, err)
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// PostMessage appends a message from one of the parties to the trade thread
func (e *P2PTradeEngine) PostMessage(ctx context.Context, tradeID, senderID uint, body string) (*models.P2PTradeMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	var trade *models.P2PTrade
	message := &models.P2PTradeMessage{SenderID: senderID, Body: body}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := e.p2pRepo.WithTx(tx)
		var err error
		trade, err = e.lockTrade(repo, tradeID, senderID)
		if err != nil {
			return err
		}
		if trade.Status == models.TradeStatusCancelled {
			return ErrTradeTerminal
		}
		message.TradeID = trade.ID
		return repo.CreateMessage(message)
	})
	if err != nil {
		return nil, err
	}

	recipient := trade.SellerID
	if senderID == trade.SellerID {
		recipient = trade.BuyerID
	}
	e.notify(ctx, recipient, "New P2P message", fmt.Sprintf("New message on trade %s", trade.Reference))
	return message, nil
}

// GetTrade retrieves a trade with its messages. Only the parties can see it.
func (e *P2PTradeEngine) GetTrade(ctx context.Context, tradeID, userID uint) (*models.P2PTrade, error) {
	trade, err := e.p2pRepo.WithTx(e.db.WithContext(ctx)).GetTrade(tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	if userID != 0 && !trade.IsParty(userID) {
		return nil, ErrNotTradeParty
	}
	return trade, nil
}

func (e *P2PTradeEngine) lockTrade(repo *repository.P2PRepository, tradeID, userID uint) (*models.P2PTrade, error) {
	trade, err := repo.GetTradeForUpdate(tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	if !trade.IsParty(userID) {
		return nil, ErrNotTradeParty
	}
	return trade, nil
}

func (e *P2PTradeEngine) notify(ctx context.Context, userID uint, title, message string) {
	if e.notifier == nil {
		return
	}
	BestEffort{
		Op: "notify." + CategoryP2P,
		Err: e.notifier.Notify(ctx, Notification{
			UserID:   userID,
			Title:    title,
			Message:  message,
			Category: CategoryP2P,
		}),
	}.Discard(e.logger)
}
