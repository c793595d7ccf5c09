package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TickerSource returns the last traded price of currencies against the ticker quote
type TickerSource interface {
	LastPrices(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error)
}

// RedisTickerSource reads the ticker snapshot the market engine keeps in
// Redis hashes keyed ticker:<CURRENCY>/<QUOTE>
type RedisTickerSource struct {
	redis *redis.Client
	quote string
}

// NewRedisTickerSource creates a new RedisTickerSource
func NewRedisTickerSource(redisClient *redis.Client, quote string) *RedisTickerSource {
	return &RedisTickerSource{redis: redisClient, quote: quote}
}

// LastPrices implements TickerSource. Currencies without a ticker are left out;
// the quote currency itself is priced at 1.
func (s *RedisTickerSource) LastPrices(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(currencies))

	pipe := s.redis.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(currencies))
	for _, currency := range currencies {
		if currency == s.quote {
			prices[currency] = decimal.NewFromInt(1)
			continue
		}
		key := fmt.Sprintf("ticker:%s/%s", currency, s.quote)
		cmds[currency] = pipe.HGet(ctx, key, "last")
	}
	if len(cmds) == 0 {
		return prices, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	for currency, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		prices[currency] = price
	}
	return prices, nil
}

// PriceBook holds the prices resolved for one set of wallets
type PriceBook struct {
	fiat map[string]decimal.Decimal
	spot map[string]decimal.Decimal
	eco  map[string]decimal.Decimal
}

var parity = decimal.NewFromInt(1)

// Price returns the price of one unit of a wallet's currency. Trading wallets
// (FUTURES, FOREX, STOCK, INDEX) fall back to parity when no table knows the currency.
func (b *PriceBook) Price(walletType models.WalletType, currency string) (decimal.Decimal, bool) {
	switch walletType {
	case models.WalletTypeFiat:
		p, ok := b.fiat[currency]
		return p, ok
	case models.WalletTypeSpot:
		p, ok := b.spot[currency]
		return p, ok
	case models.WalletTypeEco:
		p, ok := b.eco[currency]
		return p, ok
	case models.WalletTypeFutures, models.WalletTypeForex, models.WalletTypeStock, models.WalletTypeIndex:
		if p, ok := b.spot[currency]; ok {
			return p, true
		}
		if p, ok := b.fiat[currency]; ok {
			return p, true
		}
		return parity, true
	}
	return decimal.Zero, false
}

// PriceService resolves wallet prices from the fiat table, the spot table
// and the live ticker snapshot
type PriceService struct {
	db        *gorm.DB
	priceRepo *repository.PriceRepository
	ticker    TickerSource
	logger    *zap.Logger
}

// NewPriceService creates a new PriceService
func NewPriceService(db *gorm.DB, priceRepo *repository.PriceRepository, ticker TickerSource, logger *zap.Logger) *PriceService {
	return &PriceService{
		db:        db,
		priceRepo: priceRepo,
		ticker:    ticker,
		logger:    logger,
	}
}

// Load looks up every currency held in wallets, one batch per source
func (s *PriceService) Load(ctx context.Context, wallets []models.Wallet) (*PriceBook, error) {
	var fiat, spot, eco []string
	seen := make(map[models.WalletType]map[string]bool)
	add := func(list *[]string, t models.WalletType, currency string) {
		if seen[t] == nil {
			seen[t] = make(map[string]bool)
		}
		if !seen[t][currency] {
			seen[t][currency] = true
			*list = append(*list, currency)
		}
	}

	for _, w := range wallets {
		switch w.Type {
		case models.WalletTypeFiat:
			add(&fiat, models.WalletTypeFiat, w.Currency)
		case models.WalletTypeSpot:
			add(&spot, models.WalletTypeSpot, w.Currency)
		case models.WalletTypeEco:
			add(&eco, models.WalletTypeEco, w.Currency)
		default:
			// trading wallets consult both tables before falling back to parity
			add(&spot, models.WalletTypeSpot, w.Currency)
			add(&fiat, models.WalletTypeFiat, w.Currency)
		}
	}

	repo := s.priceRepo.WithTx(s.db.WithContext(ctx))

	book := &PriceBook{}
	var err error
	if book.fiat, err = repo.GetFiatPrices(fiat); err != nil {
		return nil, fmt.Errorf("fiat prices: %w", err)
	}
	if book.spot, err = repo.GetExchangePrices(spot); err != nil {
		return nil, fmt.Errorf("exchange prices: %w", err)
	}
	book.eco = make(map[string]decimal.Decimal)
	if len(eco) > 0 && s.ticker != nil {
		if book.eco, err = s.ticker.LastPrices(ctx, eco); err != nil {
			return nil, fmt.Errorf("ticker prices: %w", err)
		}
	}
	return book, nil
}

// Value totals balance x price per wallet type. Wallets without a price are
// skipped and reported in missing.
func (s *PriceService) Value(wallets []models.Wallet, book *PriceBook) (totals map[models.WalletType]decimal.Decimal, missing []models.Wallet) {
	totals = make(map[models.WalletType]decimal.Decimal, len(models.WalletTypes))
	for _, t := range models.WalletTypes {
		totals[t] = decimal.Zero
	}
	for _, w := range wallets {
		price, ok := book.Price(w.Type, w.Currency)
		if !ok {
			missing = append(missing, w)
			continue
		}
		totals[w.Type] = totals[w.Type].Add(w.Balance.Mul(price))
	}
	return totals, missing
}
