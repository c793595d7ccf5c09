package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"go.uber.org/zap"
)

// MarketService caches market metadata read by settlement
type MarketService struct {
	marketRepo     *repository.MarketRepository
	logger         *zap.Logger
	cache          map[string]models.Market
	cacheMux       sync.RWMutex
	updateInterval time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewMarketService creates a new MarketService
func NewMarketService(marketRepo *repository.MarketRepository, logger *zap.Logger) *MarketService {
	return &MarketService{
		marketRepo:     marketRepo,
		logger:         logger,
		cache:          make(map[string]models.Market),
		updateInterval: 5 * time.Minute,
	}
}

// Start loads every market and refreshes the cache periodically
func (s *MarketService) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.Refresh(); err != nil {
		return err
	}

	go s.updateLoop()

	return nil
}

// Stop stops the refresh loop
func (s *MarketService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *MarketService) updateLoop() {
	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(); err != nil {
				s.logger.Warn("market refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh replaces the cache with the current markets table
func (s *MarketService) Refresh() error {
	markets, err := s.marketRepo.GetAll()
	if err != nil {
		return err
	}

	cache := make(map[string]models.Market, len(markets))
	for _, m := range markets {
		cache[m.Symbol] = m
	}

	s.cacheMux.Lock()
	s.cache = cache
	s.cacheMux.Unlock()

	s.logger.Debug("markets refreshed", zap.Int("count", len(markets)))
	return nil
}

// Get returns the market for a BASE/QUOTE symbol, reading through to the
// database on a cache miss
func (s *MarketService) Get(symbol string) (*models.Market, error) {
	if _, _, ok := models.SplitSymbol(symbol); !ok {
		return nil, ErrInvalidSymbol
	}

	s.cacheMux.RLock()
	market, ok := s.cache[symbol]
	s.cacheMux.RUnlock()
	if ok {
		return &market, nil
	}

	loaded, err := s.marketRepo.GetBySymbol(symbol)
	if err != nil {
		if errors.Is(err, repository.ErrMarketNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}

	s.cacheMux.Lock()
	s.cache[symbol] = *loaded
	s.cacheMux.Unlock()

	return loaded, nil
}
