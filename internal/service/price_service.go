package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// PriceService exposes read access to the last-price cache.
type PriceService struct {
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewPriceService creates a PriceService.
func NewPriceService(cache domain.PriceCache, logger *slog.Logger) *PriceService {
	return &PriceService{
		cache:  cache,
		logger: logger.With(slog.String("component", "price_service")),
	}
}

// Quote returns the last known price for a ticker. Returns
// domain.ErrNotFound when the ticker has never been priced.
func (s *PriceService) Quote(ctx context.Context, ticker string) (domain.PricePoint, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || len(t) > maxTickerLen {
		return domain.PricePoint{}, domain.ErrInvalidTicker
	}
	return s.cache.GetPrice(ctx, t)
}
