package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// PriceService defines the quote lookup that the price handler requires.
type PriceService interface {
	Quote(ctx context.Context, ticker string) (domain.PricePoint, error)
}

// PriceHandler serves last-price lookups.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler with the given service and logger.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices: prices,
		logger: logger,
	}
}

// GetPrice returns the last known price for a ticker, or 404 when the ticker
// has never been priced.
// GET /api/price/{ticker}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	pp, err := h.prices.Quote(r.Context(), r.PathValue("ticker"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pp)
}
