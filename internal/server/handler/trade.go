package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// TradeService defines the methods that the trade handler requires from the
// service layer.
type TradeService interface {
	Buy(ctx context.Context, accountID, ticker string, quantity int64) (domain.Transaction, error)
	Sell(ctx context.Context, accountID, ticker string, quantity int64) (domain.Transaction, error)
	Transactions(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Transaction, error)
}

// ExportService defines the statement export operation.
type ExportService interface {
	ExportTransactions(ctx context.Context, accountID string) (string, error)
}

// TradeHandler serves order execution and transaction history endpoints.
type TradeHandler struct {
	trades  TradeService
	exports ExportService
	logger  *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given services and logger.
func NewTradeHandler(trades TradeService, exports ExportService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades:  trades,
		exports: exports,
		logger:  logger,
	}
}

// orderRequest is the JSON body for buy and sell orders.
type orderRequest struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// Buy executes a buy order for the authenticated account.
// POST /api/trade/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.trades.Buy)
}

// Sell executes a sell order for the authenticated account.
// POST /api/trade/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.trades.Sell)
}

func (h *TradeHandler) execute(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, accountID, ticker string, quantity int64) (domain.Transaction, error)) {

	accountID, ok := accountFrom(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	txn, err := op(r.Context(), accountID, req.Ticker, req.Quantity)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// listTransactionsResponse wraps the transaction history response.
type listTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// ListTransactions returns the account's transaction history, newest first.
// GET /api/transactions?limit=50&offset=0
func (h *TradeHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFrom(w, r)
	if !ok {
		return
	}

	txns, err := h.trades.Transactions(r.Context(), accountID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if txns == nil {
		txns = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{Transactions: txns})
}

// Export writes the account's transaction history to object storage and
// returns the object key.
// POST /api/transactions/export
func (h *TradeHandler) Export(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFrom(w, r)
	if !ok {
		return
	}

	key, err := h.exports.ExportTransactions(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}
