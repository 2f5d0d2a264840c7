package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// AccountService defines the methods that the account handler requires from
// the service layer.
type AccountService interface {
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	Holdings(ctx context.Context, accountID string) ([]domain.Position, error)
}

// AccountHandler serves balance and holdings endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// balanceResponse carries a cash balance as a decimal string.
type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// amountRequest is the JSON body for deposits and withdrawals.
type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// GetBalance returns the account's current cash balance.
// GET /api/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFrom(w, r)
	if !ok {
		return
	}

	balance, err := h.accounts.Balance(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

// Deposit credits the account and returns the new balance.
// POST /api/balance/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.accounts.Deposit)
}

// Withdraw debits the account and returns the new balance.
// POST /api/balance/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.accounts.Withdraw)
}

func (h *AccountHandler) adjust(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error)) {

	accountID, ok := accountFrom(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	balance, err := op(r.Context(), accountID, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

// listHoldingsResponse wraps the holdings response.
type listHoldingsResponse struct {
	Holdings []domain.Position `json:"holdings"`
}

// ListHoldings returns the account's open positions.
// GET /api/holdings
func (h *AccountHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFrom(w, r)
	if !ok {
		return
	}

	holdings, err := h.accounts.Holdings(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if holdings == nil {
		holdings = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listHoldingsResponse{Holdings: holdings})
}
