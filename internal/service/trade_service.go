// Package service implements the business logic of the simulated exchange
// over the domain contracts.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

const (
	// defaultMaxQuantity bounds a single order when no limit is configured.
	defaultMaxQuantity = 10_000

	// maxTickerLen matches the upstream symbol universe.
	maxTickerLen = 10
)

// TradeService is the order execution engine. Every order fills instantly at
// the last cached price; the ledger commits balance change, position change,
// and transaction record as one atomic unit per account.
type TradeService struct {
	ledger domain.Ledger
	prices domain.PriceCache
	maxQty int64
	logger *slog.Logger
}

// NewTradeService creates a TradeService. maxQty <= 0 selects the default
// per-order quantity bound.
func NewTradeService(ledger domain.Ledger, prices domain.PriceCache, maxQty int64, logger *slog.Logger) *TradeService {
	if maxQty <= 0 {
		maxQty = defaultMaxQuantity
	}
	return &TradeService{
		ledger: ledger,
		prices: prices,
		maxQty: maxQty,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// resolve validates the order parameters and returns the normalized ticker
// with its current cached price. Nothing is resolved from a store until the
// parameters pass validation.
func (s *TradeService) resolve(ctx context.Context, ticker string, quantity int64) (string, decimal.Decimal, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || len(t) > maxTickerLen {
		return "", decimal.Zero, domain.ErrInvalidTicker
	}
	if quantity < 1 || quantity > s.maxQty {
		return "", decimal.Zero, domain.ErrInvalidQuantity
	}

	pp, err := s.prices.GetPrice(ctx, t)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", decimal.Zero, domain.ErrPriceUnavailable
		}
		return "", decimal.Zero, fmt.Errorf("trade_service: resolve price for %s: %w", t, err)
	}
	if pp.Price.LessThanOrEqual(decimal.Zero) {
		return "", decimal.Zero, domain.ErrPriceUnavailable
	}
	return t, pp.Price, nil
}

// Buy executes a buy order: quantity*price is deducted from the balance, the
// position is created or its average cost recomputed as the quantity-weighted
// mean, and the transaction is appended. All three commit atomically.
func (s *TradeService) Buy(ctx context.Context, accountID, ticker string, quantity int64) (domain.Transaction, error) {
	ticker, price, err := s.resolve(ctx, ticker, quantity)
	if err != nil {
		return domain.Transaction{}, err
	}

	txn, err := s.ledger.ExecuteOrder(ctx, accountID, func(at domain.AccountTx) (domain.OrderMutation, error) {
		acct := at.Account()

		qty := decimal.NewFromInt(quantity)
		cost := price.Mul(qty)
		if cost.GreaterThan(acct.Balance) {
			return domain.OrderMutation{}, domain.ErrInsufficientBalance
		}

		pos, err := at.Position(ctx, ticker)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			pos = domain.Position{
				AccountID: accountID,
				Ticker:    ticker,
				Quantity:  quantity,
				AvgCost:   price,
			}
		case err != nil:
			return domain.OrderMutation{}, err
		default:
			oldQty := decimal.NewFromInt(pos.Quantity)
			newQty := pos.Quantity + quantity
			pos.AvgCost = pos.AvgCost.Mul(oldQty).Add(price.Mul(qty)).Div(decimal.NewFromInt(newQty))
			pos.Quantity = newQty
		}

		return domain.OrderMutation{
			NewBalance:  acct.Balance.Sub(cost),
			Position:    pos,
			Transaction: s.newTransaction(accountID, ticker, quantity, price, domain.SideBuy),
		}, nil
	})
	if err != nil {
		return domain.Transaction{}, s.mapLedgerErr(ctx, "buy", err)
	}

	s.logger.InfoContext(ctx, "order executed",
		slog.String("side", "buy"),
		slog.String("account", accountID),
		slog.String("ticker", ticker),
		slog.Int64("quantity", quantity),
		slog.String("price", price.String()),
	)
	return txn, nil
}

// Sell executes a sell order: the position quantity is reduced, the proceeds
// credited to the balance, and the transaction appended. Average cost basis
// is left unchanged; realized gain/loss is not tracked here.
func (s *TradeService) Sell(ctx context.Context, accountID, ticker string, quantity int64) (domain.Transaction, error) {
	ticker, price, err := s.resolve(ctx, ticker, quantity)
	if err != nil {
		return domain.Transaction{}, err
	}

	txn, err := s.ledger.ExecuteOrder(ctx, accountID, func(at domain.AccountTx) (domain.OrderMutation, error) {
		acct := at.Account()

		pos, err := at.Position(ctx, ticker)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OrderMutation{}, domain.ErrInsufficientHoldings
		}
		if err != nil {
			return domain.OrderMutation{}, err
		}
		if pos.Quantity < quantity {
			return domain.OrderMutation{}, domain.ErrInsufficientHoldings
		}

		proceeds := price.Mul(decimal.NewFromInt(quantity))
		pos.Quantity -= quantity

		return domain.OrderMutation{
			NewBalance:  acct.Balance.Add(proceeds),
			Position:    pos,
			Transaction: s.newTransaction(accountID, ticker, quantity, price, domain.SideSell),
		}, nil
	})
	if err != nil {
		return domain.Transaction{}, s.mapLedgerErr(ctx, "sell", err)
	}

	s.logger.InfoContext(ctx, "order executed",
		slog.String("side", "sell"),
		slog.String("account", accountID),
		slog.String("ticker", ticker),
		slog.Int64("quantity", quantity),
		slog.String("price", price.String()),
	)
	return txn, nil
}

// Transactions returns the account's transaction log, newest first.
func (s *TradeService) Transactions(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	if _, err := s.ledger.GetAccount(ctx, accountID); err != nil {
		return nil, s.mapLedgerErr(ctx, "transactions", err)
	}

	txns, err := s.ledger.ListTransactions(ctx, accountID, opts)
	if err != nil {
		return nil, s.mapLedgerErr(ctx, "transactions", err)
	}
	return txns, nil
}

func (s *TradeService) newTransaction(accountID, ticker string, quantity int64, price decimal.Decimal, side domain.Side) domain.Transaction {
	return domain.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Ticker:    ticker,
		Quantity:  quantity,
		Price:     price,
		Side:      side,
		CreatedAt: time.Now().UTC(),
	}
}

// mapLedgerErr translates ledger failures into the engine's error taxonomy.
// Domain rejections pass through untouched; infrastructure failures are
// logged with their internal detail and surfaced as ErrStoreUnavailable.
func (s *TradeService) mapLedgerErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrAccountNotFound
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientHoldings):
		return err
	default:
		s.logger.ErrorContext(ctx, "ledger operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return domain.ErrStoreUnavailable
	}
}
