package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// Ledger implements domain.Ledger using PostgreSQL. Per-account mutual
// exclusion comes from a SELECT ... FOR UPDATE on the account row inside one
// transaction: two orders for the same account queue on the row lock, while
// orders for different accounts proceed in parallel.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const accountSelectCols = `id, balance::text, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountRow(row rowScanner) (domain.Account, error) {
	var a domain.Account
	var balance string

	if err := row.Scan(&a.ID, &balance, &a.CreatedAt); err != nil {
		return domain.Account{}, err
	}

	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("parse balance: %w", err)
	}
	a.Balance = bal
	return a, nil
}

// CreateAccount inserts a new account row.
func (l *Ledger) CreateAccount(ctx context.Context, acct domain.Account) error {
	const query = `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO NOTHING`

	tag, err := l.pool.Exec(ctx, query, acct.ID, acct.Balance.String(), acct.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", acct.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// GetAccount retrieves a single account by ID.
func (l *Ledger) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE id = $1`, id)

	a, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, err)
	}
	return a, nil
}

// ListPositions returns every position row for the account, including rows
// sold down to quantity 0.
func (l *Ledger) ListPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT account_id, ticker, quantity, avg_cost::text, updated_at
		 FROM positions
		 WHERE account_id = $1
		 ORDER BY ticker`, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var avgCost string

		if err := rows.Scan(&p.AccountID, &p.Ticker, &p.Quantity, &avgCost, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.AvgCost, err = decimal.NewFromString(avgCost)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse avg cost: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	return positions, nil
}

// ListTransactions returns the account's transaction log, newest first, with
// pagination and optional time filtering.
func (l *Ledger) ListTransactions(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT id, account_id, ticker, quantity, price::text, side, created_at
		FROM transactions WHERE account_id = $1`
	args := []any{accountID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var price, side string

		if err := rows.Scan(&t.ID, &t.AccountID, &t.Ticker, &t.Quantity, &price, &side, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		t.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse price: %w", err)
		}
		t.Side = domain.Side(side)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	return txns, nil
}

// accountTx provides locked reads for ExecuteOrder closures.
type accountTx struct {
	tx   pgx.Tx
	acct domain.Account
}

func (a *accountTx) Account() domain.Account {
	return a.acct
}

func (a *accountTx) Position(ctx context.Context, ticker string) (domain.Position, error) {
	row := a.tx.QueryRow(ctx,
		`SELECT account_id, ticker, quantity, avg_cost::text, updated_at
		 FROM positions
		 WHERE account_id = $1 AND ticker = $2
		 FOR UPDATE`, a.acct.ID, ticker)

	var p domain.Position
	var avgCost string

	if err := row.Scan(&p.AccountID, &p.Ticker, &p.Quantity, &avgCost, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", ticker, err)
	}

	avg, err := decimal.NewFromString(avgCost)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: parse avg cost: %w", err)
	}
	p.AvgCost = avg
	return p, nil
}

// ExecuteOrder locks the account row, runs fn, and commits the returned
// mutation (balance update, position upsert, transaction append) as one unit.
// Errors from fn roll the transaction back and are returned unwrapped so
// domain rejections survive errors.Is at the caller.
func (l *Ledger) ExecuteOrder(ctx context.Context, accountID string, fn func(tx domain.AccountTx) (domain.OrderMutation, error)) (domain.Transaction, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	acct, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: lock account %s: %w", accountID, err)
	}

	mut, err := fn(&accountTx{tx: tx, acct: acct})
	if err != nil {
		return domain.Transaction{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`,
		accountID, mut.NewBalance.String(),
	); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: update balance %s: %w", accountID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO positions (account_id, ticker, quantity, avg_cost, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (account_id, ticker) DO UPDATE SET
			quantity   = EXCLUDED.quantity,
			avg_cost   = EXCLUDED.avg_cost,
			updated_at = NOW()`,
		mut.Position.AccountID, mut.Position.Ticker, mut.Position.Quantity, mut.Position.AvgCost.String(),
	); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: upsert position %s: %w", mut.Position.Ticker, err)
	}

	t := mut.Transaction
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, account_id, ticker, quantity, price, side, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.AccountID, t.Ticker, t.Quantity, t.Price.String(), string(t.Side), t.CreatedAt,
	); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: append transaction %s: %w", t.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: commit order: %w", err)
	}
	return t, nil
}

// AdjustBalance atomically replaces the account balance with the value
// returned by fn, under the same row lock as ExecuteOrder.
func (l *Ledger) AdjustBalance(ctx context.Context, accountID string, fn func(balance decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: begin balance tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	acct, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("postgres: lock account %s: %w", accountID, err)
	}

	newBalance, err := fn(acct.Balance)
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`,
		accountID, newBalance.String(),
	); err != nil {
		return decimal.Zero, fmt.Errorf("postgres: update balance %s: %w", accountID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("postgres: commit balance: %w", err)
	}
	return newBalance, nil
}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)
