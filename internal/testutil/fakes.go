// Package testutil provides in-memory implementations of the domain
// contracts for tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// FakePriceCache implements domain.PriceCache in memory.
type FakePriceCache struct {
	mu     sync.Mutex
	prices map[string]domain.PricePoint
}

func NewFakePriceCache() *FakePriceCache {
	return &FakePriceCache{prices: make(map[string]domain.PricePoint)}
}

// Seed stores a price parsed from its decimal string form.
func (f *FakePriceCache) Seed(ticker, price string) {
	_ = f.SetPrice(context.Background(), ticker, decimal.RequireFromString(price), time.Now().UTC())
}

func (f *FakePriceCache) SetPrice(_ context.Context, ticker string, price decimal.Decimal, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[ticker] = domain.PricePoint{Ticker: ticker, Price: price, UpdatedAt: ts}
	return nil
}

func (f *FakePriceCache) GetPrice(_ context.Context, ticker string) (domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pp, ok := f.prices[ticker]
	if !ok {
		return domain.PricePoint{}, domain.ErrNotFound
	}
	return pp, nil
}

func (f *FakePriceCache) Exists(_ context.Context, ticker string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.prices[ticker]
	return ok, nil
}

// BusMessage is one recorded publish.
type BusMessage struct {
	Channel string
	Payload string
}

// FakeBus implements domain.SignalBus in memory, recording publishes and
// fanning them out to in-process subscribers.
type FakeBus struct {
	mu   sync.Mutex
	msgs []BusMessage
	subs map[string][]chan []byte
}

func NewFakeBus() *FakeBus {
	return &FakeBus{subs: make(map[string][]chan []byte)}
}

func (f *FakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, BusMessage{Channel: channel, Payload: string(payload)})
	for _, ch := range f.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (f *FakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	f.mu.Lock()
	f.subs[channel] = append(f.subs[channel], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Published returns a copy of all recorded publishes.
func (f *FakeBus) Published() []BusMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BusMessage(nil), f.msgs...)
}

// fakeAccount is one account's state plus its serialization lock.
type fakeAccount struct {
	mu        sync.Mutex
	acct      domain.Account
	positions map[string]domain.Position
	txns      []domain.Transaction
}

// FakeLedger implements domain.Ledger in memory. Mutations on one account are
// serialized by a per-account mutex, mirroring the row lock the PostgreSQL
// implementation takes.
type FakeLedger struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{accounts: make(map[string]*fakeAccount)}
}

// SeedAccount creates an account with the given decimal balance.
func (f *FakeLedger) SeedAccount(id, balance string) {
	_ = f.CreateAccount(context.Background(), domain.Account{
		ID:        id,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
	})
}

func (f *FakeLedger) get(id string) (*fakeAccount, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	return a, ok
}

func (f *FakeLedger) CreateAccount(_ context.Context, acct domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[acct.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.accounts[acct.ID] = &fakeAccount{
		acct:      acct,
		positions: make(map[string]domain.Position),
	}
	return nil
}

func (f *FakeLedger) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := f.get(id)
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acct, nil
}

func (f *FakeLedger) ListPositions(_ context.Context, accountID string) ([]domain.Position, error) {
	a, ok := f.get(accountID)
	if !ok {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make([]domain.Position, 0, len(a.positions))
	for _, p := range a.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })
	return positions, nil
}

func (f *FakeLedger) ListTransactions(_ context.Context, accountID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	a, ok := f.get(accountID)
	if !ok {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	// Newest first, like the SQL implementation.
	txns := make([]domain.Transaction, 0, len(a.txns))
	for i := len(a.txns) - 1; i >= 0; i-- {
		txns = append(txns, a.txns[i])
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(txns) {
			return nil, nil
		}
		txns = txns[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(txns) {
		txns = txns[:opts.Limit]
	}
	return txns, nil
}

type fakeAccountTx struct {
	a *fakeAccount
}

func (t *fakeAccountTx) Account() domain.Account {
	return t.a.acct
}

func (t *fakeAccountTx) Position(_ context.Context, ticker string) (domain.Position, error) {
	p, ok := t.a.positions[ticker]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *FakeLedger) ExecuteOrder(_ context.Context, accountID string, fn func(tx domain.AccountTx) (domain.OrderMutation, error)) (domain.Transaction, error) {
	a, ok := f.get(accountID)
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	mut, err := fn(&fakeAccountTx{a: a})
	if err != nil {
		return domain.Transaction{}, err
	}

	a.acct.Balance = mut.NewBalance
	a.positions[mut.Position.Ticker] = mut.Position
	a.txns = append(a.txns, mut.Transaction)
	return mut.Transaction, nil
}

func (f *FakeLedger) AdjustBalance(_ context.Context, accountID string, fn func(balance decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	a, ok := f.get(accountID)
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	newBalance, err := fn(a.acct.Balance)
	if err != nil {
		return decimal.Zero, err
	}
	a.acct.Balance = newBalance
	return newBalance, nil
}

// Snapshot returns a deep copy of the account's state for
// before/after-rejection comparisons.
func (f *FakeLedger) Snapshot(accountID string) (domain.Account, map[string]domain.Position, []domain.Transaction) {
	a, ok := f.get(accountID)
	if !ok {
		return domain.Account{}, nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]domain.Position, len(a.positions))
	for k, v := range a.positions {
		positions[k] = v
	}
	return a.acct, positions, append([]domain.Transaction(nil), a.txns...)
}

// Compile-time interface checks.
var (
	_ domain.Ledger     = (*FakeLedger)(nil)
	_ domain.PriceCache = (*FakePriceCache)(nil)
	_ domain.SignalBus  = (*FakeBus)(nil)
)

// FakeBlobWriter implements domain.BlobWriter in memory.
type FakeBlobWriter struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewFakeBlobWriter() *FakeBlobWriter {
	return &FakeBlobWriter{
		Objects: make(map[string][]byte),
		Types:   make(map[string]string),
	}
}

func (f *FakeBlobWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[path] = buf.Bytes()
	f.Types[path] = contentType
	return nil
}

var _ domain.BlobWriter = (*FakeBlobWriter)(nil)
