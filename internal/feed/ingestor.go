package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

const (
	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// healthySession resets the backoff once a connection has lived this long.
	healthySession = time.Minute
)

// upstreamMsg is the JSON wire shape of one inbound feed event.
type upstreamMsg struct {
	Ticker string      `json:"ticker"`
	Price  json.Number `json:"price"`
}

// Ingestor maintains one long-lived subscription to the upstream price feed
// and keeps the price cache current. Each good tick writes the PricePoint and
// then publishes "TICKER:PRICE" on the ticker's broadcast channel; a
// malformed update is logged and skipped. The ingestor never deletes a cached
// price: stale-but-present beats absent, since absence means "invalid ticker"
// elsewhere.
type Ingestor struct {
	url     string
	tickers []string
	cache   domain.PriceCache
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewIngestor creates an Ingestor. An empty ticker list subscribes to the
// full upstream universe.
func NewIngestor(url string, tickers []string, cache domain.PriceCache, bus domain.SignalBus, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		url:     url,
		tickers: tickers,
		cache:   cache,
		bus:     bus,
		logger:  logger.With(slog.String("component", "feed_ingestor")),
	}
}

// Run connects, subscribes, and consumes updates until ctx is cancelled.
// Disconnects trigger a reconnect with capped exponential backoff rather
// than terminating the process.
func (in *Ingestor) Run(ctx context.Context) error {
	delay := reconnectDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := time.Now()
		err := in.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) >= healthySession {
			delay = reconnectDelay
		}

		in.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection drives a single connection until it fails or ctx is
// cancelled.
func (in *Ingestor) runConnection(ctx context.Context) error {
	client := NewUpstreamClient(in.url)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(in.tickers); err != nil {
		return err
	}

	in.logger.Info("feed connected",
		slog.String("url", in.url),
		slog.Int("tickers", len(in.tickers)),
	)

	// Close the connection when ctx ends so the blocking read unblocks, and
	// keep the connection alive with periodic pings.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				client.Close()
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		data, err := client.ReadMessage()
		if err != nil {
			return err
		}
		if err := in.handleMessage(ctx, data); err != nil {
			in.logger.Warn("skipping malformed feed update",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(data)),
			)
		}
	}
}

// handleMessage validates one inbound update, writes it to the price cache,
// and publishes it on the bus. The cache write happens before the publish so
// a subscriber reacting to the broadcast always observes the new price.
func (in *Ingestor) handleMessage(ctx context.Context, data []byte) error {
	var msg upstreamMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("feed: decode update: %w", err)
	}

	ticker := strings.ToUpper(strings.TrimSpace(msg.Ticker))
	if ticker == "" {
		return fmt.Errorf("feed: update without ticker")
	}

	price, err := decimal.NewFromString(msg.Price.String())
	if err != nil {
		return fmt.Errorf("feed: parse price for %s: %w", ticker, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("feed: non-positive price %s for %s", price, ticker)
	}

	if err := in.cache.SetPrice(ctx, ticker, price, time.Now().UTC()); err != nil {
		return err
	}

	payload := []byte(ticker + ":" + price.String())
	if err := in.bus.Publish(ctx, domain.PriceChannel(ticker), payload); err != nil {
		// The cache is already current; a missed broadcast only delays
		// subscribers by one poll interval.
		in.logger.Warn("publish price update failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
