// Package app provides the top-level application lifecycle: it wires the
// ledger, cache, bus, and blob storage, starts the feed ingestor and the API
// server, and tears everything down on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/stocksim/internal/auth"
	"github.com/alanyoungcy/stocksim/internal/config"
	"github.com/alanyoungcy/stocksim/internal/domain"
	"github.com/alanyoungcy/stocksim/internal/feed"
	"github.com/alanyoungcy/stocksim/internal/server"
	"github.com/alanyoungcy/stocksim/internal/server/handler"
	"github.com/alanyoungcy/stocksim/internal/server/ws"
	"github.com/alanyoungcy/stocksim/internal/service"
)

// shutdownTimeout bounds the graceful drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the feed
// ingestor and the API server, and blocks until the context is cancelled or
// a task fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Services.
	trades := service.NewTradeService(deps.Ledger, deps.PriceCache, a.cfg.Trade.MaxQuantity, a.logger)
	accounts := service.NewAccountService(deps.Ledger, a.logger)
	prices := service.NewPriceService(deps.PriceCache, a.logger)

	var exports handler.ExportService = exportDisabled{}
	if deps.BlobWriter != nil {
		exports = service.NewExportService(deps.Ledger, deps.BlobWriter, a.logger)
	}

	// Feed ingestor.
	ingestor := feed.NewIngestor(a.cfg.Feed.URL, a.cfg.Feed.Tickers, deps.PriceCache, deps.SignalBus, a.logger)

	// HTTP + WebSocket server.
	gateway := ws.NewGateway(deps.PriceCache, a.cfg.Gateway.UpdateInterval.Duration, a.logger)
	authn := auth.NewStaticAuthenticator(a.cfg.Auth.Tokens)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(deps.Pingers, a.logger),
			Trades:   handler.NewTradeHandler(trades, exports, a.logger),
			Accounts: handler.NewAccountHandler(accounts, a.logger),
			Prices:   handler.NewPriceHandler(prices, a.logger),
		},
		gateway,
		authn,
		deps.RateLimiter,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ingestor.Run(gctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// exportDisabled serves the export endpoint when no object storage is
// configured.
type exportDisabled struct{}

func (exportDisabled) ExportTransactions(context.Context, string) (string, error) {
	return "", fmt.Errorf("statement export is not configured: %w", domain.ErrStoreUnavailable)
}
