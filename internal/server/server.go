// Package server wires the HTTP API: routing, middleware, and the WebSocket
// gateway endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/stocksim/internal/domain"
	"github.com/alanyoungcy/stocksim/internal/server/handler"
	"github.com/alanyoungcy/stocksim/internal/server/middleware"
	"github.com/alanyoungcy/stocksim/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	RateLimit   int           // requests per window per client IP; 0 disables
	RateWindow  time.Duration // sliding window length
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Trades   *handler.TradeHandler
	Accounts *handler.AccountHandler
	Prices   *handler.PriceHandler
}

// Server is the HTTP + WebSocket API server for the exchange simulator.
type Server struct {
	httpServer *http.Server
	gateway    *ws.Gateway
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, rate limiting, auth) and attaches
// the WebSocket gateway. The health check and the gateway are reachable
// without a token; everything else resolves its account through authn.
func NewServer(cfg Config, handlers Handlers, gateway *ws.Gateway,
	authn domain.Authenticator, limiter domain.RateLimiter, logger *slog.Logger) *Server {

	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Order execution and transaction history.
	mux.HandleFunc("POST /api/trade/buy", handlers.Trades.Buy)
	mux.HandleFunc("POST /api/trade/sell", handlers.Trades.Sell)
	mux.HandleFunc("GET /api/transactions", handlers.Trades.ListTransactions)
	mux.HandleFunc("POST /api/transactions/export", handlers.Trades.Export)

	// Balance and holdings.
	mux.HandleFunc("GET /api/balance", handlers.Accounts.GetBalance)
	mux.HandleFunc("POST /api/balance/deposit", handlers.Accounts.Deposit)
	mux.HandleFunc("POST /api/balance/withdraw", handlers.Accounts.Withdraw)
	mux.HandleFunc("GET /api/holdings", handlers.Accounts.ListHoldings)

	// Price lookup.
	mux.HandleFunc("GET /api/price/{ticker}", handlers.Prices.GetPrice)

	// WebSocket price stream.
	mux.HandleFunc("GET /ws", gateway.HandleWS)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(authn, "/api/health", "/ws")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		gateway:    gateway,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline. Open WebSocket sessions are
// closed; http.Server.Shutdown does not cover hijacked connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	s.gateway.Shutdown()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
