// Package ws implements the streaming price gateway. Each connection runs a
// small text protocol: the gateway greets the client, waits for a single
// subscribe command, then pushes the latest cached price on a fixed tick
// until the client goes away.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client. It
	// also bounds how long a fresh connection may idle before subscribing.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 512

	// defaultUpdateInterval drives the price push tick when the gateway is
	// constructed without one.
	defaultUpdateInterval = 3 * time.Second
)

const (
	welcomeMessage  = "Welcome to Stock-Sim WebSocket!"
	subscribePrefix = "subscribe:"
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Gateway upgrades HTTP requests to WebSocket sessions and streams price
// updates out of the last-price cache. A connection carries at most one
// subscription; subscribe frames received while streaming are ignored.
type Gateway struct {
	cache    domain.PriceCache
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewGateway creates a Gateway pushing updates every interval.
func NewGateway(cache domain.PriceCache, interval time.Duration, logger *slog.Logger) *Gateway {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	return &Gateway{
		cache:    cache,
		interval: interval,
		logger:   logger.With(slog.String("component", "ws_gateway")),
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and runs the
// session until the client disconnects.
// GET /ws
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	g.register(conn)
	go g.serve(conn)
}

// Shutdown closes every open session. Streaming loops observe the closed
// connections and exit on their next read or write.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for conn := range g.conns {
		conn.Close()
		delete(g.conns, conn)
	}
}

func (g *Gateway) register(conn *websocket.Conn) {
	g.mu.Lock()
	g.conns[conn] = struct{}{}
	total := len(g.conns)
	g.mu.Unlock()
	g.logger.Info("ws: client connected", slog.Int("total_clients", total))
}

func (g *Gateway) unregister(conn *websocket.Conn) {
	g.mu.Lock()
	delete(g.conns, conn)
	total := len(g.conns)
	g.mu.Unlock()
	g.logger.Info("ws: client disconnected", slog.Int("total_clients", total))
}

// serve runs one session: greeting, subscribe handshake, then the streaming
// loop. Everything per-connection dies with the connection.
func (g *Gateway) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		g.unregister(conn)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := g.writeText(conn, welcomeMessage); err != nil {
		return
	}

	ticker, ok := g.awaitSubscribe(conn)
	if !ok {
		return
	}

	exists, err := g.cache.Exists(ctx, ticker)
	if err != nil {
		g.logger.Error("ws: ticker lookup failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		g.closeWithError(conn, "error:price lookup failed")
		return
	}
	if !exists {
		g.closeWithError(conn, "error:unknown ticker "+ticker)
		return
	}

	g.logger.Info("ws: subscription started", slog.String("ticker", ticker))
	g.stream(ctx, conn, ticker)
}

// awaitSubscribe reads frames until the client sends a subscribe command.
// Other text frames are ignored, as are later subscribe frames once this one
// returns.
func (g *Gateway) awaitSubscribe(conn *websocket.Conn) (string, bool) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return "", false
		}
		text := strings.TrimSpace(string(message))
		if !strings.HasPrefix(text, subscribePrefix) {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(text, subscribePrefix)))
		if ticker == "" {
			g.closeWithError(conn, "error:empty ticker")
			return "", false
		}
		return ticker, true
	}
}

// stream pushes `update:<TICKER>:<PRICE>` frames on the gateway's tick. A
// reader goroutine keeps consuming frames so close messages and pongs are
// seen; its exit stops the loop, so no ticker outlives the connection.
func (g *Gateway) stream(ctx context.Context, conn *websocket.Conn, ticker string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates := time.NewTicker(g.interval)
	defer updates.Stop()
	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()

	for {
		select {
		case <-done:
			return

		case <-updates.C:
			pp, err := g.cache.GetPrice(ctx, ticker)
			if err != nil {
				// The feed never deletes prices, so a miss here is a
				// cache outage. Keep the session and retry next tick.
				g.logger.Warn("ws: price read failed",
					slog.String("ticker", ticker),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := g.writeText(conn, "update:"+ticker+":"+pp.Price.String()); err != nil {
				return
			}

		case <-pings.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) writeText(conn *websocket.Conn, text string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// closeWithError sends a final error frame followed by a close frame.
func (g *Gateway) closeWithError(conn *websocket.Conn, text string) {
	g.writeText(conn, text)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
}
