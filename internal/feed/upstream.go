// Package feed ingests the upstream streaming price source and keeps the
// price cache and signal bus current.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second
)

// subscribeCmd is sent once after connect to select the ticker universe.
// An empty ticker list requests all tickers.
type subscribeCmd struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers,omitempty"`
}

// UpstreamClient is a websocket client for the upstream price feed. It owns
// one connection; reconnection policy lives in the Ingestor.
type UpstreamClient struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewUpstreamClient creates a client for the given feed endpoint.
func NewUpstreamClient(url string) *UpstreamClient {
	return &UpstreamClient{url: url}
}

// Connect establishes the websocket connection and installs keep-alive
// deadlines.
func (c *UpstreamClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("feed: connect: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", c.url, err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.conn = conn
	return nil
}

// Subscribe requests updates for the given tickers; an empty slice requests
// the full universe.
func (c *UpstreamClient) Subscribe(tickers []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("feed: subscribe: not connected")
	}

	cmd := subscribeCmd{Type: "subscribe", Tickers: tickers}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

// ReadMessage blocks until the next data frame arrives and returns its
// payload. Incoming frames refresh the read deadline.
func (c *UpstreamClient) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("feed: read: not connected")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("feed: read: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

// Ping sends a ping control frame.
func (c *UpstreamClient) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("feed: ping: not connected")
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close tears the connection down. Further use returns ErrWSDisconnect.
func (c *UpstreamClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
