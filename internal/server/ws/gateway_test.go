package ws_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/server/ws"
	"github.com/alanyoungcy/stocksim/internal/testutil"
)

func dialGateway(t *testing.T, gw *ws.Gateway) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(srv.Close)

	url := strings.Replace(srv.URL, "http://", "ws://", 1)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(message)
}

func TestGateway_StreamsSubscribedTicker(t *testing.T) {
	cache := testutil.NewFakePriceCache()
	cache.Seed("TICK", "50.25")
	gw := ws.NewGateway(cache, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	defer gw.Shutdown()

	conn := dialGateway(t, gw)
	require.Equal(t, "Welcome to Stock-Sim WebSocket!", readText(t, conn))

	// Lower case on the wire, upper-cased by the gateway.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:tick")))
	require.Equal(t, "update:TICK:50.25", readText(t, conn))

	// The loop re-reads the cache, so a new price shows up on a later tick.
	cache.Seed("TICK", "51.75")
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "never observed the new price")
		if readText(t, conn) == "update:TICK:51.75" {
			break
		}
	}
}

func TestGateway_UnknownTickerErrorsAndCloses(t *testing.T) {
	cache := testutil.NewFakePriceCache()
	gw := ws.NewGateway(cache, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	defer gw.Shutdown()

	conn := dialGateway(t, gw)
	readText(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:NOPE")))
	require.Equal(t, "error:unknown ticker NOPE", readText(t, conn))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestGateway_IgnoresFramesBeforeAndAfterSubscribe(t *testing.T) {
	cache := testutil.NewFakePriceCache()
	cache.Seed("TICK", "10.55")
	cache.Seed("OTHER", "99.99")
	gw := ws.NewGateway(cache, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	defer gw.Shutdown()

	conn := dialGateway(t, gw)
	readText(t, conn) // welcome

	// Chatter before the subscribe command is ignored.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello there")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:TICK")))
	require.Equal(t, "update:TICK:10.55", readText(t, conn))

	// One subscription per connection. A second subscribe does not retarget
	// the stream.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:OTHER")))
	for i := 0; i < 3; i++ {
		require.Equal(t, "update:TICK:10.55", readText(t, conn))
	}
}

func TestGateway_EmptyTickerRejected(t *testing.T) {
	cache := testutil.NewFakePriceCache()
	gw := ws.NewGateway(cache, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	defer gw.Shutdown()

	conn := dialGateway(t, gw)
	readText(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe: ")))
	require.Equal(t, "error:empty ticker", readText(t, conn))
}
