package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/testutil"
)

func newTestIngestor(url string, cache *testutil.FakePriceCache, bus *testutil.FakeBus) *Ingestor {
	return NewIngestor(url, nil, cache, bus, slog.New(slog.DiscardHandler))
}

func TestHandleMessage_WritesCacheThenPublishes(t *testing.T) {
	cache := testutil.NewFakePriceCache()
	bus := testutil.NewFakeBus()
	in := newTestIngestor("ws://unused", cache, bus)

	err := in.handleMessage(context.Background(), []byte(`{"ticker":"aapl","price":187.42}`))
	require.NoError(t, err)

	pp, err := cache.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, pp.Price.Equal(decimal.RequireFromString("187.42")))

	msgs := bus.Published()
	require.Len(t, msgs, 1)
	require.Equal(t, "price_update:AAPL", msgs[0].Channel)
	require.Equal(t, "AAPL:187.42", msgs[0].Payload)
}

func TestHandleMessage_MalformedUpdateSkipped(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"ticker":`,
		"missing ticker": `{"price":10}`,
		"bad price":      `{"ticker":"AAPL","price":"abc"}`,
		"zero price":     `{"ticker":"AAPL","price":0}`,
		"negative price": `{"ticker":"AAPL","price":-3}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			cache := testutil.NewFakePriceCache()
			bus := testutil.NewFakeBus()
			in := newTestIngestor("ws://unused", cache, bus)

			err := in.handleMessage(context.Background(), []byte(payload))
			require.Error(t, err)
			require.Empty(t, bus.Published())

			ok, err := cache.Exists(context.Background(), "AAPL")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestRunConnection_ConsumesStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Consume the subscribe command before streaming.
		_, _, err = conn.ReadMessage()
		require.NoError(t, err)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ticker":"TICK","price":"50.00"}`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ticker":"TICK","price":"60.00"}`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ticker":"MSFT","price":"431.20"}`)))
	}))
	defer srv.Close()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	cache := testutil.NewFakePriceCache()
	bus := testutil.NewFakeBus()
	in := newTestIngestor(wsURL, cache, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The server closes after writing; the read error ends the run.
	err := in.runConnection(ctx)
	require.Error(t, err)

	pp, err := cache.GetPrice(context.Background(), "TICK")
	require.NoError(t, err)
	require.True(t, pp.Price.Equal(decimal.RequireFromString("60.00")), "last write wins, got %s", pp.Price)

	_, err = cache.GetPrice(context.Background(), "MSFT")
	require.NoError(t, err)

	msgs := bus.Published()
	require.Len(t, msgs, 3, "malformed update must not publish")
}
