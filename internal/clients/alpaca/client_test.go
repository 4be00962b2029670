package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.AlpacaConfig{
		APIKey:            "key",
		SecretKey:         "secret",
		TradingURL:        srv.URL,
		DataURL:           srv.URL,
		RequestsPerMinute: 6000,
	}, zerolog.Nop())
}

func TestGetAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cash":"1234.50","equity":"2000","buying_power":"2469"}`))
	})

	acct, err := c.GetAccount(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.50, acct.Cash, 1e-9)
	assert.InDelta(t, 2000.0, acct.Equity, 1e-9)
}

func TestGetPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","qty":"3","avg_entry_price":"180.5","current_price":"190","market_value":"570"}]`))
	})

	positions, err := c.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.InDelta(t, 3.0, positions[0].Quantity, 1e-9)
	assert.InDelta(t, 180.5, positions[0].AverageCost, 1e-9)
}

func TestSubmitMarketOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buy", body.Side)
		assert.Equal(t, "2", body.Qty)
		assert.Equal(t, "market", body.Type)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ord-1","symbol":"AAPL","qty":"2","side":"buy","status":"accepted","submitted_at":"2026-03-02T15:00:00Z"}`))
	})

	res, err := c.SubmitMarketOrder(context.Background(), "AAPL", 2, domain.ActionBuy)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, domain.ActionBuy, res.Side)
}

func TestSubmitMarketOrder_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
	})

	_, err := c.SubmitMarketOrder(context.Background(), "AAPL", 2, domain.ActionBuy)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	_, err = c.SubmitMarketOrder(context.Background(), "AAPL", 0, domain.ActionBuy)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestErrorClassification(t *testing.T) {
	status := http.StatusTooManyRequests
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	_, err := c.GetAccount(context.Background())
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	status = http.StatusBadGateway
	_, err = c.GetAccount(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)

	status = http.StatusNotFound
	_, err = c.GetAccount(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestGetClock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"timestamp":"2026-03-02T15:00:00Z","is_open":true,"next_open":"2026-03-03T14:30:00Z","next_close":"2026-03-02T21:00:00Z"}`))
	})

	clock, err := c.GetClock(context.Background())
	require.NoError(t, err)
	assert.True(t, clock.IsOpen)
	assert.Equal(t, time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC), clock.NextClose.UTC())
}

func TestGetSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/AAPL/snapshot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latestTrade":{"p":110,"t":"2026-03-02T15:00:00Z"},"dailyBar":{"c":110,"v":5000},"prevDailyBar":{"c":100}}`))
	})

	q, err := c.GetSnapshot(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 110.0, q.Price, 1e-9)
	assert.InDelta(t, 10.0, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(5000), q.Volume)
}

func TestGetBars_FollowsPagination(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_token") == "" {
			_, _ = w.Write([]byte(`{"bars":[{"t":"2026-03-01T00:00:00Z","c":1}],"next_page_token":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"bars":[{"t":"2026-03-02T00:00:00Z","c":2}],"next_page_token":null}`))
	})

	bars, err := c.GetBars(context.Background(), "AAPL", domain.DefaultBarRange)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 2.0, bars[1].Close, 1e-9)
}

func TestGetNews(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta1/news", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"news":[{"headline":"Apple beats","source":"benzinga","created_at":"2026-03-02T12:00:00Z"}]}`))
	})

	news, err := c.GetNews(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Apple beats", news[0].Headline)
}
