package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/trading"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

func newRouter(t *testing.T) (chi.Router, *trading.TradeRepository) {
	t.Helper()
	db := testutil.NewTestDB(t, "desk")
	repo := trading.NewTradeRepository(db.Conn(), zerolog.Nop())

	r := chi.NewRouter()
	NewHandler(repo, zerolog.Nop()).RegisterRoutes(r)
	return r, repo
}

func seed(t *testing.T, repo *trading.TradeRepository, provider domain.ProviderName, symbol string, action domain.TradeAction, qty int, price float64, at time.Time) *trading.Trade {
	t.Helper()
	tr := &trading.Trade{
		Provider:    provider,
		Symbol:      symbol,
		Action:      action,
		Quantity:    qty,
		Price:       price,
		TotalAmount: float64(qty) * price,
		Confidence:  7,
		ExecutedAt:  at,
	}
	require.NoError(t, repo.Create(context.Background(), tr))
	return tr
}

func get(t *testing.T, r chi.Router, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListTrades_Filters(t *testing.T) {
	r, repo := newRouter(t)
	now := time.Now()
	seed(t, repo, domain.ProviderOpenAI, "AAPL", domain.ActionBuy, 1, 100, now.Add(-2*time.Hour))
	seed(t, repo, domain.ProviderGemini, "MSFT", domain.ActionBuy, 1, 300, now.Add(-time.Hour))
	seed(t, repo, domain.ProviderOpenAI, "AAPL", domain.ActionSell, 1, 120, now.AddDate(0, 0, -10))

	rec, body := get(t, r, "/trades/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].([]interface{}), 3)

	_, body = get(t, r, "/trades/?provider=openai")
	assert.Len(t, body["data"].([]interface{}), 2)

	_, body = get(t, r, "/trades/?days=1")
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "MSFT", data[0].(map[string]interface{})["symbol"])

	_, body = get(t, r, "/trades/?limit=1&offset=1")
	data = body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "AAPL", data[0].(map[string]interface{})["symbol"])
}

func TestListTrades_EmptyIsArray(t *testing.T) {
	r, _ := newRouter(t)
	rec, _ := get(t, r, "/trades/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListTrades_BadParams(t *testing.T) {
	r, _ := newRouter(t)
	for _, path := range []string{"/trades/?limit=0", "/trades/?limit=abc", "/trades/?offset=-1", "/trades/?provider=x", "/trades/?days=0"} {
		rec, _ := get(t, r, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestGetTrade(t *testing.T) {
	r, repo := newRouter(t)
	tr := seed(t, repo, domain.ProviderOpenAI, "AAPL", domain.ActionBuy, 2, 100, time.Now())

	rec, body := get(t, r, "/trades/"+tr.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tr.ID, body["data"].(map[string]interface{})["id"])

	rec, _ = get(t, r, "/trades/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStats(t *testing.T) {
	r, repo := newRouter(t)
	now := time.Now()
	seed(t, repo, domain.ProviderOpenAI, "AAPL", domain.ActionBuy, 1, 100, now.Add(-time.Hour))
	seed(t, repo, domain.ProviderOpenAI, "AAPL", domain.ActionSell, 1, 120, now)

	rec, body := get(t, r, "/trades/stats?provider=openai")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.InDelta(t, 2.0, data["total_trades"].(float64), 1e-9)
	assert.InDelta(t, 20.0, data["total_profit_loss"].(float64), 1e-9)
}
