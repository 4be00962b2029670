package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/market_hours"
)

type fixedSource struct {
	status *domain.MarketStatus
	err    error
}

func (f fixedSource) MarketStatus(context.Context) (*domain.MarketStatus, error) {
	return f.status, f.err
}

func newRouter(t *testing.T, src StatusSource) http.Handler {
	t.Helper()
	cal, err := market_hours.NewMarketHoursService()
	require.NoError(t, err)
	r := chi.NewRouter()
	NewHandler(src, cal, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestHandleGetStatus(t *testing.T) {
	closes := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	router := newRouter(t, fixedSource{status: &domain.MarketStatus{IsOpen: true, NextClose: closes}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/market/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["is_open"])
	assert.Equal(t, closes.Format(time.RFC3339), data["closes_at"])
	assert.Equal(t, "America/New_York", data["timezone"])
}

func TestHandleGetStatus_SourceError(t *testing.T) {
	router := newRouter(t, fixedSource{err: errors.New("clock unavailable")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/market/status", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleGetHolidays(t *testing.T) {
	router := newRouter(t, fixedSource{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/market/holidays?year=2026", nil))
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	holidays := data["holidays"].([]interface{})
	assert.Len(t, holidays, 10)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/market/holidays?year=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
