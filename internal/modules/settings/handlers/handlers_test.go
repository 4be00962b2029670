package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/modules/settings"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	db := testutil.NewTestDB(t, "desk")
	providers := settings.NewProviderRepository(db.Conn(), zerolog.Nop())
	_, err := providers.Seed(context.Background(), testutil.NewProviderFixtures())
	require.NoError(t, err)

	bot := settings.NewBotConfigRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, bot.Ensure(context.Background()))
	svc := settings.NewService(providers, bot, nil, zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListProviders_HidesKeys(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "test-OPENAI")

	data := decode(t, rec)["data"].([]interface{})
	require.Len(t, data, 4)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "OPENAI", first["name"])
	assert.Equal(t, true, first["has_api_key"])
}

func TestUpdateProvider(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/providers/gemini",
		strings.NewReader(`{"allocation_ceiling": 900, "persona": "value"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, 900.0, data["allocation_ceiling"])
	assert.Equal(t, "VALUE", data["persona"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/providers/mistral", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/providers/gemini", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBotConfigRoutes(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/bot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, decode(t, rec)["data"].(map[string]interface{})["max_daily_trades"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/bot", strings.NewReader(`{"interval_minutes": 10}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10.0, decode(t, rec)["data"].(map[string]interface{})["interval_minutes"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/bot", strings.NewReader(`{"risk_tolerance": "yolo"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
