package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/di"
	"github.com/aristath/tradingdesk/internal/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DataDir:        t.TempDir(),
		Port:           8001,
		ExecutionMode:  config.ExecutionLocal,
		InitialBalance: 20,
		AI: config.AIConfig{
			Keys:              map[domain.ProviderName]string{domain.ProviderOpenAI: "sk-test"},
			MaxRetries:        1,
			RequestsPerMinute: 60,
		},
	}
	container, jobs, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	return New(Config{
		Log:       zerolog.Nop(),
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		Port:      cfg.Port,
		DevMode:   true,
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "tradingdesk", body["service"])
	assert.Equal(t, "local", body["execution_mode"])
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Trading Desk")
}

func TestRoutesMounted(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/providers",
		"/api/settings/bot",
		"/api/portfolio",
		"/api/portfolio/holdings",
		"/api/trades",
		"/api/bot/status",
		"/api/activity",
		"/api/system/jobs",
		"/api/market/holidays",
	} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestBotStatus_StoppedAfterWire(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bot/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			IsRunning       bool `json:"is_running"`
			IntervalMinutes int  `json:"interval_minutes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.IsRunning)
	assert.Equal(t, 5, envelope.Data.IntervalMinutes)
}
