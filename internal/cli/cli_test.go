package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeDesk struct {
	mu       sync.Mutex
	requests []recordedRequest
	srv      *httptest.Server
}

func newFakeDesk(t *testing.T) *fakeDesk {
	t.Helper()
	d := &fakeDesk{}
	d.srv = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDesk) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.requests = append(d.requests, recordedRequest{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
	d.mu.Unlock()

	var data interface{}
	switch r.URL.Path {
	case "/api/bot/status", "/api/bot/start", "/api/bot/stop", "/api/bot/interval":
		data = map[string]interface{}{"is_running": r.URL.Path != "/api/bot/stop", "interval_minutes": 10}
	case "/api/market/status":
		data = map[string]interface{}{"is_open": true, "closes_at": "2026-10-16T20:00:00Z"}
	case "/api/bot/run":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]string{"status": "queued"}})
		return
	case "/api/trades":
		data = []map[string]interface{}{{
			"id": "t1", "provider": "openai", "symbol": "AAPL", "action": "BUY",
			"quantity": 2, "price": 150.0, "confidence": 8, "executed_at": time.Now().Format(time.RFC3339),
		}}
	case "/api/providers/bogus":
		http.Error(w, "unknown provider: bogus", http.StatusBadRequest)
		return
	case "/api/providers/openai":
		data = map[string]interface{}{"name": "openai", "active": true, "allocation_ceiling": 500.0, "persona": "MOMENTUM"}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":     data,
		"metadata": map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
	})
}

func (d *fakeDesk) last() recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[len(d.requests)-1]
}

func run(t *testing.T, d *fakeDesk, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", d.srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatus(t *testing.T) {
	d := newFakeDesk(t)
	out, err := run(t, d, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "10 min")
	assert.Contains(t, out, "open")
}

func TestStartStop(t *testing.T) {
	d := newFakeDesk(t)

	out, err := run(t, d, "start")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, d.last().Method)
	assert.Contains(t, out, "running")

	out, err = run(t, d, "stop")
	require.NoError(t, err)
	assert.Equal(t, "/api/bot/stop", d.last().Path)
	assert.Contains(t, out, "stopped")
}

func TestRunQueuesCycle(t *testing.T) {
	d := newFakeDesk(t)
	out, err := run(t, d, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "queued")
}

func TestInterval(t *testing.T) {
	d := newFakeDesk(t)

	_, err := run(t, d, "interval", "10")
	require.NoError(t, err)
	req := d.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.JSONEq(t, `{"minutes":10}`, req.Body)

	_, err = run(t, d, "interval", "90")
	assert.Error(t, err)
}

func TestTrades_QueryAndJSON(t *testing.T) {
	d := newFakeDesk(t)

	out, err := run(t, d, "trades", "--provider", "OpenAI", "--symbol", "aapl", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, d.last().Query, "provider=openai")
	assert.Contains(t, d.last().Query, "symbol=AAPL")
	assert.Contains(t, out, "AAPL")

	out, err = run(t, d, "--json", "trades")
	require.NoError(t, err)
	var trades []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &trades))
	assert.Len(t, trades, 1)
}

func TestProviderSet(t *testing.T) {
	d := newFakeDesk(t)

	_, err := run(t, d, "providers", "set", "openai", "--active", "--ceiling", "500", "--persona", "momentum")
	require.NoError(t, err)
	assert.JSONEq(t, `{"active":true,"allocation_ceiling":500,"persona":"momentum"}`, d.last().Body)

	_, err = run(t, d, "providers", "set", "openai", "--active", "--inactive")
	assert.Error(t, err)
}

func TestAPIErrorSurfaces(t *testing.T) {
	d := newFakeDesk(t)

	_, err := run(t, d, "providers", "set", "bogus", "--inactive")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "unknown provider")
}

func TestPortfolioResetNeedsConfirmation(t *testing.T) {
	d := newFakeDesk(t)
	_, err := run(t, d, "portfolio", "reset")
	assert.Error(t, err)
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.requests)
}
