package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

type staticProviders []domain.ProviderConfig

func (p staticProviders) ListProviders(context.Context) ([]domain.ProviderConfig, error) {
	return p, nil
}

type fixture struct {
	router   chi.Router
	holdings *portfolio.HoldingRepository
	activity *events.ActivityRepository
}

func newFixture(t *testing.T, localLedger bool) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, "desk")
	log := zerolog.Nop()
	ctx := context.Background()

	ledger := portfolio.NewPortfolioRepository(db.Conn(), log)
	holdings := portfolio.NewHoldingRepository(db.Conn(), log)
	require.NoError(t, ledger.Ensure(ctx, 1000))

	gw := testutil.NewMockGateway()
	gw.SetPrice("AAPL", 120)
	service := portfolio.NewPortfolioService(db.Conn(), ledger, holdings, portfolio.NewSnapshotRepository(db.Conn(), log),
		staticProviders(testutil.NewProviderFixtures()), gw, localLedger, log)

	activity := events.NewActivityRepository(db.Conn(), log)
	manager := events.NewManager(events.NewBus(), activity, log)

	r := chi.NewRouter()
	NewHandler(service, holdings, nil, manager, log).RegisterRoutes(r)
	return &fixture{router: r, holdings: holdings, activity: activity}
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]interface{}
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestGetSummary(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.holdings.Upsert(context.Background(), domain.Holding{
		Provider: domain.ProviderOpenAI, Symbol: "AAPL", Quantity: 2, AverageCost: 100,
	}))

	rec, body := f.do(t, http.MethodGet, "/portfolio/")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.InDelta(t, 240.0, data["holdings_value"].(float64), 1e-9)
	assert.InDelta(t, 1240.0, data["total_value"].(float64), 1e-9)
	assert.Len(t, data["allocations"].([]interface{}), 4)
	assert.Contains(t, body, "metadata")
}

func TestGetHoldings_FiltersByProvider(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Quantity: 1, AverageCost: 100}))
	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderGemini, Symbol: "MSFT", Quantity: 1, AverageCost: 300}))

	rec, body := f.do(t, http.MethodGet, "/portfolio/holdings?provider=gemini")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "MSFT", data[0].(map[string]interface{})["symbol"])

	rec, _ = f.do(t, http.MethodGet, "/portfolio/holdings?provider=nobody")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHistory_ValidatesDays(t *testing.T) {
	f := newFixture(t, true)

	rec, _ := f.do(t, http.MethodGet, "/portfolio/history?days=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/portfolio/history?days=7")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReset_RecordsActivity(t *testing.T) {
	f := newFixture(t, true)

	rec, _ := f.do(t, http.MethodPost, "/portfolio/reset")
	require.Equal(t, http.StatusOK, rec.Code)

	acts, err := f.activity.Recent(context.Background(), events.ActivityFilter{Action: events.PortfolioReset})
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestReset_RefusedInBrokerMode(t *testing.T) {
	f := newFixture(t, false)

	rec, _ := f.do(t, http.MethodPost, "/portfolio/reset")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReconcile_UnavailableWithoutBroker(t *testing.T) {
	f := newFixture(t, true)

	rec, _ := f.do(t, http.MethodPost, "/portfolio/reconcile")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
