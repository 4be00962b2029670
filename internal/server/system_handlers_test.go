package server

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

	"github.com/aristath/tradingdesk/internal/database"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/bot"
	"github.com/aristath/tradingdesk/internal/scheduler"
	testutil "github.com/aristath/tradingdesk/internal/testing"
	"github.com/aristath/tradingdesk/internal/work"
)

type fakeMarket struct {
	open bool
	err  error
}

func (f *fakeMarket) MarketStatus(context.Context) (*domain.MarketStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.MarketStatus{IsOpen: f.open, Timestamp: time.Now()}, nil
}

type fakeBot struct{ status bot.Status }

func (f fakeBot) Status() bot.Status { return f.status }

type fakeJob struct{ name string }

func (j fakeJob) Run() error   { return nil }
func (j fakeJob) Name() string { return j.name }

type fakeRunner struct {
	ran []string
	err error
}

func (r *fakeRunner) Status() []scheduler.JobStatus {
	return []scheduler.JobStatus{{Name: "wal_checkpoint"}, {Name: "activity_retention"}}
}

func (r *fakeRunner) RunNow(job scheduler.Job) error {
	r.ran = append(r.ran, job.Name())
	return r.err
}

type fakeQueue struct{}

func (fakeQueue) Busy() bool       { return true }
func (fakeQueue) QueueLength() int { return 2 }

func newSystemRouter(t *testing.T, market *fakeMarket, runner *fakeRunner) http.Handler {
	t.Helper()
	db := testutil.NewTestDB(t, "desk")
	registry := work.NewRegistry()
	registry.Register(&work.WorkType{
		ID:       "trading:cycle",
		Priority: work.PriorityCritical,
		Execute:  func(context.Context, string) error { return nil },
	})
	h := NewSystemHandlers(SystemDeps{
		DataDir:       t.TempDir(),
		ExecutionMode: "local",
		Databases:     map[string]*database.DB{"desk": db},
		Jobs:          map[string]scheduler.Job{"wal_checkpoint": fakeJob{name: "wal_checkpoint"}},
		Runner:        runner,
		Work:          fakeQueue{},
		WorkTypes:     registry,
		Market:        market,
		Bot:           fakeBot{status: bot.Status{IsRunning: true, IntervalMinutes: 5}},
	}, zerolog.Nop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestSystemStatus(t *testing.T) {
	router := newSystemRouter(t, &fakeMarket{open: true}, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "local", resp.ExecutionMode)
	require.NotNil(t, resp.Market)
	assert.True(t, resp.Market.IsOpen)
	require.NotNil(t, resp.Bot)
	assert.True(t, resp.Bot.IsRunning)
	assert.True(t, resp.WorkBusy)
	assert.Equal(t, 2, resp.WorkQueued)
}

func TestSystemStatus_MarketErrorDegrades(t *testing.T) {
	router := newSystemRouter(t, &fakeMarket{err: errors.New("calendar unavailable")}, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Nil(t, resp.Market)
}

func TestDatabaseStats(t *testing.T) {
	router := newSystemRouter(t, &fakeMarket{}, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/database/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DatabaseStatsResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Databases, 1)
	assert.Equal(t, "desk", resp.Databases[0].Name)
	assert.True(t, resp.Databases[0].Healthy)
	require.NotNil(t, resp.Databases[0].Stats)
	assert.Positive(t, resp.Databases[0].Stats.PageCount)
}

func TestJobsStatus_Sorted(t *testing.T) {
	router := newSystemRouter(t, &fakeMarket{}, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobsStatusResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "activity_retention", resp.Jobs[0].Name)
	assert.Equal(t, "wal_checkpoint", resp.Jobs[1].Name)
	require.Len(t, resp.WorkTypes, 1)
	assert.Equal(t, "trading:cycle", resp.WorkTypes[0].ID)
}

func TestTriggerJob(t *testing.T) {
	runner := &fakeRunner{}
	router := newSystemRouter(t, &fakeMarket{}, runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/system/jobs/wal_checkpoint/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"wal_checkpoint"}, runner.ran)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/system/jobs/nope/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	runner.err = errors.New("checkpoint failed")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/system/jobs/wal_checkpoint/run", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
