package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/tradingdesk/internal/events"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

func newActivityManager(t *testing.T) *events.Manager {
	t.Helper()
	db := testutil.NewTestDB(t, "desk")
	repo := events.NewActivityRepository(db.Conn(), zerolog.Nop())
	return events.NewManager(events.NewBus(), repo, zerolog.Nop())
}

func TestActivityList(t *testing.T) {
	manager := newActivityManager(t)
	ctx := context.Background()
	manager.Record(ctx, events.BotStarted, "", "", "Trading bot started")
	manager.Record(ctx, events.AutoTrade, "openai", "AAPL", "BUY 2 AAPL @ $150.00")

	r := chi.NewRouter()
	NewActivityHandler(manager, zerolog.Nop()).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?provider=OPENAI", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var activities []events.Activity
	decodeData(t, rec, &activities)
	require.Len(t, activities, 1)
	assert.Equal(t, events.AutoTrade, activities[0].Action)
	assert.Equal(t, "AAPL", activities[0].Symbol)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?action=portfolio_reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func readStreamMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) streamMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func dialStream(t *testing.T, manager *events.Manager, query string) (*websocket.Conn, context.Context) {
	t.Helper()
	r := chi.NewRouter()
	NewActivityHandler(manager, zerolog.Nop()).RegisterStreamRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/activity/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func TestActivityStream_BacklogThenLive(t *testing.T) {
	manager := newActivityManager(t)
	manager.Record(context.Background(), events.BotStarted, "", "", "Trading bot started")
	manager.Record(context.Background(), events.AutoTrade, "gemini", "MSFT", "BUY 1 MSFT")

	conn, ctx := dialStream(t, manager, "")

	first := readStreamMessage(t, ctx, conn)
	assert.Equal(t, string(events.BotStarted), first.Type)
	second := readStreamMessage(t, ctx, conn)
	assert.Equal(t, string(events.AutoTrade), second.Type)
	assert.Equal(t, "MSFT", second.Symbol)

	manager.Emit(events.CycleCompleted, "bot", map[string]interface{}{"trades": 1})
	live := readStreamMessage(t, ctx, conn)
	assert.Equal(t, string(events.CycleCompleted), live.Type)
	assert.Equal(t, "bot", live.Module)
}

func TestActivityStream_TypeFilter(t *testing.T) {
	manager := newActivityManager(t)
	manager.Record(context.Background(), events.BotStarted, "", "", "Trading bot started")

	conn, ctx := dialStream(t, manager, "?types=auto_trade")

	backlog := readStreamMessage(t, ctx, conn)
	assert.Equal(t, string(events.BotStarted), backlog.Type)

	manager.Emit(events.CycleCompleted, "bot", nil)
	manager.Record(context.Background(), events.AutoTrade, "openai", "NVDA", "SELL 1 NVDA")

	msg := readStreamMessage(t, ctx, conn)
	assert.Equal(t, string(events.AutoTrade), msg.Type)
	assert.Equal(t, "openai", msg.Provider)
}
