package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/utils"
)

const (
	streamBuffer       = 100
	streamBacklog      = 20
	streamPing         = 30 * time.Second
	streamWriteTimeout = 5 * time.Second
)

// ActivityHandler serves the activity log and the live event stream
type ActivityHandler struct {
	manager *events.Manager
	log     zerolog.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(manager *events.Manager, log zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		manager: manager,
		log:     log.With().Str("handler", "activity").Logger(),
	}
}

// RegisterRoutes registers the activity list
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Get("/activity", h.HandleList)
}

// RegisterStreamRoutes registers the websocket stream. Mount it outside the
// request timeout.
func (h *ActivityHandler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/activity/ws", h.HandleStream)
}

// HandleList handles GET /api/activity?action=&provider=&limit=
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := events.ActivityFilter{
		Action:   events.EventType(strings.ToUpper(q.Get("action"))),
		Provider: strings.ToLower(q.Get("provider")),
		Limit:    50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	activities, err := h.manager.Recent(r.Context(), f)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list activity")
		http.Error(w, "Failed to list activity", http.StatusInternalServerError)
		return
	}
	if activities == nil {
		activities = []events.Activity{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": activities,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// streamMessage is one websocket frame
type streamMessage struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Provider  string                 `json:"provider,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// HandleStream handles GET /api/activity/ws.
//
// The stream opens with the most recent activities (oldest first), then
// forwards live events. ?types=AUTO_TRADE,CYCLE_COMPLETED narrows the live
// feed; by default every event is sent. Slow clients lose events rather than
// stalling the bus.
func (h *ActivityHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var allowed map[events.EventType]bool
	if types := utils.ParseCSV(r.URL.Query().Get("types")); types != nil {
		allowed = make(map[events.EventType]bool, len(types))
		for _, t := range types {
			allowed[events.EventType(strings.ToUpper(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Nothing is read from clients; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ch := make(chan *events.Event, streamBuffer)
	unsubscribe := h.manager.Bus().SubscribeAll(func(e *events.Event) {
		if allowed != nil && !allowed[e.Type] {
			return
		}
		select {
		case ch <- e:
		default:
			h.log.Warn().Str("event_type", string(e.Type)).Msg("Stream buffer full, dropping event")
		}
	})
	defer unsubscribe()

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Activity stream client connected")

	if err := h.sendBacklog(ctx, conn); err != nil {
		h.log.Debug().Err(err).Msg("Failed to send activity backlog")
		return
	}

	ping := time.NewTicker(streamPing)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Activity stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-ch:
			if err := h.write(ctx, conn, streamMessage{
				Type:      string(e.Type),
				Module:    e.Module,
				Provider:  e.Provider,
				Symbol:    e.Symbol,
				Message:   e.Message,
				Data:      e.Data,
				Timestamp: e.Timestamp,
			}); err != nil {
				h.logWriteError(err)
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logWriteError(err)
				return
			}
		}
	}
}

func (h *ActivityHandler) sendBacklog(ctx context.Context, conn *websocket.Conn) error {
	recent, err := h.manager.Recent(ctx, events.ActivityFilter{Limit: streamBacklog})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to load activity backlog")
		return nil
	}
	for i := len(recent) - 1; i >= 0; i-- {
		a := recent[i]
		if err := h.write(ctx, conn, streamMessage{
			Type:      string(a.Action),
			Module:    "activity",
			Provider:  a.Provider,
			Symbol:    a.Symbol,
			Message:   a.Details,
			Timestamp: a.CreatedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *ActivityHandler) write(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *ActivityHandler) logWriteError(err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		return
	}
	h.log.Warn().Err(err).Msg("Activity stream write failed")
}
