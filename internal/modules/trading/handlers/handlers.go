// Package handlers provides HTTP handlers for trade history and statistics.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/trading"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler handles trade HTTP requests
type Handler struct {
	trades *trading.TradeRepository
	log    zerolog.Logger
}

// NewHandler creates a new trading handler
func NewHandler(trades *trading.TradeRepository, log zerolog.Logger) *Handler {
	return &Handler{
		trades: trades,
		log:    log.With().Str("handler", "trading").Logger(),
	}
}

// RegisterRoutes registers trade routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/trades", func(r chi.Router) {
		r.Get("/", h.HandleListTrades)
		r.Get("/stats", h.HandleGetStats)
		r.Get("/{id}", h.HandleGetTrade)
	})
}

// HandleListTrades handles GET /api/trades?provider=&symbol=&days=&limit=&offset=
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := trading.TradeFilter{Symbol: q.Get("symbol"), Limit: defaultLimit}

	if v := q.Get("provider"); v != "" {
		name, err := domain.ProviderNameFromString(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.Provider = name
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "offset must be non-negative", http.StatusBadRequest)
			return
		}
		f.Offset = n
	}
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "days must be positive", http.StatusBadRequest)
			return
		}
		f.Since = time.Now().AddDate(0, 0, -n)
	}

	trades, err := h.trades.List(r.Context(), f)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list trades")
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []trading.Trade{}
	}
	h.writeJSON(w, http.StatusOK, trades)
}

// HandleGetTrade handles GET /api/trades/{id}
func (h *Handler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trade, err := h.trades.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("trade_id", id).Msg("Failed to get trade")
		http.Error(w, "Failed to get trade", http.StatusInternalServerError)
		return
	}
	if trade == nil {
		http.Error(w, "Trade not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, trade)
}

// HandleGetStats handles GET /api/trades/stats?provider=
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	var provider domain.ProviderName
	if v := r.URL.Query().Get("provider"); v != "" {
		name, err := domain.ProviderNameFromString(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		provider = name
	}

	stats, err := h.trades.Stats(r.Context(), provider)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute trading stats")
		http.Error(w, "Failed to compute trading stats", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// writeJSON writes a JSON response in the data/metadata envelope
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
