// Package handlers provides HTTP handlers for market status operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/market_hours"
)

// StatusSource reports the live market status: the broker clock in broker
// mode, the calendar otherwise.
type StatusSource interface {
	MarketStatus(ctx context.Context) (*domain.MarketStatus, error)
}

// Handler handles market hours HTTP requests
type Handler struct {
	source   StatusSource
	calendar *market_hours.MarketHoursService
	log      zerolog.Logger
}

// NewHandler creates a new market hours handler
func NewHandler(source StatusSource, calendar *market_hours.MarketHoursService, log zerolog.Logger) *Handler {
	return &Handler{
		source:   source,
		calendar: calendar,
		log:      log.With().Str("handler", "market_hours").Logger(),
	}
}

// RegisterRoutes registers all market hours routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Get("/holidays", h.HandleGetHolidays)
	})
}

// HandleGetStatus handles GET /api/market/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.source.MarketStatus(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get market status")
		http.Error(w, "Failed to get market status", http.StatusBadGateway)
		return
	}

	data := map[string]interface{}{
		"is_open":  status.IsOpen,
		"timezone": h.calendar.Location().String(),
	}
	if status.IsOpen {
		data["closes_at"] = status.NextClose.Format(time.RFC3339)
	} else if !status.NextOpen.IsZero() {
		data["opens_at"] = status.NextOpen.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, data)
}

// HandleGetHolidays handles GET /api/market/holidays?year=2026
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().In(h.calendar.Location()).Year()
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil || parsed < 1900 || parsed > 2200 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	holidays := h.calendar.Holidays(year)
	out := make([]map[string]string, 0, len(holidays))
	for _, hol := range holidays {
		out = append(out, map[string]string{
			"date": hol.Date.Format("2006-01-02"),
			"name": hol.Name,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":     year,
		"holidays": out,
	})
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
