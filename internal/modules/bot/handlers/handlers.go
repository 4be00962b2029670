// Package handlers exposes the trading bot's control surface over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/modules/bot"
	"github.com/aristath/tradingdesk/internal/work"
)

// Controller is the scheduler's control surface.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	SetInterval(minutes int) error
	Status() bot.Status
	RunOnce(ctx context.Context) error
}

// Handler handles bot control requests
type Handler struct {
	bot Controller
	log zerolog.Logger
}

// NewHandler creates a new bot handler
func NewHandler(controller Controller, log zerolog.Logger) *Handler {
	return &Handler{
		bot: controller,
		log: log.With().Str("handler", "bot").Logger(),
	}
}

// RegisterRoutes registers bot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bot", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Post("/start", h.HandleStart)
		r.Post("/stop", h.HandleStop)
		r.Put("/interval", h.HandleSetInterval)
		r.Post("/run", h.HandleRunOnce)
	})
}

// HandleGetStatus handles GET /api/bot/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.bot.Status())
}

// HandleStart handles POST /api/bot/start
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	err := h.bot.Start(r.Context())
	if errors.Is(err, bot.ErrNoActiveProviders) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to start bot")
		http.Error(w, "Failed to start bot", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, h.bot.Status())
}

// HandleStop handles POST /api/bot/stop
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.bot.Stop(); err != nil {
		h.log.Error().Err(err).Msg("Failed to stop bot cleanly")
		http.Error(w, "Failed to stop bot", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, h.bot.Status())
}

type intervalRequest struct {
	Minutes int `json:"minutes"`
}

// HandleSetInterval handles PUT /api/bot/interval
func (h *Handler) HandleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.bot.SetInterval(req.Minutes)
	if errors.Is(err, bot.ErrInvalidInterval) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to set interval")
		http.Error(w, "Failed to set interval", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, h.bot.Status())
}

// HandleRunOnce handles POST /api/bot/run. The cycle runs in the background;
// progress shows up on the activity stream.
func (h *Handler) HandleRunOnce(w http.ResponseWriter, r *http.Request) {
	if st := h.bot.Status(); st.IsAnalyzing || st.IsFetching {
		http.Error(w, "A cycle is already in progress", http.StatusConflict)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		err := h.bot.RunOnce(ctx)
		switch {
		case err == nil:
		case errors.Is(err, work.ErrAlreadyQueued):
			h.log.Info().Msg("Manual cycle skipped, one is already queued")
		default:
			h.log.Error().Err(err).Msg("Manual cycle failed")
		}
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
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
