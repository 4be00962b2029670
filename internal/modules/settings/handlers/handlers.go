// Package handlers provides HTTP handlers for provider and bot settings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/settings"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/providers", func(r chi.Router) {
		r.Get("/", h.HandleListProviders)
		r.Get("/{name}", h.HandleGetProvider)
		r.Put("/{name}", h.HandleUpdateProvider)
	})
	r.Route("/settings", func(r chi.Router) {
		r.Get("/bot", h.HandleGetBotConfig)
		r.Put("/bot", h.HandleUpdateBotConfig)
	})
}

// providerView hides the key but says whether one is set.
type providerView struct {
	domain.ProviderConfig
	HasAPIKey bool `json:"has_api_key"`
}

func toView(p domain.ProviderConfig) providerView {
	return providerView{ProviderConfig: p, HasAPIKey: p.APIKey != ""}
}

// HandleListProviders handles GET /api/providers
func (h *Handler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.service.Providers().ListProviders(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list providers")
		http.Error(w, "Failed to list providers", http.StatusInternalServerError)
		return
	}

	out := make([]providerView, 0, len(providers))
	for _, p := range providers {
		out = append(out, toView(p))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleGetProvider handles GET /api/providers/{name}
func (h *Handler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	name, err := domain.ProviderNameFromString(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.service.Providers().Get(r.Context(), name)
	if errors.Is(err, settings.ErrProviderNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("provider", string(name)).Msg("Failed to get provider")
		http.Error(w, "Failed to get provider", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, toView(*p))
}

// HandleUpdateProvider handles PUT /api/providers/{name}
func (h *Handler) HandleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	name, err := domain.ProviderNameFromString(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var update settings.ProviderUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdateProvider(r.Context(), name, update)
	if errors.Is(err, settings.ErrProviderNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("provider", string(name)).Msg("Rejected provider update")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, toView(*p))
}

// HandleGetBotConfig handles GET /api/settings/bot
func (h *Handler) HandleGetBotConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.BotConfig().Get(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get bot config")
		http.Error(w, "Failed to get bot config", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// HandleUpdateBotConfig handles PUT /api/settings/bot
func (h *Handler) HandleUpdateBotConfig(w http.ResponseWriter, r *http.Request) {
	var update settings.BotConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateBotConfig(r.Context(), update)
	if err != nil {
		h.log.Warn().Err(err).Msg("Rejected bot config update")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
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
