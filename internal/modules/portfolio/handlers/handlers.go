// Package handlers provides HTTP handlers for the account ledger.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
)

// Service is the portfolio surface the handlers need.
type Service interface {
	Summary(ctx context.Context) (*portfolio.Summary, error)
	History(ctx context.Context, since time.Time) ([]portfolio.Snapshot, error)
	Reset(ctx context.Context) error
}

// Holdings lists every holding.
type Holdings interface {
	GetAll(ctx context.Context) ([]domain.Holding, error)
}

// Reconciler syncs from the broker. Nil outside broker mode.
type Reconciler interface {
	Reconcile(ctx context.Context) (*portfolio.ReconcileResult, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service    Service
	holdings   Holdings
	reconciler Reconciler
	events     *events.Manager
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler. reconciler may be nil.
func NewHandler(service Service, holdings Holdings, reconciler Reconciler, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		holdings:   holdings,
		reconciler: reconciler,
		events:     eventManager,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetSummary)
		r.Get("/holdings", h.HandleGetHoldings)
		r.Get("/history", h.HandleGetHistory)
		r.Post("/reset", h.HandleReset)
		r.Post("/reconcile", h.HandleReconcile)
	})
}

// HandleGetSummary handles GET /api/portfolio
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get portfolio summary")
		http.Error(w, "Failed to get portfolio summary", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetHoldings handles GET /api/portfolio/holdings?provider=
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	all, err := h.holdings.GetAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		http.Error(w, "Failed to list holdings", http.StatusInternalServerError)
		return
	}

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		h.writeJSON(w, http.StatusOK, all)
		return
	}
	name, err := domain.ProviderNameFromString(provider)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := make([]domain.Holding, 0, len(all))
	for _, hld := range all {
		if hld.Provider == name {
			out = append(out, hld)
		}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleGetHistory handles GET /api/portfolio/history?days=30
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 3650 {
			http.Error(w, "days must be between 1 and 3650", http.StatusBadRequest)
			return
		}
		days = n
	}

	snaps, err := h.service.History(r.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get portfolio history")
		http.Error(w, "Failed to get portfolio history", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

// HandleReset handles POST /api/portfolio/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	err := h.service.Reset(r.Context())
	if errors.Is(err, portfolio.ErrResetUnsupported) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reset portfolio")
		http.Error(w, "Failed to reset portfolio", http.StatusInternalServerError)
		return
	}

	if h.events != nil {
		h.events.Record(r.Context(), events.PortfolioReset, "", "", "Portfolio reset to initial balance")
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleReconcile handles POST /api/portfolio/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		http.Error(w, "Reconciliation is only available in broker mode", http.StatusConflict)
		return
	}

	res, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual reconciliation failed")
		http.Error(w, "Reconciliation failed", http.StatusBadGateway)
		return
	}
	if h.events != nil {
		h.events.Record(r.Context(), events.Reconciled, "", "",
			"Reconciled with broker: cash $%.2f, equity $%.2f, %d updated, %d inserted, %d deleted",
			res.Cash, res.Equity, res.Updated, res.Inserted, res.Deleted)
	}
	h.writeJSON(w, http.StatusOK, res)
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
