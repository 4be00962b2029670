// Package handlers provides HTTP handlers for market reads: quotes with
// indicators and the per-provider sentiment summary.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/decision"
	"github.com/aristath/tradingdesk/internal/utils"
)

// ProviderLookup finds one provider's configuration.
type ProviderLookup interface {
	Get(ctx context.Context, name domain.ProviderName) (*domain.ProviderConfig, error)
}

// GeneratorFactory builds an AI backend for a provider.
type GeneratorFactory interface {
	New(ctx context.Context, provider domain.ProviderConfig) (domain.TextGenerator, error)
}

// Handler handles market read requests
type Handler struct {
	market     decision.MarketData
	providers  ProviderLookup
	generators GeneratorFactory
	log        zerolog.Logger
}

// NewHandler creates a new market read handler
func NewHandler(market decision.MarketData, providers ProviderLookup, generators GeneratorFactory, log zerolog.Logger) *Handler {
	return &Handler{
		market:     market,
		providers:  providers,
		generators: generators,
		log:        log.With().Str("handler", "decision").Logger(),
	}
}

// RegisterRoutes registers quote and sentiment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/quotes/{symbol}", h.HandleGetQuote)
	r.Get("/trending", h.HandleGetTrending)
	r.Get("/sentiment", h.HandleGetSentiment)
}

type quoteResponse struct {
	Quote      *domain.Quote        `json:"quote"`
	Indicators *decision.Indicators `json:"indicators,omitempty"`
}

// HandleGetQuote handles GET /api/quotes/{symbol}
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	q, err := h.market.GetQuote(r.Context(), symbol)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote unavailable")
		http.Error(w, "Quote unavailable", http.StatusBadGateway)
		return
	}

	resp := quoteResponse{Quote: q}
	bars, err := h.market.GetBars(r.Context(), symbol, domain.DefaultBarRange)
	if err != nil {
		h.log.Debug().Err(err).Str("symbol", symbol).Msg("Bars unavailable, serving quote only")
	} else {
		ind := decision.ComputeIndicators(bars)
		resp.Indicators = &ind
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetTrending handles GET /api/trending
func (h *Handler) HandleGetTrending(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, decision.TrendingSymbols)
}

// HandleGetSentiment handles GET /api/sentiment?provider=openai&symbols=AAPL,MSFT
func (h *Handler) HandleGetSentiment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, err := domain.ProviderNameFromString(q.Get("provider"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	symbols := utils.ParseSymbols(q.Get("symbols"))
	if len(symbols) == 0 {
		symbols = decision.Universe(decision.DefaultUniverseSize, nil)
	}

	p, err := h.providers.Get(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	gen, err := h.generators.New(r.Context(), *p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()
	out, err := decision.Sentiment(ctx, gen, symbols)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.log.Warn().Err(err).Str("provider", string(name)).Msg("Sentiment request failed")
		http.Error(w, "Sentiment unavailable", status)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":  name,
		"sentiment": out,
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
