// Package allocation computes each provider's spending headroom against its ceiling.
package allocation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/domain"
)

// State is a provider's derived allocation. It is recomputed on every read
// and never persisted.
type State struct {
	Provider   domain.ProviderName `json:"provider"`
	Ceiling    float64             `json:"ceiling"`
	Invested   float64             `json:"invested"`
	UsableCash float64             `json:"usable_cash"`
	Overage    float64             `json:"overage"`
	Exceeded   bool                `json:"exceeded"`
	Holdings   int                 `json:"holdings"`
}

// Headroom is the unspent part of the ceiling, floored at zero.
func (s State) Headroom() float64 {
	if s.Exceeded {
		return 0
	}
	return s.Ceiling - s.Invested
}

// Compute derives a provider's allocation from its holdings and the shared
// account cash. Holdings belonging to other providers are ignored.
//
//	invested = sum(quantity * current price)
//	usable   = min(cash, max(0, ceiling - invested))
//	overage  = max(0, invested - ceiling)
func Compute(provider domain.ProviderConfig, holdings []domain.Holding, accountCash float64) State {
	invested := decimal.Zero
	count := 0
	for _, h := range holdings {
		if h.Provider != provider.Name {
			continue
		}
		invested = invested.Add(decimal.NewFromFloat(h.Quantity).Mul(decimal.NewFromFloat(h.CurrentPrice)))
		count++
	}

	ceiling := decimal.NewFromFloat(provider.AllocationCeiling)
	cash := decimal.Max(decimal.Zero, decimal.NewFromFloat(accountCash))
	headroom := decimal.Max(decimal.Zero, ceiling.Sub(invested))
	usable := decimal.Min(cash, headroom)
	overage := decimal.Max(decimal.Zero, invested.Sub(ceiling))

	return State{
		Provider:   provider.Name,
		Ceiling:    ceiling.InexactFloat64(),
		Invested:   invested.Round(2).InexactFloat64(),
		UsableCash: usable.Round(2).InexactFloat64(),
		Overage:    overage.Round(2).InexactFloat64(),
		Exceeded:   invested.GreaterThan(ceiling),
		Holdings:   count,
	}
}

// HoldingsReader loads a provider's holdings.
type HoldingsReader interface {
	GetByProvider(ctx context.Context, provider domain.ProviderName) ([]domain.Holding, error)
}

// Service reads holdings and computes allocation states.
type Service struct {
	holdings HoldingsReader
}

// NewService creates a new allocation service
func NewService(holdings HoldingsReader) *Service {
	return &Service{holdings: holdings}
}

// ForProvider loads the provider's holdings and computes its state.
func (s *Service) ForProvider(ctx context.Context, provider domain.ProviderConfig, accountCash float64) (State, []domain.Holding, error) {
	holdings, err := s.holdings.GetByProvider(ctx, provider.Name)
	if err != nil {
		return State{}, nil, fmt.Errorf("failed to load holdings for %s: %w", provider.Name, err)
	}
	return Compute(provider, holdings, accountCash), holdings, nil
}

// Table computes the state of every provider against the same cash balance.
func (s *Service) Table(ctx context.Context, providers []domain.ProviderConfig, accountCash float64) ([]State, error) {
	out := make([]State, 0, len(providers))
	for _, p := range providers {
		st, _, err := s.ForProvider(ctx, p, accountCash)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
