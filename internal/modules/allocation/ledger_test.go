package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
)

func provider(ceiling float64) domain.ProviderConfig {
	return domain.ProviderConfig{Name: domain.ProviderOpenAI, Active: true, AllocationCeiling: ceiling}
}

func holding(p domain.ProviderName, qty, price float64) domain.Holding {
	return domain.Holding{Provider: p, Symbol: "AAPL", Quantity: qty, CurrentPrice: price}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		ceiling  float64
		holdings []domain.Holding
		cash     float64
		invested float64
		usable   float64
		overage  float64
		exceeded bool
	}{
		{
			name:    "no holdings, cash below ceiling",
			ceiling: 1000, cash: 300,
			usable: 300,
		},
		{
			name:    "no holdings, cash above ceiling",
			ceiling: 1000, cash: 5000,
			usable: 1000,
		},
		{
			name:     "partial headroom",
			ceiling:  1000,
			holdings: []domain.Holding{holding(domain.ProviderOpenAI, 4, 150)},
			cash:     5000,
			invested: 600, usable: 400,
		},
		{
			name:     "exactly at ceiling is not exceeded",
			ceiling:  1000,
			holdings: []domain.Holding{holding(domain.ProviderOpenAI, 10, 100)},
			cash:     5000,
			invested: 1000, usable: 0,
		},
		{
			name:     "exceeded",
			ceiling:  1000,
			holdings: []domain.Holding{holding(domain.ProviderOpenAI, 12, 100)},
			cash:     5000,
			invested: 1200, usable: 0, overage: 200, exceeded: true,
		},
		{
			name:    "other providers ignored",
			ceiling: 1000,
			holdings: []domain.Holding{
				holding(domain.ProviderGemini, 100, 100),
				holding(domain.ProviderOpenAI, 1, 100),
			},
			cash:     5000,
			invested: 100, usable: 900,
		},
		{
			name:    "negative cash clamps to zero",
			ceiling: 1000, cash: -50,
			usable: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Compute(provider(tt.ceiling), tt.holdings, tt.cash)
			assert.InDelta(t, tt.invested, st.Invested, 1e-9)
			assert.InDelta(t, tt.usable, st.UsableCash, 1e-9)
			assert.InDelta(t, tt.overage, st.Overage, 1e-9)
			assert.Equal(t, tt.exceeded, st.Exceeded)
			assert.GreaterOrEqual(t, st.UsableCash, 0.0)
		})
	}
}

func TestCompute_DecimalPrecision(t *testing.T) {
	// 3 * 0.1 in float64 is 0.30000000000000004.
	st := Compute(provider(1), []domain.Holding{holding(domain.ProviderOpenAI, 3, 0.1)}, 10)
	assert.Equal(t, 0.3, st.Invested)
	assert.Equal(t, 0.7, st.UsableCash)
}

func TestState_Headroom(t *testing.T) {
	assert.InDelta(t, 400.0, State{Ceiling: 1000, Invested: 600}.Headroom(), 1e-9)
	assert.Zero(t, State{Ceiling: 1000, Invested: 1200, Exceeded: true}.Headroom())
}

type stubHoldings struct {
	byProvider map[domain.ProviderName][]domain.Holding
	err        error
}

func (s stubHoldings) GetByProvider(_ context.Context, p domain.ProviderName) ([]domain.Holding, error) {
	return s.byProvider[p], s.err
}

func TestService_Table(t *testing.T) {
	svc := NewService(stubHoldings{byProvider: map[domain.ProviderName][]domain.Holding{
		domain.ProviderOpenAI: {holding(domain.ProviderOpenAI, 2, 100)},
	}})

	providers := []domain.ProviderConfig{
		provider(1000),
		{Name: domain.ProviderGemini, AllocationCeiling: 500},
	}
	table, err := svc.Table(context.Background(), providers, 700)
	require.NoError(t, err)
	require.Len(t, table, 2)

	assert.InDelta(t, 700.0, table[0].UsableCash, 1e-9)
	assert.Equal(t, 1, table[0].Holdings)
	assert.InDelta(t, 500.0, table[1].UsableCash, 1e-9)
}

func TestService_ForProviderError(t *testing.T) {
	svc := NewService(stubHoldings{err: errors.New("db down")})
	_, _, err := svc.ForProvider(context.Background(), provider(1000), 100)
	assert.ErrorContains(t, err, "db down")
}
