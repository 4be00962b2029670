package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

type staticProviders []domain.ProviderConfig

func (p staticProviders) ListProviders(context.Context) ([]domain.ProviderConfig, error) {
	return p, nil
}

type fixture struct {
	portfolio *PortfolioRepository
	holdings  *HoldingRepository
	snapshots *SnapshotRepository
	gateway   *testutil.MockGateway
	service   *PortfolioService
}

func newFixture(t *testing.T, localLedger bool) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, "desk")
	log := zerolog.Nop()

	f := &fixture{
		portfolio: NewPortfolioRepository(db.Conn(), log),
		holdings:  NewHoldingRepository(db.Conn(), log),
		snapshots: NewSnapshotRepository(db.Conn(), log),
		gateway:   testutil.NewMockGateway(),
	}
	f.service = NewPortfolioService(db.Conn(), f.portfolio, f.holdings, f.snapshots,
		staticProviders(testutil.NewProviderFixtures()), f.gateway, localLedger, log)

	require.NoError(t, f.portfolio.Ensure(context.Background(), 1000))
	return f
}

func TestPortfolioRepository_EnsureIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.portfolio.SetCash(ctx, 250))
	require.NoError(t, f.portfolio.Ensure(ctx, 1000))

	p, err := f.portfolio.Get(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, p.CashBalance, 1e-9)
	assert.InDelta(t, 1000.0, p.InitialBalance, 1e-9)
}

func TestPortfolioRepository_NotInitialized(t *testing.T) {
	db := testutil.NewTestDB(t, "desk")
	repo := NewPortfolioRepository(db.Conn(), zerolog.Nop())

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, repo.SetCash(context.Background(), 1), ErrNotInitialized)
}

func TestHoldingRepository_CRUD(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderOpenAI, Symbol: "aapl", Quantity: 3, AverageCost: 100, CurrentPrice: 110}))
	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderGemini, Symbol: "AAPL", Quantity: 1, AverageCost: 90, CurrentPrice: 110}))
	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderGemini, Symbol: "MSFT", Quantity: 2, AverageCost: 300, CurrentPrice: 310}))

	h, err := f.holdings.Get(ctx, domain.ProviderOpenAI, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.InDelta(t, 3.0, h.Quantity, 1e-9)

	missing, err := f.holdings.Get(ctx, domain.ProviderOpenAI, "TSLA")
	require.NoError(t, err)
	assert.Nil(t, missing)

	gemini, err := f.holdings.GetByProvider(ctx, domain.ProviderGemini)
	require.NoError(t, err)
	assert.Len(t, gemini, 2)

	bySymbol, err := f.holdings.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Len(t, bySymbol, 2)

	symbols, err := f.holdings.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	require.NoError(t, f.holdings.UpdatePrice(ctx, "AAPL", 120))
	h, err = f.holdings.Get(ctx, domain.ProviderGemini, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 120.0, h.CurrentPrice, 1e-9)

	require.NoError(t, f.holdings.Delete(ctx, domain.ProviderGemini, "AAPL"))
	all, err := f.holdings.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHoldingRepository_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t, true)
	err := f.holdings.Upsert(context.Background(), domain.Holding{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Quantity: 0})
	assert.Error(t, err)
}

func TestPortfolioService_Summary(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.portfolio.SetCash(ctx, 500))
	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Quantity: 4, AverageCost: 100, CurrentPrice: 100}))
	f.gateway.SetPrice("AAPL", 150)

	s, err := f.service.Summary(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 500.0, s.CashBalance, 1e-9)
	assert.InDelta(t, 600.0, s.HoldingsValue, 1e-9)
	assert.InDelta(t, 1100.0, s.TotalValue, 1e-9)
	assert.InDelta(t, 400.0, s.TotalInvested, 1e-9)
	assert.InDelta(t, 100.0, s.TotalReturn, 1e-9)
	assert.InDelta(t, 10.0, s.ReturnPercentage, 1e-9)
	assert.Equal(t, 1, s.HoldingsCount)
	require.Len(t, s.Allocations, len(domain.AllProviders))
	assert.InDelta(t, 600.0, s.Allocations[0].Invested, 1e-9)

	p, err := f.portfolio.Get(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1100.0, p.TotalValue, 1e-9)
}

func TestPortfolioService_SummaryKeepsPriceOnQuoteFailure(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Quantity: 1, AverageCost: 100, CurrentPrice: 105}))
	f.gateway.SetError(errors.New("offline"))

	s, err := f.service.Summary(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 105.0, s.HoldingsValue, 1e-9)
}

func TestPortfolioService_SnapshotAndHistory(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	job := NewSnapshotJob(f.service, zerolog.Nop())
	assert.Equal(t, "portfolio_snapshot", job.Name())
	require.NoError(t, job.Run())

	history, err := f.service.History(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 1000.0, history[0].TotalValue, 1e-9)
}

func TestPortfolioService_Reset(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.portfolio.SetCash(ctx, 10))
	require.NoError(t, f.holdings.Upsert(ctx, domain.Holding{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Quantity: 1, AverageCost: 100, CurrentPrice: 100}))
	_, err := f.service.TakeSnapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, f.service.Reset(ctx))

	p, err := f.portfolio.Get(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, p.CashBalance, 1e-9)
	all, err := f.holdings.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	history, err := f.service.History(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPortfolioService_ResetRefusedForBroker(t *testing.T) {
	f := newFixture(t, false)
	assert.ErrorIs(t, f.service.Reset(context.Background()), ErrResetUnsupported)
}
