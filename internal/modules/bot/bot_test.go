package bot

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
	"github.com/aristath/tradingdesk/internal/modules/decision"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	"github.com/aristath/tradingdesk/internal/modules/settings"
	"github.com/aristath/tradingdesk/internal/modules/trading"
	testutil "github.com/aristath/tradingdesk/internal/testing"
	"github.com/aristath/tradingdesk/internal/work"
)

// scriptedGenerator answers with a per-symbol executive reply, found through
// the "SYMBOL: X" line every role prompt carries.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	block   bool
	calls   int
}

func (g *scriptedGenerator) Generate(ctx context.Context, messages []domain.ChatMessage, _ domain.GenerateOptions) (string, error) {
	g.mu.Lock()
	g.calls++
	block, err := g.block, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	for _, m := range messages {
		for symbol, reply := range g.replies {
			if strings.Contains(m.Content, "SYMBOL: "+symbol+"\n") {
				return reply, nil
			}
		}
	}
	return testutil.ExecutiveReply("HOLD", 0, 5, "Nothing to do."), nil
}

func (g *scriptedGenerator) Provider() domain.ProviderName { return domain.ProviderOpenAI }

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeFactory struct {
	mu      sync.Mutex
	gen     domain.TextGenerator
	err     error
	created int
}

func (f *fakeFactory) New(_ context.Context, _ domain.ProviderConfig) (domain.TextGenerator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	if f.err != nil {
		return nil, f.err
	}
	return f.gen, nil
}

type fakeReconciler struct {
	calls int
	err   error
}

func (r *fakeReconciler) Reconcile(_ context.Context) (*portfolio.ReconcileResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &portfolio.ReconcileResult{Cash: 900, Equity: 1000, Updated: 1}, nil
}

type fakeDay struct{}

func (fakeDay) TradingDayStart(t time.Time) time.Time { return t.Add(-12 * time.Hour) }

type harness struct {
	conn      *sql.DB
	gw        *testutil.MockGateway
	gen       *scriptedGenerator
	factory   *fakeFactory
	providers *settings.ProviderRepository
	bot       *settings.BotConfigRepository
	ledger    *portfolio.PortfolioRepository
	holdings  *portfolio.HoldingRepository
	trades    *trading.TradeRepository
	activity  *events.ActivityRepository
	events    *events.Manager
	deps      CycleDeps
}

func newHarness(t *testing.T, cash float64) *harness {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()
	conn := testutil.NewTestDB(t, "desk").Conn()

	h := &harness{
		conn:      conn,
		gw:        testutil.NewMockGateway(),
		gen:       &scriptedGenerator{replies: map[string]string{}},
		providers: settings.NewProviderRepository(conn, log),
		bot:       settings.NewBotConfigRepository(conn, log),
		ledger:    portfolio.NewPortfolioRepository(conn, log),
		holdings:  portfolio.NewHoldingRepository(conn, log),
		trades:    trading.NewTradeRepository(conn, log),
		activity:  events.NewActivityRepository(conn, log),
	}
	h.factory = &fakeFactory{gen: h.gen}
	h.events = events.NewManager(events.NewBus(), h.activity, log)

	roster := testutil.NewProviderFixtures()
	for i := range roster {
		roster[i].Active = roster[i].Name == domain.ProviderOpenAI
	}
	_, err := h.providers.Seed(ctx, roster)
	require.NoError(t, err)
	require.NoError(t, h.bot.Ensure(ctx))
	require.NoError(t, h.ledger.Ensure(ctx, cash))

	for _, symbol := range decision.TrendingSymbols {
		h.gw.SetPrice(symbol, 10)
		h.gw.SetBars(symbol, testutil.NewBarFixtures(30, 10))
	}
	h.gw.SetMarketOpen(true)

	h.deps = CycleDeps{
		Providers:  h.providers,
		Config:     h.bot,
		Ledger:     h.ledger,
		Allocation: allocation.NewService(h.holdings),
		Generators: h.factory,
		Contexts:   decision.NewContextBuilder(h.gw, nil, log),
		Decider:    decision.NewPipeline(log),
		Executor:   trading.NewExecutionService(conn, trading.ModelLocalLedger, h.gw, h.ledger, h.holdings, h.trades, log),
		Events:     h.events,
	}
	return h
}

func (h *harness) cycle(opts CycleOptions) *Cycle {
	if opts.UniverseSize == 0 {
		opts.UniverseSize = 3
	}
	return NewCycle(h.deps, opts, zerolog.Nop())
}

func (h *harness) activities(t *testing.T, action events.EventType) []events.Activity {
	t.Helper()
	out, err := h.activity.Recent(context.Background(), events.ActivityFilter{Action: action, Limit: 100})
	require.NoError(t, err)
	return out
}

func TestCycle_ExecutesHighestConfidenceFirst(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.replies = map[string]string{
		"AAPL":  testutil.ExecutiveReply("BUY", 1, 6, "Decent."),
		"GOOGL": testutil.ExecutiveReply("BUY", 1, 9, "Strong."),
		"MSFT":  testutil.ExecutiveReply("BUY", 1, 4, "Unsure."),
	}

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Providers)
	assert.Equal(t, 3, report.Analyzed)
	assert.Equal(t, 2, report.Decisions)
	assert.Equal(t, 1, report.Executed)
	require.NotNil(t, report.LastTradeAt)

	trades, err := h.trades.List(context.Background(), trading.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "GOOGL", trades[0].Symbol)
	assert.Equal(t, 9, trades[0].Confidence)

	low := h.activities(t, events.LowConfidenceDecision)
	require.Len(t, low, 1)
	assert.Equal(t, "MSFT", low[0].Symbol)
	assert.Contains(t, low[0].Details, "confidence too low (4/10)")

	auto := h.activities(t, events.AutoTrade)
	require.Len(t, auto, 1)
	assert.Contains(t, auto[0].Details, "Executed BUY 1 shares of GOOGL at $10.00 (Confidence: 9/10)")
}

func TestCycle_CapsAtMaxTradesPerCycle(t *testing.T) {
	h := newHarness(t, 1000)
	for _, s := range decision.TrendingSymbols {
		h.gen.replies[s] = testutil.ExecutiveReply("BUY", 1, 8, "Go.")
	}

	report, err := h.cycle(CycleOptions{UniverseSize: 10}).Run(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Decisions)
	assert.Equal(t, MaxTradesPerCycle, report.Executed)

	count, err := h.trades.CountSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MaxTradesPerCycle, count)
}

func TestCycle_NoRemainingTradesExecutesNothing(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.replies["AAPL"] = testutil.ExecutiveReply("BUY", 1, 9, "Go.")

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Decisions)
	assert.Equal(t, 0, report.Executed)
	assert.Empty(t, h.gw.Orders())
}

func TestCycle_LaterTradeSeesEarlierCashSpend(t *testing.T) {
	h := newHarness(t, 25)
	h.gen.replies = map[string]string{
		"AAPL":  testutil.ExecutiveReply("BUY", 2, 9, "First."),
		"GOOGL": testutil.ExecutiveReply("BUY", 2, 8, "Second."),
	}

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Decisions)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 1, report.Rejected)

	rejected := h.activities(t, events.TradeRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "GOOGL", rejected[0].Symbol)
	assert.Contains(t, rejected[0].Details, "insufficient")

	account, err := h.ledger.Get(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.0, account.CashBalance, 1e-9)
}

func (h *harness) useBroker() {
	h.deps.Executor = trading.NewExecutionService(h.conn, trading.ModelBroker, h.gw, h.ledger, h.holdings, h.trades, zerolog.Nop())
}

func TestCycle_BrokerOrdersCountAgainstCeilingWithinCycle(t *testing.T) {
	h := newHarness(t, 100000)
	h.useBroker()
	h.gen.replies = map[string]string{
		"AAPL":  testutil.ExecutiveReply("BUY", 200, 9, "All in."),
		"GOOGL": testutil.ExecutiveReply("BUY", 200, 8, "All in again."),
	}

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Decisions)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 1, report.Rejected)

	orders := h.gw.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "AAPL", orders[0].Symbol)

	spent := 0.0
	for _, o := range orders {
		spent += float64(o.Quantity) * 10
	}
	assert.LessOrEqual(t, spent, domain.DefaultAllocationCeiling)

	rejected := h.activities(t, events.TradeRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "GOOGL", rejected[0].Symbol)

	account, err := h.ledger.Get(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100000.0, account.CashBalance, 1e-9)
}

func TestCycle_BrokerOrdersSpendSharedCashWithinCycle(t *testing.T) {
	h := newHarness(t, 25)
	h.useBroker()
	h.gen.replies = map[string]string{
		"AAPL":  testutil.ExecutiveReply("BUY", 2, 9, "First."),
		"GOOGL": testutil.ExecutiveReply("BUY", 2, 8, "Second."),
	}

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 1, report.Rejected)
	assert.Len(t, h.gw.Orders(), 1)
}

func TestPendingFills(t *testing.T) {
	var none *pendingFills
	state := allocation.State{Provider: domain.ProviderOpenAI, Ceiling: 100, Invested: 40, UsableCash: 60}
	got, _ := none.apply(state, nil)
	assert.Equal(t, state, got)
	assert.InDelta(t, 500.0, none.cash(500), 1e-9)

	p := newPendingFills()
	p.add(trading.Trade{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Action: domain.ActionBuy, Quantity: 5, TotalAmount: 50})
	p.add(trading.Trade{Provider: domain.ProviderOpenAI, Symbol: "MSFT", Action: domain.ActionSell, Quantity: 2, TotalAmount: 20})
	p.add(trading.Trade{Provider: domain.ProviderGemini, Symbol: "AAPL", Action: domain.ActionBuy, Quantity: 1, TotalAmount: 10})

	assert.InDelta(t, 440.0, p.cash(500), 1e-9)

	holdings := []domain.Holding{
		{Provider: domain.ProviderOpenAI, Symbol: "MSFT", Quantity: 2},
		{Provider: domain.ProviderOpenAI, Symbol: "NVDA", Quantity: 3},
	}
	got, held := p.apply(state, holdings)
	assert.InDelta(t, 10.0, got.UsableCash, 1e-9)
	assert.False(t, got.Exceeded)
	require.Len(t, held, 1)
	assert.Equal(t, "NVDA", held[0].Symbol)

	p.add(trading.Trade{Provider: domain.ProviderOpenAI, Symbol: "AAPL", Action: domain.ActionBuy, Quantity: 2, TotalAmount: 20})
	got, _ = p.apply(state, nil)
	assert.Zero(t, got.UsableCash)
	assert.True(t, got.Exceeded)
	assert.InDelta(t, 10.0, got.Overage, 1e-9)
}

func TestCycle_SellWithoutSharesIsRejected(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.replies["AAPL"] = testutil.ExecutiveReply("SELL", 3, 8, "Overvalued.")

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 0, report.Executed)
	assert.Len(t, h.activities(t, events.TradeRejected), 1)
}

func TestCycle_ExecutionFailureIsRecorded(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.replies["AAPL"] = testutil.ExecutiveReply("BUY", 1, 8, "Go.")
	h.gw.SetOrderError(errors.New("exchange down"))

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	failed := h.activities(t, events.ExecutionFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Details, "exchange down")

	account, err := h.ledger.Get(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, account.CashBalance, 1e-9)
}

func TestCycle_GeneratorFailureRecordsAnalysisError(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.err = errors.New("rate limited")

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Decisions)
	assert.Len(t, h.activities(t, events.AnalysisError), 3)
}

func TestCycle_SymbolTimeoutIsRecorded(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.block = true

	report, err := h.cycle(CycleOptions{UniverseSize: 1, SymbolTimeout: 20 * time.Millisecond}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Decisions)

	timeouts := h.activities(t, events.AnalysisTimeout)
	require.Len(t, timeouts, 1)
	assert.Equal(t, "AAPL", timeouts[0].Symbol)
}

func TestCycle_MissingQuoteSkipsOnlyThatSymbol(t *testing.T) {
	h := newHarness(t, 1000)
	h.gw.SetPrice("AAPL", 0)
	h.gen.replies["GOOGL"] = testutil.ExecutiveReply("BUY", 1, 8, "Go.")

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)

	errs := h.activities(t, events.AnalysisError)
	require.Len(t, errs, 1)
	assert.Equal(t, "AAPL", errs[0].Symbol)
}

func TestCycle_NoActiveProviders(t *testing.T) {
	h := newHarness(t, 1000)
	active := false
	_, err := settings.NewService(h.providers, h.bot, nil, zerolog.Nop()).
		UpdateProvider(context.Background(), domain.ProviderOpenAI, settings.ProviderUpdate{Active: &active})
	require.NoError(t, err)

	_, err = h.cycle(CycleOptions{}).Run(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNoActiveProviders)
}

func TestCycle_ReconcilesFirst(t *testing.T) {
	h := newHarness(t, 1000)
	rec := &fakeReconciler{}
	h.deps.Reconciler = rec

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, report.Reconciled)
	assert.Equal(t, 1, rec.calls)

	recs := h.activities(t, events.Reconciled)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Details, "cash $900.00")
}

func TestCycle_ReconcileFailureDoesNotStopCycle(t *testing.T) {
	h := newHarness(t, 1000)
	h.deps.Reconciler = &fakeReconciler{err: errors.New("broker offline")}
	h.gen.replies["AAPL"] = testutil.ExecutiveReply("BUY", 1, 8, "Go.")

	report, err := h.cycle(CycleOptions{}).Run(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, report.Reconciled)
	assert.Equal(t, 1, report.Executed)
}

func TestCycle_ReusesGenerators(t *testing.T) {
	h := newHarness(t, 1000)
	c := h.cycle(CycleOptions{UniverseSize: 1})

	_, err := c.Run(context.Background(), 5)
	require.NoError(t, err)
	_, err = c.Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, h.factory.created)
}

// Scheduler

func newScheduler(t *testing.T, h *harness) *Scheduler {
	t.Helper()
	log := zerolog.Nop()

	registry := work.NewRegistry()
	processor := work.NewProcessor(registry, work.NewCompletionTracker(), nil, log)
	go processor.Run()
	t.Cleanup(processor.Stop)

	s := NewScheduler(SchedulerDeps{
		Config:    h.bot,
		Providers: h.providers,
		Market:    h.gw,
		Day:       fakeDay{},
		Trades:    h.trades,
		Cycle:     h.cycle(CycleOptions{UniverseSize: 1}),
		Registry:  registry,
		Processor: processor,
		Events:    h.events,
	}, Options{
		MarketClosedBackoff: 5 * time.Millisecond,
		DailyLimitBackoff:   5 * time.Millisecond,
		ErrorBackoff:        5 * time.Millisecond,
		MinInterval:         time.Millisecond,
		IntervalUnit:        5 * time.Millisecond,
	}, log)

	t.Cleanup(func() {
		_ = s.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Wait(ctx)
	})
	return s
}

func TestScheduler_SetInterval(t *testing.T) {
	h := newHarness(t, 1000)
	s := newScheduler(t, h)

	assert.ErrorIs(t, s.SetInterval(0), ErrInvalidInterval)
	assert.ErrorIs(t, s.SetInterval(61), ErrInvalidInterval)

	require.NoError(t, s.SetInterval(15))
	assert.Equal(t, 15, s.Status().IntervalMinutes)

	cfg, err := h.bot.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.IntervalMinutes)
}

func TestScheduler_IntervalHasOneMinuteFloor(t *testing.T) {
	h := newHarness(t, 1000)
	s := NewScheduler(SchedulerDeps{
		Config:    h.bot,
		Registry:  work.NewRegistry(),
		Processor: nil,
		Events:    h.events,
	}, Options{}, zerolog.Nop())

	require.NoError(t, s.SetInterval(1))
	assert.Equal(t, time.Minute, s.intervalDuration())
	require.NoError(t, s.SetInterval(7))
	assert.Equal(t, 7*time.Minute, s.intervalDuration())
}

func TestScheduler_StartRequiresActiveProvider(t *testing.T) {
	h := newHarness(t, 1000)
	active := false
	_, err := settings.NewService(h.providers, h.bot, nil, zerolog.Nop()).
		UpdateProvider(context.Background(), domain.ProviderOpenAI, settings.ProviderUpdate{Active: &active})
	require.NoError(t, err)

	s := newScheduler(t, h)
	assert.ErrorIs(t, s.Start(context.Background()), ErrNoActiveProviders)
	assert.False(t, s.Status().IsRunning)
}

func TestScheduler_RunsCyclesUntilStopped(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.replies["AAPL"] = testutil.ExecutiveReply("BUY", 1, 9, "Go.")
	s := newScheduler(t, h)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Status().IsRunning)

	require.Eventually(t, func() bool {
		n, err := h.trades.CountSince(context.Background(), time.Now().Add(-time.Hour))
		return err == nil && n >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	st := s.Status()
	assert.False(t, st.IsRunning)
	assert.NotNil(t, st.LastTradeTime)

	cfg, err := h.bot.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.IsActive)

	assert.Len(t, h.activities(t, events.BotStarted), 1)
	assert.Len(t, h.activities(t, events.BotStopped), 1)
}

func TestScheduler_StopsAtDailyLimit(t *testing.T) {
	h := newHarness(t, 1000)
	h.gen.replies["AAPL"] = testutil.ExecutiveReply("BUY", 1, 9, "Go.")
	cfg, err := h.bot.Get(context.Background())
	require.NoError(t, err)
	cfg.MaxDailyTrades = 2
	require.NoError(t, h.bot.Save(context.Background(), cfg))

	s := newScheduler(t, h)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		n, err := h.trades.CountSince(context.Background(), time.Now().Add(-time.Hour))
		return err == nil && n == 2
	}, 2*time.Second, 5*time.Millisecond)

	// The limit holds while the loop keeps polling.
	time.Sleep(50 * time.Millisecond)
	n, err := h.trades.CountSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, s.Status().IsRunning)
}

func TestScheduler_WaitsWhileMarketClosed(t *testing.T) {
	h := newHarness(t, 1000)
	h.gw.SetMarketOpen(false)
	s := newScheduler(t, h)

	require.NoError(t, s.Start(context.Background()))
	assert.Never(t, func() bool { return h.gen.Calls() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.True(t, s.Status().IsRunning)
}

func TestScheduler_ExitsWhenDeactivatedInConfig(t *testing.T) {
	h := newHarness(t, 1000)
	s := newScheduler(t, h)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, h.bot.SetActive(context.Background(), false))

	require.Eventually(t, func() bool { return !s.Status().IsRunning }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_ExitsWhenBotConfigMissing(t *testing.T) {
	h := newHarness(t, 1000)
	s := newScheduler(t, h)

	require.NoError(t, s.Start(context.Background()))
	_, err := h.conn.Exec(`DELETE FROM bot_config`)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !s.Status().IsRunning }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_ResumeIfActive(t *testing.T) {
	h := newHarness(t, 1000)
	h.gw.SetMarketOpen(false)
	s := newScheduler(t, h)

	require.NoError(t, s.ResumeIfActive(context.Background()))
	assert.False(t, s.Status().IsRunning)

	require.NoError(t, h.bot.SetActive(context.Background(), true))
	require.NoError(t, s.ResumeIfActive(context.Background()))
	assert.True(t, s.Status().IsRunning)
}

func TestScheduler_ShutdownKeepsPersistedState(t *testing.T) {
	h := newHarness(t, 1000)
	h.gw.SetMarketOpen(false)
	s := newScheduler(t, h)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	s.Shutdown()
	assert.False(t, s.Status().IsRunning)

	cfg, err := h.bot.Get(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.IsActive)
}
