package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
	"github.com/aristath/tradingdesk/internal/modules/decision"
	"github.com/aristath/tradingdesk/internal/modules/trading"
	"github.com/aristath/tradingdesk/internal/utils"
)

const (
	// DefaultSymbolTimeout bounds one symbol's deliberation.
	DefaultSymbolTimeout = 30 * time.Second
	// MinConfidence is the lowest confidence a decision may carry to be executed.
	MinConfidence = 5
	// MaxTradesPerCycle caps executions per cycle before the daily limit applies.
	MaxTradesPerCycle = 5
)

// CycleOptions tunes a Cycle. Zero values take the package defaults.
type CycleOptions struct {
	SymbolTimeout     time.Duration
	MinConfidence     int
	MaxTradesPerCycle int
	UniverseSize      int
}

func (o CycleOptions) withDefaults() CycleOptions {
	if o.SymbolTimeout <= 0 {
		o.SymbolTimeout = DefaultSymbolTimeout
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = MinConfidence
	}
	if o.MaxTradesPerCycle <= 0 {
		o.MaxTradesPerCycle = MaxTradesPerCycle
	}
	if o.UniverseSize <= 0 {
		o.UniverseSize = decision.DefaultUniverseSize
	}
	return o
}

// CycleDeps are the collaborators of a Cycle.
type CycleDeps struct {
	Providers  ProviderSource
	Config     BotConfigStore
	Ledger     LedgerReader
	Allocation AllocationSource
	Reconciler Reconciler
	Generators GeneratorFactory
	Contexts   ContextSource
	Decider    Decider
	Executor   Executor
	Events     *events.Manager
}

// Cycle is one decide-validate-execute pass over every active provider.
type Cycle struct {
	deps      CycleDeps
	validator trading.Validator
	opts      CycleOptions
	log       zerolog.Logger

	analyzing atomic.Bool
	fetching  atomic.Bool

	genMu      sync.Mutex
	generators map[generatorKey]domain.TextGenerator
}

type generatorKey struct {
	name   domain.ProviderName
	apiKey string
	model  string
}

// NewCycle creates a cycle runner.
func NewCycle(deps CycleDeps, opts CycleOptions, log zerolog.Logger) *Cycle {
	return &Cycle{
		deps:       deps,
		validator:  trading.NewValidator(),
		opts:       opts.withDefaults(),
		log:        log.With().Str("component", "trading_cycle").Logger(),
		generators: make(map[generatorKey]domain.TextGenerator),
	}
}

// Analyzing reports whether a deliberation is in progress.
func (c *Cycle) Analyzing() bool { return c.analyzing.Load() }

// Fetching reports whether market data or broker state is being fetched.
func (c *Cycle) Fetching() bool { return c.fetching.Load() }

// Run executes one cycle. remaining is how many trades the daily limit
// still allows. Only ErrNoActiveProviders and context errors are returned;
// per-symbol and per-trade failures are recorded and skipped.
func (c *Cycle) Run(ctx context.Context, remaining int) (*Report, error) {
	report := &Report{StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()
	defer utils.OperationTimer("trading_cycle", c.log)()

	if c.deps.Reconciler != nil {
		c.reconcile(ctx, report)
	}

	providers, err := c.deps.Providers.ActiveProviders(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active providers: %w", err)
	}
	if len(providers) == 0 {
		return report, ErrNoActiveProviders
	}
	report.Providers = len(providers)

	cfg, err := c.deps.Config.Get(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load bot config: %w", err)
	}

	var pooled []domain.TradingDecision
	for _, p := range providers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		pooled = append(pooled, c.analyzeProvider(ctx, p, cfg, report)...)
	}
	report.Decisions = len(pooled)

	// Highest confidence first; ties keep provider and universe order.
	sort.SliceStable(pooled, func(i, j int) bool {
		return pooled[i].Confidence > pooled[j].Confidence
	})

	limit := c.opts.MaxTradesPerCycle
	if remaining < limit {
		limit = remaining
	}
	if limit < 0 {
		limit = 0
	}
	if len(pooled) > limit {
		pooled = pooled[:limit]
	}

	byName := make(map[domain.ProviderName]domain.ProviderConfig, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}
	var pending *pendingFills
	if c.deps.Executor.Model() == trading.ModelBroker {
		pending = newPendingFills()
	}
	for _, d := range pooled {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		c.execute(ctx, byName[d.Provider], d, pending, report)
	}

	return report, nil
}

func (c *Cycle) reconcile(ctx context.Context, report *Report) {
	c.fetching.Store(true)
	defer c.fetching.Store(false)

	res, err := c.deps.Reconciler.Reconcile(ctx)
	if err != nil {
		// Local state stays as it was; the cycle goes on with it.
		c.log.Warn().Err(err).Msg("Broker reconciliation failed")
		c.deps.Events.EmitError("trading_cycle", err, map[string]interface{}{"step": "reconcile"})
		return
	}
	report.Reconciled = true
	c.deps.Events.Record(ctx, events.Reconciled, "", "",
		"Reconciled with broker: cash $%.2f, equity $%.2f, %d updated, %d inserted, %d deleted",
		res.Cash, res.Equity, res.Updated, res.Inserted, res.Deleted)
}

func (c *Cycle) analyzeProvider(ctx context.Context, p domain.ProviderConfig, cfg domain.BotConfig, report *Report) []domain.TradingDecision {
	log := c.log.With().Str("provider", string(p.Name)).Logger()
	timer := utils.NewTimer("analyze_provider", log)

	gen, err := c.generator(ctx, p)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create AI backend")
		c.deps.Events.Record(ctx, events.AnalysisError, string(p.Name), "", "AI backend unavailable: %v", err)
		return nil
	}

	account, err := c.deps.Ledger.Get(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read account")
		return nil
	}
	state, holdings, err := c.deps.Allocation.ForProvider(ctx, p, account.CashBalance)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute allocation")
		return nil
	}

	held := make([]string, 0, len(holdings))
	bySymbol := make(map[string]domain.Holding, len(holdings))
	for _, h := range holdings {
		held = append(held, h.Symbol)
		bySymbol[h.Symbol] = h
	}

	universe := decision.Universe(c.opts.UniverseSize, held)
	var decisions []domain.TradingDecision
	for _, symbol := range universe {
		if ctx.Err() != nil {
			return decisions
		}
		in := decision.ContextInput{
			Provider:       p,
			Allocation:     state,
			Bot:            cfg,
			PortfolioValue: account.TotalValue,
		}
		if h, ok := bySymbol[symbol]; ok {
			h := h
			in.Holding = &h
		}

		d := c.analyzeSymbol(ctx, gen, symbol, in, log)
		report.Analyzed++
		if d == nil {
			continue
		}
		if d.Confidence < c.opts.MinConfidence {
			c.deps.Events.Record(ctx, events.LowConfidenceDecision, string(p.Name), symbol,
				"AI suggested %s %d shares of %s but confidence too low (%d/10)",
				d.Action, d.Quantity, symbol, d.Confidence)
			continue
		}
		decisions = append(decisions, *d)
	}
	timer.StopWithContext(map[string]interface{}{
		"symbols":   len(universe),
		"decisions": len(decisions),
	})
	return decisions
}

// analyzeSymbol runs context building and deliberation under the per-symbol
// timeout. A nil decision means HOLD or a recorded failure.
func (c *Cycle) analyzeSymbol(ctx context.Context, gen domain.TextGenerator, symbol string, in decision.ContextInput, log zerolog.Logger) *domain.TradingDecision {
	sctx, cancel := context.WithTimeout(ctx, c.opts.SymbolTimeout)
	defer cancel()

	provider := string(in.Provider.Name)

	c.fetching.Store(true)
	mc, err := c.deps.Contexts.Build(sctx, symbol, in)
	c.fetching.Store(false)
	if err == nil {
		c.analyzing.Store(true)
		var out *decision.Outcome
		out, err = c.deps.Decider.Decide(sctx, gen, mc)
		c.analyzing.Store(false)
		if err == nil {
			if out.Malformed {
				log.Warn().Str("symbol", symbol).Msg("Executive reply was malformed, treating as HOLD")
			}
			return out.Decision
		}
	}

	switch {
	case ctx.Err() != nil:
		// Scheduler stop; nothing to record.
	case errors.Is(err, context.DeadlineExceeded) || sctx.Err() != nil:
		c.deps.Events.Record(ctx, events.AnalysisTimeout, provider, symbol,
			"Stock analysis timeout for %s after %d seconds", symbol, int(c.opts.SymbolTimeout.Seconds()))
	default:
		c.deps.Events.Record(ctx, events.AnalysisError, provider, symbol,
			"Analysis failed for %s: %v", symbol, err)
	}
	return nil
}

// execute re-reads cash and allocation so earlier trades in the same cycle
// count against this one, then validates and executes. pending is non-nil in
// the broker model, where earlier orders are not yet on the ledger.
func (c *Cycle) execute(ctx context.Context, p domain.ProviderConfig, d domain.TradingDecision, pending *pendingFills, report *Report) {
	provider := string(d.Provider)

	account, err := c.deps.Ledger.Get(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to read account before execution")
		report.Failed++
		return
	}
	state, holdings, err := c.deps.Allocation.ForProvider(ctx, p, pending.cash(account.CashBalance))
	if err != nil {
		c.log.Error().Err(err).Str("provider", provider).Msg("Failed to compute allocation before execution")
		report.Failed++
		return
	}
	state, holdings = pending.apply(state, holdings)

	if err := c.validator.Validate(d, state.UsableCash, holdings, state.Exceeded); err != nil {
		report.Rejected++
		c.deps.Events.Record(ctx, events.TradeRejected, provider, d.Symbol,
			"Rejected %s %d %s: %v", d.Action, d.Quantity, d.Symbol, err)
		return
	}

	trade, err := c.deps.Executor.Execute(ctx, d)
	if err != nil {
		report.Failed++
		c.deps.Events.Record(ctx, events.ExecutionFailed, provider, d.Symbol,
			"Failed to execute %s %d %s: %v", d.Action, d.Quantity, d.Symbol, err)
		return
	}

	pending.add(*trade)
	report.Executed++
	at := trade.ExecutedAt
	report.LastTradeAt = &at
	c.deps.Events.Record(ctx, events.AutoTrade, provider, d.Symbol,
		"Executed %s %d shares of %s at $%.2f (Confidence: %d/10)",
		trade.Action, trade.Quantity, trade.Symbol, trade.Price, trade.Confidence)
}

// generator reuses backends across cycles so their rate limiters keep state.
// A changed key or model builds a fresh one.
func (c *Cycle) generator(ctx context.Context, p domain.ProviderConfig) (domain.TextGenerator, error) {
	key := generatorKey{name: p.Name, apiKey: p.APIKey, model: p.Model}

	c.genMu.Lock()
	defer c.genMu.Unlock()
	if gen, ok := c.generators[key]; ok {
		return gen, nil
	}
	gen, err := c.deps.Generators.New(ctx, p)
	if err != nil {
		return nil, err
	}
	for k := range c.generators {
		if k.name == p.Name {
			delete(c.generators, k)
		}
	}
	c.generators[key] = gen
	return gen, nil
}

// pendingFills holds broker orders placed earlier in the cycle. Sells are not
// credited: cash and headroom only shrink until the broker confirms.
type pendingFills struct {
	spent map[domain.ProviderName]decimal.Decimal
	total decimal.Decimal
	sold  map[domain.ProviderName]map[string]float64
}

func newPendingFills() *pendingFills {
	return &pendingFills{
		spent: make(map[domain.ProviderName]decimal.Decimal),
		sold:  make(map[domain.ProviderName]map[string]float64),
	}
}

// cash is the account cash net of pending buys.
func (p *pendingFills) cash(accountCash float64) float64 {
	if p == nil {
		return accountCash
	}
	return decimal.NewFromFloat(accountCash).Sub(p.total).InexactFloat64()
}

// apply charges the provider's pending buys against its headroom and removes
// pending sells from its holdings.
func (p *pendingFills) apply(state allocation.State, holdings []domain.Holding) (allocation.State, []domain.Holding) {
	if p == nil {
		return state, holdings
	}

	if spent, ok := p.spent[state.Provider]; ok {
		invested := decimal.NewFromFloat(state.Invested).Add(spent)
		ceiling := decimal.NewFromFloat(state.Ceiling)
		headroom := decimal.Max(decimal.Zero, ceiling.Sub(invested))
		state.UsableCash = decimal.Min(decimal.NewFromFloat(state.UsableCash), headroom).Round(2).InexactFloat64()
		state.Exceeded = invested.GreaterThan(ceiling)
		state.Overage = decimal.Max(decimal.Zero, invested.Sub(ceiling)).Round(2).InexactFloat64()
	}

	sold := p.sold[state.Provider]
	if len(sold) == 0 {
		return state, holdings
	}
	out := make([]domain.Holding, 0, len(holdings))
	for _, h := range holdings {
		h.Quantity -= sold[h.Symbol]
		if h.Quantity > 0 {
			out = append(out, h)
		}
	}
	return state, out
}

func (p *pendingFills) add(t trading.Trade) {
	if p == nil {
		return
	}
	switch t.Action {
	case domain.ActionBuy:
		amount := decimal.NewFromFloat(t.TotalAmount)
		p.spent[t.Provider] = p.spent[t.Provider].Add(amount)
		p.total = p.total.Add(amount)
	case domain.ActionSell:
		if p.sold[t.Provider] == nil {
			p.sold[t.Provider] = make(map[string]float64)
		}
		p.sold[t.Provider][t.Symbol] += float64(t.Quantity)
	}
}
