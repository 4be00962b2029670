// Package bot runs the desk's trading loop: a Stopped/Running state machine
// that gates on market hours and the daily trade limit and dispatches each
// decide-validate-execute cycle to the work processor.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
	"github.com/aristath/tradingdesk/internal/modules/decision"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	"github.com/aristath/tradingdesk/internal/modules/trading"
)

var (
	// ErrNoActiveProviders stops the loop: there is nobody to trade for.
	ErrNoActiveProviders = errors.New("no active providers")
	// ErrInvalidInterval is returned by SetInterval outside 1..60 minutes.
	ErrInvalidInterval = errors.New("interval must be between 1 and 60 minutes")
)

// CycleWorkType is the work processor id of one trading cycle.
const CycleWorkType = "trading:cycle"

// BotConfigStore persists the bot configuration.
type BotConfigStore interface {
	Get(ctx context.Context) (domain.BotConfig, error)
	SetActive(ctx context.Context, active bool) error
	SetInterval(ctx context.Context, minutes int) error
}

// ProviderSource lists providers taking part in trading.
type ProviderSource interface {
	ActiveProviders(ctx context.Context) ([]domain.ProviderConfig, error)
}

// MarketClock reports whether the market is open.
type MarketClock interface {
	IsMarketOpen(ctx context.Context) (bool, error)
}

// DayClock maps an instant to the start of its trading day.
type DayClock interface {
	TradingDayStart(t time.Time) time.Time
}

// TradeLog answers daily-count and last-trade questions.
type TradeLog interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
	LastTradeTime(ctx context.Context) (*time.Time, error)
}

// LedgerReader reads the account row.
type LedgerReader interface {
	Get(ctx context.Context) (*portfolio.Portfolio, error)
}

// AllocationSource derives a provider's allocation.
type AllocationSource interface {
	ForProvider(ctx context.Context, provider domain.ProviderConfig, accountCash float64) (allocation.State, []domain.Holding, error)
}

// Reconciler syncs local state from the broker. Nil in the local ledger model.
type Reconciler interface {
	Reconcile(ctx context.Context) (*portfolio.ReconcileResult, error)
}

// GeneratorFactory builds an AI backend for a provider.
type GeneratorFactory interface {
	New(ctx context.Context, provider domain.ProviderConfig) (domain.TextGenerator, error)
}

// ContextSource builds the market context for one symbol.
type ContextSource interface {
	Build(ctx context.Context, symbol string, in decision.ContextInput) (*decision.MarketContext, error)
}

// Decider runs the deliberation.
type Decider interface {
	Decide(ctx context.Context, gen domain.TextGenerator, mc *decision.MarketContext) (*decision.Outcome, error)
}

// Executor executes a validated decision. In the broker model the local
// ledger only changes on the next reconcile.
type Executor interface {
	Execute(ctx context.Context, d domain.TradingDecision) (*trading.Trade, error)
	Model() trading.ExecutionModel
}

// Status is the scheduler's control-surface view.
type Status struct {
	IsRunning       bool       `json:"is_running"`
	IsAnalyzing     bool       `json:"is_analyzing"`
	IsFetching      bool       `json:"is_fetching"`
	IntervalMinutes int        `json:"interval_minutes"`
	LastTradeTime   *time.Time `json:"last_trade_time"`
	LastCycle       *Report    `json:"last_cycle,omitempty"`
}

// Report summarises one cycle.
type Report struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Providers   int           `json:"providers"`
	Analyzed    int           `json:"analyzed"`
	Decisions   int           `json:"decisions"`
	Executed    int           `json:"executed"`
	Rejected    int           `json:"rejected"`
	Failed      int           `json:"failed"`
	Reconciled  bool          `json:"reconciled"`
	LastTradeAt *time.Time    `json:"last_trade_at,omitempty"`
}
