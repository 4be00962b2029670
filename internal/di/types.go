// Package di wires the desk: databases, repositories, services, the trading
// scheduler and the maintenance jobs.
package di

import (
	"context"

	"github.com/aristath/tradingdesk/internal/ai"
	"github.com/aristath/tradingdesk/internal/clientdata"
	"github.com/aristath/tradingdesk/internal/clients/alpaca"
	"github.com/aristath/tradingdesk/internal/clients/yahoo"
	"github.com/aristath/tradingdesk/internal/database"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/gateway"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
	"github.com/aristath/tradingdesk/internal/modules/bot"
	"github.com/aristath/tradingdesk/internal/modules/decision"
	"github.com/aristath/tradingdesk/internal/modules/market_hours"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	"github.com/aristath/tradingdesk/internal/modules/settings"
	"github.com/aristath/tradingdesk/internal/modules/trading"
	"github.com/aristath/tradingdesk/internal/reliability"
	"github.com/aristath/tradingdesk/internal/scheduler"
	"github.com/aristath/tradingdesk/internal/work"
)

// Gateway is what the desk needs from either gateway implementation.
type Gateway interface {
	domain.MarketGateway
	domain.NewsSource
	MarketStatus(ctx context.Context) (*domain.MarketStatus, error)
}

// Container holds all dependencies for the application.
//
// It is created by Wire() and handed to the server, which builds its HTTP
// handlers from it.
type Container struct {
	// Databases
	DeskDB  *database.DB // ledger, trades, settings, activity
	CacheDB *database.DB // market data TTL cache

	// Repositories
	PortfolioRepo  *portfolio.PortfolioRepository
	HoldingRepo    *portfolio.HoldingRepository
	SnapshotRepo   *portfolio.SnapshotRepository
	TradeRepo      *trading.TradeRepository
	ProviderRepo   *settings.ProviderRepository
	BotConfigRepo  *settings.BotConfigRepository
	ActivityRepo   *events.ActivityRepository
	ClientDataRepo *clientdata.Repository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Clients. AlpacaClient is nil without credentials.
	YahooClient  *yahoo.Client
	AlpacaClient *alpaca.Client

	// Services
	MarketHours       *market_hours.MarketHoursService
	GatewayCache      *gateway.Cache
	Gateway           Gateway
	AIFactory         *ai.Factory
	SettingsService   *settings.Service
	AllocationService *allocation.Service
	PortfolioService  *portfolio.PortfolioService
	ReconcileService  *portfolio.ReconcileService // nil in the local ledger model
	ExecutionService  *trading.ExecutionService
	ContextBuilder    *decision.ContextBuilder
	Pipeline          *decision.Pipeline
	BackupService     *reliability.BackupService // nil when backups are disabled

	// Work processor
	WorkRegistry   *work.Registry
	WorkCompletion *work.CompletionTracker
	WorkProcessor  *work.Processor
	workRunning    bool

	// Trading
	Cycle        *bot.Cycle
	BotScheduler *bot.Scheduler

	// Maintenance
	CronScheduler *scheduler.Scheduler
}

// Reconciler returns the reconcile service as an interface, nil (untyped) in
// the local ledger model.
func (c *Container) Reconciler() bot.Reconciler {
	if c.ReconcileService == nil {
		return nil
	}
	return c.ReconcileService
}

// Databases returns the named databases for maintenance and backups.
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"desk":  c.DeskDB,
		"cache": c.CacheDB,
	}
}

// Close stops background work and closes the databases.
func (c *Container) Close() error {
	if c.CronScheduler != nil {
		c.CronScheduler.Stop()
	}
	if c.BotScheduler != nil {
		c.BotScheduler.Shutdown()
	}
	if c.workRunning {
		c.WorkProcessor.Stop()
	}

	var firstErr error
	for _, db := range []*database.DB{c.DeskDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
