package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/ai"
	"github.com/aristath/tradingdesk/internal/clients/alpaca"
	"github.com/aristath/tradingdesk/internal/clients/yahoo"
	"github.com/aristath/tradingdesk/internal/config"
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
)

// InitializeServices creates the gateway, the trading services and the bot.
// The work processor must already exist; the bot registers its cycle there.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ==========================================
	// Events
	// ==========================================
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, container.ActivityRepo, log)

	// ==========================================
	// Seed state
	// ==========================================
	if err := container.PortfolioRepo.Ensure(ctx, cfg.InitialBalance); err != nil {
		return fmt.Errorf("failed to ensure portfolio: %w", err)
	}
	if err := container.BotConfigRepo.Ensure(ctx); err != nil {
		return fmt.Errorf("failed to ensure bot config: %w", err)
	}
	if err := seedProviders(ctx, container.ProviderRepo, cfg); err != nil {
		return err
	}

	// ==========================================
	// Market data and execution gateway
	// ==========================================
	calendar, err := market_hours.NewMarketHoursService()
	if err != nil {
		return fmt.Errorf("failed to create market hours service: %w", err)
	}
	container.MarketHours = calendar
	container.GatewayCache = gateway.NewCache(container.ClientDataRepo, log)
	container.YahooClient = yahoo.NewClient(log)
	if cfg.Alpaca.Configured() {
		container.AlpacaClient = alpaca.NewClient(cfg.Alpaca, log)
	}

	model := trading.ModelLocalLedger
	switch cfg.ExecutionMode {
	case config.ExecutionBroker:
		model = trading.ModelBroker
		container.Gateway = gateway.NewBrokerGateway(container.AlpacaClient, container.GatewayCache, log)
	default:
		var news domain.NewsSource
		if container.AlpacaClient != nil {
			news = container.AlpacaClient
		}
		container.Gateway = gateway.NewPaperGateway(
			container.YahooClient,
			calendar,
			container.PortfolioRepo,
			container.HoldingRepo,
			news,
			container.GatewayCache,
			log,
		)
	}
	log.Info().Str("execution_mode", string(cfg.ExecutionMode)).Msg("Gateway selected")

	// ==========================================
	// Ledger services
	// ==========================================
	container.SettingsService = settings.NewService(container.ProviderRepo, container.BotConfigRepo, container.EventManager, log)
	container.AllocationService = allocation.NewService(container.HoldingRepo)
	container.PortfolioService = portfolio.NewPortfolioService(
		container.DeskDB.Conn(),
		container.PortfolioRepo,
		container.HoldingRepo,
		container.SnapshotRepo,
		container.ProviderRepo,
		container.Gateway,
		model == trading.ModelLocalLedger,
		log,
	)
	if model == trading.ModelBroker {
		container.ReconcileService = portfolio.NewReconcileService(
			container.DeskDB.Conn(),
			container.Gateway,
			container.PortfolioRepo,
			container.HoldingRepo,
			container.TradeRepo,
			container.ProviderRepo,
			log,
		)
	}
	container.ExecutionService = trading.NewExecutionService(
		container.DeskDB.Conn(),
		model,
		container.Gateway,
		container.PortfolioRepo,
		container.HoldingRepo,
		container.TradeRepo,
		log,
	)

	// ==========================================
	// Decision
	// ==========================================
	container.AIFactory = ai.NewFactory(cfg.AI, log)
	container.ContextBuilder = decision.NewContextBuilder(container.Gateway, container.Gateway, log)
	container.Pipeline = decision.NewPipeline(log)

	// ==========================================
	// Trading bot
	// ==========================================
	container.Cycle = bot.NewCycle(bot.CycleDeps{
		Providers:  container.ProviderRepo,
		Config:     container.BotConfigRepo,
		Ledger:     container.PortfolioRepo,
		Allocation: container.AllocationService,
		Reconciler: container.Reconciler(),
		Generators: container.AIFactory,
		Contexts:   container.ContextBuilder,
		Decider:    container.Pipeline,
		Executor:   container.ExecutionService,
		Events:     container.EventManager,
	}, bot.CycleOptions{}, log)

	container.BotScheduler = bot.NewScheduler(bot.SchedulerDeps{
		Config:    container.BotConfigRepo,
		Providers: container.ProviderRepo,
		Market:    container.Gateway,
		Day:       calendar,
		Trades:    container.TradeRepo,
		Cycle:     container.Cycle,
		Registry:  container.WorkRegistry,
		Processor: container.WorkProcessor,
		Events:    container.EventManager,
	}, bot.Options{}, log)

	// ==========================================
	// Backups
	// ==========================================
	if cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(ctx, cfg.Backup)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(store, container.Databases(), cfg.DataDir, cfg.Backup.Prefix, log)
	}

	log.Info().Msg("Services initialized")
	return nil
}

// seedProviders stores the roster on first start. Without a roster file every
// provider is stored, active when its API key is present in the environment.
func seedProviders(ctx context.Context, repo *settings.ProviderRepository, cfg *config.Config) error {
	var roster []domain.ProviderConfig
	if cfg.ProvidersFile != "" {
		loaded, err := config.LoadProviderRoster(cfg.ProvidersFile)
		if err != nil {
			return err
		}
		roster = loaded
	} else {
		roster = defaultRoster(cfg)
	}

	if _, err := repo.Seed(ctx, roster); err != nil {
		return fmt.Errorf("failed to seed providers: %w", err)
	}
	return nil
}

func defaultRoster(cfg *config.Config) []domain.ProviderConfig {
	roster := make([]domain.ProviderConfig, 0, len(domain.AllProviders))
	for _, name := range domain.AllProviders {
		roster = append(roster, domain.ProviderConfig{
			Name:              name,
			Active:            cfg.APIKeyFor(name) != "",
			AllocationCeiling: domain.DefaultAllocationCeiling,
			Persona:           domain.PersonaBalanced,
		})
	}
	return roster
}
