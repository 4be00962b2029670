package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/clientdata"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	"github.com/aristath/tradingdesk/internal/modules/settings"
	"github.com/aristath/tradingdesk/internal/modules/trading"
)

// InitializeRepositories creates all repositories
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	desk := container.DeskDB.Conn()

	container.PortfolioRepo = portfolio.NewPortfolioRepository(desk, log)
	container.HoldingRepo = portfolio.NewHoldingRepository(desk, log)
	container.SnapshotRepo = portfolio.NewSnapshotRepository(desk, log)
	container.TradeRepo = trading.NewTradeRepository(desk, log)
	container.ProviderRepo = settings.NewProviderRepository(desk, log)
	container.BotConfigRepo = settings.NewBotConfigRepository(desk, log)
	container.ActivityRepo = events.NewActivityRepository(desk, log)

	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	log.Info().Msg("Repositories initialized")
	return nil
}
