package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. desk.db - account, holdings, trades, settings and activity
	deskDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("desk"),
		Profile: database.ProfileLedger, // Money lives here
		Name:    "desk",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize desk database: %w", err)
	}
	container.DeskDB = deskDB

	// 2. cache.db - quotes, bars and news with TTLs
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("cache"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		deskDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{deskDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			deskDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema for %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
