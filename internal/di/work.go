package di

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/work"
)

// InitializeWork creates the work processor. Market timing is checked lazily
// against the gateway, which InitializeServices sets afterwards.
func InitializeWork(container *Container, log zerolog.Logger) {
	container.WorkRegistry = work.NewRegistry()
	container.WorkCompletion = work.NewCompletionTracker()
	container.WorkProcessor = work.NewProcessor(
		container.WorkRegistry,
		container.WorkCompletion,
		work.NewMarketTimingChecker(&gatewayMarket{container: container}),
		log,
	)
}

// StartWork runs the processor loop in the background.
func StartWork(container *Container, log zerolog.Logger) {
	container.workRunning = true
	go container.WorkProcessor.Run()
	log.Info().Int("work_types", container.WorkRegistry.Count()).Msg("Work processor started")
}

// gatewayMarket defers to whichever gateway the container holds.
type gatewayMarket struct {
	container *Container
}

func (m *gatewayMarket) IsMarketOpen(ctx context.Context) (bool, error) {
	if m.container.Gateway == nil {
		return false, errors.New("gateway not initialized")
	}
	return m.container.Gateway.IsMarketOpen(ctx)
}
