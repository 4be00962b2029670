package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotJob records the account value for the history chart
type SnapshotJob struct {
	service *PortfolioService
	log     zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(service *PortfolioService, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		service: service,
		log:     log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "portfolio_snapshot"
}

// Run executes the job
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snap, err := j.service.TakeSnapshot(ctx)
	if err != nil {
		return err
	}
	j.log.Debug().Float64("total_value", snap.TotalValue).Msg("Portfolio snapshot recorded")
	return nil
}
