package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultActivityRetention keeps three months of activity.
const DefaultActivityRetention = 90 * 24 * time.Hour

// RetentionJob prunes the activity log.
type RetentionJob struct {
	store  *ActivityRepository
	maxAge time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewRetentionJob creates a job deleting activities older than maxAge.
func NewRetentionJob(store *ActivityRepository, maxAge time.Duration, log zerolog.Logger) *RetentionJob {
	if maxAge <= 0 {
		maxAge = DefaultActivityRetention
	}
	return &RetentionJob{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		log:    log.With().Str("job", "activity_retention").Logger(),
	}
}

// Run executes the job
func (j *RetentionJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.store.DeleteOlderThan(ctx, j.now().Add(-j.maxAge))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Pruned activity log")
	}
	return nil
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "activity_retention"
}
