package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/clientdata"
	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
	"github.com/aristath/tradingdesk/internal/reliability"
	"github.com/aristath/tradingdesk/internal/scheduler"
)

// JobInstances holds the maintenance jobs for manual triggering via the API
type JobInstances struct {
	CacheCleanup      scheduler.Job
	WALCheckpoint     scheduler.Job
	DailyMaintenance  scheduler.Job
	PortfolioSnapshot scheduler.Job
	ActivityRetention scheduler.Job
	Backup            scheduler.Job // nil when backups are disabled
}

// All returns the registered jobs keyed by name
func (j *JobInstances) All() map[string]scheduler.Job {
	out := make(map[string]scheduler.Job)
	for _, job := range []scheduler.Job{
		j.CacheCleanup,
		j.WALCheckpoint,
		j.DailyMaintenance,
		j.PortfolioSnapshot,
		j.ActivityRetention,
		j.Backup,
	} {
		if job != nil {
			out[job.Name()] = job
		}
	}
	return out
}

// Job schedules (cron with seconds)
const (
	scheduleCacheCleanup      = "0 0 * * * *"    // hourly
	scheduleSnapshot          = "0 */15 * * * *" // every 15 minutes
	scheduleWALCheckpoint     = "0 30 3 * * *"
	scheduleDailyMaintenance  = "0 0 4 * * *"
	scheduleActivityRetention = "0 15 4 * * *"
	scheduleBackup            = "0 0 2 * * *"
)

// RegisterJobs registers the maintenance jobs with the cron scheduler and
// starts it.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.CronScheduler = scheduler.New(log)
	dbs := container.Databases()

	instances := &JobInstances{
		CacheCleanup:      clientdata.NewCleanupJob(container.ClientDataRepo, log),
		WALCheckpoint:     reliability.NewWALCheckpointJob(dbs, log),
		DailyMaintenance:  reliability.NewDailyMaintenanceJob(dbs, cfg.DataDir, log),
		PortfolioSnapshot: portfolio.NewSnapshotJob(container.PortfolioService, log),
		ActivityRetention: events.NewRetentionJob(container.ActivityRepo, events.DefaultActivityRetention, log),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{scheduleCacheCleanup, instances.CacheCleanup},
		{scheduleSnapshot, instances.PortfolioSnapshot},
		{scheduleWALCheckpoint, instances.WALCheckpoint},
		{scheduleDailyMaintenance, instances.DailyMaintenance},
		{scheduleActivityRetention, instances.ActivityRetention},
		{scheduleBackup, instances.Backup},
	}
	registered := 0
	for _, s := range schedules {
		if s.job == nil {
			continue
		}
		if err := container.CronScheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
		registered++
	}

	container.CronScheduler.Start()
	log.Info().Int("jobs", registered).Msg("Maintenance jobs registered")

	return instances, nil
}
