package reliability

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/tradingdesk/internal/database"
	testutil "github.com/aristath/tradingdesk/internal/testing"
)

func TestDailyMaintenanceJob(t *testing.T) {
	dbs := map[string]*database.DB{
		"desk":  testutil.NewTestDB(t, "desk"),
		"cache": testutil.NewTestDB(t, "cache"),
	}

	job := NewDailyMaintenanceJob(dbs, t.TempDir(), zerolog.Nop())
	assert.Equal(t, "daily_maintenance", job.Name())

	job.SetDiskUsageFunc(func(string) (uint64, error) { return 50 * 1024 * 1024 * 1024, nil })
	assert.NoError(t, job.Run())

	job.SetDiskUsageFunc(func(string) (uint64, error) { return 100 * 1024 * 1024, nil })
	assert.Error(t, job.Run())

	job.SetDiskUsageFunc(func(string) (uint64, error) { return 0, errors.New("statfs failed") })
	assert.Error(t, job.Run())
}

func TestWALCheckpointJob(t *testing.T) {
	dbs := map[string]*database.DB{"desk": testutil.NewTestDB(t, "desk")}
	job := NewWALCheckpointJob(dbs, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())
}
