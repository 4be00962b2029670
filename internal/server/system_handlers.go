package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tradingdesk/internal/database"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/bot"
	"github.com/aristath/tradingdesk/internal/scheduler"
	"github.com/aristath/tradingdesk/internal/work"
)

// MarketStatusSource reports the current market session.
type MarketStatusSource interface {
	MarketStatus(ctx context.Context) (*domain.MarketStatus, error)
}

// BotStatusSource reports the trading bot state.
type BotStatusSource interface {
	Status() bot.Status
}

// JobRunner lists and runs maintenance jobs.
type JobRunner interface {
	Status() []scheduler.JobStatus
	RunNow(job scheduler.Job) error
}

// WorkQueue reports the work processor state.
type WorkQueue interface {
	Busy() bool
	QueueLength() int
}

// WorkCatalog lists registered background work types.
type WorkCatalog interface {
	Types() []work.TypeInfo
}

// SystemDeps are the sources the system handlers report on
type SystemDeps struct {
	DataDir       string
	ExecutionMode string
	Databases     map[string]*database.DB
	Jobs          map[string]scheduler.Job
	Runner        JobRunner
	Work          WorkQueue
	WorkTypes     WorkCatalog
	Completion    *work.CompletionTracker
	Market        MarketStatusSource
	Bot           BotStatusSource
}

// SystemHandlers serves host, database and job status
type SystemHandlers struct {
	deps      SystemDeps
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system handlers
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		deps:      deps,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}/run", h.HandleTriggerJob)
	})
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string               `json:"status"`
	ExecutionMode string               `json:"execution_mode"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	CPUPercent    float64              `json:"cpu_percent"`
	MemoryPercent float64              `json:"memory_percent"`
	Goroutines    int                  `json:"goroutines"`
	Market        *domain.MarketStatus `json:"market,omitempty"`
	Bot           *bot.Status          `json:"bot,omitempty"`
	WorkBusy      bool                 `json:"work_busy"`
	WorkQueued    int                  `json:"work_queued"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	SizeMB  float64         `json:"size_mb"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	BackupsMB float64 `json:"backups_mb"`
}

// JobsStatusResponse lists maintenance jobs and recent background work
type JobsStatusResponse struct {
	Jobs      []scheduler.JobStatus      `json:"jobs"`
	WorkTypes []work.TypeInfo            `json:"work_types,omitempty"`
	Work      map[string]work.Completion `json:"work,omitempty"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		ExecutionMode: h.deps.ExecutionMode,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
	}

	if h.deps.Market != nil {
		ms, err := h.deps.Market.MarketStatus(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Market status unavailable")
			resp.Status = "degraded"
		} else {
			resp.Market = ms
		}
	}
	if h.deps.Bot != nil {
		st := h.deps.Bot.Status()
		resp.Bot = &st
	}
	if h.deps.Work != nil {
		resp.WorkBusy = h.deps.Work.Busy()
		resp.WorkQueued = h.deps.Work.QueueLength()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.deps.Databases))
	for name := range h.deps.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := DatabaseStatsResponse{Databases: []DBInfo{}}
	for _, name := range names {
		db := h.deps.Databases[name]
		info := DBInfo{Name: name, Path: db.Path(), Healthy: true}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		if err := db.HealthCheck(ctx); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		cancel()

		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
		} else {
			info.Stats = stats
			info.SizeMB = float64(stats.SizeBytes+stats.WALSizeBytes) / 1024 / 1024
		}
		resp.TotalSizeMB += info.SizeMB
		resp.Databases = append(resp.Databases, info)
	}
	resp.LastChecked = time.Now().Format(time.RFC3339)

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, DiskUsageResponse{
		DataDirMB: h.getDirSize(h.deps.DataDir),
		BackupsMB: h.getDirSize(filepath.Join(h.deps.DataDir, "backups")),
	})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	resp := JobsStatusResponse{Jobs: []scheduler.JobStatus{}}
	if h.deps.Runner != nil {
		resp.Jobs = h.deps.Runner.Status()
		sort.Slice(resp.Jobs, func(i, j int) bool { return resp.Jobs[i].Name < resp.Jobs[j].Name })
	}
	if h.deps.WorkTypes != nil {
		resp.WorkTypes = h.deps.WorkTypes.Types()
	}
	if h.deps.Completion != nil {
		resp.Work = h.deps.Completion.Snapshot()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleTriggerJob handles POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.deps.Jobs[name]
	if !ok || job == nil || h.deps.Runner == nil {
		http.Error(w, "Unknown job: "+name, http.StatusNotFound)
		return
	}

	if err := h.deps.Runner.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":    name,
		"status": "completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample is
// short so the endpoint stays fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64
	_ = filepath.Walk(dirPath, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	return float64(totalSize) / 1024 / 1024
}

// writeJSON writes a JSON response in the data/metadata envelope
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
