package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/events"
	"github.com/aristath/signalscope/internal/reliability"
	"github.com/aristath/signalscope/internal/scheduler"
)

// SystemHandlers serves system monitoring and operations endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
	scheduler   *scheduler.Scheduler
	backups     *reliability.BackupService
	events      *events.Manager
}

// NewSystemHandlers creates a new system handlers instance.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	backups *reliability.BackupService,
	eventManager *events.Manager,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		scheduler:   sched,
		backups:     backups,
		events:      eventManager,
	}
}

// SystemStatusResponse represents the system status.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
	Jobs          int     `json:"jobs"`
	FailingJobs   int     `json:"failing_jobs"`

	EventsPublished map[events.EventType]uint64 `json:"events_published"`
}

// DatabaseStatsResponse represents database statistics.
type DatabaseStatsResponse struct {
	Databases   []database.Stats `json:"databases"`
	TotalSizeMB float64          `json:"total_size_mb"`
	LastChecked string           `json:"last_checked"`
	Unavailable []string         `json:"unavailable,omitempty"`
}

// DiskUsageResponse represents disk usage statistics.
type DiskUsageResponse struct {
	DataDirMB   float64 `json:"data_dir_mb"`
	AvailableMB float64 `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// JobsStatusResponse represents the scheduler state.
type JobsStatusResponse struct {
	TotalJobs int                 `json:"total_jobs"`
	Jobs      []scheduler.JobInfo `json:"jobs"`
}

// HandleSystemStatus returns process and host status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats(r.Context())

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),

		EventsPublished: h.events.Published(),
	}

	if h.scheduler != nil {
		jobs := h.scheduler.Jobs()
		response.Jobs = len(jobs)
		for _, job := range jobs {
			if job.Status != nil && job.Status.LastError != "" {
				response.FailingJobs++
			}
		}
	}
	if response.FailingJobs > 0 {
		response.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns per-database statistics.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	response := DatabaseStatsResponse{
		Databases:   []database.Stats{},
		LastChecked: time.Now().Format(time.RFC3339),
	}
	for _, name := range names {
		stats, err := h.databases[name].GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			response.Unavailable = append(response.Unavailable, name)
			continue
		}
		response.Databases = append(response.Databases, *stats)
		response.TotalSizeMB += float64(stats.SizeBytes+stats.WALSizeBytes) / 1024 / 1024
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDiskUsage returns disk usage of the data directory.
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	response := DiskUsageResponse{DataDirMB: h.getDirSize(h.dataDir)}

	usage, err := disk.UsageWithContext(r.Context(), h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	} else {
		response.AvailableMB = float64(usage.Free) / 1024 / 1024
		response.UsedPercent = usage.UsedPercent
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobsStatus returns scheduler job status.
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	response := JobsStatusResponse{Jobs: []scheduler.JobInfo{}}
	if h.scheduler != nil {
		response.Jobs = h.scheduler.Jobs()
	}
	response.TotalJobs = len(response.Jobs)

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerJob runs a registered job in the background.
// POST /api/system/jobs/{name}/run.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.scheduler == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "Scheduler not running"})
		return
	}

	job, ok := h.scheduler.Lookup(name)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "Unknown job " + name})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")
	go func() {
		if err := h.scheduler.RunNow(job); err != nil {
			if errors.Is(err, scheduler.ErrAlreadyRunning) {
				h.log.Warn().Str("job", name).Msg("Manual run skipped, job already running")
				return
			}
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "job": name})
}

// HandleListBackups lists uploaded backups, newest first.
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false, "backups": []reliability.BackupInfo{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	backups, err := h.backups.ListBackups(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "message": "Failed to list backups"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": true, "backups": backups})
}

// getDirSize calculates total size of a directory in MB.
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats samples CPU over 100ms and reads memory usage.
func (h *SystemHandlers) getSystemStats(ctx context.Context) (float64, float64) {
	cpuAvg := 0.0
	cpuPercent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response.
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
