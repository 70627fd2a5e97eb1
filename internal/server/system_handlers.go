package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/scheduler"
)

// SystemHandlers serves process and database monitoring endpoints
type SystemHandlers struct {
	log        zerolog.Logger
	db         *database.DB
	refreshJob scheduler.Job
	startedAt  time.Time
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, db *database.DB, refreshJob scheduler.Job) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("component", "system_handlers").Logger(),
		db:         db,
		refreshJob: refreshJob,
		startedAt:  time.Now(),
	}
}

// StatsResponse reports process-level resource usage
type StatsResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HandleStats serves GET /api/system/stats
func (h *SystemHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		resp.CPUPercent = cpuPercent[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = memStat.UsedPercent
		resp.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	writeJSON(w, h.log, http.StatusOK, resp)
}

// DatabaseStatsResponse reports database file size and health
type DatabaseStatsResponse struct {
	Path    string  `json:"path"`
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
}

// HandleDatabaseStats serves GET /api/system/database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	resp := DatabaseStatsResponse{Path: h.db.Path()}

	if info, err := os.Stat(h.db.Path()); err == nil {
		resp.SizeMB = float64(info.Size()) / 1024 / 1024
	}
	resp.Healthy = h.db.QuickCheck(r.Context()) == nil

	writeJSON(w, h.log, http.StatusOK, resp)
}

// HandleTriggerRefresh serves POST /api/system/refresh-prices, running
// the scheduled price refresh immediately
func (h *SystemHandlers) HandleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refreshJob == nil {
		writeJSON(w, h.log, http.StatusServiceUnavailable, map[string]string{"error": "refresh job not configured"})
		return
	}

	if err := h.refreshJob.Run(); err != nil {
		h.log.Error().Err(err).Msg("Manual price refresh failed")
		writeJSON(w, h.log, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]string{"status": "refreshed"})
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
