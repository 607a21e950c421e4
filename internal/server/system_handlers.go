package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/finmetrics/internal/config"
	"github.com/aristath/finmetrics/internal/di"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process and host status
type SystemHandlers struct {
	log         zerolog.Logger
	cfg         *config.Config
	container   *di.Container
	startupTime time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, cfg *config.Config, container *di.Container) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		cfg:         cfg,
		container:   container,
		startupTime: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status           string      `json:"status"`
	UptimeHours      float64     `json:"uptime_hours"`
	MarketDataSource string      `json:"market_data_source"`
	BenchmarkSymbol  string      `json:"benchmark_symbol"`
	CPUPercent       float64     `json:"cpu_percent"`
	MemoryPercent    float64     `json:"memory_percent"`
	Goroutines       int         `json:"goroutines"`
	Cache            CacheStatus `json:"cache"`
	Jobs             []string    `json:"jobs"`
}

// CacheStatus describes the price cache
type CacheStatus struct {
	Enabled bool  `json:"enabled"`
	Entries int64 `json:"entries"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:           "healthy",
		UptimeHours:      time.Since(h.startupTime).Hours(),
		MarketDataSource: h.cfg.MarketDataSource,
		BenchmarkSymbol:  h.cfg.BenchmarkSymbol,
		CPUPercent:       cpuPercent,
		MemoryPercent:    memPercent,
		Goroutines:       runtime.NumGoroutine(),
		Jobs:             []string{},
	}

	if h.container.PriceCache != nil {
		resp.Cache.Enabled = true
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		entries, err := h.container.PriceCache.Count(ctx)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count price cache entries")
			resp.Status = "degraded"
		}
		resp.Cache.Entries = entries
	}
	if h.container.Scheduler != nil {
		resp.Jobs = h.container.Scheduler.Jobs()
	}

	h.writeJSON(w, map[string]interface{}{
		"data": resp,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the endpoint stays responsive
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
