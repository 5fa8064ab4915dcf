package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/availability"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Vacuums       VacuumMetrics    `json:"vacuums"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// VacuumMetrics aggregates poller counters across vacuums.
type VacuumMetrics struct {
	Total          int            `json:"total"`
	Parked         int            `json:"parked"`
	ByAvailability map[string]int `json:"by_availability"`
	Polls          uint64         `json:"polls"`
	PollFailures   uint64         `json:"poll_failures"`
	SkippedTicks   uint64         `json:"skipped_ticks"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Vacuums:   VacuumMetrics{ByAvailability: make(map[string]int)},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	for _, h := range s.manager.List() {
		metrics.Vacuums.Total++
		if h.Engine == nil {
			metrics.Vacuums.Parked++
			metrics.Vacuums.ByAvailability[availability.Unavailable.String()]++
			continue
		}
		metrics.Vacuums.ByAvailability[h.Engine.Availability().State.String()]++
		st := h.Engine.Stats()
		metrics.Vacuums.Polls += st.Cycles
		metrics.Vacuums.PollFailures += st.Failures
		metrics.Vacuums.SkippedTicks += st.SkippedTicks
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
