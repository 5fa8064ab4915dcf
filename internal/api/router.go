package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/vacuums", func(r chi.Router) {
			r.Get("/", s.handleListVacuums)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetVacuum)
				r.Get("/state", s.handleGetState)
				r.Get("/battery", s.handleGetBattery)
				r.Get("/history", s.handleGetHistory)
				r.Post("/commands", s.handleSendCommand)
				r.Post("/refresh", s.handleRefresh)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports how many vacuums are available plus the state of
// the optional MQTT and database dependencies. Any gap is "degraded"; the
// endpoint itself always answers 200 while the process is serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	handles := s.manager.List()
	available := 0
	for _, h := range handles {
		if h.Vacuum.State().Available {
			available++
		}
	}
	degraded := available < len(handles)

	components := map[string]string{}
	if s.mqtt != nil {
		components["mqtt"] = "connected"
		if !s.mqtt.IsConnected() {
			components["mqtt"] = "disconnected"
			degraded = true
		}
	}
	if s.db != nil {
		components["database"] = "ok"
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			components["database"] = "error"
			degraded = true
		}
	}

	status := "ok"
	if degraded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"vacuums":    len(handles),
		"available":  available,
		"components": components,
	})
}
