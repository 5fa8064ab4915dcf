package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-robovac/internal/command"
	"github.com/nerrad567/gray-logic-robovac/internal/device"
	"github.com/nerrad567/gray-logic-robovac/internal/entity"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// maxQueryParamLen limits path and query parameter length.
const maxQueryParamLen = 100

// vacuumResponse is the detail view of one vacuum.
type vacuumResponse struct {
	entity.VacuumState
	Parked            bool              `json:"parked"`
	Fault             string            `json:"fault,omitempty"`
	SupportedCommands []robovac.Command `json:"supported_commands"`
}

func describe(h *device.Handle) vacuumResponse {
	resp := vacuumResponse{
		VacuumState:       h.Vacuum.State(),
		Parked:            h.Parked(),
		Fault:             h.Fault,
		SupportedCommands: []robovac.Command{},
	}
	if h.Dispatcher != nil {
		resp.SupportedCommands = h.Dispatcher.SupportedCommands()
	}
	return resp
}

// handleListVacuums returns the entity state of every vacuum.
func (s *Server) handleListVacuums(w http.ResponseWriter, _ *http.Request) {
	handles := s.manager.List()
	vacuums := make([]entity.VacuumState, 0, len(handles))
	for _, h := range handles {
		vacuums = append(vacuums, h.Vacuum.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{"vacuums": vacuums, "count": len(vacuums)})
}

// lookup resolves the {id} path parameter, writing the error response
// itself when it fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*device.Handle, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid vacuum ID")
		return nil, false
	}
	h, err := s.manager.Get(id)
	if err != nil {
		writeDeviceError(w, err)
		return nil, false
	}
	return h, true
}

func (s *Server) handleGetVacuum(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(h))
}

// handleGetState returns the raw cache entry, including unknown fields.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := map[string]any{
		"device_id": h.ID,
		"state":     h.Cache.Get(),
	}
	if h.Engine != nil {
		resp["availability"] = h.Engine.Availability()
		resp["poller"] = h.Engine.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBattery(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Battery.State())
}

// handleGetHistory returns recorded state changes, newest first.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
//   - since: RFC3339 timestamp; only newer entries are returned
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "invalid since timestamp")
			return
		}
	}

	entries, err := s.manager.History(r.Context(), h.ID, limit)
	if err != nil {
		s.logger.Warn("history query failed", "device_id", h.ID, "error", err)
		writeInternalError(w, "failed to load history")
		return
	}
	if !since.IsZero() {
		filtered := entries[:0]
		for _, e := range entries {
			if e.RecordedAt.After(since) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": h.ID,
		"history":   entries,
		"count":     len(entries),
	})
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return n, nil
}

// handleSendCommand dispatches an intent and returns 202 once the device
// has accepted it.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var in command.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	if err := s.manager.SendCommand(r.Context(), h.ID, in); err != nil {
		s.logger.Debug("command rejected", "device_id", h.ID, "command", in.Command, "error", err)
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": h.ID,
		"command":   in.Command,
		"status":    "accepted",
	})
}

// handleRefresh requests an immediate poll without waiting for it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := s.manager.Refresh(h.ID); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"device_id": h.ID, "status": "refresh_requested"})
}
