package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-robovac/internal/command"
	"github.com/nerrad567/gray-logic-robovac/internal/device"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeUnsupportedCommand = "unsupported_command"
	ErrCodeDeviceUnavailable  = "device_unavailable"
	ErrCodeDeviceTimeout      = "device_timeout"
	ErrCodeDeviceError        = "device_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDeviceError maps manager, command and transport errors to responses.
func writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "vacuum not found")
	case errors.Is(err, device.ErrDeviceUnavailable):
		writeError(w, http.StatusConflict, ErrCodeDeviceUnavailable, err.Error())
	case errors.Is(err, command.ErrUnsupportedCommand):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnsupportedCommand, err.Error())
	case errors.Is(err, command.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case transport.IsTimeout(err):
		writeError(w, http.StatusGatewayTimeout, ErrCodeDeviceTimeout, err.Error())
	case errors.Is(err, transport.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceError, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
