// Package logging provides structured logging for the robovac service.
//
// It wraps log/slog so every package logs the same way: JSON in production,
// text when a human is reading, level filtering, and default fields
// (service, version) on every record.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Field-mapping diagnostics from the DPS decoder are emitted at debug level,
// so set level: debug when bringing up a new firmware variant.
//
// Never log device access tokens or broker passwords.
package logging
