package robovac

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotSupported is returned when a model code has no entry in
	// the capability table.
	ErrModelNotSupported = errors.New("robovac: model not supported")

	// ErrInvalidModel is returned when a capability table entry is malformed.
	ErrInvalidModel = errors.New("robovac: invalid model definition")
)

// DecodeFieldError describes why one field could not be decoded. It never
// leaves the decoder; it is logged and the field becomes unknown.
type DecodeFieldError struct {
	Field  Field
	DPS    string
	Reason string
}

func (e *DecodeFieldError) Error() string {
	return fmt.Sprintf("decode %s (dps %s): %s", e.Field, e.DPS, e.Reason)
}
