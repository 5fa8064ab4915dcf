package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("bridge: missing dependency")

	// ErrInvalidParameters is returned when command parameters have the
	// wrong shape.
	ErrInvalidParameters = errors.New("bridge: invalid parameters")
)

func invalidParam(name string, v any) error {
	return fmt.Errorf("%w: %s has unexpected value %v", ErrInvalidParameters, name, v)
}
