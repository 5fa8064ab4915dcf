package command

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

var (
	// ErrUnsupportedCommand matches every UnsupportedCommandError.
	ErrUnsupportedCommand = errors.New("command: unsupported")

	// ErrInvalidArgument is returned for intents with bad arguments, such
	// as an unknown fan speed.
	ErrInvalidArgument = errors.New("command: invalid argument")
)

// UnsupportedCommandError is returned when the model has no mapping for
// the command. Nothing is sent to the device.
type UnsupportedCommandError struct {
	Command robovac.Command
	Model   string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("command: %s not supported by model %s", e.Command, e.Model)
}

// Is makes the error match ErrUnsupportedCommand.
func (e *UnsupportedCommandError) Is(target error) bool {
	return target == ErrUnsupportedCommand
}

// CommandError is returned when the transport rejects or times out on a
// supported command.
type CommandError struct {
	Command  robovac.Command
	DeviceID string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command: %s on %s failed: %v", e.Command, e.DeviceID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
