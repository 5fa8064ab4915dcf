// Package availability decides whether a polled vacuum is reachable.
//
// A vacuum that sleeps may ignore several polls in a row. The machine gives
// it a warm-up budget at startup and a failure threshold afterwards, so a
// single missed poll never flips it offline, while recovery on the first
// good poll is immediate.
package availability

import (
	"fmt"
	"sync"
)

// State is an availability state.
type State int

const (
	// WarmingUp is the initial state. Failures spend the warm-up budget
	// and never make the device unreachable.
	WarmingUp State = iota

	// Available means the last poll succeeded or failures are below the
	// threshold.
	Available

	// Degraded means warm-up ran out without a single success. The device
	// is still reported reachable.
	Degraded

	// Unavailable means failures reached the threshold.
	Unavailable
)

func (s State) String() string {
	switch s {
	case WarmingUp:
		return "WARMING_UP"
	case Available:
		return "AVAILABLE"
	case Degraded:
		return "DEGRADED"
	case Unavailable:
		return "UNAVAILABLE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the tuning for one device.
type Config struct {
	// WarmupPolls is how many failed polls are tolerated before the first
	// success. Default 5.
	WarmupPolls int

	// FailureThreshold is how many consecutive failures after warm-up make
	// the device unavailable. Default 3.
	FailureThreshold int
}

// Defaults.
const (
	DefaultWarmupPolls      = 5
	DefaultFailureThreshold = 3
)

// Status is a point-in-time copy of the machine.
type Status struct {
	State                State `json:"state"`
	ConsecutiveFailures  int   `json:"consecutive_failures"`
	ConsecutiveSuccesses int   `json:"consecutive_successes"`
	WarmupPollsRemaining int   `json:"warmup_polls_remaining"`
	Reachable            bool  `json:"reachable"`
}

// Machine tracks poll outcomes for one device. It is safe for concurrent
// use; transitions happen only through Success and Failure.
type Machine struct {
	mu        sync.Mutex
	threshold int
	status    Status
}

// New creates a machine in WarmingUp. Non-positive values fall back to
// the defaults; a warm-up budget of zero is honoured only when set
// explicitly through NewWithoutWarmup.
func New(cfg Config) *Machine {
	if cfg.WarmupPolls <= 0 {
		cfg.WarmupPolls = DefaultWarmupPolls
	}
	return newMachine(cfg)
}

// NewWithoutWarmup creates a machine whose first failure already counts as
// exhausting warm-up.
func NewWithoutWarmup(threshold int) *Machine {
	return newMachine(Config{WarmupPolls: 0, FailureThreshold: threshold})
}

func newMachine(cfg Config) *Machine {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	return &Machine{
		threshold: cfg.FailureThreshold,
		status: Status{
			State:                WarmingUp,
			WarmupPollsRemaining: cfg.WarmupPolls,
			Reachable:            true,
		},
	}
}

// Success records a good poll. Any state moves to Available.
func (m *Machine) Success() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.ConsecutiveFailures = 0
	m.status.ConsecutiveSuccesses++
	m.status.State = Available
	m.status.Reachable = true
	return m.status
}

// Failure records a failed poll.
func (m *Machine) Failure() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.ConsecutiveSuccesses = 0

	switch m.status.State {
	case WarmingUp:
		if m.status.WarmupPollsRemaining > 0 {
			m.status.WarmupPollsRemaining--
		}
		if m.status.WarmupPollsRemaining == 0 {
			m.status.State = Degraded
		}
	case Available, Degraded:
		m.status.ConsecutiveFailures++
		if m.status.ConsecutiveFailures >= m.threshold {
			m.status.State = Unavailable
		}
	case Unavailable:
		m.status.ConsecutiveFailures++
	}

	m.status.Reachable = m.status.State != Unavailable
	return m.status
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Reachable reports whether the device should be shown as reachable.
func (m *Machine) Reachable() bool {
	return m.Status().Reachable
}
