package domain

import "sync/atomic"

// State is the processing lifecycle of a solver engine.
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stopped reports whether no worker can be alive in this state.
func (s State) Stopped() bool {
	return s == StateIdle || s == StateStopped
}

// StateMachine guards the lifecycle with a single atomic word. Every
// transition is a compare-and-swap along an edge accepted by
// ValidTransition, so concurrent callers observe exactly one winner.
type StateMachine struct {
	v atomic.Int32
}

func (m *StateMachine) Load() State {
	return State(m.v.Load())
}

func (m *StateMachine) Transition(from, to State) bool {
	if !ValidTransition(from, to) {
		return false
	}
	return m.v.CompareAndSwap(int32(from), int32(to))
}

// ValidTransition lists the edges of the lifecycle graph.
func ValidTransition(from, to State) bool {
	switch {
	case from == StateIdle && to == StateProcessing,
		from == StateIdle && to == StateStopped,
		from == StateProcessing && to == StateStopping,
		from == StateStopping && to == StateStopped,
		from == StateStopped && to == StateIdle:
		return true
	default:
		return false
	}
}
