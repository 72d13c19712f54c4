package reactor

// LoopState represents the lifecycle state of the loop.
//
// State machine:
//
//	StateIdle → StateRunning      [Run]
//	StateRunning → StateStopped   [exit request, ctx cancellation, or
//	                               nothing left to wait for]
//
// StateStopped is terminal; no further callbacks fire after entering it.
type LoopState uint32

const (
	// StateIdle indicates the loop has been created but not started.
	StateIdle LoopState = iota
	// StateRunning indicates the loop is dispatching events.
	StateRunning
	// StateStopped indicates the loop has stopped. Terminal.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
