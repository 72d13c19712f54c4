package reactor

import "strings"

// Events represents the type of I/O events to monitor, or the events
// observed ready on a dispatched descriptor.
type Events uint16

const (
	// EventRead indicates the descriptor is ready for reading.
	EventRead Events = 1 << iota
	// EventWrite indicates the descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	// Delivered on dispatch regardless of the interest mask.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	// Delivered on dispatch regardless of the interest mask.
	EventHangup
)

// String returns a human-readable representation of the event mask.
func (e Events) String() string {
	if e == 0 {
		return "None"
	}
	var parts []string
	if e&EventRead != 0 {
		parts = append(parts, "Read")
	}
	if e&EventWrite != 0 {
		parts = append(parts, "Write")
	}
	if e&EventError != 0 {
		parts = append(parts, "Error")
	}
	if e&EventHangup != 0 {
		parts = append(parts, "Hangup")
	}
	return strings.Join(parts, "|")
}
