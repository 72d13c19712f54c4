package reactor

import "errors"

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrLoopAlreadyRunning = errors.New("reactor: loop is already running")

	// ErrLoopStopped is returned when Run is called on a loop that has
	// already stopped. A stopped loop never dispatches again.
	ErrLoopStopped = errors.New("reactor: loop has stopped")

	// ErrTimerCapacity is returned by CreateTimer when the maximum number of
	// concurrently pending timers has been reached.
	ErrTimerCapacity = errors.New("reactor: out of timer slots")

	// ErrDescriptorCapacity is returned by WatchFD when the maximum number of
	// watched descriptors has been reached.
	ErrDescriptorCapacity = errors.New("reactor: out of fd slots")

	// ErrInvalidDescriptor is returned by WatchFD for non-positive
	// descriptors. Descriptor value 0 is the tombstone marker and must never
	// be a real watched value.
	ErrInvalidDescriptor = errors.New("reactor: invalid descriptor")

	// ErrNilCallback is returned by CreateTimer when no callback is supplied.
	ErrNilCallback = errors.New("reactor: nil callback")
)
