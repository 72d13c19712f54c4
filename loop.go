package reactor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// TimerID identifies a scheduled timer. IDs are positive, assigned
// monotonically, and never reused for the lifetime of the loop.
type TimerID int64

// TimerFunc is the callback handle associated with a timer. It is invoked
// with no arguments when the timer is due. A returned error is reported to
// the loop's logger and does not abort the loop.
type TimerFunc func() error

// ReadinessFunc is invoked for every watched descriptor with a non-empty
// pending mask after a wait reports readiness. A returned error is reported
// to the loop's logger and does not abort the loop.
type ReadinessFunc func(fd int, events Events) error

// Loop is a single-threaded reactor multiplexing timers and descriptor
// readiness into callback dispatch.
//
// The registries are owned exclusively by the loop and are mutated only
// synchronously, by the loop goroutine; no locks are needed. The one
// exception is the exit flag, which may be raised from any goroutine.
type Loop struct {
	// Prevent copying
	_ [0]func()

	clock  Clock
	logger *logiface.Logger[logiface.Event]

	timers *timerRegistry
	polls  *pollSet

	// handles is the association store mapping timer ids to their callback
	// handles: populated on create, consulted on expiry, cleared on
	// deletion. The registry drives its lifecycle.
	handles map[TimerID]TimerFunc

	readiness ReadinessFunc

	exitRequested atomic.Bool
	state         atomic.Uint32 // LoopState

	delayFloor  int64
	minWait     int64
	maxWait     int64
	maxExpiries int
}

// New creates a new reactor loop.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		clock:       cfg.clock,
		logger:      cfg.logger,
		timers:      newTimerRegistry(cfg.maxTimers),
		polls:       newPollSet(cfg.maxFDs),
		handles:     make(map[TimerID]TimerFunc),
		delayFloor:  cfg.delayFloor,
		minWait:     cfg.minWait,
		maxWait:     cfg.maxWait,
		maxExpiries: cfg.maxExpiries,
	}, nil
}

// CreateTimer schedules cb to fire after delayMs milliseconds. If oneshot,
// the timer fires once and is removed; otherwise it is re-scheduled after
// each firing using the same delay. Delays below the configured floor are
// silently raised to it. Returns the new timer's id, or ErrTimerCapacity if
// the pending-timer bound has been reached.
func (l *Loop) CreateTimer(cb TimerFunc, delayMs int64, oneshot bool) (TimerID, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}
	if delayMs < l.delayFloor {
		delayMs = l.delayFloor
	}
	id, err := l.timers.create(l.clock.Now(), delayMs, oneshot)
	if err != nil {
		return 0, err
	}
	l.handles[id] = cb
	return id, nil
}

// DeleteTimer cancels the timer with the given id, reporting whether it was
// found. Cancelling an unknown id is not an error. Cancelling the timer
// whose callback is currently executing marks it for removal once the
// callback returns.
func (l *Loop) DeleteTimer(id TimerID) bool {
	found, deferred := l.timers.cancel(id)
	if found && !deferred {
		delete(l.handles, id)
	}
	return found
}

// WatchFD registers fd for readiness notification with the given interest
// mask, or updates the mask if fd is already watched. A zero mask stops
// watching fd. Removal from inside a readiness callback is safe: the entry
// is tombstoned and remaining entries keep their positions until the
// current dispatch pass completes.
func (l *Loop) WatchFD(fd int, events Events) error {
	return l.polls.watch(fd, events)
}

// HandleReadiness installs the dispatcher invoked for ready descriptors.
// It must be installed before Run; descriptors whose readiness fires with
// no handler installed are silently cleared.
func (l *Loop) HandleReadiness(fn ReadinessFunc) {
	l.readiness = fn
}

// RequestExit raises the global stop flag. Idempotent, and the only loop
// operation safe to call from any goroutine. The flag is consulted at the
// top of every iteration and immediately after timer expiry; a request
// raised from a timer callback halts further expiry in the same cycle and
// stops the loop before any I/O wait. Requests raised off the loop
// goroutine take effect at the next wakeup, bounded by the maximum wait.
func (l *Loop) RequestExit() {
	l.exitRequested.Store(true)
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

// Run drives the loop until an exit request, context cancellation, or until
// nothing remains to wait for (no pending timers and no watched
// descriptors). It returns ctx.Err() if the context was cancelled, nil
// otherwise. Run may be called at most once; the stopped state is terminal.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(uint32(StateIdle), uint32(StateRunning)) {
		if l.State() == StateStopped {
			return ErrLoopStopped
		}
		return ErrLoopAlreadyRunning
	}
	defer l.state.Store(uint32(StateStopped))

	for {
		if ctx.Err() != nil {
			l.RequestExit()
		}
		if l.exitRequested.Load() {
			return ctx.Err()
		}

		l.expireTimers()

		// Bail out as fast as possible on exit, without further dispatch.
		if l.exitRequested.Load() {
			return ctx.Err()
		}

		l.polls.compact()

		// Determine the wait deadline as close to the wait as possible, as
		// the timeout is relative.
		now := l.clock.Now()
		var timeout int64
		if target, ok := l.timers.nearest(); ok {
			timeout = target - now
			if timeout < l.minWait {
				timeout = l.minWait
			} else if timeout > l.maxWait {
				timeout = l.maxWait
			}
		} else if l.polls.size() == 0 {
			// no timers and no descriptors: nothing left to wait for
			return nil
		} else {
			timeout = l.maxWait
		}

		n, err := l.polls.wait(int(timeout))
		if err != nil {
			// Treated as no descriptors ready; the loop proceeds.
			l.logger.Warning().Err(err).Log("reactor: poll wait failed")
			continue
		}
		if n > 0 {
			l.dispatchReady()
		}
	}
}

// expireTimers repeatedly fires the soonest pending timer while it is due,
// bounded by the configured expiry cap per call and aborting early on an
// exit request. A callback can mutate the timer registry freely, including
// cancelling the timer being fired: that timer sits in the expiring holder,
// so its position cannot be disturbed.
func (l *Loop) expireTimers() {
	now := l.clock.Now()
	for sanity := l.maxExpiries; sanity > 0; sanity-- {
		if l.exitRequested.Load() {
			break
		}
		if !l.timers.popDue(now) {
			break
		}
		l.invokeTimer(l.timers.expiring.id)
		t, requeued, err := l.timers.finishExpiring()
		if !requeued {
			delete(l.handles, t.id)
		}
		if err != nil {
			l.logger.Err().
				Err(err).
				Int64("timer_id", int64(t.id)).
				Log("reactor: dropping interval timer, cannot requeue")
		}
	}
}

// invokeTimer calls the callback handle associated with id. Failures,
// including panics, are caught and reported; they never abort the loop.
func (l *Loop) invokeTimer(id TimerID) {
	cb := l.handles[id]
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Err(fmt.Errorf("reactor: timer callback panic: %v", r)).
				Int64("timer_id", int64(id)).
				Log("reactor: timer callback failed")
		}
	}()
	if err := cb(); err != nil {
		l.logger.Err().
			Err(err).
			Int64("timer_id", int64(id)).
			Log("reactor: timer callback failed")
	}
}

// dispatchReady walks the watched list once, invoking the readiness handler
// for every live entry with a non-empty pending mask and clearing the mask
// afterwards. The iteration bound is snapshotted up front: entries watched
// from inside a callback are dispatched no earlier than the next pass, and
// entries unwatched mid-pass are skipped via their tombstone.
func (l *Loop) dispatchReady() {
	n := len(l.polls.fds)
	for i := 0; i < n; i++ {
		fd, events, ok := l.polls.ready(i)
		if !ok {
			continue
		}
		l.invokeReadiness(fd, events)
		l.polls.clearPending(i)
	}
}

// invokeReadiness calls the installed readiness dispatcher. Failures,
// including panics, are caught and reported; they never abort the loop.
func (l *Loop) invokeReadiness(fd int, events Events) {
	if l.readiness == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Err(fmt.Errorf("reactor: readiness callback panic: %v", r)).
				Int("fd", fd).
				Log("reactor: readiness callback failed")
		}
	}()
	if err := l.readiness(fd, events); err != nil {
		l.logger.Err().
			Err(err).
			Int("fd", fd).
			Str("events", events.String()).
			Log("reactor: readiness callback failed")
	}
}
