package reactor

// timerEntry represents one scheduled callback.
type timerEntry struct {
	id      TimerID
	target  int64 // absolute expiry, monotonic ms
	delay   int64 // configured delay/interval, ms
	oneshot bool  // fire once then auto-remove
	removed bool  // logically cancelled, removal deferred
}

// timerRegistry owns the set of pending timers. The list is dense and kept
// sorted ascending by target (soonest expiry at index 0) at every point
// between operations. While a timer's callback is executing, the timer is
// held in the single-slot expiring holder and is not part of the list, so
// re-entrant structural changes to the list can never invalidate it.
type timerRegistry struct {
	list     []timerEntry
	expiring timerEntry
	inFlight bool // expiring holds a timer
	nextID   TimerID
	max      int
}

func newTimerRegistry(maxTimers int) *timerRegistry {
	return &timerRegistry{
		list:   make([]timerEntry, 0, 16),
		nextID: 1,
		max:    maxTimers,
	}
}

// create inserts a new timer expiring at now+delay. The delay must already
// be clamped to the configured floor. IDs are assigned monotonically and
// never reused.
func (r *timerRegistry) create(now, delay int64, oneshot bool) (TimerID, error) {
	if len(r.list) >= r.max {
		return 0, ErrTimerCapacity
	}
	id := r.nextID
	r.nextID++
	r.list = append(r.list, timerEntry{
		id:      id,
		target:  now + delay,
		delay:   delay,
		oneshot: oneshot,
	})
	r.bubbleLast()
	return id, nil
}

// bubbleLast swaps the entry appended at the tail toward the front until the
// ascending-by-target order holds again. Equal targets keep insertion order.
// O(n) worst case, which is fine for the small timer counts this serves.
func (r *timerRegistry) bubbleLast() {
	for i := len(r.list) - 1; i > 0; i-- {
		if r.list[i].target >= r.list[i-1].target {
			break
		}
		r.list[i], r.list[i-1] = r.list[i-1], r.list[i]
	}
}

// cancel removes the timer with the given id. A timer whose callback is
// currently executing cannot be removed from under itself: it is marked
// removed and discarded by finishExpiring after the callback returns, in
// which case deferred is true. Cancelling an unknown id is not an error.
func (r *timerRegistry) cancel(id TimerID) (found, deferred bool) {
	if r.inFlight && r.expiring.id == id {
		r.expiring.removed = true
		return true, true
	}
	for i := range r.list {
		if r.list[i].id == id {
			copy(r.list[i:], r.list[i+1:])
			r.list[len(r.list)-1] = timerEntry{}
			r.list = r.list[:len(r.list)-1]
			return true, false
		}
	}
	return false, false
}

// popDue moves the soonest pending timer into the expiring holder if it is
// due at now, removing it from the list. One-shot timers are pre-marked
// removed; repeating timers get their next target computed from now.
// Reports whether a timer was moved.
func (r *timerRegistry) popDue(now int64) bool {
	if len(r.list) == 0 || r.list[0].target > now {
		return false
	}
	r.expiring = r.list[0]
	copy(r.list, r.list[1:])
	r.list[len(r.list)-1] = timerEntry{}
	r.list = r.list[:len(r.list)-1]
	r.inFlight = true
	if r.expiring.oneshot {
		r.expiring.removed = true
	} else {
		// XXX: next target from now permits drift under slow callbacks;
		// target+delay would not. Matches the long-observed behavior.
		r.expiring.target = now + r.expiring.delay
	}
	return true
}

// finishExpiring clears the expiring holder after the callback has returned.
// A timer marked removed (one-shot, or cancelled mid-callback) is discarded;
// otherwise it is re-queued at its new target. The capacity check guards
// against callbacks having filled the list while the timer was in flight.
func (r *timerRegistry) finishExpiring() (t timerEntry, requeued bool, err error) {
	t = r.expiring
	r.expiring = timerEntry{}
	r.inFlight = false
	if t.removed {
		return t, false, nil
	}
	if len(r.list) >= r.max {
		return t, false, ErrTimerCapacity
	}
	r.list = append(r.list, t)
	r.bubbleLast()
	return t, true, nil
}

// nearest returns the target of the soonest pending timer.
func (r *timerRegistry) nearest() (int64, bool) {
	if len(r.list) == 0 {
		return 0, false
	}
	return r.list[0].target, true
}

// pending returns the number of pending (not in-flight) timers.
func (r *timerRegistry) pending() int {
	return len(r.list)
}
