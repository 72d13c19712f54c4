//go:build linux || darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// pollSet owns the set of watched descriptors and their interest masks,
// stored as a dense pollfd list handed directly to poll(2). Fd == 0 marks a
// tombstoned entry: removal during a dispatch pass must not shift other
// entries' positions, so tombstones are compacted out only before the next
// blocking wait.
type pollSet struct {
	fds []unix.PollFd
	max int

	// pollFn is the readiness primitive, swappable for deterministic tests.
	pollFn func(fds []unix.PollFd, timeoutMs int) (int, error)
}

func newPollSet(maxFDs int) *pollSet {
	return &pollSet{
		fds:    make([]unix.PollFd, 0, 8),
		max:    maxFDs,
		pollFn: unix.Poll,
	}
}

// watch registers fd with the given interest mask, or updates the mask in
// place if fd is already watched. A zero mask stops watching: the entry is
// tombstoned, not removed, so indices stay valid for the rest of the
// current dispatch pass.
func (p *pollSet) watch(fd int, events Events) error {
	if fd <= 0 {
		return ErrInvalidDescriptor
	}
	for i := range p.fds {
		if int(p.fds[i].Fd) == fd {
			if events == 0 {
				p.fds[i].Fd = 0
			} else {
				p.fds[i].Events = eventsToPoll(events)
			}
			return nil
		}
	}
	if events == 0 {
		// not watched; nothing to stop
		return nil
	}
	if len(p.fds) >= p.max {
		return ErrDescriptorCapacity
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: eventsToPoll(events)})
	return nil
}

// compact drops tombstoned entries and re-densifies, preserving the relative
// order of the remaining entries. Called once per loop iteration, before
// blocking.
func (p *pollSet) compact() {
	j := 0
	for i := range p.fds {
		if p.fds[i].Fd == 0 {
			continue
		}
		if i != j {
			p.fds[j] = p.fds[i]
		}
		j++
	}
	for i := j; i < len(p.fds); i++ {
		p.fds[i] = unix.PollFd{}
	}
	p.fds = p.fds[:j]
}

// wait blocks until at least one watched descriptor has a ready event or
// timeoutMs elapses, recording readiness in the entries' pending masks.
// EINTR is reported as zero descriptors ready.
func (p *pollSet) wait(timeoutMs int) (int, error) {
	n, err := p.pollFn(p.fds, timeoutMs)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// size returns the number of live (non-tombstoned) entries.
func (p *pollSet) size() int {
	n := 0
	for i := range p.fds {
		if p.fds[i].Fd != 0 {
			n++
		}
	}
	return n
}

// ready returns the descriptor and pending mask at index i, reporting
// ok=false for tombstoned entries or entries with nothing pending.
func (p *pollSet) ready(i int) (fd int, events Events, ok bool) {
	e := &p.fds[i]
	if e.Fd == 0 || e.Revents == 0 {
		return 0, 0, false
	}
	return int(e.Fd), pollToEvents(e.Revents), true
}

// clearPending clears the pending mask at index i after dispatch.
func (p *pollSet) clearPending(i int) {
	p.fds[i].Revents = 0
}

// eventsToPoll converts an Events mask to poll(2) event flags. Error and
// hangup conditions are always reported by poll and need not be requested.
func eventsToPoll(events Events) int16 {
	var bits int16
	if events&EventRead != 0 {
		bits |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		bits |= unix.POLLOUT
	}
	return bits
}

// pollToEvents converts poll(2) revents flags to an Events mask.
func pollToEvents(bits int16) Events {
	var events Events
	if bits&unix.POLLIN != 0 {
		events |= EventRead
	}
	if bits&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if bits&(unix.POLLERR|unix.POLLNVAL) != 0 {
		events |= EventError
	}
	if bits&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
