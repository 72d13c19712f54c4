//go:build linux || darwin

package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// installSimulatedWait replaces the loop's readiness primitive with one that
// advances the fake clock by the requested timeout and reports no
// descriptors ready, so Run executes in simulated time.
func installSimulatedWait(l *Loop, clk *fakeClock) {
	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		clk.now += int64(timeoutMs)
		return 0, nil
	}
}

func TestRunNothingToWaitFor(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	waited := false
	l.polls.pollFn = func([]unix.PollFd, int) (int, error) {
		waited = true
		return 0, nil
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if waited {
		t.Fatal("loop blocked despite having nothing to wait for")
	}
	if got := l.State(); got != StateStopped {
		t.Fatalf("state = %v, want Stopped", got)
	}
}

func TestRunOneShotTimerFires(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)
	installSimulatedWait(l, clk)

	var firedAt int64 = -1
	if _, err := l.CreateTimer(func() error {
		firedAt = clk.Now()
		return nil
	}, 50, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if firedAt < 50 {
		t.Fatalf("timer fired at %d, want >= 50", firedAt)
	}
}

func TestRunIntervalSchedule(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)
	installSimulatedWait(l, clk)

	var fireTimes []int64
	var id TimerID
	id, err := l.CreateTimer(func() error {
		fireTimes = append(fireTimes, clk.Now())
		if len(fireTimes) == 3 {
			l.DeleteTimer(id)
		}
		return nil
	}, 10, false)
	if err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	want := []int64{10, 20, 30}
	if len(fireTimes) != len(want) {
		t.Fatalf("fired %d times (%v), want %d", len(fireTimes), fireTimes, len(want))
	}
	for i := range want {
		if fireTimes[i] != want[i] {
			t.Fatalf("fire times = %v, want %v", fireTimes, want)
		}
	}
}

func TestRequestExitStopsBeforeWait(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	waits := 0
	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		waits++
		clk.now += int64(timeoutMs)
		return 0, nil
	}

	secondFired := false
	if _, err := l.CreateTimer(func() error {
		l.RequestExit()
		return nil
	}, 10, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}
	if _, err := l.CreateTimer(func() error {
		secondFired = true
		return nil
	}, 10, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if secondFired {
		t.Fatal("timer expired after exit request in the same cycle")
	}
	if waits != 1 {
		// one wait to reach the timers' due time, none after the exit
		t.Fatalf("waits = %d, want 1", waits)
	}
}

func TestRunContextCancelled(t *testing.T) {
	l := newTestLoop(t, &fakeClock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.CreateTimer(noop, 1000, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestRunTerminalState(t *testing.T) {
	l := newTestLoop(t, &fakeClock{})
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("second Run() = %v, want ErrLoopStopped", err)
	}
}

func TestWaitErrorIsNonFatal(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	calls := 0
	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		calls++
		if calls == 1 {
			return -1, unix.EBADF
		}
		clk.now += int64(timeoutMs)
		return 0, nil
	}

	fired := false
	if _, err := l.CreateTimer(func() error {
		fired = true
		return nil
	}, 10, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if !fired {
		t.Fatal("timer did not fire after a wait error")
	}
}

func TestWaitTimeoutClamped(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk, WithWaitBounds(5, 100))

	var timeouts []int
	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		timeouts = append(timeouts, timeoutMs)
		clk.now += int64(timeoutMs)
		return 0, nil
	}

	// due in 1ms: below the floor; then the next, due in 500ms, hits the cap
	if _, err := l.CreateTimer(noop, 1, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}
	if _, err := l.CreateTimer(noop, 500, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if len(timeouts) == 0 || timeouts[0] != 5 {
		t.Fatalf("first timeout = %v, want clamped to 5", timeouts)
	}
	for _, timeout := range timeouts {
		if timeout < 5 || timeout > 100 {
			t.Fatalf("timeout %d outside [5, 100]", timeout)
		}
	}
}

// markReady flags fd as ready for reading in the poll list.
func markReady(fds []unix.PollFd, fd int) int {
	n := 0
	for i := range fds {
		if int(fds[i].Fd) == fd {
			fds[i].Revents = unix.POLLIN
			n++
		}
	}
	return n
}

func TestDispatchFollowsWatchedListOrder(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	var order []int
	l.HandleReadiness(func(fd int, events Events) error {
		order = append(order, fd)
		if len(order) == 3 {
			l.RequestExit()
		}
		return nil
	})

	for _, fd := range []int{7, 5, 9} {
		if err := l.WatchFD(fd, EventRead); err != nil {
			t.Fatalf("WatchFD(%d) failed: %v", fd, err)
		}
	}

	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		// readiness reported in a different order than watched
		n := markReady(fds, 9)
		n += markReady(fds, 7)
		n += markReady(fds, 5)
		return n, nil
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	want := []int{7, 5, 9}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestUnwatchSelfDuringDispatch(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	counts := map[int]int{}
	passes := 0
	l.HandleReadiness(func(fd int, events Events) error {
		counts[fd]++
		if fd == 5 {
			// removal mid-pass must not disturb sibling positions
			if err := l.WatchFD(5, 0); err != nil {
				t.Errorf("WatchFD(5, 0) failed: %v", err)
			}
		}
		return nil
	})

	for _, fd := range []int{5, 7} {
		if err := l.WatchFD(fd, EventRead); err != nil {
			t.Fatalf("WatchFD(%d) failed: %v", fd, err)
		}
	}

	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		passes++
		if passes > 2 {
			l.RequestExit()
			return 0, nil
		}
		n := markReady(fds, 5)
		n += markReady(fds, 7)
		return n, nil
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if counts[5] != 1 {
		t.Fatalf("unwatched fd dispatched %d times, want 1", counts[5])
	}
	if counts[7] != 2 {
		t.Fatalf("sibling fd dispatched %d times, want 2", counts[7])
	}
}

func TestReadinessErrorAndPanicNonFatal(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	calls := 0
	l.HandleReadiness(func(fd int, events Events) error {
		calls++
		switch calls {
		case 1:
			return errors.New("boom")
		case 2:
			panic("test panic in readiness callback")
		default:
			l.RequestExit()
			return nil
		}
	})

	if err := l.WatchFD(3, EventRead); err != nil {
		t.Fatalf("WatchFD failed: %v", err)
	}
	l.polls.pollFn = func(fds []unix.PollFd, timeoutMs int) (int, error) {
		return markReady(fds, 3), nil
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestPendingClearedAfterDispatch(t *testing.T) {
	clk := &fakeClock{}
	l := newTestLoop(t, clk)

	l.HandleReadiness(func(fd int, events Events) error {
		return nil
	})
	if err := l.WatchFD(3, EventRead); err != nil {
		t.Fatalf("WatchFD failed: %v", err)
	}
	l.polls.fds[0].Revents = unix.POLLIN

	l.dispatchReady()
	if got := l.polls.fds[0].Revents; got != 0 {
		t.Fatalf("Revents = %d, want 0 after dispatch", got)
	}
}

// TestLoopWithRealPoll exercises the real readiness primitive end to end: a
// timer writes to a pipe, the readiness callback reads it back and stops the
// loop.
func TestLoopWithRealPoll(t *testing.T) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	l, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	var got []byte
	l.HandleReadiness(func(fd int, events Events) error {
		if fd != p[0] || events&EventRead == 0 {
			t.Errorf("unexpected dispatch: fd=%d events=%v", fd, events)
		}
		buf := make([]byte, 16)
		n, err := unix.Read(fd, buf)
		if err != nil {
			return err
		}
		got = append(got, buf[:n]...)
		if err := l.WatchFD(fd, 0); err != nil {
			return err
		}
		l.RequestExit()
		return nil
	})

	if err := l.WatchFD(p[0], EventRead); err != nil {
		t.Fatalf("WatchFD failed: %v", err)
	}
	if _, err := l.CreateTimer(func() error {
		_, err := unix.Write(p[1], []byte("ping"))
		return err
	}, 5, true); err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop within timeout")
	}
	if string(got) != "ping" {
		t.Fatalf("read %q, want %q", got, "ping")
	}
}
