package network

import (
	"sync/atomic"
	"time"

	tw "github.com/msackman/gotimerwheel"
)

// Clock schedules one-shot timers, matching spec.md §6's
// "set_timer(delay, callback) -> handle" contract exactly: periodic
// retransmission (used only by the Scout) is built by the caller
// re-arming a fresh one-shot timer from inside its own callback, just as
// the original Scout.send_prepare calls self.node.set_timer again on
// every invocation.
//
// It wraps the teacher's timer wheel library (imported by
// txnengine/varmanager.go as `tw`) rather than raw time.AfterFunc,
// keeping with the teacher's preference for a single coalesced wheel over
// one OS timer per pending callback.
type Clock struct {
	wheel     *tw.TimerWheel
	tickEvery time.Duration
	stop      chan struct{}
}

// NewClock starts a background goroutine advancing the wheel every
// granularity. granularity bounds timer accuracy, matching the teacher's
// VarManager wheel (`tw.NewTimerWheel(time.Now(), 25*time.Millisecond)`).
func NewClock(granularity time.Duration) *Clock {
	c := &Clock{
		wheel:     tw.NewTimerWheel(time.Now(), granularity),
		tickEvery: granularity,
		stop:      make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Clock) pump() {
	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.wheel.AdvanceTo(now, 1<<20)
		case <-c.stop:
			return
		}
	}
}

// Stop halts the wheel's background goroutine.
func (c *Clock) Stop() {
	close(c.stop)
}

// ScheduleOnce arranges for fn to run once, after interval, unless the
// returned TimerHandle is cancelled first.
//
// gotimerwheel's ScheduleEventIn does not itself return a cancellable
// handle, so cancellation is layered on top: the scheduled thunk checks
// an atomic flag immediately before invoking fn, and Cancel sets that
// flag. This check alone does not stop an fn that has already run and
// handed work on elsewhere; simNode.SetTimer therefore checks again on
// the member's mailbox goroutine, which gives the synchronous "no further
// firings after cancel" guarantee of spec.md §5.
func (c *Clock) ScheduleOnce(interval time.Duration, fn func()) TimerHandle {
	var cancelled int32
	thunk := func() {
		if atomic.LoadInt32(&cancelled) == 0 {
			fn()
		}
	}
	_ = c.wheel.ScheduleEventIn(interval, tw.Event(thunk))
	return TimerHandle{cancel: func() { atomic.StoreInt32(&cancelled, 1) }}
}
