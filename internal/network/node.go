package network

import (
	"time"

	"paxoscluster.dev/consensus/internal/address"
)

// Receiver is implemented by a cluster member's composite dispatcher: it
// is invoked once per delivered Message, already routed to this member,
// in place of the spec's "do_<KIND>(**fields)" dynamic dispatch.
type Receiver interface {
	Deliver(from address.Address, msg Message)
}

// Node is the abstract transport/clock contract of spec.md §6: address
// identity, best-effort send, and a one-shot, cancellable timer (periodic
// behavior is obtained by a caller re-arming its own timer from within
// the callback, as the Scout does for PREPARE retransmission). Delivery
// may drop, duplicate, or reorder; callers may not rely on transit delay.
type Node interface {
	Address() address.Address
	Send(destinations address.List, msg Message)
	SetTimer(d time.Duration, cb func()) TimerHandle
}

// TimerHandle cancels a scheduled callback. Cancellation is synchronous:
// once Cancel returns, the callback will not subsequently fire (spec.md
// §5 "Cancellation is synchronous").
type TimerHandle struct {
	cancel func()
}

func (h TimerHandle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Mailbox serializes a member's event processing onto a single goroutine:
// "Each member processes one inbound event ... to completion before the
// next" (spec.md §5). It generalizes the teacher's dispatcher.Executor /
// actor.Mailbox single-goroutine-per-executor idiom.
type Mailbox struct {
	tasks chan func()
	done  chan struct{}
}

// NewMailbox starts the processing goroutine immediately.
func NewMailbox(buffer int) *Mailbox {
	m := &Mailbox{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mailbox) run() {
	for {
		select {
		case fn := <-m.tasks:
			fn()
		case <-m.done:
			return
		}
	}
}

// Enqueue schedules fn to run on the mailbox goroutine. Messages arriving
// for a busy member queue in the buffer sized by NewMailbox; once that
// buffer is full, Enqueue blocks until the mailbox goroutine takes a task
// or the mailbox is stopped.
func (m *Mailbox) Enqueue(fn func()) {
	select {
	case m.tasks <- fn:
	case <-m.done:
	}
}

// Stop halts the processing goroutine. Pending tasks are discarded.
func (m *Mailbox) Stop() {
	close(m.done)
}
