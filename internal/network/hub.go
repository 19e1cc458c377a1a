package network

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"paxoscluster.dev/consensus/internal/address"
)

// Hub is the simulated cluster-wide transport: the concrete instantiation
// of spec.md §6's "best-effort... may drop, duplicate, or reorder"
// contract. It generalizes the teacher's network.ConnectionManager (which
// tracks live connections and fans a send out to every member) but
// replaces the teacher's real TCP/capnp wire with direct, in-process
// delivery, since the core under test here has no wire format to encode
// (spec.md §1 places the real transport out of scope).
type Hub struct {
	rngMu    sync.Mutex
	rng      *rand.Rand
	lossProb float64
	dupProb  float64
	minDelay time.Duration
	maxDelay time.Duration
	members  map[address.Address]*memberNode
}

type memberNode struct {
	addr     address.Address
	mailbox  *Mailbox
	clock    *Clock
	receiver Receiver
}

// NewHub builds a Hub with the given failure-injection parameters.
// lossProb and dupProb are each in [0,1). A zero-value Hub (via
// NewPerfectHub) never drops, duplicates, or reorders beyond ordinary
// goroutine scheduling jitter, which is the common case for unit tests
// exercising a single scenario from spec.md §8.
func NewHub(rng *rand.Rand, lossProb, dupProb float64, minDelay, maxDelay time.Duration) *Hub {
	return &Hub{
		rng:      rng,
		lossProb: lossProb,
		dupProb:  dupProb,
		minDelay: minDelay,
		maxDelay: maxDelay,
		members:  make(map[address.Address]*memberNode),
	}
}

// NewPerfectHub builds a Hub with no induced loss, duplication, or delay
// — useful for deterministic unit tests of a single role in isolation.
func NewPerfectHub() *Hub {
	return NewHub(rand.New(rand.NewSource(1)), 0, 0, 0, 0)
}

// Join registers a new member identified by addr, returning the Node
// handle it should hand to its composite role dispatcher. receiver may
// be nil if the dispatcher itself has not been constructed yet (it
// typically needs the Node returned here first) — see Rewire.
func (h *Hub) Join(addr address.Address, receiver Receiver) Node {
	mn := &memberNode{
		addr:     addr,
		mailbox:  NewMailbox(256),
		clock:    NewClock(5 * time.Millisecond),
		receiver: receiver,
	}
	h.members[addr] = mn
	return &simNode{hub: h, self: mn}
}

// Rewire attaches (or replaces) the Receiver for an already-joined
// member. Callers that need a Node before their Receiver can be built —
// the common case, since a Member's role structs are constructed from
// the Node Join hands back — call Join with a nil receiver and Rewire
// once construction is complete, before Start is called on that member.
func (h *Hub) Rewire(addr address.Address, receiver Receiver) {
	if mn, found := h.members[addr]; found {
		mn.receiver = receiver
	}
}

// Shutdown stops every joined member's mailbox and clock.
func (h *Hub) Shutdown() {
	for _, mn := range h.members {
		mn.mailbox.Stop()
		mn.clock.Stop()
	}
}

// deliver is called from whichever member goroutine is sending (via
// Send), so distinct members race on h.rng here; rngMu serializes every
// draw from it across all simultaneous senders.
func (h *Hub) deliver(from, to address.Address, msg Message) {
	dest, found := h.members[to]
	if !found || dest.receiver == nil {
		return
	}

	h.rngMu.Lock()
	attempts := 1
	if h.dupProb > 0 && h.rng.Float64() < h.dupProb {
		attempts = 2
	}
	drop := make([]bool, attempts)
	delays := make([]time.Duration, attempts)
	for i := 0; i < attempts; i++ {
		drop[i] = h.lossProb > 0 && h.rng.Float64() < h.lossProb
		if !drop[i] {
			delays[i] = h.randomDelayLocked()
		}
	}
	h.rngMu.Unlock()

	for i := 0; i < attempts; i++ {
		if drop[i] {
			continue
		}
		delay := delays[i]
		fromCopy, msgCopy := from, msg
		if delay <= 0 {
			dest.mailbox.Enqueue(func() { dest.receiver.Deliver(fromCopy, msgCopy) })
		} else {
			time.AfterFunc(delay, func() {
				dest.mailbox.Enqueue(func() { dest.receiver.Deliver(fromCopy, msgCopy) })
			})
		}
	}
}

// randomDelayLocked requires the caller to hold h.rngMu.
func (h *Hub) randomDelayLocked() time.Duration {
	if h.maxDelay <= h.minDelay {
		return h.minDelay
	}
	span := h.maxDelay - h.minDelay
	return h.minDelay + time.Duration(h.rng.Int63n(int64(span)))
}

// simNode is the per-member Node handle backed by a Hub.
type simNode struct {
	hub  *Hub
	self *memberNode
}

func (n *simNode) Address() address.Address { return n.self.addr }

func (n *simNode) Send(destinations address.List, msg Message) {
	for _, dest := range destinations {
		n.hub.deliver(n.self.addr, dest, msg)
	}
}

// SetTimer re-checks cancellation on the member's mailbox goroutine just
// before running cb, so a callback the wheel already handed to the mailbox
// is still suppressed by a Cancel made before it runs.
func (n *simNode) SetTimer(d time.Duration, cb func()) TimerHandle {
	mb := n.self.mailbox
	var cancelled int32
	h := n.self.clock.ScheduleOnce(d, func() {
		mb.Enqueue(func() {
			if atomic.LoadInt32(&cancelled) == 0 {
				cb()
			}
		})
	})
	return TimerHandle{cancel: func() {
		atomic.StoreInt32(&cancelled, 1)
		h.Cancel()
	}}
}
