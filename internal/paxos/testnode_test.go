package paxos

import (
	"time"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/network"
)

// sentMsg records one outbound Send call, for assertions in unit tests
// that exercise a single role in isolation without a real Hub.
type sentMsg struct {
	to  address.List
	msg network.Message
}

// testNode is a minimal, synchronous network.Node stand-in: Send just
// records, SetTimer just appends the callback to timers and never fires
// it. This lets a unit test drive
// a role through exactly the events spec.md §8's scenarios describe,
// with no goroutines or real time involved.
type testNode struct {
	addr   address.Address
	sent   []sentMsg
	timers []func()
}

func newTestNode(addr address.Address) *testNode {
	return &testNode{addr: addr}
}

func (n *testNode) Address() address.Address { return n.addr }

func (n *testNode) Send(destinations address.List, msg network.Message) {
	n.sent = append(n.sent, sentMsg{to: destinations, msg: msg})
}

func (n *testNode) SetTimer(d time.Duration, cb func()) network.TimerHandle {
	n.timers = append(n.timers, cb)
	return network.TimerHandle{}
}

// lastSent returns the most recently sent message, or nil if none.
func (n *testNode) lastSent() network.Message {
	if len(n.sent) == 0 {
		return nil
	}
	return n.sent[len(n.sent)-1].msg
}
