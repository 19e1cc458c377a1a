package paxos

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/statemachine"
)

func newTestReplica(self address.Address, members address.List) (*Replica[statemachine.Sequence], *testNode) {
	node := newTestNode(self)
	r := NewReplica[statemachine.Sequence](node, members, statemachine.Generator, statemachine.Sequence{}, log.NewNopLogger(), nil)
	return r, node
}

// S6 — Replica re-proposes a value that lost its slot, then executes
// the winning decision and advances past it.
func TestReplica_ReproposesLostValue(t *testing.T) {
	members := address.List{"A", "B", "C"}
	r, node := newTestReplica("A", members)

	p1 := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 10}
	p2 := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 2}, Input: 20}
	r.proposals.Set(0, p1)

	r.HandleDecision(network.Decision{Slot: 0, Proposal: p2})

	assert.Equal(t, 1, r.slotNum, "slot 0 must have been executed")
	got, ok := r.decisions.Get(0)
	require.True(t, ok)
	assert.Equal(t, p2, got)

	var sawRepropose, sawInvoked bool
	for _, s := range node.sent {
		if pr, ok := s.msg.(network.Propose); ok && pr.Slot == 1 && pr.Proposal == p1 {
			sawRepropose = true
		}
		if inv, ok := s.msg.(network.Invoked); ok && inv.Cid == p2.Cid {
			sawInvoked = true
		}
	}
	assert.True(t, sawRepropose, "the losing proposal must be re-proposed at the next free slot")
	assert.True(t, sawInvoked, "the winning decision must be executed and answered")
}

// A duplicate INVOKE (same proposal already present in proposals) is
// not proposed a second time.
func TestReplica_DuplicateInvokeIgnored(t *testing.T) {
	members := address.List{"A", "B", "C"}
	r, node := newTestReplica("A", members)
	msg := network.Invoke{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 5}

	r.HandleInvoke(msg)
	firstSendCount := len(node.sent)
	r.HandleInvoke(msg)

	assert.Equal(t, firstSendCount, len(node.sent), "a retried INVOKE must not be proposed twice")
}

// Execution advances strictly in order, with no gap skipped, and a
// decision seen twice at the same slot is a no-op the second time.
func TestReplica_ExecutesContiguouslyAndSkipsDuplicateDecisions(t *testing.T) {
	members := address.List{"A", "B", "C"}
	r, _ := newTestReplica("A", members)

	p0 := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 1}
	p2 := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 3}, Input: 3}

	// slot 2 decided before slot 1: execution must not jump ahead.
	r.HandleDecision(network.Decision{Slot: 2, Proposal: p2})
	assert.Equal(t, 0, r.slotNum)

	r.HandleDecision(network.Decision{Slot: 0, Proposal: p0})
	assert.Equal(t, 1, r.slotNum, "only the contiguous prefix may execute")

	// Re-delivering the same DECISION at slot 0 is a no-op.
	r.HandleDecision(network.Decision{Slot: 0, Proposal: p0})
	assert.Equal(t, 1, r.slotNum)

	// A duplicate of p0's value decided again at slot 1 must be skipped
	// (not re-executed) but must still advance slot_num past it.
	r.HandleDecision(network.Decision{Slot: 1, Proposal: p0})
	assert.Equal(t, 3, r.slotNum, "slot 1 (duplicate) and slot 2 must both drain")
	assert.Equal(t, 2, len(r.state.Log), "p0's duplicate must not be executed a second time")
}

// A conflicting decision for an already-decided slot is a protocol
// safety violation and must panic rather than be silently accepted.
func TestReplica_ConflictingDecisionPanics(t *testing.T) {
	members := address.List{"A", "B", "C"}
	r, _ := newTestReplica("A", members)
	p1 := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 1}
	p2 := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 2}, Input: 2}

	r.HandleDecision(network.Decision{Slot: 5, Proposal: p1})
	assert.Panics(t, func() {
		r.HandleDecision(network.Decision{Slot: 5, Proposal: p2})
	})
}
