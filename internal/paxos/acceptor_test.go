package paxos

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/network"
)

func newTestAcceptor() (*Acceptor, *testNode) {
	node := newTestNode("acceptor-1")
	return NewAcceptor(node, log.NewNopLogger(), nil), node
}

// S1 — PREPARE without adoption of a higher ballot.
func TestAcceptor_PrepareDoesNotLowerBallot(t *testing.T) {
	a, node := newTestAcceptor()
	a.ballotNum = ballot.Ballot{N: 11, Leader: "20"}

	a.HandlePrepare("ldr", network.Prepare{
		ScoutId:   ballot.ScoutId{Leader: "ldr", Ballot: ballot.Ballot{N: 10, Leader: "20"}},
		BallotNum: ballot.Ballot{N: 10, Leader: "20"},
	})

	assert.Equal(t, ballot.Ballot{N: 11, Leader: "20"}, a.ballotNum)
	promise, ok := node.lastSent().(network.Promise)
	require.True(t, ok)
	assert.Equal(t, ballot.Ballot{N: 11, Leader: "20"}, promise.BallotNum)
	assert.Empty(t, promise.Accepted)
}

// S2 — PREPARE adopts a higher ballot from the sentinel.
func TestAcceptor_PrepareAdopts(t *testing.T) {
	a, node := newTestAcceptor()

	a.HandlePrepare("ldr", network.Prepare{
		ScoutId:   ballot.ScoutId{Leader: "ldr", Ballot: ballot.Ballot{N: 10, Leader: "20"}},
		BallotNum: ballot.Ballot{N: 10, Leader: "20"},
	})

	assert.Equal(t, ballot.Ballot{N: 10, Leader: "20"}, a.ballotNum)
	promise, ok := node.lastSent().(network.Promise)
	require.True(t, ok)
	assert.Equal(t, ballot.Ballot{N: 10, Leader: "20"}, promise.BallotNum)
	assert.Empty(t, promise.Accepted)
}

// S3 — ACCEPT honored at or above the promised ballot.
func TestAcceptor_AcceptHonored(t *testing.T) {
	a, node := newTestAcceptor()
	p := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 42}

	a.HandleAccept("cmd", network.Accept{
		CommanderId: ballot.CommanderId{Leader: "ldr", Slot: 8, Proposal: p},
		BallotNum:   ballot.Ballot{N: 10, Leader: "20"},
		Slot:        8,
		Proposal:    p,
	})

	assert.Equal(t, ballot.Ballot{N: 10, Leader: "20"}, a.ballotNum)
	assert.Equal(t, p, a.accepted[ballot.PValKey{Ballot: ballot.Ballot{N: 10, Leader: "20"}, Slot: 8}])
	accepted, ok := node.lastSent().(network.Accepted)
	require.True(t, ok)
	assert.Equal(t, ballot.Ballot{N: 10, Leader: "20"}, accepted.BallotNum)
}

// S4 — ACCEPT rejected by a strictly higher standing promise.
func TestAcceptor_AcceptRejectedByHigherPromise(t *testing.T) {
	a, node := newTestAcceptor()
	a.ballotNum = ballot.Ballot{N: 11, Leader: "20"}
	p := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 42}

	a.HandleAccept("cmd", network.Accept{
		CommanderId: ballot.CommanderId{Leader: "ldr", Slot: 8, Proposal: p},
		BallotNum:   ballot.Ballot{N: 10, Leader: "20"},
		Slot:        8,
		Proposal:    p,
	})

	assert.Equal(t, ballot.Ballot{N: 11, Leader: "20"}, a.ballotNum)
	assert.Empty(t, a.accepted)
	accepted, ok := node.lastSent().(network.Accepted)
	require.True(t, ok)
	assert.Equal(t, ballot.Ballot{N: 11, Leader: "20"}, accepted.BallotNum)
}

// ACCEPT is honored at an equal ballot too (spec.md §9 "Ballot equality
// in ACCEPT"), not just a strictly greater one.
func TestAcceptor_AcceptHonoredAtEqualBallot(t *testing.T) {
	a, node := newTestAcceptor()
	a.ballotNum = ballot.Ballot{N: 10, Leader: "20"}
	p := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 7}

	a.HandleAccept("cmd", network.Accept{
		CommanderId: ballot.CommanderId{Leader: "ldr", Slot: 3, Proposal: p},
		BallotNum:   ballot.Ballot{N: 10, Leader: "20"},
		Slot:        3,
		Proposal:    p,
	})

	assert.Equal(t, p, a.accepted[ballot.PValKey{Ballot: ballot.Ballot{N: 10, Leader: "20"}, Slot: 3}])
	_, ok := node.lastSent().(network.Accepted)
	assert.True(t, ok)
}

func TestAddressTotalOrder(t *testing.T) {
	assert.True(t, address.Less("a", "b"))
	assert.False(t, address.Less("b", "a"))
}
