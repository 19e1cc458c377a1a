package paxos

import (
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/network"
)

func newTestLeader(self address.Address, members address.List, quorum int) (*Leader, *testNode) {
	node := newTestNode(self)
	l := NewLeader(node, members, quorum, time.Minute, log.NewNopLogger(), nil)
	return l, node
}

// S5 — Scout quorum: PROMISEs from a majority at the scout's own ballot,
// with empty accepted sets, yield adoption.
func TestLeader_ScoutQuorumAdopts(t *testing.T) {
	members := address.List{"A", "B", "C"}
	l, _ := newTestLeader("A", members, 2)
	l.Start()
	require.NotNil(t, l.scout)
	scoutBallot := l.ballotNum

	l.HandlePromise(network.Promise{
		ScoutId:   ballot.ScoutId{Leader: "A", Ballot: scoutBallot},
		Acceptor:  "A",
		BallotNum: scoutBallot,
		Accepted:  map[ballot.PValKey]ballot.Proposal{},
	})
	assert.False(t, l.active, "one promise short of quorum must not adopt")

	l.HandlePromise(network.Promise{
		ScoutId:   ballot.ScoutId{Leader: "A", Ballot: scoutBallot},
		Acceptor:  "B",
		BallotNum: scoutBallot,
		Accepted:  map[ballot.PValKey]ballot.Proposal{},
	})

	assert.True(t, l.active)
	assert.Nil(t, l.scout, "scout must be cleared once adopted")
}

// S7 — Leader preemption: an ACCEPTED carrying a strictly higher ballot
// than the Leader's current one drives it inactive and to a fresh,
// higher ballot, and spawns a replacement scout.
func TestLeader_PreemptionBumpsBallotAndRespawnsScout(t *testing.T) {
	members := address.List{"A", "B", "C"}
	l, node := newTestLeader("A", members, 2)
	l.ballotNum = ballot.Ballot{N: 3, Leader: "A"}
	l.active = true

	p := ballot.Proposal{Caller: "client", Cid: ballot.ClientId{Caller: "client", RequestId: 1}, Input: 1}
	l.spawnCommander(l.ballotNum, 0, p)
	require.Len(t, l.commanders, 1)
	var cid ballot.CommanderId
	for id := range l.commanders {
		cid = id
	}

	l.HandleAccepted(network.Accepted{
		CommanderId: cid,
		Acceptor:    "B",
		BallotNum:   ballot.Ballot{N: 5, Leader: "B"},
	})

	assert.False(t, l.active)
	assert.Equal(t, ballot.Ballot{N: 6, Leader: "A"}, l.ballotNum)
	assert.Empty(t, l.commanders, "preempted commander must be retired")
	require.NotNil(t, l.scout, "a replacement scout must be spawned")
	assert.Equal(t, ballot.Ballot{N: 6, Leader: "A"}, l.scout.ballotNum)
	_ = node
}

// Adoption merge keeps the proposal accepted under the HIGHEST ballot
// for a slot, not whichever pvals entry happens to be visited last —
// the corrected rule from spec.md §9 "Scout pvals merge order".
func TestLeader_MergePvalsKeepsHighestBallotPerSlot(t *testing.T) {
	members := address.List{"A", "B", "C"}
	l, _ := newTestLeader("A", members, 2)
	l.Start()
	scoutBallot := l.ballotNum

	low := ballot.Proposal{Caller: "c1", Cid: ballot.ClientId{Caller: "c1", RequestId: 1}, Input: 100}
	high := ballot.Proposal{Caller: "c2", Cid: ballot.ClientId{Caller: "c2", RequestId: 2}, Input: 200}

	pvals := map[ballot.PValKey]ballot.Proposal{
		{Ballot: ballot.Ballot{N: 1, Leader: "X"}, Slot: 0}: low,
		{Ballot: ballot.Ballot{N: 4, Leader: "Y"}, Slot: 0}: high,
	}

	l.scoutFinished(true, scoutBallot, pvals)

	got, ok := l.proposals.Get(0)
	require.True(t, ok)
	assert.Equal(t, high, got, "the slot-0 winner must be the highest-ballot (4,Y) entry, not the lowest")
}

// At most one scout is ever live for a Leader.
func TestLeader_AtMostOneLiveScout(t *testing.T) {
	members := address.List{"A", "B", "C"}
	l, _ := newTestLeader("A", members, 2)
	l.Start()
	first := l.scout
	l.spawnScout(ballot.Ballot{N: 99, Leader: "A"})
	assert.Same(t, first, l.scout, "spawnScout must be a no-op while a scout is already live")
}
