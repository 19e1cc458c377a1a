// Package paxos implements the three cooperating consensus roles from
// spec.md §4: Acceptor, Leader (owning Scout/Commander sub-actors), and
// Replica, dispatched together by the composite Member in member.go.
//
// Grounded on the teacher's paxos package (Rain168-server/paxos/
// acceptor.go, proposermanager.go): a role is a plain struct owned and
// driven exclusively by its member's single Mailbox goroutine, logs via
// go-kit/log the way the teacher's Acceptor.Log does, and exposes a
// Status method for the same fork/join introspection tree the teacher
// builds with utils/status.StatusConsumer.
package paxos

import (
	"github.com/go-kit/kit/log"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/metrics"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/status"
)

// Acceptor is the p1b/p2b voter of spec.md §4.1. It is a pure
// request/reply server: it never gossips unsolicited, and it never
// initiates a message on its own.
//
// Invariants upheld here (spec.md §3):
//   - ballotNum is non-decreasing over time.
//   - once a ballot B has been promised, no value is ever accepted in a
//     ballot strictly less than B.
type Acceptor struct {
	node      network.Node
	logger    log.Logger
	metrics   *metrics.Roles
	ballotNum ballot.Ballot
	accepted  map[ballot.PValKey]ballot.Proposal
}

// NewAcceptor constructs an Acceptor at the sentinel ballot with no
// accepted values, per spec.md §4.1's initial state.
func NewAcceptor(node network.Node, logger log.Logger, m *metrics.Roles) *Acceptor {
	return &Acceptor{
		node:      node,
		logger:    log.With(logger, "role", "acceptor"),
		metrics:   m,
		ballotNum: ballot.Zero,
		accepted:  make(map[ballot.PValKey]ballot.Proposal),
	}
}

// HandlePrepare is p1a: PREPARE(scout_id, ballot_num).
func (a *Acceptor) HandlePrepare(from address.Address, msg network.Prepare) {
	if msg.BallotNum.GreaterThan(a.ballotNum) {
		a.ballotNum = msg.BallotNum
	}

	snapshot := make(map[ballot.PValKey]ballot.Proposal, len(a.accepted))
	for k, v := range a.accepted {
		snapshot[k] = v
	}

	if a.metrics != nil {
		a.metrics.AcceptorPromise.Inc()
	}
	a.logger.Log("msg", "PROMISE", "to", msg.ScoutId.Leader, "ballot_num", a.ballotNum)

	a.node.Send(address.List{msg.ScoutId.Leader}, network.Promise{
		ScoutId:   msg.ScoutId,
		Acceptor:  a.node.Address(),
		BallotNum: a.ballotNum,
		Accepted:  snapshot,
	})
}

// HandleAccept is p2a: ACCEPT(commander_id, ballot_num, slot, proposal).
// Equal ballots are honored (not just strictly greater): a Leader's own
// ballot, once adopted by a majority via PREPARE, must still be able to
// drive ACCEPTs at that same ballot (spec.md §9 "Ballot equality in
// ACCEPT" — preserve this, it is required, not an oversight).
func (a *Acceptor) HandleAccept(from address.Address, msg network.Accept) {
	honored := !msg.BallotNum.Less(a.ballotNum)
	if honored {
		a.ballotNum = msg.BallotNum
		a.accepted[ballot.PValKey{Ballot: msg.BallotNum, Slot: msg.Slot}] = msg.Proposal
		if a.metrics != nil {
			a.metrics.AcceptorAccept.Inc()
		}
	}

	a.logger.Log("msg", "ACCEPTED", "to", msg.CommanderId.Leader, "slot", msg.Slot, "honored", honored, "ballot_num", a.ballotNum)

	a.node.Send(address.List{msg.CommanderId.Leader}, network.Accepted{
		CommanderId: msg.CommanderId,
		Acceptor:    a.node.Address(),
		BallotNum:   a.ballotNum,
	})
}

// Status reports the Acceptor's current ballot and accepted set.
func (a *Acceptor) Status(sc *status.Consumer) {
	sc.Emitf("Acceptor ballot_num=%v", a.ballotNum)
	sc.Emitf("- %d accepted value(s)", len(a.accepted))
	fork := sc.Fork()
	for k, p := range a.accepted {
		fork.Emitf("(%v,slot=%d) -> %v", k.Ballot, k.Slot, p)
	}
	fork.Join()
	sc.Join()
}
