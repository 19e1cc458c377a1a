package paxos

import (
	"time"

	"github.com/go-kit/kit/log"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/metrics"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/status"
)

// commander drives one slot to decision at a fixed ballot, per spec.md
// §4.3. Many commanders may be live at once under the same Leader, one
// per in-flight slot; they are independent and never communicate with
// each other directly, only through their shared Leader.
type commander struct {
	node    network.Node
	leader  *Leader
	members address.List
	quorum  int

	commanderId ballot.CommanderId
	ballotNum   ballot.Ballot
	slot        ballot.Slot
	proposal    ballot.Proposal
	acceptedBy  map[address.Address]struct{}
	done        bool

	birth   time.Time
	logger  log.Logger
	metrics *metrics.Roles
}

func newCommander(node network.Node, members address.List, quorum int, ballotNum ballot.Ballot, slot ballot.Slot, proposal ballot.Proposal, leader *Leader, logger log.Logger, m *metrics.Roles) *commander {
	return &commander{
		node:        node,
		leader:      leader,
		members:     members,
		quorum:      quorum,
		commanderId: ballot.CommanderId{Leader: node.Address(), Slot: slot, Proposal: proposal},
		ballotNum:   ballotNum,
		slot:        slot,
		proposal:    proposal,
		acceptedBy:  make(map[address.Address]struct{}),
		birth:       time.Now(),
		logger:      log.With(logger, "role", "commander", "slot", slot),
		metrics:     m,
	}
}

// start broadcasts the initial ACCEPT. Unlike the Scout, the Commander
// never retransmits on its own: a lost ACCEPT simply never reaches
// quorum through this commander. The slot is driven again only when the
// Leader re-adopts after preemption and spawns commanders for its
// proposals table, or when a Replica whose proposal lost a slot to a
// different decision proposes it anew in a later slot.
func (c *commander) start() {
	c.node.Send(c.members, network.Accept{
		CommanderId: c.commanderId,
		BallotNum:   c.ballotNum,
		Slot:        c.slot,
		Proposal:    c.proposal,
	})
}

// handleAccepted is p2b: ACCEPTED(commander_id, acceptor, ballot_num).
func (c *commander) handleAccepted(msg network.Accepted) {
	if c.done {
		return
	}
	if msg.BallotNum != c.ballotNum {
		c.done = true
		c.leader.commanderPreempted(c.commanderId, c.birth, msg.BallotNum)
		return
	}

	c.acceptedBy[msg.Acceptor] = struct{}{}
	if len(c.acceptedBy) >= c.quorum {
		c.done = true
		c.node.Send(c.members, network.Decision{Slot: c.slot, Proposal: c.proposal})
		c.logger.Log("msg", "DECISION reached")
		c.leader.commanderDone(c.commanderId, c.birth)
	}
}

func (c *commander) Status(sc *status.Consumer) {
	sc.Emitf("Commander %v quorum=%d/%d", c.commanderId, len(c.acceptedBy), c.quorum)
}
