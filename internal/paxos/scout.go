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

// scout runs one adoption attempt for its Leader at a single ballot, per
// spec.md §4.2. At most one scout is ever live for a given Leader (the
// Leader enforces this; see leader.go's spawnScout).
//
// Grounded on the teacher's proposermanager.go ProposalManager/Proposer
// pair: a short-lived sub-actor that owns one outstanding round-trip,
// retransmits on its own timer, and reports back to its parent exactly
// once via a finished-style callback.
type scout struct {
	node     network.Node
	leader   *Leader
	members  address.List
	quorum   int
	interval time.Duration

	scoutId    ballot.ScoutId
	ballotNum  ballot.Ballot
	pvals      map[ballot.PValKey]ballot.Proposal
	acceptedBy map[address.Address]struct{}
	done       bool

	retransmit network.TimerHandle
	birth      time.Time
	logger     log.Logger
	metrics    *metrics.Roles
}

func newScout(node network.Node, members address.List, quorum int, ballotNum ballot.Ballot, interval time.Duration, leader *Leader, logger log.Logger, m *metrics.Roles) *scout {
	return &scout{
		node:       node,
		leader:     leader,
		members:    members,
		quorum:     quorum,
		interval:   interval,
		scoutId:    ballot.ScoutId{Leader: node.Address(), Ballot: ballotNum},
		ballotNum:  ballotNum,
		pvals:      make(map[ballot.PValKey]ballot.Proposal),
		acceptedBy: make(map[address.Address]struct{}),
		birth:      time.Now(),
		logger:     log.With(logger, "role", "scout", "scout_id", ballotNum),
		metrics:    m,
	}
}

// start sends the initial PREPARE and arms the retransmit timer.
func (s *scout) start() {
	s.logger.Log("msg", "starting scout")
	s.sendPrepare()
}

func (s *scout) sendPrepare() {
	if s.done {
		return
	}
	s.node.Send(s.members, network.Prepare{ScoutId: s.scoutId, BallotNum: s.ballotNum})
	s.retransmit = s.node.SetTimer(s.interval, s.sendPrepare)
}

// handlePromise is p1b: PROMISE(scout_id, acceptor, ballot_num, accepted).
func (s *scout) handlePromise(msg network.Promise) {
	if s.done {
		return
	}
	if msg.BallotNum != s.ballotNum {
		// Some acceptor has moved on to a higher ballot: we have been
		// preempted before ever reaching quorum.
		s.finish(false, msg.BallotNum)
		return
	}

	for k, v := range msg.Accepted {
		s.pvals[k] = v
	}
	s.acceptedBy[msg.Acceptor] = struct{}{}

	if len(s.acceptedBy) >= s.quorum {
		s.finish(true, s.ballotNum)
	}
}

func (s *scout) finish(adopted bool, ballotNum ballot.Ballot) {
	if s.done {
		return
	}
	s.done = true
	s.retransmit.Cancel()
	if s.metrics != nil {
		s.metrics.ScoutLifespan.Observe(time.Since(s.birth).Seconds())
	}
	s.logger.Log("msg", "scout finished", "adopted", adopted, "ballot_num", ballotNum)
	s.leader.scoutFinished(adopted, ballotNum, s.pvals)
}

func (s *scout) Status(sc *status.Consumer) {
	sc.Emitf("Scout %v quorum=%d/%d", s.scoutId, len(s.acceptedBy), s.quorum)
}
