package paxos

import (
	"time"

	"github.com/go-kit/kit/log"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/metrics"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/slotmap"
	"paxoscluster.dev/consensus/internal/status"
)

// Leader implements spec.md §4.4: it owns at most one live scout and any
// number of live commanders, cycles between Active and Inactive as scouts
// win or lose adoption, and re-proposes its outstanding proposals table
// under a fresh, higher ballot whenever it is preempted.
//
// Grounded on the teacher's ProposerManager (paxos/proposermanager.go):
// one long-lived manager per member that owns a table of sub-protocol
// instances keyed by correlation id, with the same spawn/finish/preempt
// lifecycle this Leader drives for its scouts and commanders.
type Leader struct {
	node          network.Node
	members       address.List
	quorum        int
	scoutInterval time.Duration

	ballotNum ballot.Ballot
	active    bool

	proposals  slotmap.Map[ballot.Proposal]
	scout      *scout
	commanders map[ballot.CommanderId]*commander

	logger  log.Logger
	metrics *metrics.Roles
}

// NewLeader constructs a Leader at ballot (0, node.Address()), Inactive
// with no scout — spec.md §4.4's initial state, before Start is called.
func NewLeader(node network.Node, members address.List, quorum int, scoutInterval time.Duration, logger log.Logger, m *metrics.Roles) *Leader {
	return &Leader{
		node:          node,
		members:       members,
		quorum:        quorum,
		scoutInterval: scoutInterval,
		ballotNum:     ballot.Ballot{N: 0, Leader: node.Address()},
		commanders:    make(map[ballot.CommanderId]*commander),
		logger:        log.With(logger, "role", "leader"),
		metrics:       m,
	}
}

// Start spawns the first scout, beginning this Leader's bid for adoption.
func (l *Leader) Start() {
	l.spawnScout(l.ballotNum)
}

func (l *Leader) spawnScout(b ballot.Ballot) {
	if l.scout != nil {
		// spec.md §3's uniqueness invariant: at most one live scout per
		// Leader at any time.
		return
	}
	s := newScout(l.node, l.members, l.quorum, b, l.scoutInterval, l, l.logger, l.metrics)
	l.scout = s
	if l.metrics != nil {
		l.metrics.ScoutsLive.Inc()
	}
	s.start()
}

// scoutFinished is the Scout's adopted/preempted callback (spec.md
// §4.2/§4.4).
func (l *Leader) scoutFinished(adopted bool, ballotNum ballot.Ballot, pvals map[ballot.PValKey]ballot.Proposal) {
	l.scout = nil
	if l.metrics != nil {
		l.metrics.ScoutsLive.Dec()
	}

	if !adopted {
		l.preempted(ballotNum)
		return
	}

	l.mergePvals(pvals)
	l.active = true
	for slot := 0; slot < l.proposals.Len(); slot++ {
		if p, ok := l.proposals.Get(slot); ok {
			l.spawnCommander(l.ballotNum, ballot.Slot(slot), p)
		}
	}
}

// mergePvals folds the accepted values a quorum of acceptors reported
// back into our proposals table, keeping for each slot the proposal
// accepted under the HIGHEST ballot seen for that slot.
//
// This deliberately corrects a bug in the distilled reference: its
// pvals merge iterates pvals in whatever order the underlying map
// produces and simply overwrites slot-by-slot, so the proposal that
// survives is whichever happened to be visited last rather than the one
// accepted at the highest ballot. A newly adopted Leader must instead
// recover exactly the value a majority could already have decided, which
// is always the highest-ballot accepted value for that slot (see
// spec.md §9, "Scout pvals merge order").
func (l *Leader) mergePvals(pvals map[ballot.PValKey]ballot.Proposal) {
	winningBallot := make(map[ballot.Slot]ballot.Ballot)
	for k := range pvals {
		if cur, found := winningBallot[k.Slot]; !found || cur.Less(k.Ballot) {
			winningBallot[k.Slot] = k.Ballot
		}
	}
	for slot, b := range winningBallot {
		l.proposals.Set(int(slot), pvals[ballot.PValKey{Ballot: b, Slot: slot}])
	}
}

func (l *Leader) spawnCommander(b ballot.Ballot, slot ballot.Slot, p ballot.Proposal) {
	cid := ballot.CommanderId{Leader: l.node.Address(), Slot: slot, Proposal: p}
	if _, found := l.commanders[cid]; found {
		return
	}
	c := newCommander(l.node, l.members, l.quorum, b, slot, p, l, l.logger, l.metrics)
	l.commanders[cid] = c
	if l.metrics != nil {
		l.metrics.CommandersLive.Inc()
	}
	c.start()
}

// commanderDone retires a commander that reached DECISION.
func (l *Leader) commanderDone(cid ballot.CommanderId, birth time.Time) {
	l.retireCommander(cid, birth)
}

// commanderPreempted retires a commander that observed a higher ballot,
// and folds that ballot into this Leader's own preemption check.
func (l *Leader) commanderPreempted(cid ballot.CommanderId, birth time.Time, other ballot.Ballot) {
	l.retireCommander(cid, birth)
	l.preempted(other)
}

func (l *Leader) retireCommander(cid ballot.CommanderId, birth time.Time) {
	if _, found := l.commanders[cid]; !found {
		return
	}
	delete(l.commanders, cid)
	if l.metrics != nil {
		l.metrics.CommandersLive.Dec()
		l.metrics.CommanderLife.Observe(time.Since(birth).Seconds())
	}
}

// preempted is spec.md §4.4's shared preemption path: if other strictly
// outranks our current ballot, we go Inactive and adopt a fresh ballot
// strictly greater than other's, spawning a new scout to bid for it
// unless one is already live.
func (l *Leader) preempted(other ballot.Ballot) {
	if !other.GreaterThan(l.ballotNum) {
		return
	}
	l.active = false
	l.ballotNum = ballot.Ballot{N: other.N + 1, Leader: l.node.Address()}
	l.logger.Log("msg", "preempted", "new_ballot", l.ballotNum)
	l.spawnScout(l.ballotNum)
}

// HandlePropose is do_PROPOSE: a Replica asking this Leader to drive
// (slot, proposal) to decision. A slot already carrying a proposal is
// left untouched — the first proposal for a slot wins locally, matching
// spec.md §4.4's "first writer wins" rule for the proposals table.
func (l *Leader) HandlePropose(msg network.Propose) {
	if _, found := l.proposals.Get(int(msg.Slot)); found {
		return
	}
	l.proposals.Set(int(msg.Slot), msg.Proposal)
	if l.active {
		l.spawnCommander(l.ballotNum, msg.Slot, msg.Proposal)
	}
}

// HandlePromise routes a PROMISE to the live scout it was addressed to,
// if any; a PROMISE for a scout that has already finished is discarded.
func (l *Leader) HandlePromise(msg network.Promise) {
	if l.scout != nil && msg.ScoutId == l.scout.scoutId {
		l.scout.handlePromise(msg)
	}
}

// HandleAccepted routes an ACCEPTED to the live commander it was
// addressed to, if any.
func (l *Leader) HandleAccepted(msg network.Accepted) {
	if c, found := l.commanders[msg.CommanderId]; found {
		c.handleAccepted(msg)
	}
}

func (l *Leader) Status(sc *status.Consumer) {
	sc.Emitf("Leader ballot_num=%v active=%v", l.ballotNum, l.active)
	sc.Emitf("- %d live commander(s)", len(l.commanders))
	if l.scout != nil {
		fork := sc.Fork()
		l.scout.Status(fork)
		fork.Join()
	}
	sc.Join()
}
