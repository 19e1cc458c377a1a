package paxos

import (
	"fmt"

	"github.com/go-kit/kit/log"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/metrics"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/slotmap"
	"paxoscluster.dev/consensus/internal/status"
)

// ExecuteFn is the deterministic state-transition function required by
// spec.md §6: given the current state and one decided input, it returns
// the new state and the output to send back to the invoking client. It
// must be total and deterministic — every correct Replica computes the
// same sequence of outputs from the same sequence of decided inputs.
type ExecuteFn[S any] func(state S, input int64) (S, int64)

// Replica implements spec.md §4.5: it accepts client INVOKEs, proposes
// each into the slot just past every slot it has proposed or seen
// decided, tracks DECISIONs as they arrive
// (possibly out of order and with gaps), and executes the agreed log in
// slot order, re-proposing any of its own proposals that lost their
// slot to a different value.
//
// Grounded on the teacher's TxnEngine (txnengine/txn.go): the part of a
// member that turns an agreed order into applied state and replies to
// the original submitter, generalized here from 2PC commit records to
// the generic slot/proposal model of spec.md §3.
type Replica[S any] struct {
	node      network.Node
	members   address.List
	executeFn ExecuteFn[S]
	state     S

	slotNum   int
	proposals slotmap.Map[ballot.Proposal]
	decisions slotmap.Map[ballot.Proposal]

	logger  log.Logger
	metrics *metrics.Roles
}

// NewReplica constructs a Replica at slot 0 with the given initial state.
func NewReplica[S any](node network.Node, members address.List, fn ExecuteFn[S], initial S, logger log.Logger, m *metrics.Roles) *Replica[S] {
	return &Replica[S]{
		node:      node,
		members:   members,
		executeFn: fn,
		state:     initial,
		logger:    log.With(logger, "role", "replica"),
		metrics:   m,
	}
}

// HandleInvoke is do_INVOKE: a client request arrives. A request already
// present anywhere in our proposals table is a client retry (its earlier
// send was merely slow, not lost) and must not be proposed a second
// time, per spec.md §4.5's dedup rule.
func (r *Replica[S]) HandleInvoke(msg network.Invoke) {
	proposal := ballot.Proposal{Caller: msg.Caller, Cid: msg.Cid, Input: msg.Input}
	if _, found := slotmap.Contains(&r.proposals, proposal); found {
		r.logger.Log("msg", "duplicate INVOKE ignored", "cid", msg.Cid)
		return
	}
	r.propose(proposal)
}

// propose assigns p the slot max(proposals.Len(), decisions.Len()), one
// past the highest slot holding a proposal of ours or a decision (lower
// empty slots are not reused), and broadcasts PROPOSE(slot, p) to every
// Leader.
func (r *Replica[S]) propose(p ballot.Proposal) {
	slot := r.proposals.Len()
	if d := r.decisions.Len(); d > slot {
		slot = d
	}
	r.proposals.Set(slot, p)
	r.logger.Log("msg", "PROPOSE", "slot", slot, "proposal", p)
	r.node.Send(r.members, network.Propose{Slot: ballot.Slot(slot), Proposal: p})
}

// HandleDecision is do_DECISION: a slot has been agreed. Per spec.md §9
// ("Replica decision conflicts"), the same slot decided twice must always
// carry the same value — seeing otherwise indicates a safety violation
// elsewhere in the system, so it is reported loudly rather than silently
// tolerated.
func (r *Replica[S]) HandleDecision(msg network.Decision) {
	if existing, found := r.decisions.Get(int(msg.Slot)); found {
		if existing != msg.Proposal {
			panic(fmt.Sprintf("replica: conflicting decisions for slot %d: %v vs %v", msg.Slot, existing, msg.Proposal))
		}
		return
	}
	r.decisions.Set(int(msg.Slot), msg.Proposal)
	r.drain()
}

// drain executes every contiguously-decided slot starting at slotNum,
// re-proposing any of our own proposals that a decision overrode and
// skipping (without re-executing) any decision that is a duplicate of
// one already executed.
func (r *Replica[S]) drain() {
	for {
		decided, ok := r.decisions.Get(r.slotNum)
		if !ok {
			return
		}

		if ours, ok := r.proposals.Get(r.slotNum); ok && ours != decided {
			r.propose(ours)
		}

		if _, dup := slotmap.ContainsBefore(&r.decisions, decided, r.slotNum); dup {
			r.slotNum++
			if r.metrics != nil {
				r.metrics.ReplicaSlotNum.Set(float64(r.slotNum))
			}
			continue
		}

		var output int64
		r.state, output = r.executeFn(r.state, decided.Input)
		r.node.Send(address.List{decided.Caller}, network.Invoked{Cid: decided.Cid, Output: output})
		r.logger.Log("msg", "executed", "slot", r.slotNum, "cid", decided.Cid)
		r.slotNum++

		if r.metrics != nil {
			r.metrics.ReplicaExecuted.Inc()
			r.metrics.ReplicaSlotNum.Set(float64(r.slotNum))
		}
	}
}

func (r *Replica[S]) Status(sc *status.Consumer) {
	sc.Emitf("Replica slot_num=%d decisions=%d proposals=%d", r.slotNum, r.decisions.Len(), r.proposals.Len())
}
