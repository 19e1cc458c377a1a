// Package network implements the external collaborator spec.md §6 calls
// the Node transport: message definitions, the abstract Node contract, a
// single-threaded per-member mailbox, and a simulated in-memory hub that
// delivers messages with configurable loss/duplication/reorder. The real
// wire transport and a production clock are explicitly out of scope
// (spec.md §1); this package is the concrete, testable stand-in the rest
// of the repository is built and tested against.
package network

import (
	"fmt"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
)

// Message is any of the eight wire kinds in spec.md §6. Kind exists
// purely for logging/metrics labels, mirroring the teacher's habit of
// tagging every capnp message with a Which() discriminator.
type Message interface {
	Kind() string
}

type Invoke struct {
	Caller address.Address
	Cid    ballot.ClientId
	Input  int64
}

func (Invoke) Kind() string { return "INVOKE" }

type Invoked struct {
	Cid    ballot.ClientId
	Output int64
}

func (Invoked) Kind() string { return "INVOKED" }

type Propose struct {
	Slot     ballot.Slot
	Proposal ballot.Proposal
}

func (Propose) Kind() string { return "PROPOSE" }

type Decision struct {
	Slot     ballot.Slot
	Proposal ballot.Proposal
}

func (Decision) Kind() string { return "DECISION" }

type Prepare struct {
	ScoutId   ballot.ScoutId
	BallotNum ballot.Ballot
}

func (Prepare) Kind() string { return "PREPARE" }

type Promise struct {
	ScoutId   ballot.ScoutId
	Acceptor  address.Address
	BallotNum ballot.Ballot
	// Accepted is a snapshot of the Acceptor's full (ballot,slot)->proposal
	// map at reply time, per spec.md §4.1.
	Accepted map[ballot.PValKey]ballot.Proposal
}

func (Promise) Kind() string { return "PROMISE" }

type Accept struct {
	CommanderId ballot.CommanderId
	BallotNum   ballot.Ballot
	Slot        ballot.Slot
	Proposal    ballot.Proposal
}

func (Accept) Kind() string { return "ACCEPT" }

type Accepted struct {
	CommanderId ballot.CommanderId
	Acceptor    address.Address
	BallotNum   ballot.Ballot
}

func (Accepted) Kind() string { return "ACCEPTED" }

func (i Invoke) String() string {
	return fmt.Sprintf("INVOKE{caller=%s cid=%v input=%d}", i.Caller, i.Cid, i.Input)
}
