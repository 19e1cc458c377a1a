// Package ballot holds the data model shared by every Paxos role: Ballot,
// Slot, Proposal/ClientId, and the correlation identifiers ScoutId and
// CommanderId. See spec.md §3 DATA MODEL.
package ballot

import (
	"fmt"

	"paxoscluster.dev/consensus/internal/address"
)

// Slot is the position of a proposal in the agreed sequence.
type Slot int

// Ballot is (n, leader_address), totally ordered lexicographically:
// (n1,a1) < (n2,a2) iff n1<n2, or n1==n2 and a1<a2.
type Ballot struct {
	N      int
	Leader address.Address
}

// Zero is the sentinel ballot (-1,-1): less than every real ballot ever
// produced, since real ballots start at N=0.
var Zero = Ballot{N: -1, Leader: ""}

// Less reports whether b sorts strictly before o.
func (b Ballot) Less(o Ballot) bool {
	if b.N != o.N {
		return b.N < o.N
	}
	return b.Leader < o.Leader
}

// GreaterThan reports whether b sorts strictly after o.
func (b Ballot) GreaterThan(o Ballot) bool {
	return o.Less(b)
}

func (b Ballot) String() string {
	return fmt.Sprintf("(%d,%s)", b.N, b.Leader)
}

// ClientId uniquely identifies one client invocation for deduplication at
// the Replica: (caller_address, client_request_id).
type ClientId struct {
	Caller    address.Address
	RequestId uint64
}

func (c ClientId) String() string {
	return fmt.Sprintf("%s#%d", c.Caller, c.RequestId)
}

// Proposal is the value being agreed: (caller, cid, input). Two Proposals
// are equal iff all three fields are equal, which holds here for free
// since Proposal is a comparable struct.
type Proposal struct {
	Caller address.Address
	Cid    ClientId
	Input  int64
}

func (p Proposal) String() string {
	return fmt.Sprintf("Proposal{%s,%v,%d}", p.Caller, p.Cid, p.Input)
}

// ScoutId correlates PROMISE replies to the scout that sent the PREPARE:
// (leader_address, ballot).
type ScoutId struct {
	Leader address.Address
	Ballot Ballot
}

func (s ScoutId) String() string {
	return fmt.Sprintf("Scout{%s,%v}", s.Leader, s.Ballot)
}

// CommanderId correlates ACCEPTED replies to a specific commander
// instance: (leader_address, slot, proposal).
type CommanderId struct {
	Leader   address.Address
	Slot     Slot
	Proposal Proposal
}

func (c CommanderId) String() string {
	return fmt.Sprintf("Commander{%s,%d,%v}", c.Leader, c.Slot, c.Proposal)
}

// PValKey indexes an Acceptor's accepted map and a Scout's pvals
// accumulator: (ballot, slot) -> proposal.
type PValKey struct {
	Ballot Ballot
	Slot   Slot
}
