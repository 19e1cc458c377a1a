// Package address defines the opaque, totally-ordered member identifier
// shared by every consensus role.
package address

// Address identifies a cluster member. It is opaque to the consensus
// protocol except for its total order, which is used as the tiebreaker
// component of a Ballot.
type Address string

// Less reports whether a sorts strictly before b under the total order
// used for ballot tiebreaking.
func Less(a, b Address) bool {
	return a < b
}

// List is a totally ordered set of cluster members, used wherever a
// message must be broadcast to every member (PROPOSE, PREPARE, ACCEPT,
// DECISION all fan out over a List).
type List []Address
