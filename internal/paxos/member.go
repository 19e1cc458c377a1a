package paxos

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/ballot"
	"paxoscluster.dev/consensus/internal/metrics"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/status"
)

// Member is the composite cluster participant of spec.md §4.6: it runs
// exactly one Acceptor, one Leader, and one Replica[S] side by side,
// dispatching each inbound Message to the single role that owns its
// kind. The three roles share no mutable fields; every interaction
// between them crosses Message boundaries (PROPOSE/DECISION) or direct
// callback (scout/commander finished), never a shared struct field,
// matching spec.md §4.6's "no shared mutable state between roles."
//
// Grounded on the teacher's client/vsvc.go and cmd/goshawkdb/main.go: a
// single top-level object wiring together the member's sub-components
// and handed to the connection layer as the one thing messages arrive
// at.
type Member[S any] struct {
	node     network.Node
	Acceptor *Acceptor
	Leader   *Leader
	Replica  *Replica[S]
}

// NewMember wires up a fresh Acceptor, Leader, and Replica[S] sharing
// one Node and one cluster membership list.
func NewMember[S any](node network.Node, members address.List, quorum int, scoutInterval time.Duration, fn ExecuteFn[S], initial S, logger log.Logger, m *metrics.Roles) *Member[S] {
	logger = log.With(logger, "member", node.Address())
	return &Member[S]{
		node:     node,
		Acceptor: NewAcceptor(node, logger, m),
		Leader:   NewLeader(node, members, quorum, scoutInterval, logger, m),
		Replica:  NewReplica[S](node, members, fn, initial, logger, m),
	}
}

// Start begins this member's bid for leadership. Every member runs a
// Leader concurrently (spec.md §1): only one will ever win adoption and
// stay Active absent further failures, but any member may need to step
// up if the current leader stalls or partitions away.
func (mem *Member[S]) Start() {
	mem.Leader.Start()
}

// Deliver routes msg to the one role that handles its kind, implementing
// network.Receiver. This stands in for the spec's dynamic
// "do_<KIND_UPPERCASE>(**fields)" dispatch with a plain type switch.
func (mem *Member[S]) Deliver(from address.Address, msg network.Message) {
	switch v := msg.(type) {
	case network.Invoke:
		mem.Replica.HandleInvoke(v)
	case network.Decision:
		mem.Replica.HandleDecision(v)
	case network.Propose:
		mem.Leader.HandlePropose(v)
	case network.Promise:
		mem.Leader.HandlePromise(v)
	case network.Prepare:
		mem.Acceptor.HandlePrepare(from, v)
	case network.Accept:
		mem.Acceptor.HandleAccept(from, v)
	case network.Accepted:
		mem.Leader.HandleAccepted(v)
	}
}

// Status builds the fork/join introspection tree for this member's three
// roles, in the style of the teacher's per-component StatusConsumer use.
func (mem *Member[S]) Status() string {
	sc := status.NewConsumer()
	sc.Emitf("Member %s", mem.node.Address())
	fork := sc.Fork()
	mem.Acceptor.Status(fork)
	mem.Leader.Status(fork)
	mem.Replica.Status(fork)
	fork.Join()
	sc.Join()
	return sc.String()
}

// Client is a minimal network.Receiver for a cluster client: it only
// ever receives INVOKED replies, matching them back to the caller that
// is blocked waiting for each one. Grounded on the teacher's
// client/asyncclient.go request/response correlation table.
//
// Every correct Replica answers its own INVOKE independently (spec.md
// §4.5), so a client broadcasting to the whole cluster should expect
// one INVOKED per member, not one in total. Client absorbs that
// fan-in itself, surfacing only the first reply for each ClientId and
// silently dropping the rest — the inbound side of the same dedup the
// Replica already performs on the request side.
type Client struct {
	node    network.Node
	pending chan network.Invoked
	seen    map[ballot.ClientId]bool
}

// NewClient builds a client that sends and receives through node, which
// the caller has already joined to the transport. replyBuffer bounds how
// many first replies may wait unread; once it is full, Deliver blocks
// until Await takes one.
func NewClient(node network.Node, replyBuffer int) *Client {
	return &Client{
		node:    node,
		pending: make(chan network.Invoked, replyBuffer),
		seen:    make(map[ballot.ClientId]bool),
	}
}

// Deliver is called once per INVOKED received, serialized by this
// client's own Mailbox — Deliver's map access needs no locking.
func (c *Client) Deliver(from address.Address, msg network.Message) {
	invoked, ok := msg.(network.Invoked)
	if !ok || c.seen[invoked.Cid] {
		return
	}
	c.seen[invoked.Cid] = true
	c.pending <- invoked
}

// Invoke sends input to every member in members under a fresh,
// uuid-derived ClientId, returning it so the caller can correlate it
// against a subsequent Await. A random request id (rather than a
// caller-supplied counter) is what lets an unmodified client be pointed
// at a different cluster, or restarted, without risking a collision
// with a request id some other client already used — the client retry
// dedup in Replica.HandleInvoke depends on (Caller, RequestId) never
// being reused for two distinct requests.
func (c *Client) Invoke(members address.List, input int64) ballot.ClientId {
	requestId := requestIdFromUUID(uuid.New())
	cid := ballot.ClientId{Caller: c.node.Address(), RequestId: requestId}
	c.node.Send(members, network.Invoke{
		Caller: c.node.Address(),
		Cid:    cid,
		Input:  input,
	})
	return cid
}

func requestIdFromUUID(id uuid.UUID) uint64 {
	var n uint64
	for _, b := range id[:8] {
		n = n<<8 | uint64(b)
	}
	return n
}

// Await blocks until the next INVOKED reply arrives, or the context-free
// timeout elapses.
func (c *Client) Await(timeout time.Duration) (network.Invoked, bool) {
	select {
	case r := <-c.pending:
		return r, true
	case <-time.After(timeout):
		return network.Invoked{}, false
	}
}
