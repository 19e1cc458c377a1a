// Package metrics collects the prometheus instrumentation for the three
// consensus roles, mirroring the teacher's paxos.ProposerMetrics{Gauge,
// Lifespan} pattern: a live-instance gauge plus a lifespan histogram per
// kind of ephemeral sub-actor.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Roles bundles every metric a cluster member's three roles emit. One
// instance is shared by a member's Acceptor, Leader and Replica.
type Roles struct {
	ScoutsLive      prometheus.Gauge
	ScoutLifespan   prometheus.Observer
	CommandersLive  prometheus.Gauge
	CommanderLife   prometheus.Observer
	AcceptorPromise prometheus.Counter
	AcceptorAccept  prometheus.Counter
	ReplicaSlotNum  prometheus.Gauge
	ReplicaExecuted prometheus.Counter
}

// NewRoles constructs and registers a Roles bundle for the member
// identified by addr against reg. Every metric carries a constant
// member=addr label, so several members' bundles can be registered
// against one shared registry (as cmd/paxosdemo does) without colliding.
func NewRoles(reg prometheus.Registerer, addr string) *Roles {
	constLabels := prometheus.Labels{"member": addr}

	r := &Roles{
		ScoutsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "paxos",
			Subsystem:   "leader",
			Name:        "scouts_live",
			Help:        "Number of Scout sub-actors currently awaiting ballot adoption.",
			ConstLabels: constLabels,
		}),
		ScoutLifespan: newLifespanHistogram(reg, "scout", constLabels),
		CommandersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "paxos",
			Subsystem:   "leader",
			Name:        "commanders_live",
			Help:        "Number of Commander sub-actors currently awaiting a slot decision.",
			ConstLabels: constLabels,
		}),
		CommanderLife: newLifespanHistogram(reg, "commander", constLabels),
		AcceptorPromise: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paxos",
			Subsystem:   "acceptor",
			Name:        "promises_total",
			Help:        "Number of PREPARE requests answered with a PROMISE.",
			ConstLabels: constLabels,
		}),
		AcceptorAccept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paxos",
			Subsystem:   "acceptor",
			Name:        "accepts_total",
			Help:        "Number of ACCEPT requests honored (ballot_num >= promised).",
			ConstLabels: constLabels,
		}),
		ReplicaSlotNum: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "paxos",
			Subsystem:   "replica",
			Name:        "slot_num",
			Help:        "Next slot the Replica will execute.",
			ConstLabels: constLabels,
		}),
		ReplicaExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paxos",
			Subsystem:   "replica",
			Name:        "executed_total",
			Help:        "Number of decided proposals passed to execute_fn.",
			ConstLabels: constLabels,
		}),
	}

	for _, c := range []prometheus.Collector{
		r.ScoutsLive, r.CommandersLive, r.AcceptorPromise,
		r.AcceptorAccept, r.ReplicaSlotNum, r.ReplicaExecuted,
	} {
		reg.MustRegister(c)
	}
	return r
}

func newLifespanHistogram(reg prometheus.Registerer, subActor string, labels prometheus.Labels) prometheus.Observer {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "paxos",
		Subsystem:   "leader",
		Name:        subActor + "_lifespan_seconds",
		Help:        "Time from spawn to termination of a " + subActor + " sub-actor.",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	})
	reg.MustRegister(h)
	return h
}
