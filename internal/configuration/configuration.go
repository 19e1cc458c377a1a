// Package configuration describes static cluster membership, generalized
// from the teacher repository's configuration.Topology/Configuration:
// there, F/TwoFInc are derived from the membership list once and cached;
// here the floor(N/2)+1 Paxos quorum is derived from it on each call to
// Quorum. Dynamic
// reconfiguration is a non-goal (spec.md §1) so this type never changes
// shape after construction.
package configuration

import (
	"encoding/json"
	"fmt"
	"os"

	"paxoscluster.dev/consensus/internal/address"
)

// Configuration is the static, whole-lifetime membership of one cluster.
type Configuration struct {
	Members address.List `json:"members"`
}

// New builds a Configuration from an explicit member list. Panics on an
// empty list: a cluster of zero members has no defined quorum.
func New(members ...address.Address) *Configuration {
	if len(members) == 0 {
		panic("configuration: a cluster must have at least one member")
	}
	cfg := &Configuration{Members: append(address.List(nil), members...)}
	return cfg
}

// Load reads a JSON configuration file of the form {"members": ["a","b","c"]}.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configuration: reading %s: %w", path, err)
	}
	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configuration: parsing %s: %w", path, err)
	}
	if len(cfg.Members) == 0 {
		return nil, fmt.Errorf("configuration: %s declares no members", path)
	}
	return &cfg, nil
}

// Quorum is floor(N/2)+1 computed from the current, static cluster size.
// Integer division is used explicitly per spec.md §9.
func (c *Configuration) Quorum() int {
	return len(c.Members)/2 + 1
}

func (c *Configuration) Size() int {
	return len(c.Members)
}
