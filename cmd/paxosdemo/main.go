// Command paxosdemo runs a small in-process Multi-Paxos cluster over the
// simulated network.Hub transport, drives a handful of client requests
// through it, and prints each member's final status tree. It exists to
// give the consensus core in internal/paxos a runnable, observable
// harness, the same role the teacher's cmd/goshawkdb/main.go plays for
// the full server — wiring configuration, logging, and metrics together
// and handing control to the long-lived components.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"paxoscluster.dev/consensus/internal/address"
	"paxoscluster.dev/consensus/internal/configuration"
	"paxoscluster.dev/consensus/internal/metrics"
	"paxoscluster.dev/consensus/internal/network"
	"paxoscluster.dev/consensus/internal/paxos"
	"paxoscluster.dev/consensus/internal/statemachine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paxosdemo",
		Short: "Run a simulated Multi-Paxos cluster and drive it with client requests.",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configFile string
		members    int
		requests   int
		lossProb   float64
		dupProb    float64
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a cluster, invoke a sequence of requests, and print status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
			logger = log.With(logger, "ts", log.DefaultTimestampUTC)

			cfg, err := loadOrDefaultConfig(configFile, members)
			if err != nil {
				return err
			}
			logger.Log("msg", "starting cluster", "members", cfg.Size(), "quorum", cfg.Quorum())

			rng := rand.New(rand.NewSource(seed))
			hub := network.NewHub(rng, lossProb, dupProb, time.Millisecond, 8*time.Millisecond)
			defer hub.Shutdown()

			registry := prometheus.NewRegistry()
			membersByAddr := make(map[address.Address]*paxos.Member[statemachine.Sequence])
			for _, addr := range cfg.Members {
				node := hub.Join(addr, nil)
				m := metrics.NewRoles(registry, string(addr))
				mem := paxos.NewMember[statemachine.Sequence](node, cfg.Members, cfg.Quorum(), 100*time.Millisecond, statemachine.Generator, statemachine.Sequence{}, logger, m)
				membersByAddr[addr] = mem
			}
			// Join wires a Node to a Receiver before the Receiver exists for
			// every member, so each member's Deliver is registered in a
			// second pass rather than threaded through Join's signature.
			for addr, mem := range membersByAddr {
				hub.Rewire(addr, mem)
				mem.Start()
			}

			clientAddr := address.Address("client-1")
			clientNode := hub.Join(clientAddr, nil)
			client := paxos.NewClient(clientNode, requests)
			hub.Rewire(clientAddr, client)

			for i := 0; i < requests; i++ {
				client.Invoke(cfg.Members, int64(i*10))
			}
			for i := 0; i < requests; i++ {
				reply, ok := client.Await(2 * time.Second)
				if !ok {
					logger.Log("msg", "timed out waiting for reply", "request", i+1)
					continue
				}
				fmt.Printf("request %d -> output %d (cid=%v)\n", i+1, reply.Output, reply.Cid)
			}

			time.Sleep(50 * time.Millisecond)
			for _, addr := range cfg.Members {
				fmt.Println(membersByAddr[addr].Status())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to a JSON cluster configuration file ({\"members\":[...]}). If empty, a synthetic cluster of --members is generated.")
	cmd.Flags().IntVar(&members, "members", 5, "Number of synthetic members to generate when --config is not given.")
	cmd.Flags().IntVar(&requests, "requests", 5, "Number of client requests to invoke.")
	cmd.Flags().Float64Var(&lossProb, "loss", 0, "Simulated per-message loss probability in [0,1).")
	cmd.Flags().Float64Var(&dupProb, "dup", 0, "Simulated per-message duplication probability in [0,1).")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed for the simulated network.")
	return cmd
}

func loadOrDefaultConfig(path string, members int) (*configuration.Configuration, error) {
	if path != "" {
		return configuration.Load(path)
	}
	if members < 1 {
		return nil, fmt.Errorf("paxosdemo: --members must be at least 1")
	}
	addrs := make([]address.Address, members)
	for i := range addrs {
		addrs[i] = address.Address(fmt.Sprintf("member-%d", i+1))
	}
	return configuration.New(addrs...), nil
}
