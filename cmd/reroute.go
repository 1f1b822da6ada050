package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"routecore/pkg/reroute"
)

var (
	rerouteInputPath string
	rerouteOSRMURL   string
	rerouteWatch     bool
)

// stdoutSink prints every reroute notification to stdout as JSON, one per
// line, so a sweep can be piped into another process or a log aggregator.
type stdoutSink struct{}

func (stdoutSink) Publish(ctx context.Context, n reroute.Notification) error {
	return writeJSON(os.Stdout, n)
}

// fileSnapshotSource is a reroute.SnapshotSource backed by a static JSON
// file of agent snapshots, the standalone-CLI equivalent of a live
// GPS/schedule feed.
type fileSnapshotSource struct {
	path string
}

func (s fileSnapshotSource) ActiveAgents(ctx context.Context) ([]reroute.AgentSnapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file %s: %w", s.path, err)
	}
	var snapshots []reroute.AgentSnapshot
	if err := json.Unmarshal(raw, &snapshots); err != nil {
		return nil, fmt.Errorf("decode snapshot file %s: %w", s.path, err)
	}
	return snapshots, nil
}

var rerouteCmd = &cobra.Command{
	Use:   "reroute-sweep",
	Short: "Evaluate active agents' remaining-day feasibility and re-solve at-risk routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		store, err := buildCache(cfg)
		if err != nil {
			return err
		}
		svc := buildMatrixService(cfg, store, rerouteOSRMURL)
		registry := buildRegistry(cfg)
		engine := reroute.NewPredictiveReroutingEngine(svc, registry, stdoutSink{}, nil, cfg.Rerouting, cfg.Regional)

		source := fileSnapshotSource{path: rerouteInputPath}
		if !rerouteWatch {
			return engine.Sweep(ctx, source)
		}
		engine.RunSweepLoop(ctx, source)
		return nil
	},
}

func init() {
	rerouteCmd.Flags().StringVar(&rerouteInputPath, "input", "", "path to a JSON array of agent snapshots")
	rerouteCmd.Flags().StringVar(&rerouteOSRMURL, "osrm-url", "http://localhost:5000", "base URL of the OSRM-style road-network backend")
	rerouteCmd.Flags().BoolVar(&rerouteWatch, "watch", false, "run the sweep loop at rerouting.sweep_min intervals instead of once")
	_ = rerouteCmd.MarkFlagRequired("input")
}
