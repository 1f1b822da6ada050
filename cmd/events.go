package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"routecore/pkg/domain"
	"routecore/pkg/pipeline"
	"routecore/pkg/reroute"
)

var (
	eventsInputPath    string
	eventsSnapshotPath string
	eventsOSRMURL      string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Drain a batch of GPS/traffic/order events through the priority pipeline, rerouting agents as needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(eventsInputPath)
		if err != nil {
			return err
		}
		var events []domain.Event
		if err := json.Unmarshal(raw, &events); err != nil {
			return fmt.Errorf("decode events: %w", err)
		}

		snapshots, err := fileSnapshotSource{path: eventsSnapshotPath}.ActiveAgents(context.Background())
		if err != nil {
			return err
		}
		byAgent := make(map[string]reroute.AgentSnapshot, len(snapshots))
		for _, s := range snapshots {
			byAgent[s.AgentID] = s
		}

		store, err := buildCache(cfg)
		if err != nil {
			return err
		}
		svc := buildMatrixService(cfg, store, eventsOSRMURL)
		registry := buildRegistry(cfg)
		engine := reroute.NewPredictiveReroutingEngine(svc, registry, stdoutSink{}, nil, cfg.Rerouting, cfg.Regional)

		p := pipeline.NewPipeline(cfg.Pipeline)
		p.RegisterHandler(domain.EventGPS, gpsHandler(engine, byAgent))
		p.RegisterHandler(domain.EventTraffic, logOnlyHandler("traffic update"))
		p.RegisterHandler(domain.EventOrderCancel, logOnlyHandler("order cancelled"))
		p.RegisterHandler(domain.EventVisitComplete, logOnlyHandler("visit completed"))

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		p.Start(ctx)

		for _, e := range events {
			if err := p.Submit(e); err != nil {
				return fmt.Errorf("submit event %s: %w", e.Kind, err)
			}
		}
		p.Stop()

		for _, dl := range p.DeadLetters() {
			fmt.Fprintf(os.Stderr, "dead-lettered event kind=%s attempts=%d err=%v\n", dl.Event.Kind, dl.Attempts, dl.Err)
		}
		return nil
	},
}

// gpsHandler updates the snapshot's position from the event payload and
// runs the feasibility check, printing a Notification whenever the engine
// decides to re-solve or warn.
func gpsHandler(engine *reroute.PredictiveReroutingEngine, byAgent map[string]reroute.AgentSnapshot) pipeline.Handler {
	return func(ctx context.Context, e domain.Event) error {
		var payload domain.GPSPayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return fmt.Errorf("decode GPS payload: %w", err)
		}
		snapshot, ok := byAgent[payload.AgentID]
		if !ok {
			return fmt.Errorf("unknown agent %q in GPS event", payload.AgentID)
		}
		snapshot.CurrentLocation.Lat = payload.Lat
		snapshot.CurrentLocation.Lng = payload.Lng
		snapshot.AsOf = time.Now()
		byAgent[payload.AgentID] = snapshot

		result, err := engine.Reroute(ctx, snapshot)
		if err != nil {
			return err
		}
		if result.Notification.Kind == "" {
			return nil
		}
		return writeJSON(os.Stdout, result.Notification)
	}
}

// logOnlyHandler acknowledges event kinds routecore doesn't yet act on
// beyond recording that they were seen.
func logOnlyHandler(label string) pipeline.Handler {
	return func(ctx context.Context, e domain.Event) error {
		fmt.Fprintf(os.Stderr, "%s: %s\n", label, string(e.Payload))
		return nil
	}
}

func init() {
	eventsCmd.Flags().StringVar(&eventsInputPath, "input", "-", "path to a JSON array of pipeline events, or - for stdin")
	eventsCmd.Flags().StringVar(&eventsSnapshotPath, "snapshot-file", "", "path to a JSON array of agent snapshots, used to resolve GPS events to a full route context")
	eventsCmd.Flags().StringVar(&eventsOSRMURL, "osrm-url", "http://localhost:5000", "base URL of the OSRM-style road-network backend")
	_ = eventsCmd.MarkFlagRequired("snapshot-file")
}
