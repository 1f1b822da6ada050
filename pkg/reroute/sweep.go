package reroute

import (
	"context"
	"time"

	"routecore/pkg/logger"
)

// Sweep runs Reroute for every currently active agent, isolating failures
// per agent (§5: one agent's solver exhaustion must never block the rest
// of the fleet's sweep).
func (e *PredictiveReroutingEngine) Sweep(ctx context.Context, source SnapshotSource) error {
	snapshots, err := source.ActiveAgents(ctx)
	if err != nil {
		return err
	}

	for _, snapshot := range snapshots {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := e.Reroute(ctx, snapshot); err != nil {
			logger.Log.Warn("reroute sweep: agent failed", "agent_id", snapshot.AgentID, "error", err)
		}
	}
	return nil
}

// RunSweepLoop drives Sweep on a ticker at cfg.SweepMinutes until ctx is
// cancelled.
func (e *PredictiveReroutingEngine) RunSweepLoop(ctx context.Context, source SnapshotSource) {
	interval := time.Duration(e.cfg.SweepMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sweep(ctx, source); err != nil {
				logger.Log.Warn("reroute sweep failed", "error", err)
			}
		}
	}
}
