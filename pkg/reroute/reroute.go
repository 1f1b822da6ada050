// Package reroute implements the PredictiveReroutingEngine (C8): given an
// agent's current position and remaining planned visits, it projects
// whether the rest of the day is still feasible under current traffic
// conditions and, when predicted delay crosses the auto-reroute threshold,
// re-solves the remaining visits anchored at the agent's current location.
package reroute

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/geo"
	"routecore/pkg/logger"
	"routecore/pkg/matrix"
	"routecore/pkg/metrics"
	"routecore/pkg/solver"
)

// AgentSnapshot is a point-in-time read of one agent's remaining day: where
// they are now, and which planned visits are still ahead of them.
type AgentSnapshot struct {
	AgentID         string
	Vehicle         domain.Vehicle
	CurrentLocation geo.Coordinate
	AsOf            time.Time
	RemainingVisits []domain.Job
	Region          string // key into config.RegionalConfig.TrafficMultipliers
}

// NotificationKind identifies the structured event the engine emits via
// EventSink.
type NotificationKind string

const (
	NotificationRouteUpdated  NotificationKind = "ROUTE_UPDATED"
	NotificationDelayWarning  NotificationKind = "DELAY_WARNING"
	NotificationDelayCritical NotificationKind = "DELAY_CRITICAL"
	NotificationRerouteFailed NotificationKind = "REROUTE_FAILED"
)

// Notification is the payload the engine publishes to the EventSink.
type Notification struct {
	Kind             NotificationKind
	AgentID          string
	Reason           string
	DelayMinutes     float64
	At               time.Time
	AtRiskVisitIDs   []string
	CriticalVisitIDs []string
}

// EventSink is the fire-and-forget publish collaborator (§6). Delivery
// reliability is the sink's responsibility, not the engine's.
type EventSink interface {
	Publish(ctx context.Context, n Notification) error
}

// SnapshotSource supplies the fleet-wide sweep with the current set of
// agents that have an active plan for today.
type SnapshotSource interface {
	ActiveAgents(ctx context.Context) ([]AgentSnapshot, error)
}

// Result is what Reroute returns: whether a reroute happened, and the fresh
// Solution if so.
type Result struct {
	Notification Notification
	Solution     *domain.Solution // nil unless Notification.Kind == NotificationRouteUpdated
}

// PredictiveReroutingEngine is the C8 component.
type PredictiveReroutingEngine struct {
	matrixSvc *matrix.Service
	registry  *solver.Registry
	sink      EventSink
	clock     domain.Clock
	cfg       config.ReroutingConfig
	regional  config.RegionalConfig

	flight singleflight.Group
}

// NewPredictiveReroutingEngine builds an engine. clock defaults to
// domain.RealClock if nil.
func NewPredictiveReroutingEngine(matrixSvc *matrix.Service, registry *solver.Registry, sink EventSink, clock domain.Clock, cfg config.ReroutingConfig, regional config.RegionalConfig) *PredictiveReroutingEngine {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &PredictiveReroutingEngine{matrixSvc: matrixSvc, registry: registry, sink: sink, clock: clock, cfg: cfg, regional: regional}
}

// Reroute runs the feasibility check for one agent and, if warranted,
// re-solves and emits ROUTE_UPDATED. Concurrent calls for the same
// AgentID are coalesced into a single in-flight computation via
// singleflight (property 9): every caller gets the same Result.
func (e *PredictiveReroutingEngine) Reroute(ctx context.Context, snapshot AgentSnapshot) (*Result, error) {
	v, err, _ := e.flight.Do(snapshot.AgentID, func() (any, error) {
		return e.rerouteOnce(ctx, snapshot)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *PredictiveReroutingEngine) rerouteOnce(ctx context.Context, snapshot AgentSnapshot) (*Result, error) {
	if len(snapshot.RemainingVisits) == 0 {
		return &Result{Notification: Notification{Kind: NotificationDelayWarning, AgentID: snapshot.AgentID, Reason: "no_remaining_visits", At: e.clock.Now()}}, nil
	}

	coords := make([]geo.Coordinate, 0, len(snapshot.RemainingVisits)+1)
	coords = append(coords, snapshot.CurrentLocation)
	for _, j := range snapshot.RemainingVisits {
		coords = append(coords, j.Location.Coordinate)
	}

	miniMatrix, err := e.matrixSvc.Compute(ctx, coords)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, "reroute feasibility matrix compute")
	}

	projection := projectRemainingDay(snapshot, miniMatrix, e.regional, e.cfg)

	if projection.TotalPredictedDelayMinutes <= float64(e.cfg.AutoMinutes) {
		notification := Notification{
			AgentID:          snapshot.AgentID,
			Reason:           "predicted_delay",
			DelayMinutes:     projection.TotalPredictedDelayMinutes,
			At:               e.clock.Now(),
			AtRiskVisitIDs:   projection.AtRiskJobIDs,
			CriticalVisitIDs: projection.CriticalJobIDs,
		}
		switch {
		case len(projection.CriticalJobIDs) > 0:
			notification.Kind = NotificationDelayCritical
			metrics.Get().RecordRerouteEvaluation("critical")
		case len(projection.AtRiskJobIDs) > 0:
			notification.Kind = NotificationDelayWarning
			metrics.Get().RecordRerouteEvaluation("warning")
		default:
			metrics.Get().RecordRerouteEvaluation("on_schedule")
			// Fully on schedule: no user-visible signal (property 10).
			return &Result{}, nil
		}
		e.publish(ctx, notification)
		return &Result{Notification: notification}, nil
	}

	metrics.Get().RecordRerouteEvaluation("auto")

	problem := rerouteProblem(snapshot)
	problem.Matrix = miniMatrix

	sol, err := e.registry.SolveWithFallback(ctx, problem, solver.KindGreedy2Opt)
	if err != nil {
		notification := Notification{
			Kind:         NotificationRerouteFailed,
			AgentID:      snapshot.AgentID,
			Reason:       "all_solvers_failed",
			DelayMinutes: projection.TotalPredictedDelayMinutes,
			At:           e.clock.Now(),
		}
		e.publish(ctx, notification)
		logger.Log.Warn("reroute failed, keeping existing schedule", "agent_id", snapshot.AgentID, "error", err)
		return &Result{Notification: notification}, nil
	}

	metrics.Get().RecordRerouteTriggered("auto")
	notification := Notification{
		Kind:         NotificationRouteUpdated,
		AgentID:      snapshot.AgentID,
		Reason:       "predicted_delay",
		DelayMinutes: projection.TotalPredictedDelayMinutes,
		At:           e.clock.Now(),
	}
	e.publish(ctx, notification)
	return &Result{Notification: notification, Solution: sol}, nil
}

func (e *PredictiveReroutingEngine) publish(ctx context.Context, n Notification) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, n); err != nil {
		logger.Log.Warn("event sink publish failed", "kind", n.Kind, "agent_id", n.AgentID, "error", err)
	}
}

// rerouteProblem builds a single-vehicle Problem over the agent's remaining
// visits, anchored at their current GPS position rather than the depot.
func rerouteProblem(snapshot AgentSnapshot) *domain.Problem {
	vehicle := snapshot.Vehicle
	vehicle.Depot = domain.Location{Coordinate: snapshot.CurrentLocation}
	vehicle.WorkWindow.Start = snapshot.AsOf

	return &domain.Problem{
		Jobs:            snapshot.RemainingVisits,
		Vehicles:        []domain.Vehicle{vehicle},
		HasTimeWindows:  true,
		HasCapacity:     true,
		AllowUnassigned: true,
	}
}
