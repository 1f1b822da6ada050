// Package warmer implements the CacheWarmer (C10): a scheduled task that
// pre-populates the matrix cache, reference-data lookups, and today's
// per-agent plan ahead of business hours so the first real request of the
// day never pays a cold-cache penalty.
package warmer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/cache"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/geo"
	"routecore/pkg/logger"
	"routecore/pkg/matrix"
	"routecore/pkg/planner"
)

// FleetAgent is the minimal view CacheWarmer needs of an active agent.
type FleetAgent struct {
	ID      string
	Vehicle domain.Vehicle
	Clients []planner.Client
}

// FleetRepository is the read-only collaborator CacheWarmer enumerates
// agents and their client books through (spec.md §6 "Persistent entities
// consumed through Repository").
type FleetRepository interface {
	ActiveAgents(ctx context.Context) ([]FleetAgent, error)
}

// CacheWarmer is the C10 component.
type CacheWarmer struct {
	repo      FleetRepository
	matrixSvc *matrix.Service
	weekly    *planner.WeeklyPlanner
	store     cache.Cache
	cfg       config.WarmerConfig
	ttl       config.CacheTTLConfig
	clock     domain.Clock
}

// NewCacheWarmer builds a CacheWarmer. clock defaults to domain.RealClock.
func NewCacheWarmer(repo FleetRepository, matrixSvc *matrix.Service, weekly *planner.WeeklyPlanner, store cache.Cache, cfg config.WarmerConfig, ttl config.CacheTTLConfig, clock domain.Clock) *CacheWarmer {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if cfg.MinActiveClients <= 0 {
		cfg.MinActiveClients = 5
	}
	return &CacheWarmer{repo: repo, matrixSvc: matrixSvc, weekly: weekly, store: store, cfg: cfg, ttl: ttl, clock: clock}
}

// Run executes one warming pass: matrix precompute, reference-data cache,
// and today's plan synthesis for every qualifying agent, isolating
// per-agent failures (spec.md §4.10: "one failure does not skip subsequent
// agents").
func (w *CacheWarmer) Run(ctx context.Context) error {
	agents, err := w.repo.ActiveAgents(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeBackendUnavailable, "cache warmer: list active agents")
	}

	today := w.clock.Now()
	for _, agent := range agents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(agent.Clients) <= w.cfg.MinActiveClients {
			continue
		}
		if err := w.warmAgent(ctx, agent, today); err != nil {
			logger.Log.Warn("cache warmer: agent warm failed", "agent_id", agent.ID, "error", err)
		}
	}
	return nil
}

func (w *CacheWarmer) warmAgent(ctx context.Context, agent FleetAgent, today time.Time) error {
	coords := make([]geo.Coordinate, 0, len(agent.Clients)+1)
	coords = append(coords, agent.Vehicle.Depot.Coordinate)
	for _, c := range agent.Clients {
		coords = append(coords, c.Location.Coordinate)
	}

	if _, err := w.matrixSvc.Compute(ctx, coords); err != nil {
		return apperror.Wrap(err, apperror.CodeBackendUnavailable, "cache warmer: matrix precompute")
	}

	if err := w.cacheReferenceData(ctx, agent); err != nil {
		return err
	}

	planKey := dailyPlanKey(agent.ID, today)
	exists, err := w.store.Exists(ctx, planKey)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: plan cache lookup")
	}
	if exists {
		return nil
	}

	dayPlan, err := w.weekly.PlanDay(ctx, planner.Agent{ID: agent.ID, Vehicle: agent.Vehicle}, agent.Clients, today)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: plan synthesis")
	}

	payload, err := json.Marshal(dayPlan)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: marshal plan")
	}
	if err := w.store.Set(ctx, planKey, payload, w.ttl.AgentSchedule); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: plan cache write")
	}
	return nil
}

func (w *CacheWarmer) cacheReferenceData(ctx context.Context, agent FleetAgent) error {
	clientPayload, err := json.Marshal(agent.Clients)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: marshal client list")
	}
	if err := w.store.Set(ctx, clientListKey(agent.ID), clientPayload, w.ttl.ReferenceLookup); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: client list cache write")
	}

	vehiclePayload, err := json.Marshal(agent.Vehicle)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: marshal vehicle")
	}
	if err := w.store.Set(ctx, vehicleKey(agent.ID), vehiclePayload, w.ttl.ReferenceLookup); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "cache warmer: vehicle cache write")
	}
	return nil
}

func dailyPlanKey(agentID string, date time.Time) string {
	return fmt.Sprintf("plan:%s:%s", agentID, date.Format("2006-01-02"))
}

func clientListKey(agentID string) string {
	return fmt.Sprintf("refdata:clients:%s", agentID)
}

func vehicleKey(agentID string) string {
	return fmt.Sprintf("refdata:vehicle:%s", agentID)
}
