package warmer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecore/pkg/cache"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/geo"
	"routecore/pkg/matrix"
	"routecore/pkg/planner"
	"routecore/pkg/solver"
)

type haversineBackend struct{}

func (haversineBackend) Table(ctx context.Context, sources, dests []geo.Coordinate) (durations, distances [][]float64, err error) {
	durations = make([][]float64, len(sources))
	distances = make([][]float64, len(sources))
	for i, s := range sources {
		durations[i] = make([]float64, len(dests))
		distances[i] = make([]float64, len(dests))
		for j, d := range dests {
			meters := geo.Haversine(s, d)
			distances[i][j] = meters
			durations[i][j] = meters / 8.33
		}
	}
	return durations, distances, nil
}

func (haversineBackend) Route(ctx context.Context, coords []geo.Coordinate, overview string) (matrix.RouteGeometry, error) {
	return matrix.RouteGeometry{}, nil
}

func testMatrixService(t *testing.T) *matrix.Service {
	t.Helper()
	store := cache.NewMemoryCache(nil)
	return matrix.NewService(haversineBackend{}, store, "test", config.MatrixConfig{BatchSize: 50, MaxConcurrent: 2})
}

func testWeeklyPlanner(t *testing.T) *planner.WeeklyPlanner {
	t.Helper()
	registry := solver.NewRegistry(map[solver.SolverKind]solver.Factory{
		solver.KindGreedy2Opt: func() solver.Solver { return solver.NewGreedySolver(config.GreedyConfig{}) },
	}, []solver.SolverKind{solver.KindGreedy2Opt})
	return planner.NewWeeklyPlanner(testMatrixService(t), registry, nil, nil, config.PlannerConfig{MaxVisitsPerDay: 12}, config.RegionalConfig{})
}

func testFleetAgent(nClients int) FleetAgent {
	vehicle := domain.Vehicle{
		ID:         "agent-1",
		Depot:      domain.Location{Coordinate: geo.Coordinate{Lat: 41.3, Lng: 69.2}},
		Capacity:   domain.Capacity{WeightKg: 1000, VolumeM3: 10},
		WorkWindow: domain.WorkWindow{Start: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC)},
	}
	clients := make([]planner.Client, nClients)
	for i := 0; i < nClients; i++ {
		clients[i] = planner.Client{
			ID:       string(rune('a' + i)),
			Location: domain.Location{Coordinate: geo.Coordinate{Lat: 41.3 + float64(i)*0.01, Lng: 69.2 + float64(i)*0.01}},
			Demand:   domain.Demand{WeightKg: 5, VolumeM3: 0.1},
			Segment:  domain.SegmentB, // always due Monday
		}
	}
	return FleetAgent{ID: "agent-1", Vehicle: vehicle, Clients: clients}
}

type fakeRepo struct {
	agents []FleetAgent
}

func (r fakeRepo) ActiveAgents(ctx context.Context) ([]FleetAgent, error) {
	return r.agents, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestCacheWarmer_Run_SkipsAgentsBelowMinActiveClients(t *testing.T) {
	store := cache.NewMemoryCache(nil)
	repo := fakeRepo{agents: []FleetAgent{testFleetAgent(3)}} // below default min of 5
	w := NewCacheWarmer(repo, testMatrixService(t), testWeeklyPlanner(t), store, config.WarmerConfig{MinActiveClients: 5}, config.CacheTTLConfig{ReferenceLookup: time.Hour, AgentSchedule: 30 * time.Minute}, fixedClock{time.Date(2026, 1, 5, 4, 0, 0, 0, time.UTC)})

	require.NoError(t, w.Run(context.Background()))

	exists, err := store.Exists(context.Background(), clientListKey("agent-1"))
	require.NoError(t, err)
	assert.False(t, exists, "agent below min_active_clients must not be warmed")
}

func TestCacheWarmer_Run_WarmsReferenceDataAndPlan(t *testing.T) {
	store := cache.NewMemoryCache(nil)
	monday := time.Date(2026, 1, 5, 4, 0, 0, 0, time.UTC)
	repo := fakeRepo{agents: []FleetAgent{testFleetAgent(6)}}
	w := NewCacheWarmer(repo, testMatrixService(t), testWeeklyPlanner(t), store, config.WarmerConfig{MinActiveClients: 5}, config.CacheTTLConfig{ReferenceLookup: time.Hour, AgentSchedule: 30 * time.Minute}, fixedClock{monday})

	require.NoError(t, w.Run(context.Background()))

	clientsExist, err := store.Exists(context.Background(), clientListKey("agent-1"))
	require.NoError(t, err)
	assert.True(t, clientsExist)

	vehicleExists, err := store.Exists(context.Background(), vehicleKey("agent-1"))
	require.NoError(t, err)
	assert.True(t, vehicleExists)

	planExists, err := store.Exists(context.Background(), dailyPlanKey("agent-1", monday))
	require.NoError(t, err)
	assert.True(t, planExists)
}

func TestCacheWarmer_Run_DoesNotReplanIfAlreadyCached(t *testing.T) {
	store := cache.NewMemoryCache(nil)
	monday := time.Date(2026, 1, 5, 4, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(context.Background(), dailyPlanKey("agent-1", monday), []byte("{}"), time.Hour))

	repo := fakeRepo{agents: []FleetAgent{testFleetAgent(6)}}
	w := NewCacheWarmer(repo, testMatrixService(t), testWeeklyPlanner(t), store, config.WarmerConfig{MinActiveClients: 5}, config.CacheTTLConfig{ReferenceLookup: time.Hour, AgentSchedule: 30 * time.Minute}, fixedClock{monday})

	require.NoError(t, w.Run(context.Background()))

	value, err := store.Get(context.Background(), dailyPlanKey("agent-1", monday))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(value)) // untouched, not overwritten by a fresh synthesis
}

func TestNextOccurrence_RollsToTomorrowWhenPast(t *testing.T) {
	now := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	next := nextOccurrence(now, "05:00")
	assert.Equal(t, time.Date(2026, 1, 6, 5, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrence_SameDayWhenStillAhead(t *testing.T) {
	now := time.Date(2026, 1, 5, 4, 0, 0, 0, time.UTC)
	next := nextOccurrence(now, "05:00")
	assert.Equal(t, time.Date(2026, 1, 5, 5, 0, 0, 0, time.UTC), next)
}
