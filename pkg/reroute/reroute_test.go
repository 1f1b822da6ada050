package reroute

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecore/pkg/cache"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/geo"
	"routecore/pkg/matrix"
	"routecore/pkg/solver"
)

// haversineBackend is a fake matrix.Backend: no network, exact Haversine
// durations at a fixed speed.
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

func testRegistry() *solver.Registry {
	return solver.NewRegistry(map[solver.SolverKind]solver.Factory{
		solver.KindGreedy2Opt: func() solver.Solver { return solver.NewGreedySolver(config.GreedyConfig{}) },
	}, []solver.SolverKind{solver.KindGreedy2Opt})
}

type recordingSink struct {
	mu            sync.Mutex
	notifications []Notification
}

func (s *recordingSink) Publish(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *recordingSink) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func testVehicle() domain.Vehicle {
	return domain.Vehicle{
		ID:       "agent-1",
		Capacity: domain.Capacity{WeightKg: 1000, VolumeM3: 10},
	}
}

func nearbyJob(id string, offset float64, deadline time.Time) domain.Job {
	return domain.Job{
		ID: id,
		Location: domain.Location{
			Coordinate: geo.Coordinate{Lat: 41.3 + offset, Lng: 69.2 + offset},
			TimeWindow: &domain.TimeWindow{Earliest: deadline.Add(-2 * time.Hour), Latest: deadline},
		},
		Demand: domain.Demand{WeightKg: 5, VolumeM3: 0.1},
	}
}

func TestReroute_OnSchedule_NoNotification(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	engine := NewPredictiveReroutingEngine(testMatrixService(t), testRegistry(), nil, fixedClock{now}, config.ReroutingConfig{WarningMinutes: 15, CriticalMinutes: 30, AutoMinutes: 20}, config.RegionalConfig{})

	snapshot := AgentSnapshot{
		AgentID:         "agent-1",
		Vehicle:         testVehicle(),
		CurrentLocation: geo.Coordinate{Lat: 41.3, Lng: 69.2},
		AsOf:            now,
		Region:          "default",
		RemainingVisits: []domain.Job{nearbyJob("j1", 0.01, now.Add(6*time.Hour))},
	}

	result, err := engine.Reroute(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Empty(t, result.Notification.Kind)
	assert.Nil(t, result.Solution)
}

func TestReroute_CriticalDelay_TriggersReroute(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	regional := config.RegionalConfig{
		TrafficMultipliers: map[string]map[string]float64{
			"default": {"morning": 50.0, "midday": 50.0, "evening": 50.0},
		},
	}
	engine := NewPredictiveReroutingEngine(testMatrixService(t), testRegistry(), sink, fixedClock{now}, config.ReroutingConfig{WarningMinutes: 15, CriticalMinutes: 30, AutoMinutes: 20}, regional)

	// A very tight deadline combined with a huge traffic multiplier makes the
	// projected arrival blow past Latest by well over the auto-reroute
	// threshold.
	snapshot := AgentSnapshot{
		AgentID:         "agent-1",
		Vehicle:         testVehicle(),
		CurrentLocation: geo.Coordinate{Lat: 41.3, Lng: 69.2},
		AsOf:            now,
		Region:          "default",
		RemainingVisits: []domain.Job{nearbyJob("j1", 0.5, now.Add(1*time.Minute))},
	}

	result, err := engine.Reroute(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, NotificationRouteUpdated, result.Notification.Kind)
	require.NotNil(t, result.Solution)

	notifications := sink.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, NotificationRouteUpdated, notifications[0].Kind)
}

func TestReroute_WarningDelay_EmitsWarningWithoutResolve(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	regional := config.RegionalConfig{
		TrafficMultipliers: map[string]map[string]float64{
			"default": {"morning": 3.0, "midday": 3.0, "evening": 3.0},
		},
	}
	engine := NewPredictiveReroutingEngine(testMatrixService(t), testRegistry(), sink, fixedClock{now}, config.ReroutingConfig{WarningMinutes: 5, CriticalMinutes: 60, AutoMinutes: 90}, regional)

	snapshot := AgentSnapshot{
		AgentID:         "agent-1",
		Vehicle:         testVehicle(),
		CurrentLocation: geo.Coordinate{Lat: 41.3, Lng: 69.2},
		AsOf:            now,
		Region:          "default",
		RemainingVisits: []domain.Job{nearbyJob("j1", 0.05, now.Add(5*time.Minute))},
	}

	result, err := engine.Reroute(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, NotificationDelayWarning, result.Notification.Kind)
	assert.Nil(t, result.Solution)
}

// TestReroute_SingleFlight_ConcurrentCallsAllSucceed fires 20 concurrent
// Reroute calls for the same agent through the singleflight guard and checks
// that every caller gets a result without error.
func TestReroute_SingleFlight_ConcurrentCallsAllSucceed(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	engine := NewPredictiveReroutingEngine(testMatrixService(t), testRegistry(), nil, fixedClock{now}, config.ReroutingConfig{WarningMinutes: 15, CriticalMinutes: 30, AutoMinutes: 20}, config.RegionalConfig{})

	snapshot := AgentSnapshot{
		AgentID:         "agent-1",
		Vehicle:         testVehicle(),
		CurrentLocation: geo.Coordinate{Lat: 41.3, Lng: 69.2},
		AsOf:            now,
		Region:          "default",
		RemainingVisits: []domain.Job{nearbyJob("j1", 0.01, now.Add(6*time.Hour))},
	}

	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Reroute(context.Background(), snapshot); err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), atomic.LoadInt64(&successes))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeSnapshotSource struct {
	snapshots []AgentSnapshot
}

func (f fakeSnapshotSource) ActiveAgents(ctx context.Context) ([]AgentSnapshot, error) {
	return f.snapshots, nil
}

func TestSweep_IsolatesPerAgentFailures(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	engine := NewPredictiveReroutingEngine(testMatrixService(t), testRegistry(), sink, fixedClock{now}, config.ReroutingConfig{WarningMinutes: 15, CriticalMinutes: 30, AutoMinutes: 20}, config.RegionalConfig{})

	source := fakeSnapshotSource{snapshots: []AgentSnapshot{
		{AgentID: "agent-1", Vehicle: testVehicle(), CurrentLocation: geo.Coordinate{Lat: 41.3, Lng: 69.2}, AsOf: now, Region: "default", RemainingVisits: []domain.Job{nearbyJob("j1", 0.01, now.Add(6*time.Hour))}},
		{AgentID: "agent-2", Vehicle: testVehicle(), CurrentLocation: geo.Coordinate{Lat: 41.4, Lng: 69.3}, AsOf: now, Region: "default", RemainingVisits: nil},
	}}

	err := engine.Sweep(context.Background(), source)
	require.NoError(t, err)
}
