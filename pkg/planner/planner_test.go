package planner

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
	"routecore/pkg/solver"
)

// haversineBackend is a fake matrix.Backend for tests: no network, exact
// Haversine durations at a fixed speed.
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
			durations[i][j] = meters / 8.33 // ~30 km/h
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

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testAgent() Agent {
	monday := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return Agent{
		ID: "agent-1",
		Vehicle: domain.Vehicle{
			ID:         "agent-1",
			Depot:      domain.Location{Coordinate: geo.Coordinate{Lat: 41.3, Lng: 69.2}},
			Capacity:   domain.Capacity{WeightKg: 1000, VolumeM3: 10},
			WorkWindow: domain.WorkWindow{Start: monday, End: monday.Add(9 * time.Hour)},
		},
	}
}

func testClients(n int, segment domain.ClientSegment) []Client {
	clients := make([]Client, n)
	for i := 0; i < n; i++ {
		clients[i] = Client{
			ID:       clientIDFor(i),
			Location: domain.Location{Coordinate: geo.Coordinate{Lat: 41.3 + float64(i)*0.01, Lng: 69.2 + float64(i)*0.01}},
			Demand:   domain.Demand{WeightKg: 5, VolumeM3: 0.1},
			Segment:  segment,
		}
	}
	return clients
}

func clientIDFor(i int) string {
	return "client-" + string(rune('a'+i))
}

func TestWeeklyPlanner_Plan_SegmentA_VisitsMondayAndWednesday(t *testing.T) {
	planner := NewWeeklyPlanner(testMatrixService(t), testRegistry(), nil, nil, config.PlannerConfig{MaxVisitsPerDay: 12}, config.RegionalConfig{})

	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday, ISO week 2
	plan, err := planner.Plan(context.Background(), PlanRequest{
		Agent:     testAgent(),
		Clients:   testClients(3, domain.SegmentA),
		WeekStart: weekStart,
	})
	require.NoError(t, err)

	var weekdays []time.Weekday
	for _, d := range plan.Days {
		weekdays = append(weekdays, d.Weekday)
	}
	assert.Contains(t, weekdays, time.Monday)
	assert.Contains(t, weekdays, time.Wednesday)
}

func TestWeeklyPlanner_Plan_RespectsMaxVisitsPerDay(t *testing.T) {
	planner := NewWeeklyPlanner(testMatrixService(t), testRegistry(), nil, nil, config.PlannerConfig{MaxVisitsPerDay: 2}, config.RegionalConfig{})

	weekStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	plan, err := planner.Plan(context.Background(), PlanRequest{
		Agent:     testAgent(),
		Clients:   testClients(5, domain.SegmentB),
		WeekStart: weekStart,
	})
	require.NoError(t, err)
	require.Len(t, plan.Days, 1)

	mondayPlan := plan.Days[0]
	assert.Equal(t, time.Monday, mondayPlan.Weekday)
	for _, route := range mondayPlan.Solution.Routes {
		assert.LessOrEqual(t, len(route.VisitedJobIDs()), 2)
	}
}

func TestWeeklyPlanner_Plan_SegmentC_SkipsOddWeeks(t *testing.T) {
	planner := NewWeeklyPlanner(testMatrixService(t), testRegistry(), nil, nil, config.PlannerConfig{}, config.RegionalConfig{})

	oddWeekStart := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC) // ISO week 3 (odd)
	plan, err := planner.Plan(context.Background(), PlanRequest{
		Agent:     testAgent(),
		Clients:   testClients(1, domain.SegmentC),
		WeekStart: oddWeekStart,
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Days)
}

func TestApplyForbiddenBands_DelaysOverlappingVisit(t *testing.T) {
	date := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC) // a Friday
	arrival := date.Add(12*time.Hour + 15*time.Minute)  // inside the default Friday 12:00-13:30 band
	route := domain.Route{
		Steps: []domain.Step{
			{Kind: domain.StepVisit, JobID: "x", Arrival: arrival, Departure: arrival.Add(15 * time.Minute), CumulativeSecond: 100},
			{Kind: domain.StepDepotEnd, Arrival: arrival.Add(30 * time.Minute), Departure: arrival.Add(30 * time.Minute), CumulativeSecond: 200},
		},
	}

	bands := []config.TimeBand{{Weekday: 5, StartMinute: 12 * 60, EndMinute: 13*60 + 30}}
	adjusted := applyForbiddenBands(route, bands, date)

	var kinds []domain.StepKind
	for _, s := range adjusted.Steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, domain.StepBreak)

	for _, s := range adjusted.Steps {
		if s.Kind == domain.StepVisit {
			assert.False(t, s.Arrival.After(bandAbsoluteStart(bands[0], date)) && s.Arrival.Before(bandAbsoluteEnd(bands[0], date)),
				"visit still overlaps the forbidden band")
		}
	}
}
