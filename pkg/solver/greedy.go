package solver

import (
	"context"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
)

// GreedySolver builds routes with nearest-neighbor construction from each
// vehicle's depot, then improves each route independently with 2-opt.
// Deterministic: given the same Problem and Matrix it always returns the
// same Solution.
type GreedySolver struct {
	cfg config.GreedyConfig
}

// NewGreedySolver returns a GreedySolver configured per cfg.
func NewGreedySolver(cfg config.GreedyConfig) *GreedySolver {
	return &GreedySolver{cfg: cfg}
}

func (s *GreedySolver) Kind() SolverKind { return KindGreedy2Opt }

func (s *GreedySolver) HealthCheck(ctx context.Context) bool { return true }

// Solve implements the Solver contract.
func (s *GreedySolver) Solve(ctx context.Context, problem *domain.Problem) (*domain.Solution, error) {
	start := time.Now()
	if problem.Matrix == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "problem.Matrix is required for the greedy solver")
	}
	if len(problem.Vehicles) == 0 {
		return nil, apperror.New(apperror.CodeInfeasibleProblem, "no vehicles available")
	}

	assigned := make([]bool, len(problem.Jobs))
	routes := make([]domain.Route, 0, len(problem.Vehicles))

	for vIdx, vehicle := range problem.Vehicles {
		jobIndices := nearestNeighborConstruct(problem, vIdx, vehicle, assigned)
		jobIndices = twoOptImprove(problem, vIdx, jobIndices, s.cfg)
		routes = append(routes, buildRoute(problem, vehicle, jobIndices))
	}

	var unassigned []string
	for i, job := range problem.Jobs {
		if !assigned[i] {
			unassigned = append(unassigned, job.ID)
		}
	}
	if len(unassigned) > 0 && !problem.AllowUnassigned {
		return nil, apperror.New(apperror.CodeInfeasibleProblem, "jobs could not be assigned under hard constraints").
			WithDetails("unassigned_job_ids", unassigned)
	}

	sol := &domain.Solution{
		Routes:         routes,
		UnassignedJobs: unassigned,
		SolverKind:     domain.SolverGreedy,
		ElapsedMS:      time.Since(start).Milliseconds(),
		QualityNote:    "nearest-neighbor + 2-opt, approx. 85-90% of optimum",
	}
	sol.TotalMeters, sol.TotalSeconds = sol.Totals()
	return sol, nil
}

// nearestNeighborConstruct greedily assigns the nearest feasible
// not-yet-assigned job to vehicle, starting from its depot, overflowing
// (stopping) once no remaining job fits its capacity, skills, or time
// window. Jobs left unassigned here may still be picked up by a later
// vehicle.
func nearestNeighborConstruct(problem *domain.Problem, vIdx int, vehicle domain.Vehicle, assigned []bool) []int {
	var jobIndices []int
	var load domain.Demand
	current := problem.DepotIndex(vIdx)
	clock := vehicle.WorkWindow.Start

	for {
		best := -1
		bestDuration := domain.Infinity
		for jIdx, job := range problem.Jobs {
			if assigned[jIdx] {
				continue
			}
			if !vehicle.CanServe(job) {
				continue
			}
			if problem.HasCapacity && !vehicle.Capacity.Fits(load.Add(job.Demand)) {
				continue
			}
			d := problem.Matrix.Durations[current][problem.JobIndex(jIdx)]
			if tw := job.Location.TimeWindow; problem.HasTimeWindows && tw != nil &&
				!tw.Contains(clock.Add(time.Duration(d)*time.Second)) {
				continue
			}
			if d < bestDuration {
				bestDuration = d
				best = jIdx
			}
		}
		if best == -1 {
			break
		}
		assigned[best] = true
		jobIndices = append(jobIndices, best)
		load = load.Add(problem.Jobs[best].Demand)
		current = problem.JobIndex(best)
		clock = clock.Add(time.Duration(bestDuration) * time.Second).
			Add(time.Duration(problem.Jobs[best].EffectiveServiceMinutes()) * time.Minute)
	}
	return jobIndices
}

// buildRoute converts an ordered job-index list into a domain.Route with
// depot-start/visit/depot-end steps, cumulative timing, distance, and load.
func buildRoute(problem *domain.Problem, vehicle domain.Vehicle, jobIndices []int) domain.Route {
	route := domain.Route{VehicleID: vehicle.ID}
	vIdx := vehicleIndex(problem, vehicle.ID)
	depot := problem.DepotIndex(vIdx)

	clock := vehicle.WorkWindow.Start
	route.Steps = append(route.Steps, domain.Step{Kind: domain.StepDepotStart, Arrival: clock, Departure: clock})

	current := depot
	var load domain.Demand
	var meters, seconds float64

	for _, jIdx := range jobIndices {
		job := problem.Jobs[jIdx]
		next := problem.JobIndex(jIdx)
		legSeconds := problem.Matrix.Durations[current][next]
		legMeters := problem.Matrix.Distances[current][next]

		seconds += legSeconds
		meters += legMeters
		clock = clock.Add(time.Duration(legSeconds) * time.Second)
		arrival := clock
		departure := arrival.Add(time.Duration(job.EffectiveServiceMinutes()) * time.Minute)
		clock = departure
		seconds += float64(job.EffectiveServiceMinutes() * 60)
		load = load.Add(job.Demand)

		route.Steps = append(route.Steps, domain.Step{
			Kind:              domain.StepVisit,
			JobID:             job.ID,
			Arrival:           arrival,
			Departure:         departure,
			CumulativeMeters:  meters,
			CumulativeSecond:  seconds,
			CumulativeLoad:    load,
		})
		current = next
	}

	legSeconds := problem.Matrix.Durations[current][depot]
	legMeters := problem.Matrix.Distances[current][depot]
	seconds += legSeconds
	meters += legMeters
	clock = clock.Add(time.Duration(legSeconds) * time.Second)

	route.Steps = append(route.Steps, domain.Step{
		Kind:              domain.StepDepotEnd,
		Arrival:           clock,
		Departure:         clock,
		CumulativeMeters:  meters,
		CumulativeSecond:  seconds,
		CumulativeLoad:    load,
	})

	route.TotalMeters = meters
	route.TotalSeconds = seconds
	route.TotalLoad = load
	return route
}

func vehicleIndex(problem *domain.Problem, vehicleID string) int {
	for i, v := range problem.Vehicles {
		if v.ID == vehicleID {
			return i
		}
	}
	return 0
}
