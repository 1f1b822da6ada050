package solver

import (
	"routecore/pkg/apperror"
	"routecore/pkg/domain"
)

// Verify re-checks capacity and time-window invariants on a Solution
// returned by a solver, before it is accepted by solve_with_fallback. A
// solver that silently violates a hard constraint is treated the same as
// one that failed outright.
func Verify(problem *domain.Problem, solution *domain.Solution) error {
	if solution == nil {
		return apperror.New(apperror.CodeInfeasibleProblem, "solver returned no solution")
	}
	if len(solution.UnassignedJobs) == len(problem.Jobs) && len(problem.Jobs) > 0 && !problem.AllowUnassigned {
		return apperror.New(apperror.CodeInfeasibleProblem, "all jobs unassigned and allow_unassigned is false")
	}

	for i := range solution.Routes {
		route := &solution.Routes[i]
		vehicle, ok := problem.VehicleByID(route.VehicleID)
		if !ok {
			return apperror.New(apperror.CodeInfeasibleProblem, "route references unknown vehicle").
				WithField(route.VehicleID)
		}
		if err := verifyCapacity(vehicle, route); err != nil {
			return err
		}
		if problem.HasTimeWindows {
			if err := verifyTimeWindows(problem, route); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyCapacity(vehicle domain.Vehicle, route *domain.Route) error {
	if domain.FloatGreater(route.TotalLoad.WeightKg, vehicle.Capacity.WeightKg) ||
		domain.FloatGreater(route.TotalLoad.VolumeM3, vehicle.Capacity.VolumeM3) {
		return apperror.New(apperror.CodeInfeasibleProblem, "route exceeds vehicle capacity").
			WithField(route.VehicleID)
	}
	return nil
}

func verifyTimeWindows(problem *domain.Problem, route *domain.Route) error {
	for _, step := range route.Steps {
		if step.Kind != domain.StepVisit {
			continue
		}
		job, ok := problem.JobByID(step.JobID)
		if !ok {
			continue
		}
		if job.Location.TimeWindow != nil && !job.Location.TimeWindow.Contains(step.Arrival) {
			return apperror.New(apperror.CodeInfeasibleProblem, "visit arrives outside its time window").
				WithField(step.JobID)
		}
	}
	return nil
}
