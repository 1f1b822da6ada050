package planner

import (
	"context"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/solver"
)

// sequenceCluster builds a single-vehicle Problem for one day's cluster of
// clients, applies the region's forbidden bands, and sequences it through
// the solver registry preferring the fast external adapter (§4.7 step 3).
func (p *WeeklyPlanner) sequenceCluster(ctx context.Context, agent Agent, clients []Client, date time.Time) (*domain.Solution, error) {
	vehicle := agentVehicleForDate(agent, date)

	jobs := make([]domain.Job, len(clients))
	for i, c := range clients {
		jobs[i] = domain.Job{
			ID:             clientJobID(c, date),
			Location:       c.Location,
			Demand:         c.Demand,
			RequiredSkills: c.RequiredSkills,
			ClientID:       c.ID,
			Segment:        c.Segment,
		}
	}

	problem := &domain.Problem{
		Jobs:            jobs,
		Vehicles:        []domain.Vehicle{vehicle},
		HasTimeWindows:  true,
		HasCapacity:     true,
		AllowUnassigned: true,
	}

	miniMatrix, err := p.matrixSvc.Compute(ctx, problem.Locations())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, "weekly planner sequencing matrix compute")
	}
	problem.Matrix = miniMatrix

	sol, err := p.registry.SolveWithFallback(ctx, problem, solver.KindExternalFast)
	if err != nil {
		return nil, err
	}

	bands := regionForbiddenBands(p.regional, primaryRegion(clients))
	for i := range sol.Routes {
		sol.Routes[i] = applyForbiddenBands(sol.Routes[i], bands, date)
	}
	sol.TotalMeters, sol.TotalSeconds = sol.Totals()
	return sol, nil
}

func primaryRegion(clients []Client) string {
	for _, c := range clients {
		if c.Region != "" {
			return c.Region
		}
	}
	return "default"
}

func regionForbiddenBands(regional config.RegionalConfig, region string) []config.TimeBand {
	if bands, ok := regional.ForbiddenBands[region]; ok {
		return bands
	}
	return regional.ForbiddenBands["default"]
}

// applyForbiddenBands walks route's steps and, for any visit whose arrival
// falls inside a forbidden band active on date's weekday, delays that visit
// (and every step after it) until the band ends, inserting a StepBreak for
// the consumed interval. This is the regional-adjustment step of §4.7: the
// time from the visit's arrival to the band's end is charged against
// whichever outgoing arc crosses it, rather
// than the solver needing to know about forbidden bands up front.
func applyForbiddenBands(route domain.Route, bands []config.TimeBand, date time.Time) domain.Route {
	active := bandsForWeekday(bands, date)
	if len(active) == 0 {
		return route
	}

	var shift time.Duration
	steps := make([]domain.Step, 0, len(route.Steps)+len(active))
	for _, step := range route.Steps {
		step.Arrival = step.Arrival.Add(shift)
		step.Departure = step.Departure.Add(shift)
		step.CumulativeSecond += shift.Seconds()

		if step.Kind == domain.StepVisit {
			if band, ok := bandContaining(active, step.Arrival); ok {
				bandEnd := bandAbsoluteEnd(band, date)
				delay := bandEnd.Sub(step.Arrival)
				if delay > 0 {
					steps = append(steps, domain.Step{
						Kind:             domain.StepBreak,
						Arrival:          step.Arrival,
						Departure:        bandEnd,
						CumulativeMeters: step.CumulativeMeters,
						CumulativeSecond: step.CumulativeSecond + delay.Seconds(),
						CumulativeLoad:   step.CumulativeLoad,
					})
					shift += delay
					step.Arrival = step.Arrival.Add(delay)
					step.Departure = step.Departure.Add(delay)
					step.CumulativeSecond += delay.Seconds()
				}
			}
		}
		steps = append(steps, step)
	}

	route.Steps = steps
	if n := len(steps); n > 0 {
		route.TotalSeconds = steps[n-1].CumulativeSecond
	}
	return route
}

func bandsForWeekday(bands []config.TimeBand, date time.Time) []config.TimeBand {
	var out []config.TimeBand
	for _, b := range bands {
		if time.Weekday(b.Weekday) == date.Weekday() {
			out = append(out, b)
		}
	}
	return out
}

func bandContaining(bands []config.TimeBand, t time.Time) (config.TimeBand, bool) {
	for _, b := range bands {
		start := bandAbsoluteStart(b, t)
		end := bandAbsoluteEnd(b, t)
		if !t.Before(start) && t.Before(end) {
			return b, true
		}
	}
	return config.TimeBand{}, false
}

func bandAbsoluteStart(b config.TimeBand, date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).Add(time.Duration(b.StartMinute) * time.Minute)
}

func bandAbsoluteEnd(b config.TimeBand, date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).Add(time.Duration(b.EndMinute) * time.Minute)
}
