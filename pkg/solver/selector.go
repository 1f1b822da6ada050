package solver

import (
	"gonum.org/v1/gonum/stat"

	"routecore/pkg/domain"
)

// Features summarizes a Problem for solver selection.
type Features struct {
	NJobs                int
	NVehicles            int
	HasTimeWindows       bool
	Tightness            float64 // 1 - min(1, mean_window_seconds/28800)
	HasPickupDelivery    bool
	GeographicDispersion float64 // std of job coordinates (degrees)
	ConstraintComplexity int
}

// maxWindowSecondsBaseline is the 8-hour shift spec.md's tightness formula
// normalizes against.
const maxWindowSecondsBaseline = 8 * 60 * 60

// ExtractFeatures computes the SmartSelector's decision inputs from a
// Problem.
func ExtractFeatures(problem *domain.Problem) Features {
	f := Features{
		NJobs:             len(problem.Jobs),
		NVehicles:         len(problem.Vehicles),
		HasTimeWindows:    problem.HasTimeWindows,
		HasPickupDelivery: problem.HasPickupDelivery,
	}

	if problem.HasTimeWindows {
		f.Tightness = 1 - min1(meanWindowSeconds(problem)/maxWindowSecondsBaseline)
	}

	f.GeographicDispersion = coordinateDispersion(problem)
	f.ConstraintComplexity = constraintComplexity(problem)
	return f
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func meanWindowSeconds(problem *domain.Problem) float64 {
	var values []float64
	for _, j := range problem.Jobs {
		if j.Location.TimeWindow == nil {
			continue
		}
		seconds := j.Location.TimeWindow.Latest.Sub(j.Location.TimeWindow.Earliest).Seconds()
		if seconds > 0 {
			values = append(values, seconds)
		}
	}
	if len(values) == 0 {
		return maxWindowSecondsBaseline
	}
	return stat.Mean(values, nil)
}

// coordinateDispersion returns the mean of the latitude and longitude
// standard deviations across all job coordinates, using gonum's stat
// package instead of hand-rolled variance accumulators.
func coordinateDispersion(problem *domain.Problem) float64 {
	if len(problem.Jobs) == 0 {
		return 0
	}
	lats := make([]float64, len(problem.Jobs))
	lngs := make([]float64, len(problem.Jobs))
	for i, j := range problem.Jobs {
		lats[i] = j.Location.Coordinate.Lat
		lngs[i] = j.Location.Coordinate.Lng
	}
	_, latStd := stat.MeanStdDev(lats, nil)
	_, lngStd := stat.MeanStdDev(lngs, nil)
	return (latStd + lngStd) / 2
}

// constraintComplexity counts how many optional constraint categories are
// active (capacity, time windows, pickup/delivery, vehicle skills),
// feeding decision rule 4's `constraint_complexity > 3` clause.
func constraintComplexity(problem *domain.Problem) int {
	n := 0
	if problem.HasCapacity {
		n++
	}
	if problem.HasTimeWindows {
		n++
	}
	if problem.HasPickupDelivery {
		n++
	}
	for _, v := range problem.Vehicles {
		if len(v.Skills) > 0 {
			n++
			break
		}
	}
	return n
}

// SmartSelector applies the decision rules from spec.md §4.6, in order, to
// pick a preferred SolverKind; the registry's fallback chain still covers
// failure of the chosen solver.
func SmartSelector(problem *domain.Problem) SolverKind {
	f := ExtractFeatures(problem)

	switch {
	case f.HasPickupDelivery && f.NJobs > 500:
		return KindGenetic
	case f.HasPickupDelivery:
		return KindExternalRich
	case f.NJobs > 1000:
		return KindGenetic
	case f.NJobs > 200 || f.Tightness > 0.8 || f.ConstraintComplexity > 3:
		return KindExternalRich
	case f.NJobs < 150 && f.ConstraintComplexity <= 1:
		return KindExternalFast
	default:
		return KindExternalRich
	}
}
