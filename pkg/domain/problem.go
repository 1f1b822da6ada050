package domain

import (
	"routecore/pkg/geo"
	"routecore/pkg/matrix"
)

// Problem is the full input to a Solver: the ordered jobs and vehicles to
// route, plus which constraints are active. Solvers must not mutate a
// Problem they are given (property 4); callers that need a scratch copy
// should use Clone.
//
// Matrix, when set, is the precomputed distance/duration matrix over
// Locations() — depots first (one per vehicle, in Vehicles order), then
// jobs (in Jobs order). Solvers that need distances (greedy, genetic) read
// it through DepotIndex/JobIndex rather than recomputing it; callers
// populate it once via pkg/matrix.Service before handing the Problem to a
// Solver.
type Problem struct {
	Jobs              []Job                  `json:"jobs"`
	Vehicles          []Vehicle              `json:"vehicles"`
	HasTimeWindows    bool                   `json:"has_time_windows"`
	HasCapacity       bool                   `json:"has_capacity"`
	HasPickupDelivery bool                   `json:"has_pickup_delivery"`
	AllowUnassigned   bool                   `json:"allow_unassigned"`
	Matrix            *matrix.DistanceMatrix `json:"-"`
}

// Locations returns every coordinate a distance matrix must cover: vehicle
// depots first, then job locations, matching DepotIndex/JobIndex.
func (p *Problem) Locations() []geo.Coordinate {
	locs := make([]geo.Coordinate, 0, len(p.Vehicles)+len(p.Jobs))
	for _, v := range p.Vehicles {
		locs = append(locs, v.Depot.Coordinate)
	}
	for _, j := range p.Jobs {
		locs = append(locs, j.Location.Coordinate)
	}
	return locs
}

// DepotIndex returns the Matrix row/column index of the given vehicle's
// depot.
func (p *Problem) DepotIndex(vehicleIdx int) int {
	return vehicleIdx
}

// JobIndex returns the Matrix row/column index of the given job.
func (p *Problem) JobIndex(jobIdx int) int {
	return len(p.Vehicles) + jobIdx
}

// Clone returns a deep copy of p. Matrix is shared (read-only, content
// addressed by pkg/matrix.Service) rather than deep-copied.
func (p *Problem) Clone() *Problem {
	clone := &Problem{
		Jobs:              make([]Job, len(p.Jobs)),
		Vehicles:          make([]Vehicle, len(p.Vehicles)),
		HasTimeWindows:    p.HasTimeWindows,
		HasCapacity:       p.HasCapacity,
		HasPickupDelivery: p.HasPickupDelivery,
		AllowUnassigned:   p.AllowUnassigned,
		Matrix:            p.Matrix,
	}
	copy(clone.Jobs, p.Jobs)
	for i, j := range p.Jobs {
		if j.RequiredSkills != nil {
			clone.Jobs[i].RequiredSkills = append([]string(nil), j.RequiredSkills...)
		}
	}
	copy(clone.Vehicles, p.Vehicles)
	for i, v := range p.Vehicles {
		if v.Skills != nil {
			clone.Vehicles[i].Skills = append([]string(nil), v.Skills...)
		}
		if v.Breaks != nil {
			clone.Vehicles[i].Breaks = append([]BreakRule(nil), v.Breaks...)
		}
	}
	return clone
}

// JobByID returns the job with the given ID, if present.
func (p *Problem) JobByID(id string) (Job, bool) {
	for _, j := range p.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// VehicleByID returns the vehicle with the given ID, if present.
func (p *Problem) VehicleByID(id string) (Vehicle, bool) {
	for _, v := range p.Vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return Vehicle{}, false
}

// PickupPairs returns, for every job with a PickupPairID, the (pickup,
// delivery) job ID pair.
func (p *Problem) PickupPairs() map[string]string {
	pairs := make(map[string]string)
	for _, j := range p.Jobs {
		if j.PickupPairID != "" {
			pairs[j.ID] = j.PickupPairID
		}
	}
	return pairs
}
