// Package matrix computes NxN duration/distance matrices over coordinates:
// a retrying HTTP backend client (C1), a batched/semaphore-bounded fan-out
// that stitches sub-matrices into a full result (C2), and a content-addressed
// TTL cache in front of both (C3).
package matrix

import (
	"math"

	"routecore/pkg/geo"
)

// Sentinel marks a cell whose true duration/distance is unknown: the pair is
// unreachable, or the batch covering it failed and require_full_matrix is
// false. It is the maximum finite float64 rather than +Inf so the matrix
// survives JSON round-trips.
const Sentinel = math.MaxFloat64

// DistanceMatrix holds two parallel NxN row-major grids over the same
// coordinate ordering: Durations in seconds, Distances in meters. The
// diagonal is always zero.
type DistanceMatrix struct {
	Coords    []geo.Coordinate `json:"coords"`
	Durations [][]float64      `json:"durations"`
	Distances [][]float64      `json:"distances"`
}

// NewDistanceMatrix allocates an NxN matrix over coords with every
// off-diagonal cell set to Sentinel and the diagonal zeroed.
func NewDistanceMatrix(coords []geo.Coordinate) *DistanceMatrix {
	n := len(coords)
	durations := make([][]float64, n)
	distances := make([][]float64, n)
	for i := 0; i < n; i++ {
		durations[i] = make([]float64, n)
		distances[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			durations[i][j] = Sentinel
			distances[i][j] = Sentinel
		}
	}
	return &DistanceMatrix{Coords: coords, Durations: durations, Distances: distances}
}

// N returns the matrix dimension.
func (m *DistanceMatrix) N() int {
	return len(m.Coords)
}

// HasSentinel reports whether any cell in the matrix is unresolved.
func (m *DistanceMatrix) HasSentinel() bool {
	for i := range m.Durations {
		for j := range m.Durations[i] {
			if i != j && (m.Durations[i][j] == Sentinel || m.Distances[i][j] == Sentinel) {
				return true
			}
		}
	}
	return false
}
