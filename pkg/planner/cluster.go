package planner

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"routecore/pkg/matrix"
)

// kMedoids partitions the N points covered by m (by client index, matching
// m.Coords' ordering) into k clusters using partitioning-around-medoids on
// the duration matrix, so each day's visit set splits into geographically
// coherent groups no larger than necessary (§4.7 step 2). Deterministic
// given seed.
func kMedoids(m *matrix.DistanceMatrix, k int, seed int64) [][]int {
	n := m.N()
	if n == 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if k <= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}

	rng := rand.New(rand.NewSource(seed))
	medoids := rng.Perm(n)[:k]

	var assignment []int
	const maxIterations = 50
	for iter := 0; iter < maxIterations; iter++ {
		assignment = assignToNearestMedoid(m, medoids)

		changed := false
		for ci, medoid := range medoids {
			members := membersOf(assignment, ci)
			newMedoid := bestMedoidFor(m, members)
			if newMedoid != medoid {
				medoids[ci] = newMedoid
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	clusters := make([][]int, k)
	for point, ci := range assignment {
		clusters[ci] = append(clusters[ci], point)
	}
	return clusters
}

// assignToNearestMedoid assigns every point to the cluster of its
// nearest (by duration) medoid.
func assignToNearestMedoid(m *matrix.DistanceMatrix, medoids []int) []int {
	assignment := make([]int, m.N())
	for point := 0; point < m.N(); point++ {
		distances := make([]float64, len(medoids))
		for ci, medoid := range medoids {
			distances[ci] = m.Durations[point][medoid]
		}
		assignment[point] = floats.MinIdx(distances)
	}
	return assignment
}

func membersOf(assignment []int, clusterIdx int) []int {
	var members []int
	for point, ci := range assignment {
		if ci == clusterIdx {
			members = append(members, point)
		}
	}
	return members
}

// bestMedoidFor returns the member of members whose total duration to every
// other member is smallest, the partitioning-around-medoids swap step. It
// returns members[0] unchanged when there is nothing to compare.
func bestMedoidFor(m *matrix.DistanceMatrix, members []int) int {
	if len(members) == 0 {
		return 0
	}
	best := members[0]
	bestCost := totalDurationTo(m, members[0], members)
	for _, candidate := range members[1:] {
		cost := totalDurationTo(m, candidate, members)
		if cost < bestCost {
			best = candidate
			bestCost = cost
		}
	}
	return best
}

func totalDurationTo(m *matrix.DistanceMatrix, point int, members []int) float64 {
	var total float64
	for _, other := range members {
		total += m.Durations[point][other]
	}
	return total
}
