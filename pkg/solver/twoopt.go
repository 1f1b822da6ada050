package solver

import (
	"routecore/pkg/config"
	"routecore/pkg/domain"
)

// twoOptImprove repeatedly swaps edges (i,j) and (k,l), i<k, reversing the
// subtour in between, accepting the swap iff total route duration strictly
// decreases by more than cfg.MinImprovement (a fraction). Terminates on
// convergence or after cfg.Max2OptIterations passes.
func twoOptImprove(problem *domain.Problem, vIdx int, jobIndices []int, cfg config.GreedyConfig) []int {
	if len(jobIndices) < 3 {
		return jobIndices
	}
	maxIter := cfg.Max2OptIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	minImprovement := cfg.MinImprovement
	if minImprovement <= 0 {
		minImprovement = 0.001
	}

	depot := problem.DepotIndex(vIdx)
	current := routeDuration(problem, depot, jobIndices)

	for iter := 0; iter < maxIter; iter++ {
		improved := false
		for i := 0; i < len(jobIndices)-1; i++ {
			for k := i + 1; k < len(jobIndices); k++ {
				candidate := reversedBetween(jobIndices, i, k)
				candidateDuration := routeDuration(problem, depot, candidate)
				if candidateDuration < current*(1-minImprovement) {
					jobIndices = candidate
					current = candidateDuration
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return jobIndices
}

// reversedBetween returns a copy of order with the subtour order[i:k+1]
// reversed.
func reversedBetween(order []int, i, k int) []int {
	out := make([]int, len(order))
	copy(out, order)
	for lo, hi := i, k; lo < hi; lo, hi = lo+1, hi-1 {
		out[lo], out[hi] = out[hi], out[lo]
	}
	return out
}

// routeDuration sums matrix durations along depot -> jobIndices... -> depot.
func routeDuration(problem *domain.Problem, depot int, jobIndices []int) float64 {
	if len(jobIndices) == 0 {
		return 0
	}
	total := 0.0
	current := depot
	for _, jIdx := range jobIndices {
		next := problem.JobIndex(jIdx)
		total += problem.Matrix.Durations[current][next]
		current = next
	}
	total += problem.Matrix.Durations[current][depot]
	return total
}
