package solver

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/matrix"
)

// GeneticSolver evolves a population of job-index permutations, decoding
// each chromosome into routes via the same capacity/skill-aware greedy
// split buildRoute uses, and optimizes for (duration + penalty *
// violations).
//
// Determinism: given an explicit Seed, two runs over the same Problem and
// Matrix reproduce bit-identically.
type GeneticSolver struct {
	cfg  config.GeneticConfig
	Seed int64 // 0 means time-seeded (non-deterministic)
}

// NewGeneticSolver returns a GeneticSolver configured per cfg.
func NewGeneticSolver(cfg config.GeneticConfig) *GeneticSolver {
	return &GeneticSolver{cfg: cfg}
}

func (s *GeneticSolver) Kind() SolverKind { return KindGenetic }

func (s *GeneticSolver) HealthCheck(ctx context.Context) bool { return true }

type chromosome struct {
	order   []int
	fitness float64
}

func (s *GeneticSolver) Solve(ctx context.Context, problem *domain.Problem) (*domain.Solution, error) {
	start := time.Now()
	if problem.Matrix == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "problem.Matrix is required for the genetic solver")
	}
	if len(problem.Vehicles) == 0 {
		return nil, apperror.New(apperror.CodeInfeasibleProblem, "no vehicles available")
	}
	if len(problem.Jobs) == 0 {
		return &domain.Solution{SolverKind: domain.SolverGenetic, ElapsedMS: time.Since(start).Milliseconds()}, nil
	}

	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	cfg := s.withDefaults()
	meanValue := meanMatrixValue(problem.Matrix)
	penalty := cfg.PenaltyPerMean * meanValue
	if penalty == 0 {
		penalty = 10000
	}

	pop := initialPopulation(problem, rng, cfg.Population)
	for i := range pop {
		pop[i].fitness = fitness(problem, pop[i].order, penalty)
	}

	best := bestOf(pop)
	stagnant := 0
	for gen := 0; gen < cfg.Generations; gen++ {
		select {
		case <-ctx.Done():
			return nil, apperror.Wrap(ctx.Err(), apperror.CodeCancelled, "genetic solve cancelled")
		default:
		}

		next := make([]chromosome, 0, cfg.Population)
		sortByFitnessDesc(pop)
		elite := cfg.Elite
		if elite > len(pop) {
			elite = len(pop)
		}
		for i := 0; i < elite; i++ {
			next = append(next, pop[i])
		}

		for len(next) < cfg.Population {
			parentA := tournamentSelect(pop, rng, cfg.TournamentSize)
			parentB := tournamentSelect(pop, rng, cfg.TournamentSize)
			var childOrder []int
			if rng.Float64() < cfg.CrossoverRate {
				childOrder = orderCrossover(parentA.order, parentB.order, rng)
			} else {
				childOrder = append([]int(nil), parentA.order...)
			}
			if rng.Float64() < cfg.MutationRate {
				mutate(childOrder, rng)
			}
			next = append(next, chromosome{order: childOrder, fitness: fitness(problem, childOrder, penalty)})
		}
		pop = next

		genBest := bestOf(pop)
		if genBest.fitness > best.fitness {
			best = genBest
			stagnant = 0
		} else {
			stagnant++
		}
		if cfg.EarlyStop > 0 && stagnant >= cfg.EarlyStop {
			break
		}
	}

	routes, unassigned := decode(problem, best.order)
	if len(unassigned) > 0 && !problem.AllowUnassigned {
		return nil, apperror.New(apperror.CodeInfeasibleProblem, "jobs could not be assigned under hard constraints").
			WithDetails("unassigned_job_ids", unassigned)
	}

	sol := &domain.Solution{
		Routes:         routes,
		UnassignedJobs: unassigned,
		SolverKind:     domain.SolverGenetic,
		ElapsedMS:      time.Since(start).Milliseconds(),
		QualityNote:    "genetic algorithm, order crossover + swap/insert/2opt-segment mutation",
	}
	sol.TotalMeters, sol.TotalSeconds = sol.Totals()
	return sol, nil
}

func (s *GeneticSolver) withDefaults() config.GeneticConfig {
	cfg := s.cfg
	if cfg.Population <= 0 {
		cfg.Population = 100
	}
	if cfg.Generations <= 0 {
		cfg.Generations = 500
	}
	if cfg.Elite <= 0 {
		cfg.Elite = 10
	}
	if cfg.EarlyStop <= 0 {
		cfg.EarlyStop = 50
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = 5
	}
	if cfg.MutationRate <= 0 {
		cfg.MutationRate = 0.1
	}
	if cfg.CrossoverRate <= 0 {
		cfg.CrossoverRate = 0.8
	}
	if cfg.PenaltyPerMean <= 0 {
		cfg.PenaltyPerMean = 10000
	}
	return cfg
}

// meanMatrixValue returns the mean of every off-diagonal finite duration
// cell, used to scale the constraint-violation penalty (spec: K as a
// multiple of mean matrix value). gonum's stat.Mean is used instead of a
// hand-rolled accumulator, matching the repo's statistics library choice.
func meanMatrixValue(m *matrix.DistanceMatrix) float64 {
	var values []float64
	for i, row := range m.Durations {
		for j, v := range row {
			if i == j || v >= matrix.Sentinel {
				continue
			}
			values = append(values, v)
		}
	}
	return statMean(values)
}

func initialPopulation(problem *domain.Problem, rng *rand.Rand, size int) []chromosome {
	base := make([]int, len(problem.Jobs))
	for i := range base {
		base[i] = i
	}
	pop := make([]chromosome, size)
	for i := range pop {
		order := append([]int(nil), base...)
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		pop[i] = chromosome{order: order}
	}
	return pop
}

func sortByFitnessDesc(pop []chromosome) {
	sort.Slice(pop, func(i, j int) bool { return pop[i].fitness > pop[j].fitness })
}

func bestOf(pop []chromosome) chromosome {
	best := pop[0]
	for _, c := range pop[1:] {
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

func tournamentSelect(pop []chromosome, rng *rand.Rand, size int) chromosome {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < size; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// orderCrossover implements OX: a contiguous slice from parentA is copied
// verbatim, the rest filled in parentB's relative order.
func orderCrossover(a, b []int, rng *rand.Rand) []int {
	n := len(a)
	if n == 0 {
		return nil
	}
	i := rng.Intn(n)
	j := rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	child := make([]int, n)
	for k := range child {
		child[k] = -1
	}
	taken := make(map[int]bool, j-i+1)
	for k := i; k <= j; k++ {
		child[k] = a[k]
		taken[a[k]] = true
	}
	pos := (j + 1) % n
	for _, v := range b {
		if taken[v] {
			continue
		}
		child[pos] = v
		pos = (pos + 1) % n
	}
	return child
}

// mutate picks uniformly among swap, insert, and 2-opt segment reverse.
func mutate(order []int, rng *rand.Rand) {
	if len(order) < 2 {
		return
	}
	switch rng.Intn(3) {
	case 0: // swap
		i, j := rng.Intn(len(order)), rng.Intn(len(order))
		order[i], order[j] = order[j], order[i]
	case 1: // insert: move the element at i to position j, in place
		i, j := rng.Intn(len(order)), rng.Intn(len(order))
		v := order[i]
		if i < j {
			copy(order[i:j], order[i+1:j+1])
		} else {
			copy(order[j+1:i+1], order[j:i])
		}
		order[j] = v
	case 2: // 2-opt segment reverse
		i, j := rng.Intn(len(order)), rng.Intn(len(order))
		if i > j {
			i, j = j, i
		}
		for lo, hi := i, j; lo < hi; lo, hi = lo+1, hi-1 {
			order[lo], order[hi] = order[hi], order[lo]
		}
	}
}

// fitness is negated (total duration + penalty * violations) so higher is
// better, matching tournamentSelect/bestOf's max-wins convention.
func fitness(problem *domain.Problem, order []int, penalty float64) float64 {
	routes, unassigned := decode(problem, order)
	total := 0.0
	for _, r := range routes {
		total += r.TotalSeconds
	}
	violations := float64(len(unassigned))
	return -(total + penalty*violations)
}

// decode splits the chromosome (a permutation of job indices) across
// vehicles in order, respecting capacity and skill constraints — a giant
// tour split identical in spirit to the greedy solver's construction, but
// driven by the chromosome's order rather than nearest-neighbor choice.
func decode(problem *domain.Problem, order []int) ([]domain.Route, []string) {
	assigned := make([]bool, len(problem.Jobs))
	routes := make([]domain.Route, 0, len(problem.Vehicles))

	for vIdx, vehicle := range problem.Vehicles {
		var jobIndices []int
		var load domain.Demand
		for _, jIdx := range order {
			if assigned[jIdx] {
				continue
			}
			job := problem.Jobs[jIdx]
			if !vehicle.CanServe(job) {
				continue
			}
			if problem.HasCapacity && !vehicle.Capacity.Fits(load.Add(job.Demand)) {
				continue
			}
			assigned[jIdx] = true
			jobIndices = append(jobIndices, jIdx)
			load = load.Add(job.Demand)
		}
		jobIndices = twoOptImprove(problem, vIdx, jobIndices, config.GreedyConfig{})
		routes = append(routes, buildRoute(problem, vehicle, jobIndices))
	}

	var unassigned []string
	for i, job := range problem.Jobs {
		if !assigned[i] {
			unassigned = append(unassigned, job.ID)
		}
	}
	return routes, unassigned
}

func statMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
