package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecore/pkg/config"
	"routecore/pkg/domain"
)

func geneticTestConfig() config.GeneticConfig {
	return config.GeneticConfig{
		Population:     20,
		Generations:    30,
		MutationRate:   0.1,
		CrossoverRate:  0.8,
		Elite:          2,
		EarlyStop:      10,
		TournamentSize: 3,
		PenaltyPerMean: 10000,
	}
}

func TestGeneticSolver_DeterministicWithSeed(t *testing.T) {
	problem := colinearProblem(t)

	s1 := NewGeneticSolver(geneticTestConfig())
	s1.Seed = 42
	sol1, err := s1.Solve(context.Background(), problem)
	require.NoError(t, err)

	s2 := NewGeneticSolver(geneticTestConfig())
	s2.Seed = 42
	sol2, err := s2.Solve(context.Background(), problem)
	require.NoError(t, err)

	assert.Equal(t, sol1.TotalMeters, sol2.TotalMeters)
	assert.Equal(t, sol1.Routes[0].VisitedJobIDs(), sol2.Routes[0].VisitedJobIDs())
}

func TestGeneticSolver_DoesNotMutateInput(t *testing.T) {
	problem := colinearProblem(t)
	before := problem.Clone()

	s := NewGeneticSolver(geneticTestConfig())
	s.Seed = 7
	_, err := s.Solve(context.Background(), problem)
	require.NoError(t, err)

	assert.Equal(t, before.Jobs, problem.Jobs)
	assert.Equal(t, before.Vehicles, problem.Vehicles)
}

func TestGeneticSolver_AssignsAllFeasibleJobs(t *testing.T) {
	problem := colinearProblem(t)
	s := NewGeneticSolver(geneticTestConfig())
	s.Seed = 1

	sol, err := s.Solve(context.Background(), problem)
	require.NoError(t, err)
	assert.Empty(t, sol.UnassignedJobs)
	assert.Len(t, sol.Routes[0].VisitedJobIDs(), 3)
}

func TestGeneticSolver_RequiresMatrix(t *testing.T) {
	s := NewGeneticSolver(geneticTestConfig())
	problem := &domain.Problem{Vehicles: []domain.Vehicle{{ID: "veh-1"}}}
	_, err := s.Solve(context.Background(), problem)
	require.Error(t, err)
}
