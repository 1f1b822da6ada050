// Package solver implements the VRP solver layer (C5/C6): a closed Solver
// contract, concrete solvers (greedy + 2-opt, genetic, two external
// adapters), and a SolverRegistry/SmartSelector pair that picks a solver by
// problem features and falls back through a configured chain on failure.
package solver

import (
	"context"

	"routecore/pkg/domain"
)

// SolverKind identifies a concrete solver implementation. Mirrors
// domain.SolverKind but kept distinct: the registry may register adapters
// (e.g. multiple external endpoints) that have no domain.SolverKind of
// their own.
type SolverKind string

const (
	KindGreedy2Opt   SolverKind = "greedy_2opt"
	KindGenetic      SolverKind = "genetic"
	KindExternalFast SolverKind = "external_fast"
	KindExternalRich SolverKind = "external_rich"
)

// Solver is the contract every optimization strategy implements. None of
// them may mutate the input Problem.
type Solver interface {
	// Solve returns a Solution for the given problem, or an *apperror.Error
	// with CodeInfeasibleProblem or CodeBackendUnavailable on failure.
	Solve(ctx context.Context, problem *domain.Problem) (*domain.Solution, error)

	// HealthCheck reports whether the solver is currently able to serve
	// requests (e.g. an external adapter's endpoint is reachable).
	HealthCheck(ctx context.Context) bool

	// Kind identifies the solver for logging, metrics, and Solution tagging.
	Kind() SolverKind
}

// Factory constructs a Solver on demand. Registered once per SolverKind at
// startup.
type Factory func() Solver

// toDomainKind maps a solver.SolverKind onto the domain.SolverKind used in
// Solution.SolverKind. External adapters of either flavor both tag their
// output ExternalFast/ExternalRich.
func toDomainKind(k SolverKind) domain.SolverKind {
	switch k {
	case KindGreedy2Opt:
		return domain.SolverGreedy
	case KindGenetic:
		return domain.SolverGenetic
	case KindExternalFast:
		return domain.SolverExternalFast
	case KindExternalRich:
		return domain.SolverExternalRich
	default:
		return domain.SolverGreedy
	}
}
