package solver

import (
	"context"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/domain"
	"routecore/pkg/logger"
	"routecore/pkg/metrics"
)

// DefaultChain is the registry's configured fallback order when no
// preferred solver is given.
var DefaultChain = []SolverKind{KindExternalFast, KindExternalRich, KindGenetic, KindGreedy2Opt}

// Registry maps SolverKind to a Factory. Registration happens once at
// startup via NewRegistry; Get/SolveWithFallback are read-only thereafter.
type Registry struct {
	factories map[SolverKind]Factory
	chain     []SolverKind
}

// NewRegistry builds a read-only registry from the given kind->factory
// map and fallback chain. An empty chain defaults to DefaultChain.
func NewRegistry(factories map[SolverKind]Factory, chain []SolverKind) *Registry {
	if len(chain) == 0 {
		chain = DefaultChain
	}
	return &Registry{factories: factories, chain: chain}
}

// Get constructs the solver registered for kind, or nil if none is
// registered.
func (r *Registry) Get(kind SolverKind) Solver {
	factory, ok := r.factories[kind]
	if !ok {
		return nil
	}
	return factory()
}

// SolveWithFallback iterates the configured chain starting at preferred,
// calling the next solver iff the previous raises BackendUnavailable or
// returns an unusable solution (Verify fails); any other error propagates
// immediately without falling back (spec.md §4.6/§7).
func (r *Registry) SolveWithFallback(ctx context.Context, problem *domain.Problem, preferred SolverKind) (*domain.Solution, error) {
	order := r.chainFrom(preferred)
	var lastErr error

	for i, kind := range order {
		s := r.Get(kind)
		if s == nil {
			continue
		}

		start := time.Now()
		sol, err := s.Solve(ctx, problem)
		unusable := false
		if err == nil {
			err = Verify(problem, sol)
			unusable = err != nil
		}
		metrics.Get().RecordSolveOperation(string(kind), err == nil, time.Since(start))

		if err == nil {
			return sol, nil
		}

		if apperror.Is(err, apperror.CodeCancelled) {
			return nil, err
		}
		if !unusable && !apperror.Is(err, apperror.CodeBackendUnavailable) {
			return nil, err
		}

		lastErr = err
		if i+1 < len(order) {
			logger.Log.Warn("solver fallback", "from", kind, "to", order[i+1], "error", err)
			metrics.Get().RecordSolveFallback(string(kind), string(order[i+1]))
		}
	}

	if lastErr == nil {
		lastErr = apperror.New(apperror.CodeInternal, "no solver registered in chain")
	}
	return nil, lastErr
}

// chainFrom returns r.chain rotated to start at preferred. If preferred is
// not in the chain, it is prepended.
func (r *Registry) chainFrom(preferred SolverKind) []SolverKind {
	idx := -1
	for i, k := range r.chain {
		if k == preferred {
			idx = i
			break
		}
	}
	if idx == -1 {
		return append([]SolverKind{preferred}, r.chain...)
	}
	return r.chain[idx:]
}
