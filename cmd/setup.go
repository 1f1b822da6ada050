package cmd

import (
	"fmt"

	"routecore/pkg/cache"
	"routecore/pkg/config"
	"routecore/pkg/matrix"
	"routecore/pkg/solver"
)

// buildCache constructs the shared cache backend from cfg.Cache (memory or
// Redis, per cache.driver).
func buildCache(cfg *config.Config) (cache.Cache, error) {
	store, err := cache.New(cache.FromConfig(cfg.Cache))
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	return store, nil
}

// buildMatrixService wires an OSRM-style HTTP backend through the result
// cache into a matrix.Service, per cfg.Matrix.
func buildMatrixService(cfg *config.Config, store cache.Cache, osrmURL string) *matrix.Service {
	backend := matrix.NewHTTPBackend(osrmURL, cfg.Matrix)
	return matrix.NewService(backend, store, "default", cfg.Matrix)
}

// buildRegistry wires the default solver fallback chain (external fast,
// external rich, genetic, greedy+2-opt) from cfg.
func buildRegistry(cfg *config.Config) *solver.Registry {
	factories := map[solver.SolverKind]solver.Factory{
		solver.KindExternalFast: func() solver.Solver { return solver.NewExternalVROOMAdapter(cfg.External) },
		solver.KindExternalRich: func() solver.Solver { return solver.NewExternalORToolsAdapter(cfg.External) },
		solver.KindGenetic:      func() solver.Solver { return solver.NewGeneticSolver(cfg.Genetic) },
		solver.KindGreedy2Opt:   func() solver.Solver { return solver.NewGreedySolver(cfg.Greedy) },
	}
	return solver.NewRegistry(factories, solver.DefaultChain)
}
