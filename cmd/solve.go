package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"routecore/pkg/domain"
	"routecore/pkg/solver"
)

var (
	solveInputPath string
	solveOSRMURL   string
	solveKind      string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a routing problem through the solver registry's fallback chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(solveInputPath)
		if err != nil {
			return err
		}
		var problem domain.Problem
		if err := json.Unmarshal(raw, &problem); err != nil {
			return fmt.Errorf("decode problem: %w", err)
		}

		store, err := buildCache(cfg)
		if err != nil {
			return err
		}
		svc := buildMatrixService(cfg, store, solveOSRMURL)

		m, err := svc.Compute(context.Background(), problem.Locations())
		if err != nil {
			return fmt.Errorf("compute matrix: %w", err)
		}
		problem.Matrix = m

		preferred := solver.SolverKind(solveKind)
		if preferred == "" {
			preferred = solver.SmartSelector(&problem)
		}

		registry := buildRegistry(cfg)
		solution, err := registry.SolveWithFallback(context.Background(), &problem, preferred)
		if err != nil {
			return fmt.Errorf("solve: %w", err)
		}
		return writeJSON(os.Stdout, solution)
	},
}

func init() {
	solveCmd.Flags().StringVar(&solveInputPath, "input", "-", "path to a JSON-encoded routing problem (jobs + vehicles), or - for stdin")
	solveCmd.Flags().StringVar(&solveOSRMURL, "osrm-url", "http://localhost:5000", "base URL of the OSRM-style road-network backend")
	solveCmd.Flags().StringVar(&solveKind, "solver", "", "preferred solver kind (greedy_2opt, genetic, external_fast, external_rich); default picks via the size/constraint heuristic")
}
