package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"routecore/pkg/planner"
)

var (
	planInputPath string
	planOSRMURL   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a weekly visit plan for one agent's client book",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(planInputPath)
		if err != nil {
			return err
		}
		var req planner.PlanRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("decode plan request: %w", err)
		}

		store, err := buildCache(cfg)
		if err != nil {
			return err
		}
		svc := buildMatrixService(cfg, store, planOSRMURL)
		registry := buildRegistry(cfg)
		weekly := planner.NewWeeklyPlanner(svc, registry, nil, nil, cfg.Planner, cfg.Regional)

		week, err := weekly.Plan(context.Background(), req)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
		return writeJSON(os.Stdout, week)
	},
}

func init() {
	planCmd.Flags().StringVar(&planInputPath, "input", "-", "path to a JSON-encoded plan request (agent, clients, week_start), or - for stdin")
	planCmd.Flags().StringVar(&planOSRMURL, "osrm-url", "http://localhost:5000", "base URL of the OSRM-style road-network backend")
}
