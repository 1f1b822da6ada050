package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"routecore/pkg/warmer"
)

// fileFleetRepository is a warmer.FleetRepository backed by a static JSON
// file, the path a standalone CLI run uses instead of a live Postgres
// roster (see database.PostgresFleetRepository for the production path).
type fileFleetRepository struct {
	path string
}

func (r fileFleetRepository) ActiveAgents(ctx context.Context) ([]warmer.FleetAgent, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file %s: %w", r.path, err)
	}
	var agents []warmer.FleetAgent
	if err := json.Unmarshal(raw, &agents); err != nil {
		return nil, fmt.Errorf("decode fleet file %s: %w", r.path, err)
	}
	return agents, nil
}
