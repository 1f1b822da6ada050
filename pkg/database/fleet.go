package database

import (
	"context"
	"embed"
	"encoding/json"

	"routecore/pkg/apperror"
	"routecore/pkg/domain"
	"routecore/pkg/planner"
	"routecore/pkg/warmer"
)

// FleetMigrations is the embedded goose migration set for the agents/
// agent_clients schema PostgresFleetRepository reads from.
//
//go:embed migrations/*.sql
var FleetMigrations embed.FS

// PostgresFleetRepository is a Postgres-backed warmer.FleetRepository: the
// active agent roster and each agent's client book, queried by a single
// joined statement.
type PostgresFleetRepository struct {
	db DB
}

// NewPostgresFleetRepository builds a PostgresFleetRepository over an
// already-connected DB (see NewPostgresDB).
func NewPostgresFleetRepository(db DB) *PostgresFleetRepository {
	return &PostgresFleetRepository{db: db}
}

// ActiveAgents implements warmer.FleetRepository.
func (r *PostgresFleetRepository) ActiveAgents(ctx context.Context) ([]warmer.FleetAgent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.vehicle, c.client_id, c.client
		FROM agents a
		LEFT JOIN agent_clients c ON c.agent_id = a.id
		WHERE a.active = true
		ORDER BY a.id, c.client_id`)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, "fleet repository: query active agents")
	}
	defer rows.Close()

	byAgent := make(map[string]*warmer.FleetAgent)
	var order []string

	for rows.Next() {
		var agentID string
		var vehicleRaw []byte
		var clientID *string
		var clientRaw []byte

		if err := rows.Scan(&agentID, &vehicleRaw, &clientID, &clientRaw); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "fleet repository: scan row")
		}

		agent, ok := byAgent[agentID]
		if !ok {
			var vehicle domain.Vehicle
			if err := json.Unmarshal(vehicleRaw, &vehicle); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeInternal, "fleet repository: unmarshal vehicle").WithField(agentID)
			}
			agent = &warmer.FleetAgent{ID: agentID, Vehicle: vehicle}
			byAgent[agentID] = agent
			order = append(order, agentID)
		}

		if clientID != nil && clientRaw != nil {
			var client planner.Client
			if err := json.Unmarshal(clientRaw, &client); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeInternal, "fleet repository: unmarshal client").WithField(*clientID)
			}
			agent.Clients = append(agent.Clients, client)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, "fleet repository: row iteration")
	}

	agents := make([]warmer.FleetAgent, 0, len(order))
	for _, id := range order {
		agents = append(agents, *byAgent[id])
	}
	return agents, nil
}
