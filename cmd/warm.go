package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"routecore/pkg/database"
	"routecore/pkg/planner"
	"routecore/pkg/warmer"
)

var (
	warmRepoKind string
	warmFleetFile string
	warmOSRMURL  string
	warmOnce     bool
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-populate the matrix cache, reference data, and today's plan for the active fleet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		repo, closeRepo, err := buildFleetRepository(ctx)
		if err != nil {
			return err
		}
		if closeRepo != nil {
			defer closeRepo()
		}

		store, err := buildCache(cfg)
		if err != nil {
			return err
		}
		svc := buildMatrixService(cfg, store, warmOSRMURL)
		registry := buildRegistry(cfg)
		weekly := planner.NewWeeklyPlanner(svc, registry, nil, nil, cfg.Planner, cfg.Regional)

		w := warmer.NewCacheWarmer(repo, svc, weekly, store, cfg.Warmer, cfg.Cache.TTL, nil)

		if warmOnce {
			return w.Run(ctx)
		}
		w.RunSchedule(ctx)
		return nil
	},
}

// buildFleetRepository returns the configured warmer.FleetRepository and an
// optional close func for its underlying connection.
func buildFleetRepository(ctx context.Context) (warmer.FleetRepository, func(), error) {
	switch warmRepoKind {
	case "postgres":
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect fleet database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, database.FleetMigrations, "migrations"); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("run fleet migrations: %w", err)
			}
		}
		return database.NewPostgresFleetRepository(db), db.Close, nil
	case "file":
		if warmFleetFile == "" {
			return nil, nil, fmt.Errorf("--fleet-file is required when --fleet-repository=file")
		}
		return fileFleetRepository{path: warmFleetFile}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown fleet repository kind %q (want file or postgres)", warmRepoKind)
	}
}

func init() {
	warmCmd.Flags().StringVar(&warmRepoKind, "fleet-repository", "file", "fleet roster source: file or postgres")
	warmCmd.Flags().StringVar(&warmFleetFile, "fleet-file", "", "path to a JSON array of fleet agents (fleet-repository=file)")
	warmCmd.Flags().StringVar(&warmOSRMURL, "osrm-url", "http://localhost:5000", "base URL of the OSRM-style road-network backend")
	warmCmd.Flags().BoolVar(&warmOnce, "once", false, "run a single warming pass instead of the daily schedule loop")
}
