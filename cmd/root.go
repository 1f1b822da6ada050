// Package cmd implements the routecore CLI: one subcommand per optimization
// component (matrix precompute, solve, weekly planning, cache warming,
// predictive rerouting), all sharing one configuration and logger.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"routecore/pkg/config"
	"routecore/pkg/logger"
	"routecore/pkg/metrics"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "routecore",
	Short: "Vehicle routing optimization core for field-sales and delivery fleets",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.NewLoader(config.WithConfigPaths(configPath)).Load()
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.InitWithConfig(logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			FilePath:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})

		if cfg.Metrics.Enabled {
			metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
			metrics.Get().SetServiceInfo(cfg.App.Version, cfg.App.Environment)
		}
		return nil
	},
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (overrides the default search paths)")
	rootCmd.AddCommand(matrixCmd, solveCmd, planCmd, warmCmd, rerouteCmd, eventsCmd)
}
