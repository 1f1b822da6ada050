package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"routecore/pkg/geo"
)

var (
	matrixInputPath string
	matrixOSRMURL   string
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Compute a distance/duration matrix for a list of coordinates",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(matrixInputPath)
		if err != nil {
			return err
		}
		var coords []geo.Coordinate
		if err := json.Unmarshal(raw, &coords); err != nil {
			return fmt.Errorf("decode coordinates: %w", err)
		}

		store, err := buildCache(cfg)
		if err != nil {
			return err
		}
		svc := buildMatrixService(cfg, store, matrixOSRMURL)

		m, err := svc.Compute(context.Background(), coords)
		if err != nil {
			return fmt.Errorf("compute matrix: %w", err)
		}
		return writeJSON(os.Stdout, m)
	},
}

func init() {
	matrixCmd.Flags().StringVar(&matrixInputPath, "input", "-", "path to a JSON array of {lat,lng} coordinates, or - for stdin")
	matrixCmd.Flags().StringVar(&matrixOSRMURL, "osrm-url", "http://localhost:5000", "base URL of the OSRM-style road-network backend")
}
