package solver

import "routecore/pkg/config"

// NewExternalORToolsAdapter wraps the feature-rich external engine endpoint
// (OR-Tools-shaped: handles pickup/delivery and large, tightly-constrained
// instances at higher latency). This is the "rich external" solver in the
// registry's default fallback chain.
func NewExternalORToolsAdapter(cfg config.ExternalConfig) Solver {
	return newExternalAdapter(KindExternalRich, cfg.RichEndpoint, cfg.Timeout)
}
