package solver

import "routecore/pkg/config"

// NewExternalVROOMAdapter wraps the low-latency external engine endpoint
// (VROOM-shaped: fast heuristic solves, no pickup/delivery support). This
// is the "fast external" solver in the registry's default fallback chain.
func NewExternalVROOMAdapter(cfg config.ExternalConfig) Solver {
	return newExternalAdapter(KindExternalFast, cfg.FastEndpoint, cfg.Timeout)
}
