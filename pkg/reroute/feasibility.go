package reroute

import (
	"time"

	"routecore/pkg/config"
	"routecore/pkg/matrix"
)

// projection is the result of walking an agent's remaining visits under
// current traffic conditions.
type projection struct {
	TotalPredictedDelayMinutes float64
	AtRiskJobIDs               []string
	CriticalJobIDs             []string
}

// projectRemainingDay walks snapshot.RemainingVisits in order, applying the
// region's time-of-day traffic multiplier to each leg's baseline duration,
// and classifies each visit against its TimeWindow.Latest. The distance
// matrix's row/col 0 is the agent's current position; row/col i+1 is
// RemainingVisits[i] (§4.8 step 1-2).
func projectRemainingDay(snapshot AgentSnapshot, m *matrix.DistanceMatrix, regional config.RegionalConfig, cfg config.ReroutingConfig) projection {
	var result projection
	clock := snapshot.AsOf
	multiplier := trafficMultiplier(regional, snapshot.Region, clock)

	for i, job := range snapshot.RemainingVisits {
		legSeconds := m.Durations[i][i+1] * multiplier
		clock = clock.Add(time.Duration(legSeconds) * time.Second)

		if job.Location.TimeWindow != nil {
			delay := clock.Sub(job.Location.TimeWindow.Latest)
			if delayMinutes := delay.Minutes(); delayMinutes > 0 {
				if delayMinutes > result.TotalPredictedDelayMinutes {
					result.TotalPredictedDelayMinutes = delayMinutes
				}
				switch {
				case delayMinutes >= float64(cfg.CriticalMinutes):
					result.CriticalJobIDs = append(result.CriticalJobIDs, job.ID)
				case delayMinutes >= float64(cfg.WarningMinutes):
					result.AtRiskJobIDs = append(result.AtRiskJobIDs, job.ID)
				}
			}
		}

		clock = clock.Add(time.Duration(job.Location.EffectiveServiceMinutes()) * time.Minute)
		// Re-derive the multiplier for the next leg: traffic shifts across
		// morning/midday/evening as the projected clock advances.
		multiplier = trafficMultiplier(regional, snapshot.Region, clock)
	}

	return result
}

// trafficMultiplier looks up region's multiplier for the period containing
// t, falling back to the "default" region and a 1.0 multiplier when either
// is unconfigured.
func trafficMultiplier(regional config.RegionalConfig, region string, t time.Time) float64 {
	periods := regional.TrafficMultipliers[region]
	if periods == nil {
		periods = regional.TrafficMultipliers["default"]
	}
	if periods == nil {
		return 1.0
	}
	if v, ok := periods[periodFor(t)]; ok {
		return v
	}
	return 1.0
}

// periodFor buckets an hour-of-day into the three periods RegionalConfig's
// TrafficMultipliers are keyed by.
func periodFor(t time.Time) string {
	switch hour := t.Hour(); {
	case hour >= 6 && hour < 11:
		return "morning"
	case hour >= 11 && hour < 17:
		return "midday"
	default:
		return "evening"
	}
}
