package matrix

import "routecore/pkg/geo"

// DefaultAverageSpeedMPS is the fallback travel-speed estimate used to turn a
// haversine distance into a duration (roughly 30 km/h, suited to urban and
// peri-urban Central Asian delivery routes).
const DefaultAverageSpeedMPS = 8.33

// HaversineEstimate builds a DistanceMatrix from great-circle distances
// alone, for use when the backend is unreachable after retries.
// Durations are distance / averageSpeedMPS; a non-positive speed falls back
// to DefaultAverageSpeedMPS.
func HaversineEstimate(coords []geo.Coordinate, averageSpeedMPS float64) *DistanceMatrix {
	if averageSpeedMPS <= 0 {
		averageSpeedMPS = DefaultAverageSpeedMPS
	}

	m := NewDistanceMatrix(coords)
	n := len(coords)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := geo.Haversine(coords[i], coords[j])
			m.Distances[i][j] = d
			m.Durations[i][j] = d / averageSpeedMPS
		}
	}
	return m
}
