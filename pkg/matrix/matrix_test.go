package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"routecore/pkg/config"
	"routecore/pkg/geo"
)

func matrixConfigForTest() config.MatrixConfig {
	return config.MatrixConfig{
		BatchSize:     2,
		MaxConcurrent: 2,
		RetryAttempts: 1,
	}
}

func TestNewDistanceMatrix_DefaultsToSentinel(t *testing.T) {
	coords := testCoords()
	m := NewDistanceMatrix(coords)

	assert.Equal(t, len(coords), m.N())
	for i := range coords {
		for j := range coords {
			if i == j {
				assert.Zero(t, m.Durations[i][j])
				assert.Zero(t, m.Distances[i][j])
				continue
			}
			assert.Equal(t, Sentinel, m.Durations[i][j])
			assert.Equal(t, Sentinel, m.Distances[i][j])
		}
	}
	assert.True(t, m.HasSentinel())
}

func TestHaversineEstimate(t *testing.T) {
	coords := testCoords()
	m := HaversineEstimate(coords, 0)

	assert.False(t, m.HasSentinel())
	for i := range coords {
		assert.Zero(t, m.Distances[i][i])
	}
	assert.Greater(t, m.Distances[0][2], 0.0)
	assert.InDelta(t, m.Distances[0][2]/DefaultAverageSpeedMPS, m.Durations[0][2], 1e-9)
}

func TestHaversineEstimate_Symmetric(t *testing.T) {
	coords := []geo.Coordinate{
		{Lat: 41.30, Lng: 69.24},
		{Lat: 41.32, Lng: 69.28},
	}
	m := HaversineEstimate(coords, 10)
	assert.InDelta(t, m.Distances[0][1], m.Distances[1][0], 1e-9)
}
