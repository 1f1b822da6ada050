package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolution_Totals(t *testing.T) {
	s := &Solution{Routes: []Route{
		{TotalMeters: 1000, TotalSeconds: 100},
		{TotalMeters: 2000, TotalSeconds: 200},
	}}
	meters, seconds := s.Totals()
	assert.Equal(t, 3000.0, meters)
	assert.Equal(t, 300.0, seconds)
}

func TestSolution_RouteForVehicle(t *testing.T) {
	s := &Solution{Routes: []Route{{VehicleID: "veh-1"}}}
	r, ok := s.RouteForVehicle("veh-1")
	assert.True(t, ok)
	assert.Equal(t, "veh-1", r.VehicleID)

	_, ok = s.RouteForVehicle("missing")
	assert.False(t, ok)
}

func TestSolution_IsUnassigned(t *testing.T) {
	s := &Solution{UnassignedJobs: []string{"job-1"}}
	assert.True(t, s.IsUnassigned("job-1"))
	assert.False(t, s.IsUnassigned("job-2"))
}
