package domain

import (
	"math"
	"time"

	"routecore/pkg/geo"
)

// CoordinatePrecision is the decimal-degree rounding used to compare
// coordinates for equality (≈0.11 m at the equator).
const CoordinatePrecision = 6

// CoordinateEquals reports whether a and b are the same point within
// 6-decimal precision.
func CoordinateEquals(a, b geo.Coordinate) bool {
	return roundTo(a.Lat, CoordinatePrecision) == roundTo(b.Lat, CoordinatePrecision) &&
		roundTo(a.Lng, CoordinatePrecision) == roundTo(b.Lng, CoordinatePrecision)
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

// ValidCoordinate reports whether c lies within the WGS84 domain.
func ValidCoordinate(c geo.Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// TimeWindow bounds the arrival at a visit: no earlier than Earliest and no
// later than Latest. Absolute timestamps; a planner may also express
// these as minutes-from-midnight and convert before constructing a Problem.
type TimeWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Contains reports whether t falls within the window, inclusive.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Earliest) && !t.After(w.Latest)
}

// DefaultServiceMinutes is the service duration assumed when a Location
// does not specify one.
const DefaultServiceMinutes = 15

// Location is a point a vehicle can visit: a coordinate, how long the visit
// takes, and an optional arrival window.
type Location struct {
	Coordinate     geo.Coordinate `json:"coordinate"`
	ServiceMinutes int            `json:"service_minutes"`
	TimeWindow     *TimeWindow    `json:"time_window,omitempty"`
}

// EffectiveServiceMinutes returns ServiceMinutes, or DefaultServiceMinutes
// if unset.
func (l Location) EffectiveServiceMinutes() int {
	if l.ServiceMinutes <= 0 {
		return DefaultServiceMinutes
	}
	return l.ServiceMinutes
}
