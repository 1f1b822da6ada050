package domain

import "routecore/pkg/geo"

// SpatialEntityKind identifies what a SpatialEntity represents in the
// SpatialIndex (an agent's live position, a job, or a client).
type SpatialEntityKind string

const (
	SpatialAgent  SpatialEntityKind = "agent"
	SpatialJob    SpatialEntityKind = "job"
	SpatialClient SpatialEntityKind = "client"
)

// SpatialEntity is anything tracked by the spatial index: an identity, a
// coordinate, and an opaque payload reference (e.g. a Job or Vehicle ID)
// the caller resolves against its own Repository.
type SpatialEntity struct {
	ID      string            `json:"id"`
	Kind    SpatialEntityKind `json:"kind"`
	Coord   geo.Coordinate    `json:"coord"`
	Payload string            `json:"payload,omitempty"`
}

// ToGeoEntity converts a SpatialEntity into the plain geo.Entity the
// SpatialIndex operates on.
func (e SpatialEntity) ToGeoEntity() geo.Entity {
	return geo.Entity{ID: e.ID, Coord: e.Coord}
}
