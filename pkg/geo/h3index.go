package geo

import (
	"math"
	"sort"
	"sync"

	h3 "github.com/uber/h3-go/v4"
)

// h3EdgeLengthMeters is the average H3 hexagon edge length per resolution,
// used to size the k-ring walk for a radius query. Values are the
// documented H3 "average hexagon edge length" table (res 0..15).
var h3EdgeLengthMeters = [16]float64{
	1107712.591, 418676.0055, 158244.6558, 59810.85794,
	22606.3794, 8544.408276, 3229.482772, 1220.629759,
	461.354684, 174.375668, 65.907807, 24.910561,
	9.415526, 3.559893, 1.348575, 0.509713,
}

// H3Index is a SpatialIndex backed by Uber's H3 hexagonal grid: entities are
// bucketed into cells at a configured resolution, and radius/k-nearest
// queries expand a k-ring around the query's cell before filtering
// candidates by exact haversine distance.
type H3Index struct {
	mu         sync.RWMutex
	resolution int
	cells      map[h3.Cell]map[string]Entity // cell -> entity ID -> entity
	locations  map[string]h3.Cell            // entity ID -> its current cell
}

// NewH3Index creates an H3-backed spatial index at the given resolution
// (0-15; spec default is 9, ≈174 m edge).
func NewH3Index(resolution int) *H3Index {
	if resolution < 0 {
		resolution = 0
	}
	if resolution > 15 {
		resolution = 15
	}
	return &H3Index{
		resolution: resolution,
		cells:      make(map[h3.Cell]map[string]Entity),
		locations:  make(map[string]h3.Cell),
	}
}

func (idx *H3Index) cellFor(c Coordinate) h3.Cell {
	return h3.LatLngToCell(h3.NewLatLng(c.Lat, c.Lng), idx.resolution)
}

// Add inserts or updates an entity's position.
func (idx *H3Index) Add(e Entity) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if oldCell, ok := idx.locations[e.ID]; ok {
		delete(idx.cells[oldCell], e.ID)
		if len(idx.cells[oldCell]) == 0 {
			delete(idx.cells, oldCell)
		}
	}

	cell := idx.cellFor(e.Coord)
	if idx.cells[cell] == nil {
		idx.cells[cell] = make(map[string]Entity)
	}
	idx.cells[cell][e.ID] = e
	idx.locations[e.ID] = cell
}

// Remove deletes an entity by ID.
func (idx *H3Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cell, ok := idx.locations[id]
	if !ok {
		return
	}
	delete(idx.cells[cell], id)
	if len(idx.cells[cell]) == 0 {
		delete(idx.cells, cell)
	}
	delete(idx.locations, id)
}

// Len reports the number of entities currently indexed.
func (idx *H3Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.locations)
}

// Radius returns every entity within meters of center.
func (idx *H3Index) Radius(center Coordinate, meters float64) []Candidate {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	edge := h3EdgeLengthMeters[idx.resolution]
	k := int(math.Ceil(meters / edge))

	origin := idx.cellFor(center)
	ring := h3.GridDisk(origin, k)

	var out []Candidate
	for _, cell := range ring {
		for _, e := range idx.cells[cell] {
			d := Haversine(center, e.Coord)
			if d <= meters {
				out = append(out, Candidate{Entity: e, Distance: d})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// KNearest returns up to k entities closest to center, expanding the k-ring
// until at least k candidates are collected or the whole index is covered.
func (idx *H3Index) KNearest(center Coordinate, k int) []Candidate {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil
	}

	origin := idx.cellFor(center)
	total := len(idx.locations)

	const maxRing = 1000 // bounds the walk; at res 9 this reaches about 300 km
	var out []Candidate
	for ringK := 1; ringK <= maxRing; ringK++ {
		ring := h3.GridDisk(origin, ringK)

		out = out[:0]
		seen := make(map[string]struct{})
		for _, cell := range ring {
			for id, e := range idx.cells[cell] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, Candidate{Entity: e, Distance: Haversine(center, e.Coord)})
			}
		}

		if len(out) >= k || len(out) >= total {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
