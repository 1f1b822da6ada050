package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_SamePoint(t *testing.T) {
	a := Coordinate{Lat: 43.238949, Lng: 76.889709}
	assert.InDelta(t, 0, Haversine(a, a), 1e-6)
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Almaty to Tashkent, roughly 665km as the crow flies.
	almaty := Coordinate{Lat: 43.238949, Lng: 76.889709}
	tashkent := Coordinate{Lat: 41.311081, Lng: 69.240562}

	d := Haversine(almaty, tashkent)
	assert.Greater(t, d, 600000.0)
	assert.Less(t, d, 750000.0)
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Coordinate{Lat: 43.2, Lng: 76.9}
	b := Coordinate{Lat: 41.3, Lng: 69.2}
	assert.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-9)
}

func almatyGridPoint(offsetLat, offsetLng int) Coordinate {
	const stepDeg = 0.002
	return Coordinate{
		Lat: 43.2 + float64(offsetLat)*stepDeg,
		Lng: 76.9 + float64(offsetLng)*stepDeg,
	}
}

func bruteForceRadius(entities []Entity, center Coordinate, meters float64) []Candidate {
	var out []Candidate
	for _, e := range entities {
		d := Haversine(center, e.Coord)
		if d <= meters {
			out = append(out, Candidate{Entity: e, Distance: d})
		}
	}
	return out
}

func seedGrid(t *testing.T, idx Index, n int) []Entity {
	t.Helper()
	entities := make([]Entity, 0, n)
	side := int(math.Sqrt(float64(n))) + 1
	id := 0
	for i := 0; i < side && len(entities) < n; i++ {
		for j := 0; j < side && len(entities) < n; j++ {
			e := Entity{ID: idStr(id), Coord: almatyGridPoint(i-side/2, j-side/2)}
			entities = append(entities, e)
			idx.Add(e)
			id++
		}
	}
	return entities
}

func idStr(i int) string {
	const hex = "0123456789abcdef"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{hex[i%16]}, b...)
		i /= 16
	}
	return string(b)
}

func TestH3Index_RadiusSoundness(t *testing.T) {
	idx := NewH3Index(9)
	entities := seedGrid(t, idx, 400)

	center := almatyGridPoint(0, 0)
	got := idx.Radius(center, 500)
	want := bruteForceRadius(entities, center, 500)

	assert.Equal(t, len(want), len(got))

	gotIDs := make(map[string]bool, len(got))
	for _, c := range got {
		gotIDs[c.Entity.ID] = true
		assert.LessOrEqual(t, c.Distance, 500.0)
	}
	for _, c := range want {
		assert.True(t, gotIDs[c.Entity.ID], "missing entity %s within radius", c.Entity.ID)
	}
}

func TestGridIndex_RadiusSoundness(t *testing.T) {
	idx := NewGridIndex(0)
	entities := seedGrid(t, idx, 400)

	center := almatyGridPoint(0, 0)
	got := idx.Radius(center, 500)
	want := bruteForceRadius(entities, center, 500)

	assert.Equal(t, len(want), len(got))
	for _, c := range got {
		assert.LessOrEqual(t, c.Distance, 500.0)
	}
}

func TestH3Index_KNearest(t *testing.T) {
	idx := NewH3Index(9)
	seedGrid(t, idx, 200)

	center := almatyGridPoint(0, 0)
	got := idx.KNearest(center, 5)

	assert.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
}

func TestH3Index_AddRemove(t *testing.T) {
	idx := NewH3Index(9)
	e := Entity{ID: "agent-1", Coord: Coordinate{Lat: 43.2, Lng: 76.9}}

	idx.Add(e)
	assert.Equal(t, 1, idx.Len())

	idx.Remove("agent-1")
	assert.Equal(t, 0, idx.Len())

	assert.Empty(t, idx.Radius(e.Coord, 1000))
}

func TestH3Index_MoveUpdatesCell(t *testing.T) {
	idx := NewH3Index(9)
	e := Entity{ID: "agent-1", Coord: Coordinate{Lat: 43.2, Lng: 76.9}}
	idx.Add(e)

	moved := Entity{ID: "agent-1", Coord: Coordinate{Lat: 44.0, Lng: 78.0}}
	idx.Add(moved)

	assert.Equal(t, 1, idx.Len())
	near := idx.Radius(moved.Coord, 10)
	assert.Len(t, near, 1)
	assert.Equal(t, "agent-1", near[0].Entity.ID)
}

func TestGridIndex_KNearestFewerThanK(t *testing.T) {
	idx := NewGridIndex(0)
	idx.Add(Entity{ID: "a", Coord: Coordinate{Lat: 43.2, Lng: 76.9}})
	idx.Add(Entity{ID: "b", Coord: Coordinate{Lat: 43.201, Lng: 76.901}})

	got := idx.KNearest(Coordinate{Lat: 43.2, Lng: 76.9}, 10)
	assert.Len(t, got, 2)
}
