package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest_Deterministic(t *testing.T) {
	a := Digest("a", "b", "c")
	b := Digest("a", "b", "c")
	assert.Equal(t, a, b)

	c := Digest("a", "b", "d")
	assert.NotEqual(t, a, c)
}

func TestCoordinateDigest_OrderIndependent(t *testing.T) {
	lats1 := []float64{43.238949, 41.311081}
	lngs1 := []float64{76.889709, 69.240562}

	lats2 := []float64{41.311081, 43.238949}
	lngs2 := []float64{69.240562, 76.889709}

	assert.Equal(t, CoordinateDigest(lats1, lngs1), CoordinateDigest(lats2, lngs2))
}

func TestCoordinateDigest_DifferentInputsDiffer(t *testing.T) {
	d1 := CoordinateDigest([]float64{43.238949}, []float64{76.889709})
	d2 := CoordinateDigest([]float64{43.238950}, []float64{76.889709})
	assert.NotEqual(t, d1, d2)
}

func TestQuickHash(t *testing.T) {
	h1 := QuickHash([]byte("route-geometry-bytes"))
	h2 := QuickHash([]byte("route-geometry-bytes"))
	assert.Equal(t, h1, h2)

	h3 := QuickHash([]byte("different-bytes"))
	assert.NotEqual(t, h1, h3)
}
