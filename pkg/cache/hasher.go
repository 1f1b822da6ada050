package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Digest computes a short, deterministic hex digest over a set of
// already-canonical string fields. Callers are responsible for ordering
// and formatting fields so that semantically equal inputs produce the same
// digest regardless of map iteration order — see CoordinateDigest for the
// canonical form used by the matrix cache.
func Digest(fields ...string) string {
	joined := strings.Join(fields, "|")
	sum := xxhash.Sum64String(joined)
	return strconv.FormatUint(sum, 16)
}

// CoordinateDigest builds a canonical digest for a set of lat/lng pairs,
// order-independent so that a permuted request hits the same cache entry.
// lats and lngs must be the same length; precision is fixed at 6 decimal
// places (~0.11m), matching the resolution MatrixBackend coordinates carry.
func CoordinateDigest(lats, lngs []float64) string {
	type point struct {
		lat, lng float64
	}

	points := make([]point, len(lats))
	for i := range lats {
		points[i] = point{lats[i], lngs[i]}
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].lat != points[j].lat {
			return points[i].lat < points[j].lat
		}
		return points[i].lng < points[j].lng
	})

	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "%.6f,%.6f;", p.lat, p.lng)
	}

	sum := xxhash.Sum64String(b.String())
	return strconv.FormatUint(sum, 16)
}

// QuickHash is a short digest of arbitrary bytes, used where a full
// CoordinateDigest is unavailable (e.g. hashing a serialized route geometry
// for ETag-style cache keys).
func QuickHash(data []byte) string {
	sum := xxhash.Sum64(data)
	return strconv.FormatUint(sum, 16)
}
