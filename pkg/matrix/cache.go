package matrix

import (
	"context"
	"encoding/json"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/cache"
	"routecore/pkg/config"
	"routecore/pkg/geo"
	"routecore/pkg/metrics"
)

// TTL policy for matrix-domain cache entries (§4.3).
const (
	TTLDistanceMatrix = 7 * 24 * time.Hour
	TTLRouteGeometry  = 24 * time.Hour
)

// KeyPrefix is the cache-key namespace for every entry this package writes,
// so invalidation (e.g. on CLIENT_UPDATED, AGENT_LOCATION_CHANGED) can
// target "matrix:*" without touching unrelated cache consumers.
const KeyPrefix = "matrix:"

func matrixKey(kind, profile string, sources, dests []geo.Coordinate) string {
	srcDigest := cache.CoordinateDigest(lats(sources), lngs(sources))
	dstDigest := cache.CoordinateDigest(lats(dests), lngs(dests))
	return KeyPrefix + cache.Digest(kind, profile, srcDigest, dstDigest)
}

func lats(coords []geo.Coordinate) []float64 {
	out := make([]float64, len(coords))
	for i, c := range coords {
		out[i] = c.Lat
	}
	return out
}

func lngs(coords []geo.Coordinate) []float64 {
	out := make([]float64, len(coords))
	for i, c := range coords {
		out[i] = c.Lng
	}
	return out
}

type cachedTable struct {
	Durations [][]float64 `json:"durations"`
	Distances [][]float64 `json:"distances"`
}

// CachingBackend wraps a Backend with a content-addressed, write-through
// cache at the sub-matrix (per-batch) granularity: every Table/Route call
// first consults the cache, then falls through to the wrapped backend and
// writes the result back on success (C3). Each ParallelMatrix batch call
// passes through a CachingBackend, so batch-level caching happens
// transparently to the fan-out logic in parallel.go.
type CachingBackend struct {
	backend Backend
	store   cache.Cache
	profile string
}

// NewCachingBackend builds a CachingBackend. profile identifies the routing
// profile (e.g. "driving") so cache entries for different profiles never
// collide.
func NewCachingBackend(backend Backend, store cache.Cache, profile string) *CachingBackend {
	if profile == "" {
		profile = "driving"
	}
	return &CachingBackend{backend: backend, store: store, profile: profile}
}

// Table implements Backend, consulting the cache before calling through.
func (c *CachingBackend) Table(ctx context.Context, sources, dests []geo.Coordinate) ([][]float64, [][]float64, error) {
	key := matrixKey("table", c.profile, sources, dests)

	if raw, err := c.store.Get(ctx, key); err == nil {
		var cached cachedTable
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			metrics.Get().RecordMatrixCacheLookup("batch", true)
			return cached.Durations, cached.Distances, nil
		}
	}
	metrics.Get().RecordMatrixCacheLookup("batch", false)

	durations, distances, err := c.backend.Table(ctx, sources, dests)
	if err != nil {
		return nil, nil, err
	}

	if raw, jsonErr := json.Marshal(cachedTable{Durations: durations, Distances: distances}); jsonErr == nil {
		_ = c.store.Set(ctx, key, raw, TTLDistanceMatrix)
	}
	return durations, distances, nil
}

// Route implements Backend, consulting the cache before calling through.
func (c *CachingBackend) Route(ctx context.Context, coords []geo.Coordinate, overview string) (RouteGeometry, error) {
	key := matrixKey("route:"+overview, c.profile, coords, coords)

	if raw, err := c.store.Get(ctx, key); err == nil {
		var geom RouteGeometry
		if jsonErr := json.Unmarshal(raw, &geom); jsonErr == nil {
			return geom, nil
		}
	}

	geom, err := c.backend.Route(ctx, coords, overview)
	if err != nil {
		return RouteGeometry{}, err
	}

	if raw, jsonErr := json.Marshal(geom); jsonErr == nil {
		_ = c.store.Set(ctx, key, raw, TTLRouteGeometry)
	}
	return geom, nil
}

// MatrixCache additionally caches the full NxN result of a Compute call,
// keyed over the entire coordinate set, so a repeated identical request
// skips ParallelMatrix (and its per-batch cache lookups) entirely.
type MatrixCache struct {
	store   cache.Cache
	profile string
}

// NewMatrixCache builds a full-matrix cache layer in front of a
// ParallelMatrix. Use together with CachingBackend for both cache levels
// described in §4.3.
func NewMatrixCache(store cache.Cache, profile string) *MatrixCache {
	if profile == "" {
		profile = "driving"
	}
	return &MatrixCache{store: store, profile: profile}
}

func (mc *MatrixCache) fullKey(coords []geo.Coordinate) string {
	digest := cache.CoordinateDigest(lats(coords), lngs(coords))
	return KeyPrefix + "full:" + cache.Digest(mc.profile, digest)
}

// Get returns the cached full matrix for coords, if present.
func (mc *MatrixCache) Get(ctx context.Context, coords []geo.Coordinate) (*DistanceMatrix, bool) {
	raw, err := mc.store.Get(ctx, mc.fullKey(coords))
	if err != nil {
		metrics.Get().RecordMatrixCacheLookup("full", false)
		return nil, false
	}
	var m DistanceMatrix
	if jsonErr := json.Unmarshal(raw, &m); jsonErr != nil {
		metrics.Get().RecordMatrixCacheLookup("full", false)
		return nil, false
	}
	metrics.Get().RecordMatrixCacheLookup("full", true)
	return &m, true
}

// Set writes the full matrix for coords with the distance-matrix TTL.
func (mc *MatrixCache) Set(ctx context.Context, coords []geo.Coordinate, m *DistanceMatrix) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "marshal distance matrix")
	}
	return mc.store.Set(ctx, mc.fullKey(coords), raw, TTLDistanceMatrix)
}

// Invalidate removes every matrix-domain cache entry whose key starts with
// KeyPrefix + prefix (e.g. prefix "full:") in response to CLIENT_UPDATED,
// AGENT_LOCATION_CHANGED, or ROUTE_COMPLETED events.
func Invalidate(ctx context.Context, store cache.Cache, prefix string) (int64, error) {
	return store.DeleteByPattern(ctx, KeyPrefix+prefix+"*")
}

// Service composes a full-matrix cache, a batch-level caching backend, and
// the semaphore-bounded fan-out into the single entry point callers use.
type Service struct {
	full     *MatrixCache
	parallel *ParallelMatrix
}

// NewService wires a Backend, a Cache, and a MatrixConfig into a caching,
// parallel matrix service: the full result is cache-checked first, then
// ParallelMatrix fans out over a CachingBackend so individual batches are
// also cache-checked before hitting the network.
func NewService(backend Backend, store cache.Cache, profile string, cfg config.MatrixConfig) *Service {
	return &Service{
		full:     NewMatrixCache(store, profile),
		parallel: NewParallelMatrix(NewCachingBackend(backend, store, profile), cfg),
	}
}

// Compute returns the full NxN DistanceMatrix over coords, consulting the
// full-matrix cache before falling through to ParallelMatrix.
func (s *Service) Compute(ctx context.Context, coords []geo.Coordinate) (*DistanceMatrix, error) {
	if m, ok := s.full.Get(ctx, coords); ok {
		return m, nil
	}

	m, err := s.parallel.Compute(ctx, coords)
	if err != nil {
		return nil, err
	}

	_ = s.full.Set(ctx, coords, m)
	return m, nil
}
