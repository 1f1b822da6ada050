package matrix

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/geo"
	"routecore/pkg/logger"
	"routecore/pkg/metrics"
)

// ParallelMatrix computes a full NxN DistanceMatrix by decomposing the
// coordinate set into chunks of at most BatchSize, issuing one backend Table
// call per (source chunk, dest chunk) pair, and stitching the sub-matrices
// back together under a semaphore bound on concurrent backend calls (C2).
type ParallelMatrix struct {
	backend Backend
	cfg     config.MatrixConfig
}

// NewParallelMatrix builds a ParallelMatrix over the given backend.
func NewParallelMatrix(backend Backend, cfg config.MatrixConfig) *ParallelMatrix {
	return &ParallelMatrix{backend: backend, cfg: cfg}
}

type chunk struct {
	offset int
	coords []geo.Coordinate
}

func chunks(coords []geo.Coordinate, size int) []chunk {
	if size <= 0 {
		size = len(coords)
		if size == 0 {
			size = 1
		}
	}
	var out []chunk
	for start := 0; start < len(coords); start += size {
		end := start + size
		if end > len(coords) {
			end = len(coords)
		}
		out = append(out, chunk{offset: start, coords: coords[start:end]})
	}
	return out
}

// Compute builds the full NxN matrix over coords. Individual batch failures
// degrade their covered cells to Sentinel unless cfg.RequireFullMatrix is
// set, in which case the first batch failure propagates as
// BackendUnavailable and Compute returns nil.
func (p *ParallelMatrix) Compute(ctx context.Context, coords []geo.Coordinate) (*DistanceMatrix, error) {
	result := NewDistanceMatrix(coords)
	if len(coords) == 0 {
		return result, nil
	}

	sourceChunks := chunks(coords, p.cfg.BatchSize)
	destChunks := chunks(coords, p.cfg.BatchSize)

	maxConcurrent := int64(p.cfg.MaxConcurrent)
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	var mu sync.Mutex // guards writes into result's shared grids
	group, groupCtx := errgroup.WithContext(ctx)

	for _, sc := range sourceChunks {
		sc := sc
		for _, dc := range destChunks {
			dc := dc
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeCancelled, "matrix batch scheduling cancelled")
			}

			group.Go(func() error {
				defer sem.Release(1)

				start := time.Now()
				durations, distances, err := p.backend.Table(groupCtx, sc.coords, dc.coords)
				m := metrics.Get()
				m.RecordMatrixBatch(err == nil, time.Since(start))

				if err != nil {
					m.RecordMatrixBackendFailure(string(apperror.Code(err)))
					if p.cfg.RequireFullMatrix {
						return err
					}
					if logger.Log != nil {
						logger.Log.Warn("matrix batch failed, degrading to sentinel",
							"source_offset", sc.offset, "dest_offset", dc.offset, "error", err)
					}
					return nil // cells already default to Sentinel
				}

				mu.Lock()
				stitch(result, sc.offset, dc.offset, durations, distances)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// stitch copies a sub-matrix into result at (rowOffset, colOffset). The
// first writer to a cell wins; concurrent tasks never cover the same cell
// under the chunk partitioning above, so this is purely defensive.
func stitch(result *DistanceMatrix, rowOffset, colOffset int, durations, distances [][]float64) {
	for i := range durations {
		for j := range durations[i] {
			row, col := rowOffset+i, colOffset+j
			if row == col {
				continue
			}
			if result.Durations[row][col] != Sentinel {
				continue
			}
			result.Durations[row][col] = durations[i][j]
			result.Distances[row][col] = distances[i][j]
		}
	}
}
