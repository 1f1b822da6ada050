package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/geo"
	"routecore/pkg/logger"
)

// RouteGeometry is the overview polyline and totals for a single route
// request, as returned by the road-network backend's route endpoint.
type RouteGeometry struct {
	Polyline        string  `json:"polyline"`
	DurationSeconds float64 `json:"duration_s"`
	DistanceMeters  float64 `json:"distance_m"`
}

// Backend is the road-network table/route client contract (C1). A call that
// fails after retries returns an *apperror.Error with CodeBackendUnavailable.
type Backend interface {
	// Table returns durations (seconds) and distances (meters) between every
	// source and every destination, sized len(sources) x len(dests).
	Table(ctx context.Context, sources, dests []geo.Coordinate) (durations, distances [][]float64, err error)
	// Route returns the geometry for an ordered coordinate sequence.
	Route(ctx context.Context, coords []geo.Coordinate, overview string) (RouteGeometry, error)
}

// HTTPBackend is a Backend backed by an OSRM-style HTTP road-network
// service: POST {baseURL}/table and {baseURL}/route with a JSON body of
// coordinates, sources and destinations.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	cfg     config.MatrixConfig
}

// NewHTTPBackend builds an HTTPBackend. The underlying transport is tuned
// for a small number of long-lived connections to one internal service, not
// for fanning out to many hosts.
func NewHTTPBackend(baseURL string, cfg config.MatrixConfig) *HTTPBackend {
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &HTTPBackend{
		baseURL: baseURL,
		cfg:     cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.BackendTimeout,
		},
	}
}

type tableRequest struct {
	Sources      []geo.Coordinate `json:"sources"`
	Destinations []geo.Coordinate `json:"destinations"`
}

type tableResponse struct {
	Durations [][]float64 `json:"durations"`
	Distances [][]float64 `json:"distances"`
}

// Table implements Backend.
func (b *HTTPBackend) Table(ctx context.Context, sources, dests []geo.Coordinate) ([][]float64, [][]float64, error) {
	body, err := json.Marshal(tableRequest{Sources: sources, Destinations: dests})
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.CodeInvalidInput, "marshal table request")
	}

	var resp tableResponse
	err = withRetry(ctx, b.cfg, "table", func(ctx context.Context) error {
		return b.post(ctx, "/table", body, &resp)
	})
	if err != nil {
		return nil, nil, err
	}

	replaceMissing(resp.Durations)
	replaceMissing(resp.Distances)
	return resp.Durations, resp.Distances, nil
}

// Route implements Backend.
func (b *HTTPBackend) Route(ctx context.Context, coords []geo.Coordinate, overview string) (RouteGeometry, error) {
	body, err := json.Marshal(struct {
		Coordinates []geo.Coordinate `json:"coordinates"`
		Overview    string           `json:"overview"`
	}{coords, overview})
	if err != nil {
		return RouteGeometry{}, apperror.Wrap(err, apperror.CodeInvalidInput, "marshal route request")
	}

	var resp RouteGeometry
	err = withRetry(ctx, b.cfg, "route", func(ctx context.Context) error {
		return b.post(ctx, "/route", body, &resp)
	})
	return resp, err
}

// post issues one HTTP attempt. 4xx responses and malformed bodies are
// permanent failures (not retried); 5xx and transport errors are retryable.
func (b *HTTPBackend) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidInput, "build backend request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return retryable(apperror.Wrap(err, apperror.CodeBackendUnavailable, "backend request failed"))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return retryable(apperror.New(apperror.CodeBackendUnavailable, fmt.Sprintf("backend returned %d", resp.StatusCode)))
	}
	if resp.StatusCode >= 400 {
		return apperror.New(apperror.CodeInvalidInput, fmt.Sprintf("backend rejected request: %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidInput, "decode backend response")
	}
	return nil
}

// replaceMissing turns backend null/negative cells (encoded as -1 by
// OSRM-style services when a pair is unreachable) into the matrix sentinel.
func replaceMissing(grid [][]float64) {
	for i := range grid {
		for j := range grid[i] {
			if grid[i][j] < 0 {
				grid[i][j] = Sentinel
			}
		}
	}
}

// retryableError marks an *apperror.Error as eligible for backoff retry.
type retryableError struct{ err error }

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

func retryable(err error) error { return &retryableError{err: err} }

// withRetry runs fn with exponential backoff per cfg.RetryAttempts /
// RetryBaseDelay / RetryFactor / RetryJitter, retrying only errors fn wraps
// with retryable(). Each failed attempt that is retried is logged at warn.
func withRetry(ctx context.Context, cfg config.MatrixConfig, op string, fn func(ctx context.Context) error) error {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	factor := cfg.RetryFactor
	if factor <= 0 {
		factor = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if cfg.BackendTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.BackendTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}

		var re *retryableError
		if !asRetryable(err, &re) {
			return unwrapRetryable(err)
		}
		lastErr = unwrapRetryable(err)

		if attempt == attempts {
			break
		}
		if logger.Log != nil {
			logger.Log.Warn("matrix backend attempt failed, retrying", "op", op, "attempt", attempt, "error", lastErr)
		}

		wait := jitter(delay, cfg.RetryJitter)
		select {
		case <-ctx.Done():
			return apperror.Wrap(ctx.Err(), apperror.CodeCancelled, "matrix backend call cancelled")
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * factor)
	}
	return lastErr
}

func asRetryable(err error, target **retryableError) bool {
	re, ok := err.(*retryableError)
	if ok {
		*target = re
	}
	return ok
}

func unwrapRetryable(err error) error {
	if re, ok := err.(*retryableError); ok {
		return re.err
	}
	return err
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(d) + offset)
}
