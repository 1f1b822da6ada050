package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/geo"
)

func TestHTTPBackend_Table_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tableRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n, m := len(req.Sources), len(req.Destinations)
		durations := make([][]float64, n)
		distances := make([][]float64, n)
		for i := range durations {
			durations[i] = make([]float64, m)
			distances[i] = make([]float64, m)
			for j := range durations[i] {
				durations[i][j] = float64(i + j)
				distances[i][j] = float64(i+j) * 1000
			}
		}
		_ = json.NewEncoder(w).Encode(tableResponse{Durations: durations, Distances: distances})
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, config.MatrixConfig{BackendTimeout: 2 * time.Second, RetryAttempts: 1})
	coords := testCoords()
	durations, distances, err := backend.Table(context.Background(), coords, coords)
	require.NoError(t, err)
	assert.Equal(t, float64(2), durations[1][1])
	assert.Equal(t, 0.0, durations[0][0])
	assert.Equal(t, float64(len(coords)-1)*1000, distances[0][len(coords)-1])
}

func TestHTTPBackend_Table_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(tableResponse{
			Durations: [][]float64{{0}},
			Distances: [][]float64{{0}},
		})
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, config.MatrixConfig{
		BackendTimeout: 2 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		RetryFactor:    2,
	})
	coords := []geo.Coordinate{{Lat: 1, Lng: 1}}
	_, _, err := backend.Table(context.Background(), coords, coords)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPBackend_Table_4xxFailsPermanently(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, config.MatrixConfig{
		BackendTimeout: 2 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		RetryFactor:    2,
	})
	coords := []geo.Coordinate{{Lat: 1, Lng: 1}}
	_, _, err := backend.Table(context.Background(), coords, coords)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidInput, apperror.Code(err))
	assert.Equal(t, int32(1), attempts.Load(), "4xx must not be retried")
}

func TestHTTPBackend_Table_ExhaustsRetriesReturnsBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, config.MatrixConfig{
		BackendTimeout: 2 * time.Second,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		RetryFactor:    2,
	})
	coords := []geo.Coordinate{{Lat: 1, Lng: 1}}
	_, _, err := backend.Table(context.Background(), coords, coords)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBackendUnavailable, apperror.Code(err))
}

func TestReplaceMissing(t *testing.T) {
	grid := [][]float64{{0, -1}, {5, 0}}
	replaceMissing(grid)
	assert.Equal(t, Sentinel, grid[0][1])
	assert.Equal(t, 5.0, grid[1][0])
}
