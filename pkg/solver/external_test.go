package solver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
)

func TestExternalAdapter_Solve_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/solve", r.URL.Path)
		_ = json.NewEncoder(w).Encode(externalResponse{
			Routes:         nil,
			UnassignedJobs: []string{"job-1"},
		})
	}))
	defer server.Close()

	adapter := NewExternalVROOMAdapter(config.ExternalConfig{FastEndpoint: server.URL, Timeout: time.Second})
	problem := colinearProblem(t)
	sol, err := adapter.Solve(context.Background(), problem)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, sol.UnassignedJobs)
}

func TestExternalAdapter_Solve_ConnectivityFailure(t *testing.T) {
	adapter := NewExternalORToolsAdapter(config.ExternalConfig{RichEndpoint: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	problem := colinearProblem(t)
	_, err := adapter.Solve(context.Background(), problem)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBackendUnavailable, apperror.Code(err))
}

func TestExternalAdapter_Solve_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewExternalVROOMAdapter(config.ExternalConfig{FastEndpoint: server.URL, Timeout: time.Second})
	problem := colinearProblem(t)
	_, err := adapter.Solve(context.Background(), problem)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBackendUnavailable, apperror.Code(err))
}

func TestExternalAdapter_Solve_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	adapter := NewExternalVROOMAdapter(config.ExternalConfig{FastEndpoint: server.URL, Timeout: time.Second})
	problem := colinearProblem(t)
	_, err := adapter.Solve(context.Background(), problem)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBackendUnavailable, apperror.Code(err))
}
