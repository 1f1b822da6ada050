package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/domain"
)

// externalRequest is the wire shape sent to an external optimization
// engine: the flattened job/vehicle lists plus the precomputed duration
// matrix, so the engine never has to call back for distances.
type externalRequest struct {
	Jobs      []domain.Job     `json:"jobs"`
	Vehicles  []domain.Vehicle `json:"vehicles"`
	Durations [][]float64      `json:"durations"`
	Distances [][]float64      `json:"distances"`
	Allow     bool             `json:"allow_unassigned"`
}

// externalResponse is the wire shape an external engine returns. They do
// not implement optimization themselves from the caller's perspective —
// this adapter only translates Problem <-> this shape.
type externalResponse struct {
	Routes         []domain.Route `json:"routes"`
	UnassignedJobs []string       `json:"unassigned_jobs"`
}

// externalAdapter wraps an HTTP-reachable optimization engine behind the
// Solver contract. It does not retry: a connectivity failure or malformed
// response is reported once as BackendUnavailable, letting
// solve_with_fallback move to the next solver in the chain.
type externalAdapter struct {
	kind     SolverKind
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func newExternalAdapter(kind SolverKind, endpoint string, timeout time.Duration) *externalAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &externalAdapter{
		kind:     kind,
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

func (a *externalAdapter) Kind() SolverKind { return a.kind }

func (a *externalAdapter) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (a *externalAdapter) Solve(ctx context.Context, problem *domain.Problem) (*domain.Solution, error) {
	start := time.Now()
	if problem.Matrix == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "problem.Matrix is required for the "+string(a.kind)+" adapter")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(externalRequest{
		Jobs:      problem.Jobs,
		Vehicles:  problem.Vehicles,
		Durations: problem.Matrix.Durations,
		Distances: problem.Matrix.Distances,
		Allow:     problem.AllowUnassigned,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to marshal external solve request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to build external solve request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, string(a.kind)+" adapter unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.CodeBackendUnavailable, string(a.kind)+" adapter returned an error status").
			WithDetails("status", resp.StatusCode)
	}

	var wire externalResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, string(a.kind)+" adapter returned a malformed response")
	}

	sol := &domain.Solution{
		Routes:         wire.Routes,
		UnassignedJobs: wire.UnassignedJobs,
		SolverKind:     toDomainKind(a.kind),
		ElapsedMS:      time.Since(start).Milliseconds(),
	}
	sol.TotalMeters, sol.TotalSeconds = sol.Totals()
	return sol, nil
}
