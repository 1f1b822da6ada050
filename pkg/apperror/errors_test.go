package apperror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without field",
			err:      New(CodeInvalidInput, "demand is negative"),
			expected: "[INVALID_INPUT] demand is negative",
		},
		{
			name:     "with field",
			err:      NewWithField(CodeNotFound, "agent not found", "agent_id"),
			expected: "[NOT_FOUND] agent not found (field: agent_id)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(cause, CodeBackendUnavailable, "matrix backend unreachable")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsAndCode(t *testing.T) {
	err := New(CodeQueueFull, "pipeline saturated")

	assert.True(t, Is(err, CodeQueueFull))
	assert.False(t, Is(err, CodeInternal))
	assert.Equal(t, CodeQueueFull, Code(err))

	plain := errors.New("boom")
	assert.Equal(t, CodeInternal, Code(plain))
	assert.False(t, Is(plain, CodeInternal))
}

func TestSeverityHelpers(t *testing.T) {
	warn := New(CodeInvalidInput, "demand rounded").WithSeverity(SeverityWarning)
	crit := NewCritical(CodeInternal, "solver panicked")

	assert.True(t, IsWarning(warn))
	assert.False(t, IsCritical(warn))
	assert.True(t, IsCritical(crit))
	assert.False(t, IsWarning(crit))
}

func TestWithDetailsAndField(t *testing.T) {
	err := New(CodeInvalidInput, "duplicate job id").
		WithField("job_id").
		WithDetails("job_id", "job-42")

	assert.Equal(t, "job_id", err.Field)
	assert.Equal(t, "job-42", err.Details["job_id"])
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "critical", SeverityCritical.String())
	assert.Equal(t, "unknown", Severity(99).String())
}

func TestAsTimedOut(t *testing.T) {
	original := New(CodeTimedOut, "request deadline exceeded")
	mapped := AsTimedOut(original)

	assert.Equal(t, CodeBackendUnavailable, mapped.Code)
	assert.Equal(t, CodeTimedOut, mapped.Details["original_code"])
	require.ErrorIs(t, mapped, original)
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	assert.True(t, v.IsValid())

	v.AddError(CodeInvalidInput, "negative weight_kg")
	v.AddErrorWithField(CodeInvalidInput, "missing depot", "vehicle_id")
	v.Add(New(CodeInvalidInput, "warning-ish").WithSeverity(SeverityWarning))

	assert.False(t, v.IsValid())
	assert.True(t, v.HasErrors())
	require.Len(t, v.Errors, 2)
	require.Len(t, v.Warnings, 1)
	assert.Len(t, v.ErrorMessages(), 2)
}
