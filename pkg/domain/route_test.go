package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepKind_String(t *testing.T) {
	assert.Equal(t, "depot_start", StepDepotStart.String())
	assert.Equal(t, "visit", StepVisit.String())
	assert.Equal(t, "break", StepBreak.String())
	assert.Equal(t, "depot_end", StepDepotEnd.String())
	assert.Equal(t, "unspecified", StepUnspecified.String())
}

func TestStepKind_MarshalJSON(t *testing.T) {
	raw, err := StepVisit.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"visit"`, string(raw))
}

func TestRoute_VisitedJobIDs(t *testing.T) {
	r := Route{Steps: []Step{
		{Kind: StepDepotStart},
		{Kind: StepVisit, JobID: "job-1"},
		{Kind: StepBreak},
		{Kind: StepVisit, JobID: "job-2"},
		{Kind: StepDepotEnd},
	}}
	assert.Equal(t, []string{"job-1", "job-2"}, r.VisitedJobIDs())
}

func TestRoute_IndexOfJob(t *testing.T) {
	r := Route{Steps: []Step{
		{Kind: StepDepotStart},
		{Kind: StepVisit, JobID: "job-1"},
		{Kind: StepVisit, JobID: "job-2"},
	}}
	assert.Equal(t, 0, r.IndexOfJob("job-1"))
	assert.Equal(t, 1, r.IndexOfJob("job-2"))
	assert.Equal(t, -1, r.IndexOfJob("job-3"))
}
