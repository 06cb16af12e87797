package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/workflow"
	dErrors "rwagate/pkg/domain-errors"
)

var now = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

func TestParseStepKinds(t *testing.T) {
	kinds, err := ParseStepKinds([]string{"identity_document", "liveness_selfie", "identity_document"})
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepIdentityDocument, StepLivenessSelfie}, kinds)

	_, err = ParseStepKinds([]string{"library_card"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestWorkflow_Progress(t *testing.T) {
	wf := NewWorkflow("u1", now)
	assert.Zero(t, wf.Progress(DefaultRequiredSteps))

	wf.Step(StepIdentityDocument).Record(true, 100, nil, now)
	wf.Step(StepTaxIDDocument).MarkUploaded("doc:pan", now)
	assert.InDelta(t, 100.0/3, wf.Progress(DefaultRequiredSteps), 1e-9)

	assert.Zero(t, wf.Progress(nil))
}

func TestWorkflow_MissingSteps(t *testing.T) {
	wf := NewWorkflow("u1", now)
	wf.Step(StepTaxIDDocument).MarkUploaded("doc:pan", now)
	wf.Step(StepLivenessSelfie) // created but never uploaded

	assert.Equal(t, []string{"identity_document", "liveness_selfie"}, wf.MissingSteps(DefaultRequiredSteps))
}

func TestWorkflow_AllRequiredVerified(t *testing.T) {
	wf := NewWorkflow("u1", now)
	assert.False(t, wf.AllRequiredVerified(nil), "empty requirement set never qualifies")

	for _, k := range DefaultRequiredSteps {
		wf.Step(k).Record(true, 100, nil, now)
	}
	assert.True(t, wf.AllRequiredVerified(DefaultRequiredSteps))

	wf.Step(StepLivenessSelfie).Record(false, 40, []string{"face mismatch"}, now)
	assert.False(t, wf.AllRequiredVerified(DefaultRequiredSteps))
}

func TestWorkflow_StartNewCycle(t *testing.T) {
	wf := NewWorkflow("u1", now)
	err := wf.StartNewCycle(now)
	var transition *dErrors.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	wf.Status = workflow.StatusRejected
	wf.Step(StepIdentityDocument).MarkUploaded("doc:a", now)
	wf.AddHistory("rejected", "system", "missing selfie", now)

	require.NoError(t, wf.StartNewCycle(now.Add(time.Hour)))
	assert.Equal(t, 2, wf.Generation)
	assert.Equal(t, workflow.StatusNotStarted, wf.Status)
	assert.Empty(t, wf.Steps)
	assert.Len(t, wf.History, 1, "history survives a new cycle")
}

func TestWorkflow_CloneIsDeep(t *testing.T) {
	wf := NewWorkflow("u1", now)
	wf.Step(StepIdentityDocument).Record(false, 0, []string{"Invalid Aadhaar format"}, now)

	c := wf.Clone()
	c.Steps[StepIdentityDocument].Issues[0] = "changed"
	c.Steps[StepPassport] = &Step{Kind: StepPassport}

	assert.Equal(t, "Invalid Aadhaar format", wf.Steps[StepIdentityDocument].Issues[0])
	assert.NotContains(t, wf.Steps, StepPassport)
}

func TestWorkflow_View(t *testing.T) {
	wf := NewWorkflow("u1", now)
	wf.Step(StepPassport).MarkUploaded("doc:pp", now)
	wf.Step(StepIdentityDocument).Record(true, 100, nil, now)
	require.NoError(t, wf.TransitionTo(workflow.StatusPending, now))

	view := wf.View(DefaultRequiredSteps, 365*24*time.Hour)
	require.Len(t, view.Steps, 4)
	assert.Equal(t, StepIdentityDocument, view.Steps[0].Kind)
	assert.True(t, view.Steps[0].Required)
	assert.Equal(t, workflow.StepNotUploaded, view.Steps[1].Status)
	assert.Equal(t, StepPassport, view.Steps[3].Kind)
	assert.False(t, view.Steps[3].Required)
	assert.Nil(t, view.ExpiresAt, "only Verified workflows expire")
}
