package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rwagate/pkg/domain-errors"
)

var now = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

func TestStageTransitions(t *testing.T) {
	stages := []Stage{StagePending, StageDocumentsUploaded, StageAIVerified, StageTokenized, StageRejected}
	allowed := map[Stage][]Stage{
		StagePending:           {StageDocumentsUploaded, StageRejected},
		StageDocumentsUploaded: {StageAIVerified, StageRejected},
		StageAIVerified:        {StageTokenized, StageRejected},
	}
	for _, from := range stages {
		for _, to := range stages {
			want := false
			for _, a := range allowed[from] {
				want = want || a == to
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestAdvance(t *testing.T) {
	t.Run("forward path sets every stage flag and merges metadata", func(t *testing.T) {
		wf := NewWorkflow("asset-1", "owner-1", now)
		require.NoError(t, wf.Advance(StageDocumentsUploaded, map[string]string{"docs": "3"}, now))
		require.NoError(t, wf.Advance(StageAIVerified, map[string]string{"score": "95"}, now.Add(time.Minute)))
		require.NoError(t, wf.Advance(StageTokenized, nil, now.Add(time.Hour)))

		assert.Equal(t, StageTokenized, wf.Stage)
		assert.True(t, wf.DocumentsUploaded)
		assert.True(t, wf.AIVerified)
		assert.True(t, wf.Tokenized)
		assert.Equal(t, map[string]string{"docs": "3", "score": "95"}, wf.Metadata)
		assert.Equal(t, now.Add(time.Hour), wf.UpdatedAt)
	})

	t.Run("skipping a stage is an invalid transition", func(t *testing.T) {
		wf := NewWorkflow("asset-1", "owner-1", now)
		err := wf.Advance(StageAIVerified, nil, now)

		var invalid *dErrors.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "pending", invalid.From)
		assert.Equal(t, "ai_verified", invalid.To)
		assert.False(t, wf.AIVerified)
	})

	t.Run("rejection keeps the flags already earned", func(t *testing.T) {
		wf := NewWorkflow("asset-1", "owner-1", now)
		require.NoError(t, wf.Advance(StageDocumentsUploaded, nil, now))
		require.NoError(t, wf.Advance(StageRejected, map[string]string{"reason": "forged deed"}, now))

		assert.True(t, wf.DocumentsUploaded)
		assert.Equal(t, "forged deed", wf.Metadata["reason"])
		assert.True(t, dErrors.HasCode(wf.Advance(StageAIVerified, nil, now), dErrors.CodeInvalidTransition))
	})
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage(" AI_Verified ")
	require.NoError(t, err)
	assert.Equal(t, StageAIVerified, stage)

	_, err = ParseStage("listed")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCloneIsDeep(t *testing.T) {
	wf := NewWorkflow("asset-1", "owner-1", now)
	wf.Metadata["k"] = "v"
	clone := wf.Clone()
	clone.Metadata["k"] = "changed"
	assert.Equal(t, "v", wf.Metadata["k"])
}
