package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rwagate/pkg/domain-errors"
)

func TestMachine(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusNotStarted, StatusPending},
		{StatusPending, StatusInReview},
		{StatusInReview, StatusVerified},
		{StatusInReview, StatusRejected},
		{StatusVerified, StatusExpired},
	}
	for _, e := range legal {
		got, err := IdentityMachine.Transition(e.from, e.to)
		require.NoError(t, err, "%s -> %s", e.from, e.to)
		assert.Equal(t, e.to, got)
	}

	illegal := []struct{ from, to Status }{
		{StatusNotStarted, StatusVerified},
		{StatusPending, StatusVerified},
		{StatusRejected, StatusPending},
		{StatusVerified, StatusPending},
		{StatusExpired, StatusVerified},
		{StatusInReview, StatusPending},
	}
	for _, e := range illegal {
		got, err := IdentityMachine.Transition(e.from, e.to)
		require.Error(t, err, "%s -> %s", e.from, e.to)
		assert.Equal(t, e.from, got, "status is unchanged on an illegal edge")

		var te *dErrors.InvalidTransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, string(e.from), te.From)
		assert.Equal(t, string(e.to), te.To)
	}

	assert.False(t, AssetMachine.CanTransition(StatusVerified, StatusExpired), "assets do not expire")
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("in_review")
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, s)

	_, err = ParseStatus("approved")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestStep(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var missing *Step
	assert.False(t, missing.Present())
	assert.False(t, (&Step{Status: StepNotUploaded}).Present())

	s := &Step{}
	s.MarkUploaded("ref-1", at)
	assert.True(t, s.Present())
	assert.False(t, s.IsVerified())

	s.Record(false, 40, []string{"owner_name missing"}, at)
	assert.Equal(t, StepRejected, s.Status)
	require.NotNil(t, s.Score)
	assert.Equal(t, 40.0, *s.Score)

	clone := s.Clone()
	clone.Issues[0] = "mutated"
	*clone.Score = 99
	assert.Equal(t, "owner_name missing", s.Issues[0], "clone does not alias issues")
	assert.Equal(t, 40.0, *s.Score, "clone does not alias score")

	s.MarkUploaded("ref-2", at.Add(time.Hour))
	assert.Equal(t, StepUploaded, s.Status)
	assert.Nil(t, s.Score, "re-upload clears the previous outcome")
	assert.Empty(t, s.Issues)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusVerified.IsDecided())
	assert.True(t, StatusRejected.IsDecided())
	assert.False(t, StatusInReview.IsDecided())

	assert.True(t, StatusRejected.RequiresNewCycle())
	assert.True(t, StatusExpired.RequiresNewCycle())
	assert.False(t, StatusVerified.RequiresNewCycle())
}
