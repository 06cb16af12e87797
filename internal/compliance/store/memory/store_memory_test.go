package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/compliance/models"
	"rwagate/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)
	store := New()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	wf := models.NewWorkflow("asset-1", "owner-1", now)
	require.NoError(t, wf.Advance(models.StageDocumentsUploaded, map[string]string{"batch": "b-1"}, now))
	require.NoError(t, store.Save(ctx, wf))

	wf.Metadata["batch"] = "mutated"

	got, err := store.Get(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageDocumentsUploaded, got.Stage)
	assert.True(t, got.DocumentsUploaded)
	assert.Equal(t, "b-1", got.Metadata["batch"])
}
