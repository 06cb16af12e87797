package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/rwa/models"
	"rwagate/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)
	store := New()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	wf := models.NewWorkflow("asset-1", "owner-1", now)
	deed := wf.Document(models.DocTitleDeed)
	deed.MarkUploaded("doc:deed", now)
	deed.Fields = providers.Fields{"deed_number": "TD-1"}
	require.NoError(t, store.Save(ctx, wf))

	deed.Fields["deed_number"] = "mutated"

	got, err := store.Get(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "TD-1", got.Documents[models.DocTitleDeed].Fields.Get("deed_number"))
	assert.Equal(t, "owner-1", string(got.OwnerID))
}
