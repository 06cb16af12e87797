package legal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/evidence/providers"
)

func TestChecklist_Evaluate(t *testing.T) {
	checklist, err := NewChecklist(context.Background())
	require.NoError(t, err)

	allPass := providers.LegalFacts{
		ZoningApproved:        true,
		BuildingCodeCompliant: true,
		DisputeFree:           true,
		TokenizationEligible:  true,
	}

	t.Run("all checks pass", func(t *testing.T) {
		res, err := checklist.Evaluate(context.Background(), allPass)
		require.NoError(t, err)
		assert.True(t, res.Compliant)
		assert.Equal(t, 100.0, res.Score)
		assert.Empty(t, res.Issues)
		assert.Len(t, res.Checks, 4)
	})

	failOne := map[string]func(f *providers.LegalFacts){
		"zoning":                func(f *providers.LegalFacts) { f.ZoningApproved = false },
		"building_code":         func(f *providers.LegalFacts) { f.BuildingCodeCompliant = false },
		"dispute_free":          func(f *providers.LegalFacts) { f.DisputeFree = false },
		"tokenization_eligible": func(f *providers.LegalFacts) { f.TokenizationEligible = false },
	}
	for name, mutate := range failOne {
		t.Run("any single failure scores 60: "+name, func(t *testing.T) {
			facts := allPass
			mutate(&facts)
			res, err := checklist.Evaluate(context.Background(), facts)
			require.NoError(t, err)
			assert.False(t, res.Compliant)
			assert.Equal(t, 60.0, res.Score)
			assert.False(t, res.Checks[name])
			assert.Len(t, res.Issues, 1)
		})
	}

	t.Run("unknown asset fails every check", func(t *testing.T) {
		res, err := checklist.Evaluate(context.Background(), providers.LegalFacts{})
		require.NoError(t, err)
		assert.False(t, res.Compliant)
		assert.Equal(t, 60.0, res.Score)
		assert.Len(t, res.Issues, 4)
	})
}
