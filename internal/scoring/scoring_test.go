package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/pkg/testutil"
)

func TestAggregate(t *testing.T) {
	testutil.Given(t, "a single present factor", func(t *testing.T) {
		score, ok := Aggregate(Scores{"title_deed": 95}, AssetWeights)
		require.True(t, ok)
		assert.Equal(t, 95.0, score, "renormalised over the title deed weight only")
	})

	testutil.Given(t, "two equal factors", func(t *testing.T) {
		score, ok := Aggregate(Scores{"title_deed": 95, "encumbrance_certificate": 95}, AssetWeights)
		require.True(t, ok)
		assert.Equal(t, 95.0, score)
	})

	testutil.Given(t, "unequal factors", func(t *testing.T) {
		// (80*.35 + 60*.25) / .60 = 71.666...
		score, ok := Aggregate(Scores{"title_deed": 80, "encumbrance_certificate": 60}, AssetWeights)
		require.True(t, ok)
		assert.Equal(t, 71.67, score)
	})

	testutil.Given(t, "all risk factors", func(t *testing.T) {
		score, ok := Aggregate(Scores{
			"location": 20, "legal": 5, "market": 30, "document": 50, "financial": 30,
		}, RiskWeights)
		require.True(t, ok)
		// 5 + 1.5 + 6 + 7.5 + 3
		assert.Equal(t, 23.0, score)
	})

	testutil.Given(t, "no weighted factor present", func(t *testing.T) {
		score, ok := Aggregate(Scores{"unknown": 80}, AssetWeights)
		assert.False(t, ok)
		assert.Zero(t, score)

		_, ok = Aggregate(nil, AssetWeights)
		assert.False(t, ok)
	})

	testutil.Given(t, "out of range sub-scores", func(t *testing.T) {
		score, ok := Aggregate(Scores{"location": 250, "legal": -40}, RiskWeights)
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	})

	testutil.Given(t, "a zero score", func(t *testing.T) {
		score, ok := Aggregate(Scores{"title_deed": 0, "tax_receipt": 100}, AssetWeights)
		require.True(t, ok)
		assert.Equal(t, 30.0, score, "zero is a present score, not a missing one")
	})
}

// Bounded and order-independent for arbitrary inputs.
func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	factors := []Factor{"location", "legal", "market", "document", "financial"}

	for i := 0; i < 500; i++ {
		scores := Scores{}
		for _, f := range factors {
			if rng.Intn(3) == 0 {
				continue
			}
			scores[f] = rng.Float64()*300 - 100
		}
		if len(scores) == 0 {
			continue
		}

		first, ok := Aggregate(scores, RiskWeights)
		require.True(t, ok)
		assert.GreaterOrEqual(t, first, 0.0)
		assert.LessOrEqual(t, first, 100.0)

		rebuilt := Scores{}
		for j := len(factors) - 1; j >= 0; j-- {
			if v, present := scores[factors[j]]; present {
				rebuilt[factors[j]] = v
			}
		}
		for k := 0; k < 5; k++ {
			again, _ := Aggregate(rebuilt, RiskWeights)
			assert.Equal(t, first, again)
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		score float64
		want  Category
	}{
		{0, CategoryVeryLow},
		{24.99, CategoryVeryLow},
		{25, CategoryLow},
		{39.99, CategoryLow},
		{40, CategoryMedium},
		{59.99, CategoryMedium},
		{60, CategoryHigh},
		{74.99, CategoryHigh},
		{75, CategoryVeryHigh},
		{100, CategoryVeryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.score), "score %v", tt.score)
	}
}
