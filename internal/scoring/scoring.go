// Package scoring combines named sub-scores into one weighted score and maps
// scores onto risk categories. Everything here is pure.
package scoring

import (
	"math"
	"sort"
)

// Factor names a sub-score.
type Factor string

// Weights maps each configured factor to its weight. Weights of one
// configuration sum to 1.0, but Aggregate only relies on them being positive.
type Weights map[Factor]float64

// Scores maps factors to values in [0,100]. A factor absent from the map is
// missing, which is different from a score of zero.
type Scores map[Factor]float64

var (
	// RiskWeights weights the investment-risk factors.
	RiskWeights = Weights{
		"location":  0.25,
		"legal":     0.30,
		"market":    0.20,
		"document":  0.15,
		"financial": 0.10,
	}

	// AssetWeights weights asset-verification evidence.
	AssetWeights = Weights{
		"title_deed":              0.35,
		"encumbrance_certificate": 0.25,
		"tax_receipt":             0.15,
		"ownership":               0.15,
		"legal_compliance":        0.10,
	}
)

// Aggregate returns Σ(score·weight) / Σ(weight) over the factors present in
// both scores and weights. Missing factors are excluded from numerator and
// denominator. Scores outside the weight set are ignored.
//
// The result is rounded to two decimals and clamped to [0,100]. ok is false
// when no weighted factor is present.
func Aggregate(scores Scores, weights Weights) (score float64, ok bool) {
	factors := make([]string, 0, len(weights))
	for f := range weights {
		factors = append(factors, string(f))
	}
	// Fixed summation order keeps the float result independent of map order.
	sort.Strings(factors)

	var num, den float64
	for _, name := range factors {
		f := Factor(name)
		s, present := scores[f]
		w := weights[f]
		if !present || w <= 0 || math.IsNaN(s) {
			continue
		}
		num += Clamp(s) * w
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return Clamp(Round2(num / den)), true
}

// Category buckets a score.
type Category string

const (
	CategoryVeryLow  Category = "very_low"
	CategoryLow      Category = "low"
	CategoryMedium   Category = "medium"
	CategoryHigh     Category = "high"
	CategoryVeryHigh Category = "very_high"
)

// Categorize applies the shared thresholds: <25 very low, <40 low, <60 medium,
// <75 high, otherwise very high.
func Categorize(score float64) Category {
	switch {
	case score < 25:
		return CategoryVeryLow
	case score < 40:
		return CategoryLow
	case score < 60:
		return CategoryMedium
	case score < 75:
		return CategoryHigh
	default:
		return CategoryVeryHigh
	}
}

// Clamp bounds v to [0,100].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
