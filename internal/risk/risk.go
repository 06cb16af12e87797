// Package risk scores the investment risk of an asset from its attributes
// and the fraud findings of its documents. Assessment is stateless and
// deterministic: the same inputs and policy always give the same result.
package risk

import (
	"fmt"
	"strings"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/platform/config"
	"rwagate/internal/scoring"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
	strs "rwagate/pkg/platform/strings"
)

const (
	FactorLocation  scoring.Factor = "location"
	FactorLegal     scoring.Factor = "legal"
	FactorMarket    scoring.Factor = "market"
	FactorDocument  scoring.Factor = "document"
	FactorFinancial scoring.Factor = "financial"
)

// Factors lists the risk factors in declaration order. Recommendations follow
// this order.
var Factors = []scoring.Factor{FactorLocation, FactorLegal, FactorMarket, FactorDocument, FactorFinancial}

// UnknownDocumentRisk is the document factor when no fraud analysis exists.
const UnknownDocumentRisk = 50.0

const (
	lowValuation  domain.Amount = 10_00_000
	highValuation domain.Amount = 10_00_00_000
)

type Trend string

const (
	TrendStable    Trend = "stable"
	TrendGrowing   Trend = "growing"
	TrendDeclining Trend = "declining"
)

// ParseTrend accepts an empty string as stable.
func ParseTrend(raw string) (Trend, error) {
	switch t := Trend(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return TrendStable, nil
	case TrendStable, TrendGrowing, TrendDeclining:
		return t, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown market trend %q", raw))
	}
}

// Attributes describe the asset being assessed. Zero values are meaningful:
// an asset without a clear title, with no documents and no valuation.
type Attributes struct {
	City     string
	Location string
	// AssetType keys the market risk table (residential, commercial, ...).
	AssetType          string
	MarketTrend        Trend
	AgeYears           int
	ClearTitle         bool
	HasEncumbrance     bool
	GovernmentApproved bool
	DocumentCount      int
	TotalValue         domain.Amount
	AnnualRentalIncome domain.Amount
	TotalTokens        int
}

// Result is a risk assessment. Lower scores are lower risk.
type Result struct {
	OverallScore    float64
	Category        scoring.Category
	Factors         scoring.Scores
	Recommendations []string
}

// Assessor applies the geography, market and token policies.
type Assessor struct {
	geography config.GeographyPolicy
	market    config.MarketPolicy
	tokens    config.TokenPolicy
}

func NewAssessor(policy config.Policy) *Assessor {
	return &Assessor{
		geography: policy.Geography,
		market:    policy.Market,
		tokens:    policy.Tokens,
	}
}

// Assess scores every factor and aggregates them with the risk weights. fraud
// may be nil when the asset's documents were never analysed.
func (a *Assessor) Assess(attrs Attributes, fraud *providers.FraudFindings) Result {
	factors := scoring.Scores{
		FactorLocation:  a.location(attrs),
		FactorLegal:     legal(attrs),
		FactorMarket:    a.marketRisk(attrs),
		FactorDocument:  document(fraud),
		FactorFinancial: a.financial(attrs),
	}
	overall, _ := scoring.Aggregate(factors, scoring.RiskWeights)
	return Result{
		OverallScore:    overall,
		Category:        scoring.Categorize(overall),
		Factors:         factors,
		Recommendations: recommendations(factors),
	}
}

func (a *Assessor) location(attrs Attributes) float64 {
	city := strings.ToLower(attrs.City)
	risk := 50.0
	switch {
	case containsAny(city, a.geography.Tier1):
		risk = 20
	case containsAny(city, a.geography.Tier2):
		risk = 35
	}
	place := strings.ToLower(attrs.Location)
	if strings.Contains(place, "flood") || strings.Contains(place, "coastal") {
		risk += 10
	}
	if strings.Contains(place, "industrial") {
		risk += 5
	}
	return scoring.Clamp(risk)
}

func legal(attrs Attributes) float64 {
	risk := 30.0
	if attrs.ClearTitle {
		risk -= 15
	} else {
		risk += 20
	}
	if attrs.HasEncumbrance {
		risk += 25
	}
	switch {
	case attrs.DocumentCount >= 3:
		risk -= 10
	case attrs.DocumentCount == 0:
		risk += 20
	}
	if attrs.GovernmentApproved {
		risk -= 10
	}
	return scoring.Clamp(risk)
}

func (a *Assessor) marketRisk(attrs Attributes) float64 {
	base, ok := a.market.AssetTypeRisk[strs.NormalizeKey(attrs.AssetType)]
	if !ok {
		base = a.market.DefaultRisk
	}
	risk := float64(base)
	switch attrs.MarketTrend {
	case TrendGrowing:
		risk -= 10
	case TrendDeclining:
		risk += 10
	}
	switch {
	case attrs.AgeYears > 30:
		risk += 10
	case attrs.AgeYears < 5:
		risk -= 5
	}
	return scoring.Clamp(risk)
}

func document(fraud *providers.FraudFindings) float64 {
	if fraud == nil {
		return UnknownDocumentRisk
	}
	if !fraud.IsAuthentic {
		return 90
	}
	risk := 100 - scoring.Clamp(fraud.ConfidenceScore) + 10*float64(len(fraud.Indicators))
	return scoring.Clamp(risk)
}

func (a *Assessor) financial(attrs Attributes) float64 {
	risk := 30.0
	switch {
	case attrs.TotalValue < lowValuation:
		risk += 20
	case attrs.TotalValue > highValuation:
		risk += 10
	}
	if attrs.TotalValue > 0 && attrs.AnnualRentalIncome > 0 {
		yield := float64(attrs.AnnualRentalIncome) / float64(attrs.TotalValue) * 100
		switch {
		case yield < 2:
			risk += 15
		case yield > 6:
			risk -= 10
		}
	}
	if attrs.TotalTokens < a.tokens.MinTokenCount {
		risk += 10
	}
	return scoring.Clamp(risk)
}

type recommendation struct {
	factor    scoring.Factor
	threshold float64
	advice    []string
}

// Market risk carries a higher bar than the other factors.
var recommendationRules = []recommendation{
	{FactorLocation, 50, []string{"Consider location-specific insurance"}},
	{FactorLegal, 50, []string{"Conduct thorough legal due diligence", "Verify clear title with government registry"}},
	{FactorMarket, 60, []string{"Diversify property portfolio", "Monitor market trends closely"}},
	{FactorDocument, 50, []string{"Request additional documentation", "Conduct third-party verification"}},
	{FactorFinancial, 50, []string{"Review pricing and valuation", "Assess liquidity requirements"}},
}

func recommendations(factors scoring.Scores) []string {
	out := []string{}
	for _, rule := range recommendationRules {
		if factors[rule.factor] > rule.threshold {
			out = append(out, rule.advice...)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
