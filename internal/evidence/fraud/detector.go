// Package fraud implements the rule-based document fraud-signal collaborator.
package fraud

import (
	"context"
	"strings"

	"rwagate/internal/evidence/providers"
)

const detectorID = "rule-fraud-detector"

const (
	IndicatorInconsistentMetadata = "Inconsistent metadata"
	IndicatorSuspiciousPatterns   = "Suspicious patterns detected"
	IndicatorAnomalous            = "Anomalous document characteristics"
	IndicatorModelFlagged         = "ML model flagged as potential fraud"
)

var (
	requiredFields     = []string{"property_id", "owner_name"}
	suspiciousKeywords = []string{"fake", "duplicate", "copy", "specimen"}
)

// anomalyThreshold: scores below it mark the document anomalous.
const anomalyThreshold = -0.5

// Classification is the output of an ML classifier over a document.
type Classification struct {
	AnomalyScore float64
	Fraud        bool
	// Confidence is the classifier's confidence in its prediction, 0-100.
	Confidence float64
}

// Classifier is an optional ML model. The models themselves live outside this
// service.
type Classifier interface {
	Classify(ctx context.Context, ref providers.DocumentRef, fields providers.Fields) (Classification, error)
}

type Detector struct {
	classifier Classifier
}

type Option func(*Detector)

func WithClassifier(c Classifier) Option {
	return func(d *Detector) { d.classifier = c }
}

func New(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze runs metadata, pattern and (when configured) model checks.
// Without a classifier, confidence is the share of filled fields.
func (d *Detector) Analyze(ctx context.Context, ref providers.DocumentRef, fields providers.Fields) (providers.FraudFindings, error) {
	findings := providers.FraudFindings{IsAuthentic: true}

	if !metadataConsistent(fields) {
		findings.Indicators = append(findings.Indicators, IndicatorInconsistentMetadata)
	}
	if containsSuspiciousKeyword(fields.Get("raw_text")) {
		findings.Indicators = append(findings.Indicators, IndicatorSuspiciousPatterns)
	}

	findings.ConfidenceScore = consistencyScore(fields) * 100
	if d.classifier != nil {
		c, err := d.classifier.Classify(ctx, ref, fields)
		if err != nil {
			return providers.FraudFindings{}, providers.Normalize(detectorID, err)
		}
		if c.AnomalyScore < anomalyThreshold {
			findings.Indicators = append(findings.Indicators, IndicatorAnomalous)
			findings.IsAuthentic = false
		}
		if c.Fraud {
			findings.Indicators = append(findings.Indicators, IndicatorModelFlagged)
			findings.IsAuthentic = false
		}
		findings.ConfidenceScore = c.Confidence
	}

	findings.RiskLevel = RiskLevel(len(findings.Indicators))
	return findings, nil
}

// RiskLevel maps an indicator count to low (0), medium (1-2) or high.
func RiskLevel(indicators int) string {
	switch {
	case indicators == 0:
		return "low"
	case indicators <= 2:
		return "medium"
	default:
		return "high"
	}
}

func metadataConsistent(fields providers.Fields) bool {
	for _, f := range requiredFields {
		if !fields.Has(f) {
			return false
		}
	}
	return true
}

func containsSuspiciousKeyword(rawText string) bool {
	lower := strings.ToLower(rawText)
	for _, kw := range suspiciousKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func consistencyScore(fields providers.Fields) float64 {
	total, filled := 0, 0
	for k := range fields {
		if k == "raw_text" {
			continue
		}
		total++
		if fields.Has(k) {
			filled++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}
