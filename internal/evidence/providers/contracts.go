// Package providers defines the contracts of the external collaborators the
// verification core consumes: document storage, field extraction, fraud
// signals, identity-claim verification and the legal registry.
package providers

import (
	"context"
	"strings"
)

// DocumentRef is an opaque storage reference. The core never inspects bytes.
type DocumentRef string

// DocumentStorage stores raw bytes under a logical key.
type DocumentStorage interface {
	Store(ctx context.Context, key string, data []byte) (DocumentRef, error)
	Exists(ctx context.Context, ref DocumentRef) (bool, error)
}

// Fields are named values extracted from a document. Completeness is not
// guaranteed; every field may be absent.
type Fields map[string]string

// Get returns the trimmed value of a field, or "" when absent.
func (f Fields) Get(name string) string {
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f[name])
}

// Has reports whether a field is present and non-blank.
func (f Fields) Has(name string) bool {
	return f.Get(name) != ""
}

// FieldExtractor extracts fields from a stored document (OCR/ML).
type FieldExtractor interface {
	Extract(ctx context.Context, ref DocumentRef) (Fields, error)
}

// FraudFindings are document-fraud signals.
type FraudFindings struct {
	IsAuthentic     bool
	ConfidenceScore float64
	Indicators      []string
	RiskLevel       string
}

// FraudDetector analyses a document for fraud signals.
type FraudDetector interface {
	Analyze(ctx context.Context, ref DocumentRef, fields Fields) (FraudFindings, error)
}

// ClaimKind names the identity claim being verified.
type ClaimKind string

const (
	ClaimAadhaar        ClaimKind = "aadhaar"
	ClaimPAN            ClaimKind = "pan"
	ClaimFaceMatch      ClaimKind = "face_match"
	ClaimDrivingLicense ClaimKind = "driving_license"
	ClaimPassport       ClaimKind = "passport"
)

// ClaimRequest asks whether a claimed identity number belongs to a name.
type ClaimRequest struct {
	Kind        ClaimKind
	Number      string
	Name        string
	DocumentRef DocumentRef
	// ReferenceRef is the document a selfie is matched against.
	ReferenceRef DocumentRef
}

// ClaimResult is the verifier's verdict. A format failure is a negative
// verdict with issues, not an error.
type ClaimResult struct {
	Verified bool
	Score    float64
	Issues   []string
}

// ClaimVerifier verifies identity claims (government registry, face match).
type ClaimVerifier interface {
	VerifyClaim(ctx context.Context, req ClaimRequest) (ClaimResult, error)
}

// LegalFacts are what the legal registry knows about an asset.
type LegalFacts struct {
	ZoningApproved        bool
	BuildingCodeCompliant bool
	DisputeFree           bool
	TokenizationEligible  bool
}

// LegalRegistry returns legal facts for an asset. Unknown assets yield zero
// facts, which fail every check.
type LegalRegistry interface {
	Facts(ctx context.Context, assetID string) (LegalFacts, error)
}
