// Package identity verifies identity claims: number format, registry match and
// selfie face match.
package identity

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/evidence/registry"
	"rwagate/pkg/platform/circuit"
)

const verifierID = "identity-verifier"

var (
	aadhaarPattern  = regexp.MustCompile(`^\d{12}$`)
	panPattern      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	licensePattern  = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[0-9A-Z]{7,13}$`)
	passportPattern = regexp.MustCompile(`^[A-Z][0-9]{7}$`)
)

// Registry is the government lookup the verifier consults after format checks.
type Registry interface {
	Lookup(ctx context.Context, kind providers.ClaimKind, number string) (registry.IdentityRecord, error)
}

// FaceMatcher compares a selfie against the reference document photo and
// returns a similarity in [0,100].
type FaceMatcher interface {
	Match(ctx context.Context, selfie, reference providers.DocumentRef) (float64, error)
}

type Verifier struct {
	registry      Registry
	faces         FaceMatcher
	breaker       *circuit.Breaker
	logger        *slog.Logger
	faceThreshold float64
}

type Option func(*Verifier)

func WithRegistry(r Registry) Option {
	return func(v *Verifier) { v.registry = r }
}

func WithFaceMatcher(m FaceMatcher) Option {
	return func(v *Verifier) { v.faces = m }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(v *Verifier) { v.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

func New(opts ...Option) *Verifier {
	v := &Verifier{
		breaker:       circuit.New(verifierID),
		faceThreshold: 80,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyClaim returns a verdict. Malformed numbers, unknown records and name
// mismatches are negative verdicts; registry outages are errors.
func (v *Verifier) VerifyClaim(ctx context.Context, req providers.ClaimRequest) (providers.ClaimResult, error) {
	if req.Kind == providers.ClaimFaceMatch {
		return v.verifyFace(ctx, req)
	}

	number := normalizeNumber(req.Kind, req.Number)
	if issue, ok := checkFormat(req.Kind, number); !ok {
		return providers.ClaimResult{Verified: false, Score: 0, Issues: []string{issue}}, nil
	}
	if v.registry == nil {
		return providers.ClaimResult{Verified: true, Score: 90}, nil
	}

	rec, usePrimary, err := v.lookup(ctx, req.Kind, number)
	if err != nil && providers.GetCategory(err) != providers.ErrorNotFound {
		return providers.ClaimResult{}, err
	}
	if !usePrimary {
		// The registry answered, but the circuit needs more consecutive
		// successes before its answers are trusted again.
		return providers.ClaimResult{}, providers.NewProviderError(providers.ErrorProviderOutage, verifierID, "identity registry circuit open", nil)
	}
	if err != nil {
		return providers.ClaimResult{Verified: false, Score: 0, Issues: []string{"identity record not found"}}, nil
	}
	if !namesMatch(rec.Name, req.Name) {
		return providers.ClaimResult{Verified: false, Score: 40, Issues: []string{"name does not match registry record"}}, nil
	}
	return providers.ClaimResult{Verified: true, Score: 100}, nil
}

// lookup consults the registry through the breaker. A missing record counts
// as a healthy answer.
func (v *Verifier) lookup(ctx context.Context, kind providers.ClaimKind, number string) (registry.IdentityRecord, bool, error) {
	rec, err := v.registry.Lookup(ctx, kind, number)
	if err != nil && providers.GetCategory(err) != providers.ErrorNotFound {
		if _, change := v.breaker.RecordFailure(); change.Opened && v.logger != nil {
			v.logger.WarnContext(ctx, "identity registry circuit opened", "breaker", v.breaker.Name())
		}
		return rec, false, providers.Normalize(verifierID, err)
	}
	usePrimary, change := v.breaker.RecordSuccess()
	if change.Closed && v.logger != nil {
		v.logger.InfoContext(ctx, "identity registry circuit closed", "breaker", v.breaker.Name())
	}
	return rec, usePrimary, err
}

func (v *Verifier) verifyFace(ctx context.Context, req providers.ClaimRequest) (providers.ClaimResult, error) {
	if req.DocumentRef == "" || req.ReferenceRef == "" {
		return providers.ClaimResult{
			Verified: false,
			Issues:   []string{"identity document and selfie are both required for face match"},
		}, nil
	}
	if v.faces == nil {
		return providers.ClaimResult{Verified: true, Score: 90}, nil
	}
	similarity, err := v.faces.Match(ctx, req.DocumentRef, req.ReferenceRef)
	if err != nil {
		return providers.ClaimResult{}, providers.Normalize(verifierID, err)
	}
	if similarity < v.faceThreshold {
		return providers.ClaimResult{Verified: false, Score: similarity, Issues: []string{"selfie does not match identity document"}}, nil
	}
	return providers.ClaimResult{Verified: true, Score: similarity}, nil
}

func normalizeNumber(kind providers.ClaimKind, number string) string {
	n := strings.TrimSpace(number)
	if kind == providers.ClaimAadhaar {
		return strings.ReplaceAll(n, " ", "")
	}
	return strings.ToUpper(strings.ReplaceAll(n, " ", ""))
}

func checkFormat(kind providers.ClaimKind, number string) (string, bool) {
	switch kind {
	case providers.ClaimAadhaar:
		return "Invalid Aadhaar format", aadhaarPattern.MatchString(number)
	case providers.ClaimPAN:
		return "Invalid PAN format", panPattern.MatchString(number)
	case providers.ClaimDrivingLicense:
		return "Invalid driving license format", licensePattern.MatchString(number)
	case providers.ClaimPassport:
		return "Invalid passport format", passportPattern.MatchString(number)
	}
	return "unsupported identity claim", false
}

func namesMatch(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}
