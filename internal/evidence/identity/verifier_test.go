package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/evidence/registry"
	"rwagate/pkg/platform/circuit"
)

type flakyRegistry struct {
	inner *registry.IdentityRegistry
	fail  bool
	calls int
}

func (f *flakyRegistry) Lookup(ctx context.Context, kind providers.ClaimKind, number string) (registry.IdentityRecord, error) {
	f.calls++
	if f.fail {
		return registry.IdentityRecord{}, providers.NewProviderError(providers.ErrorProviderOutage, "gov", "503", errors.New("unavailable"))
	}
	return f.inner.Lookup(ctx, kind, number)
}

type fixedFaces float64

func (f fixedFaces) Match(context.Context, providers.DocumentRef, providers.DocumentRef) (float64, error) {
	return float64(f), nil
}

// VerifierSuite covers verdicts and registry failure handling.
type VerifierSuite struct {
	suite.Suite
	reg      *flakyRegistry
	verifier *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.reg = &flakyRegistry{inner: registry.NewIdentityRegistry(
		registry.IdentityRecord{Kind: providers.ClaimAadhaar, Number: "123456789012", Name: "Asha Rao"},
		registry.IdentityRecord{Kind: providers.ClaimPAN, Number: "ABCDE1234F", Name: "Asha Rao"},
	)}
	s.verifier = New(
		WithRegistry(s.reg),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))),
	)
}

func (s *VerifierSuite) verify(kind providers.ClaimKind, number, name string) (providers.ClaimResult, error) {
	return s.verifier.VerifyClaim(context.Background(), providers.ClaimRequest{Kind: kind, Number: number, Name: name})
}

func (s *VerifierSuite) TestFormat() {
	s.Run("aadhaar with spaces is accepted", func() {
		res, err := s.verify(providers.ClaimAadhaar, "1234 5678 9012", "asha  rao")
		s.Require().NoError(err)
		s.True(res.Verified)
		s.Equal(100.0, res.Score)
	})

	s.Run("short aadhaar is a negative verdict", func() {
		before := s.reg.calls
		res, err := s.verify(providers.ClaimAadhaar, "12345", "Asha Rao")
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Equal([]string{"Invalid Aadhaar format"}, res.Issues)
		s.Equal(before, s.reg.calls, "malformed numbers never reach the registry")
	})

	s.Run("pan pattern", func() {
		res, err := s.verify(providers.ClaimPAN, "ABCD1234F", "Asha Rao")
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Equal([]string{"Invalid PAN format"}, res.Issues)
	})
}

func (s *VerifierSuite) TestRegistryVerdicts() {
	s.Run("unknown record", func() {
		res, err := s.verify(providers.ClaimPAN, "ZZZZZ9999Z", "Asha Rao")
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Contains(res.Issues, "identity record not found")
	})

	s.Run("name mismatch", func() {
		res, err := s.verify(providers.ClaimPAN, "ABCDE1234F", "Someone Else")
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Equal(40.0, res.Score)
	})
}

func (s *VerifierSuite) TestCircuitBreaker() {
	s.reg.fail = true
	for range 2 {
		_, err := s.verify(providers.ClaimPAN, "ABCDE1234F", "Asha Rao")
		s.Require().Error(err)
		s.Equal(providers.ErrorProviderOutage, providers.GetCategory(err))
	}

	s.reg.fail = false
	_, err := s.verify(providers.ClaimPAN, "ABCDE1234F", "Asha Rao")
	s.Require().Error(err, "first success while open is not trusted yet")

	res, err := s.verify(providers.ClaimPAN, "ABCDE1234F", "Asha Rao")
	s.Require().NoError(err)
	s.True(res.Verified)
}

func TestFaceMatch(t *testing.T) {
	ctx := context.Background()

	res, err := New().VerifyClaim(ctx, providers.ClaimRequest{Kind: providers.ClaimFaceMatch, DocumentRef: "selfie"})
	require.NoError(t, err)
	assert.False(t, res.Verified)

	res, err = New(WithFaceMatcher(fixedFaces(65))).VerifyClaim(ctx, providers.ClaimRequest{
		Kind: providers.ClaimFaceMatch, DocumentRef: "selfie", ReferenceRef: "aadhaar",
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 65.0, res.Score)

	res, err = New().VerifyClaim(ctx, providers.ClaimRequest{
		Kind: providers.ClaimFaceMatch, DocumentRef: "selfie", ReferenceRef: "aadhaar",
	})
	require.NoError(t, err)
	assert.True(t, res.Verified)
}
