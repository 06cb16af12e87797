package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rwagate/pkg/domain"
	strs "rwagate/pkg/platform/strings"
)

// Policy holds the decision constants the core treats as configuration:
// geography tiers, market risk table, AML limits, verification thresholds.
type Policy struct {
	Geography  GeographyPolicy  `yaml:"geography"`
	Market     MarketPolicy     `yaml:"market"`
	Tokens     TokenPolicy      `yaml:"tokens"`
	AML        AMLPolicy        `yaml:"aml"`
	KYC        KYCPolicy        `yaml:"kyc"`
	RWA        RWAPolicy        `yaml:"rwa"`
	Compliance CompliancePolicy `yaml:"compliance"`
}

type GeographyPolicy struct {
	Tier1 []string `yaml:"tier1"`
	Tier2 []string `yaml:"tier2"`
}

type MarketPolicy struct {
	// AssetTypeRisk is the base market risk per asset type; unknown types
	// use DefaultRisk.
	AssetTypeRisk map[string]int `yaml:"asset_type_risk"`
	DefaultRisk   int            `yaml:"default_risk"`
}

type TokenPolicy struct {
	MinTokenCount int `yaml:"min_token_count"`
}

// AMLPolicy sets transaction limits in whole rupees. A zero limit disables
// that window.
type AMLPolicy struct {
	DailyLimit   domain.Amount `yaml:"daily_limit"`
	MonthlyLimit domain.Amount `yaml:"monthly_limit"`
}

type KYCPolicy struct {
	Required        bool          `yaml:"required"`
	AutoVerify      bool          `yaml:"auto_verify"`
	AutoInitialize  bool          `yaml:"auto_initialize"`
	RequiredSteps   []string      `yaml:"required_steps"`
	ValidityDays    int           `yaml:"validity_days"`
	VerifierTimeout time.Duration `yaml:"verifier_timeout"`
}

// Validity is how long a Verified identity stays valid before expiry.
func (k KYCPolicy) Validity() time.Duration {
	return time.Duration(k.ValidityDays) * 24 * time.Hour
}

type RWAPolicy struct {
	Required         bool          `yaml:"required"`
	AutoVerify       bool          `yaml:"auto_verify"`
	AutoInitialize   bool          `yaml:"auto_initialize"`
	MinimumThreshold float64       `yaml:"minimum_threshold"`
	VerifierTimeout  time.Duration `yaml:"verifier_timeout"`
}

type CompliancePolicy struct {
	// RequireAssetVerification makes tokenization eligibility also require a
	// Verified asset workflow, not only the coarse compliance stages.
	RequireAssetVerification bool `yaml:"require_asset_verification"`
}

// DefaultPolicy returns the built-in constants.
func DefaultPolicy() Policy {
	return Policy{
		Geography: GeographyPolicy{
			Tier1: []string{"mumbai", "delhi", "bangalore", "hyderabad", "chennai", "pune"},
			Tier2: []string{"ahmedabad", "jaipur", "lucknow", "kochi", "indore", "bhopal"},
		},
		Market: MarketPolicy{
			AssetTypeRisk: map[string]int{
				"residential":  30,
				"commercial":   40,
				"industrial":   50,
				"agricultural": 60,
				"campus":       35,
			},
			DefaultRisk: 45,
		},
		Tokens: TokenPolicy{MinTokenCount: 100},
		AML: AMLPolicy{
			DailyLimit:   10_00_000,
			MonthlyLimit: 50_00_000,
		},
		KYC: KYCPolicy{
			Required:        true,
			AutoVerify:      true,
			AutoInitialize:  true,
			RequiredSteps:   []string{"identity_document", "tax_id_document", "liveness_selfie"},
			ValidityDays:    365,
			VerifierTimeout: 10 * time.Second,
		},
		RWA: RWAPolicy{
			Required:         true,
			AutoVerify:       true,
			AutoInitialize:   true,
			MinimumThreshold: 70,
			VerifierTimeout:  30 * time.Second,
		},
		Compliance: CompliancePolicy{RequireAssetVerification: true},
	}
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path or a
// missing file yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return policy, nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	policy.Geography.Tier1 = strs.NormalizeKeys(policy.Geography.Tier1)
	policy.Geography.Tier2 = strs.NormalizeKeys(policy.Geography.Tier2)
	policy.KYC.RequiredSteps = strs.DedupeAndTrim(policy.KYC.RequiredSteps)
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate rejects policies the core cannot decide with.
func (p Policy) Validate() error {
	var errs []error
	if p.AML.DailyLimit < 0 || p.AML.MonthlyLimit < 0 {
		errs = append(errs, errors.New("aml limits must not be negative"))
	}
	if p.RWA.MinimumThreshold <= 0 || p.RWA.MinimumThreshold > 100 {
		errs = append(errs, fmt.Errorf("rwa minimum_threshold must be in (0,100], got %v", p.RWA.MinimumThreshold))
	}
	if p.KYC.ValidityDays <= 0 {
		errs = append(errs, errors.New("kyc validity_days must be positive"))
	}
	if p.KYC.VerifierTimeout <= 0 || p.RWA.VerifierTimeout <= 0 {
		errs = append(errs, errors.New("verifier timeouts must be positive"))
	}
	if len(p.KYC.RequiredSteps) == 0 {
		errs = append(errs, errors.New("kyc required_steps must not be empty"))
	}
	if p.Tokens.MinTokenCount < 0 {
		errs = append(errs, errors.New("tokens min_token_count must not be negative"))
	}
	for assetType, risk := range p.Market.AssetTypeRisk {
		if risk < 0 || risk > 100 {
			errs = append(errs, fmt.Errorf("market risk for %q must be in [0,100]", assetType))
		}
	}
	return errors.Join(errs...)
}
