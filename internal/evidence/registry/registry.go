// Package registry provides in-memory stand-ins for the government identity
// registry and the land/legal registry.
package registry

import (
	"context"
	"strings"
	"sync"

	"rwagate/internal/evidence/providers"
)

const (
	identityRegistryID = "identity-registry"
)

// IdentityRecord is what a government registry holds for an identity number.
type IdentityRecord struct {
	Kind   providers.ClaimKind
	Number string
	Name   string
}

// IdentityRegistry answers identity-number lookups.
type IdentityRegistry struct {
	mu      sync.RWMutex
	records map[string]IdentityRecord
}

func NewIdentityRegistry(records ...IdentityRecord) *IdentityRegistry {
	r := &IdentityRegistry{records: make(map[string]IdentityRecord)}
	for _, rec := range records {
		r.Add(rec)
	}
	return r
}

func (r *IdentityRegistry) Add(rec IdentityRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key(rec.Kind, rec.Number)] = rec
}

// Lookup returns the record for a number, or a not_found provider error.
func (r *IdentityRegistry) Lookup(ctx context.Context, kind providers.ClaimKind, number string) (IdentityRecord, error) {
	if err := ctx.Err(); err != nil {
		return IdentityRecord{}, providers.Normalize(identityRegistryID, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key(kind, number)]
	if !ok {
		return IdentityRecord{}, providers.NewProviderError(providers.ErrorNotFound, identityRegistryID, "identity record not found", nil)
	}
	return rec, nil
}

func key(kind providers.ClaimKind, number string) string {
	return string(kind) + ":" + strings.ToUpper(strings.ReplaceAll(number, " ", ""))
}

// LegalRegistry holds legal facts per asset. Unknown assets yield zero facts.
type LegalRegistry struct {
	mu    sync.RWMutex
	facts map[string]providers.LegalFacts
}

func NewLegalRegistry() *LegalRegistry {
	return &LegalRegistry{facts: make(map[string]providers.LegalFacts)}
}

func (r *LegalRegistry) Set(assetID string, facts providers.LegalFacts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts[assetID] = facts
}

func (r *LegalRegistry) Facts(ctx context.Context, assetID string) (providers.LegalFacts, error) {
	if err := ctx.Err(); err != nil {
		return providers.LegalFacts{}, providers.Normalize("legal-registry", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.facts[assetID], nil
}
