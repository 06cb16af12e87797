// Package models holds the compliance workflow and transaction ledger types.
package models

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
)

// Stage is the coarse, forward-only compliance stage of an asset.
type Stage string

const (
	StagePending           Stage = "pending"
	StageDocumentsUploaded Stage = "documents_uploaded"
	StageAIVerified        Stage = "ai_verified"
	StageTokenized         Stage = "tokenized"
	StageRejected          Stage = "rejected"
)

// next is the single forward edge out of each stage. Rejected is reachable
// from every stage that is not terminal.
var next = map[Stage]Stage{
	StagePending:           StageDocumentsUploaded,
	StageDocumentsUploaded: StageAIVerified,
	StageAIVerified:        StageTokenized,
}

func ParseStage(raw string) (Stage, error) {
	switch s := Stage(strings.ToLower(strings.TrimSpace(raw))); s {
	case StagePending, StageDocumentsUploaded, StageAIVerified, StageTokenized, StageRejected:
		return s, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown compliance stage %q", raw))
	}
}

func (s Stage) IsTerminal() bool {
	return s == StageTokenized || s == StageRejected
}

func (s Stage) CanTransition(to Stage) bool {
	if s.IsTerminal() {
		return false
	}
	return to == StageRejected || next[s] == to
}

// Workflow is the compliance view of one asset. The stage booleans record
// which stages were ever reached; they stay set after a rejection.
type Workflow struct {
	AssetID           domain.AssetID
	OwnerID           domain.UserID
	Stage             Stage
	DocumentsUploaded bool
	AIVerified        bool
	Tokenized         bool
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewWorkflow(assetID domain.AssetID, ownerID domain.UserID, now time.Time) *Workflow {
	return &Workflow{
		AssetID:   assetID,
		OwnerID:   ownerID,
		Stage:     StagePending,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the workflow to stage to and merges metadata into the
// existing metadata.
func (w *Workflow) Advance(to Stage, metadata map[string]string, now time.Time) error {
	if !w.Stage.CanTransition(to) {
		return &dErrors.InvalidTransitionError{From: string(w.Stage), To: string(to)}
	}
	w.Stage = to
	switch to {
	case StageDocumentsUploaded:
		w.DocumentsUploaded = true
	case StageAIVerified:
		w.AIVerified = true
	case StageTokenized:
		w.Tokenized = true
	}
	if w.Metadata == nil {
		w.Metadata = map[string]string{}
	}
	maps.Copy(w.Metadata, metadata)
	w.UpdatedAt = now
	return nil
}

func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Metadata = maps.Clone(w.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return &out
}

// TokenizationEligibility is the outcome of a tokenization gate check.
type TokenizationEligibility struct {
	Eligible            bool
	MissingRequirements []string
	Stage               Stage
}

// TradingEligibility is the outcome of a trading gate check. Violations
// carries one entry per breached limit window, in the order of Issues.
type TradingEligibility struct {
	Eligible   bool
	Issues     []string
	KYCStatus  string
	Violations []*dErrors.LimitExceededError
}

// LedgerEntry is one committed transaction counted against AML limits.
type LedgerEntry struct {
	UserID     domain.UserID
	Amount     domain.Amount
	OccurredAt time.Time
	Reference  string
}
