// Package models holds the identity verification (KYC) aggregate: one
// workflow per user, its steps and its decision history.
package models

import (
	"fmt"
	"slices"
	"time"

	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
)

// StepKind names an identity document or check.
type StepKind string

const (
	StepIdentityDocument StepKind = "identity_document"
	StepTaxIDDocument    StepKind = "tax_id_document"
	StepLivenessSelfie   StepKind = "liveness_selfie"
	StepDrivingLicense   StepKind = "driving_license"
	StepPassport         StepKind = "passport"
)

// DefaultRequiredSteps are required when policy does not say otherwise.
var DefaultRequiredSteps = []StepKind{StepIdentityDocument, StepTaxIDDocument, StepLivenessSelfie}

func ParseStepKind(raw string) (StepKind, error) {
	switch k := StepKind(raw); k {
	case StepIdentityDocument, StepTaxIDDocument, StepLivenessSelfie, StepDrivingLicense, StepPassport:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown identity document kind %q", raw))
}

// ParseStepKinds validates a policy list, keeping order and dropping duplicates.
func ParseStepKinds(raw []string) ([]StepKind, error) {
	out := make([]StepKind, 0, len(raw))
	for _, r := range raw {
		k, err := ParseStepKind(r)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Claim is what the subject asserts about an uploaded document.
type Claim struct {
	Number     string
	HolderName string
}

// Step is one identity verification step.
type Step struct {
	workflow.Step
	Kind  StepKind
	Claim Claim
}

func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	return &Step{Step: *s.Step.Clone(), Kind: s.Kind, Claim: s.Claim}
}

// Workflow is a user's identity verification. Generation increases with each
// explicit new submission cycle after rejection or expiry.
type Workflow struct {
	UserID          domain.UserID
	Generation      int
	Status          workflow.Status
	Steps           map[StepKind]*Step
	OverallApproved bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SubmittedAt     *time.Time
	VerifiedAt      *time.Time
	History         []workflow.HistoryEntry
}

func NewWorkflow(userID domain.UserID, now time.Time) *Workflow {
	return &Workflow{
		UserID:     userID,
		Generation: 1,
		Status:     workflow.StatusNotStarted,
		Steps:      make(map[StepKind]*Step),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo moves the workflow along an IdentityMachine edge.
func (w *Workflow) TransitionTo(to workflow.Status, now time.Time) error {
	next, err := workflow.IdentityMachine.Transition(w.Status, to)
	if err != nil {
		return err
	}
	w.Status = next
	w.UpdatedAt = now
	return nil
}

// Step returns the step for kind, creating an empty one if absent.
func (w *Workflow) Step(kind StepKind) *Step {
	if w.Steps == nil {
		w.Steps = make(map[StepKind]*Step)
	}
	s, ok := w.Steps[kind]
	if !ok {
		s = &Step{Kind: kind, Step: workflow.Step{Status: workflow.StepNotUploaded}}
		w.Steps[kind] = s
	}
	return s
}

// Lookup returns the step for kind without creating it.
func (w *Workflow) Lookup(kind StepKind) (*Step, bool) {
	s, ok := w.Steps[kind]
	return s, ok
}

// MissingSteps lists required kinds that were never uploaded, in policy order.
func (w *Workflow) MissingSteps(required []StepKind) []string {
	var missing []string
	for _, kind := range required {
		if s, ok := w.Steps[kind]; !ok || !s.Present() {
			missing = append(missing, string(kind))
		}
	}
	return missing
}

// AllRequiredVerified reports whether every required step is Verified.
// An empty requirement set is never satisfied.
func (w *Workflow) AllRequiredVerified(required []StepKind) bool {
	if len(required) == 0 {
		return false
	}
	for _, kind := range required {
		if s, ok := w.Steps[kind]; !ok || !s.IsVerified() {
			return false
		}
	}
	return true
}

// Progress is the percentage of required steps that are Verified.
func (w *Workflow) Progress(required []StepKind) float64 {
	if len(required) == 0 {
		return 0
	}
	done := 0
	for _, kind := range required {
		if s, ok := w.Steps[kind]; ok && s.IsVerified() {
			done++
		}
	}
	return float64(done) / float64(len(required)) * 100
}

func (w *Workflow) AddHistory(action, actor, notes string, at time.Time) {
	w.History = append(w.History, workflow.HistoryEntry{Action: action, Actor: actor, Notes: notes, At: at})
}

// StartNewCycle begins a fresh submission cycle. Steps are discarded; the
// history is kept across generations.
func (w *Workflow) StartNewCycle(now time.Time) error {
	if !w.Status.RequiresNewCycle() {
		return &dErrors.InvalidTransitionError{From: string(w.Status), To: string(workflow.StatusNotStarted)}
	}
	w.Generation++
	w.Status = workflow.StatusNotStarted
	w.Steps = make(map[StepKind]*Step)
	w.OverallApproved = false
	w.SubmittedAt = nil
	w.VerifiedAt = nil
	w.UpdatedAt = now
	return nil
}

// ExpiresAt returns when a Verified workflow lapses, or nil.
func (w *Workflow) ExpiresAt(validity time.Duration) *time.Time {
	if w.Status != workflow.StatusVerified || w.VerifiedAt == nil || validity <= 0 {
		return nil
	}
	t := w.VerifiedAt.Add(validity)
	return &t
}

// Clone returns a deep copy so stores never share state with callers.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Steps = make(map[StepKind]*Step, len(w.Steps))
	for k, s := range w.Steps {
		out.Steps[k] = s.Clone()
	}
	out.SubmittedAt = workflow.CloneTime(w.SubmittedAt)
	out.VerifiedAt = workflow.CloneTime(w.VerifiedAt)
	out.History = append([]workflow.HistoryEntry(nil), w.History...)
	return &out
}

// StepSummary is the read-model view of one step.
type StepSummary struct {
	Kind       StepKind
	Required   bool
	Status     workflow.StepStatus
	Score      *float64
	Issues     []string
	UploadedAt *time.Time
	VerifiedAt *time.Time
}

// StatusView is the read model returned by Status.
type StatusView struct {
	UserID      domain.UserID
	Generation  int
	Status      workflow.Status
	Progress    float64
	Steps       []StepSummary
	SubmittedAt *time.Time
	VerifiedAt  *time.Time
	ExpiresAt   *time.Time
	History     []workflow.HistoryEntry
}

// View builds the read model. Required steps come first in policy order,
// followed by any optional steps in kind order.
func (w *Workflow) View(required []StepKind, validity time.Duration) StatusView {
	view := StatusView{
		UserID:      w.UserID,
		Generation:  w.Generation,
		Status:      w.Status,
		Progress:    w.Progress(required),
		SubmittedAt: workflow.CloneTime(w.SubmittedAt),
		VerifiedAt:  workflow.CloneTime(w.VerifiedAt),
		ExpiresAt:   w.ExpiresAt(validity),
		History:     append([]workflow.HistoryEntry(nil), w.History...),
	}
	for _, kind := range required {
		view.Steps = append(view.Steps, summarize(kind, w.Steps[kind], true))
	}
	var optional []StepKind
	for kind := range w.Steps {
		if !slices.Contains(required, kind) {
			optional = append(optional, kind)
		}
	}
	slices.Sort(optional)
	for _, kind := range optional {
		view.Steps = append(view.Steps, summarize(kind, w.Steps[kind], false))
	}
	return view
}

func summarize(kind StepKind, s *Step, required bool) StepSummary {
	if s == nil {
		return StepSummary{Kind: kind, Required: required, Status: workflow.StepNotUploaded}
	}
	c := s.Clone()
	return StepSummary{
		Kind:       kind,
		Required:   required,
		Status:     c.Status,
		Score:      c.Score,
		Issues:     c.Issues,
		UploadedAt: c.UploadedAt,
		VerifiedAt: c.VerifiedAt,
	}
}
