// Package workflow holds the pieces identity and asset verification share: the
// workflow status enum with a central table of legal edges, verification
// steps, and the decision history.
package workflow

import (
	"fmt"
	"time"

	dErrors "rwagate/pkg/domain-errors"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusPending    Status = "pending"
	StatusInReview   Status = "in_review"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
)

func (s Status) String() string { return string(s) }

// IsDecided reports whether the workflow reached a verdict (Verified or Rejected).
func (s Status) IsDecided() bool {
	return s == StatusVerified || s == StatusRejected
}

// RequiresNewCycle reports whether the only way forward is an explicit new
// submission cycle.
func (s Status) RequiresNewCycle() bool {
	return s == StatusRejected || s == StatusExpired
}

// ParseStatus converts a stored status back into the enum.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusNotStarted, StatusPending, StatusInReview, StatusVerified, StatusRejected, StatusExpired:
		return s, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown workflow status %q", raw))
}

// Machine is a table of legal edges. Every status change goes through
// Transition; call sites never assign Status directly.
type Machine map[Status][]Status

// IdentityMachine: Verified may later expire on an external trigger.
var IdentityMachine = Machine{
	StatusNotStarted: {StatusPending},
	StatusPending:    {StatusInReview},
	StatusInReview:   {StatusVerified, StatusRejected},
	StatusVerified:   {StatusExpired},
}

// AssetMachine has the same shape without expiry.
var AssetMachine = Machine{
	StatusNotStarted: {StatusPending},
	StatusPending:    {StatusInReview},
	StatusInReview:   {StatusVerified, StatusRejected},
}

func (m Machine) CanTransition(from, to Status) bool {
	for _, next := range m[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the edge and returns the target, or an
// InvalidTransitionError naming both ends.
func (m Machine) Transition(from, to Status) (Status, error) {
	if !m.CanTransition(from, to) {
		return from, &dErrors.InvalidTransitionError{From: string(from), To: string(to)}
	}
	return to, nil
}

type StepStatus string

const (
	StepNotUploaded StepStatus = "not_uploaded"
	StepUploaded    StepStatus = "uploaded"
	StepVerified    StepStatus = "verified"
	StepRejected    StepStatus = "rejected"
)

// Step is one verification step (a document or check) owned by its workflow.
type Step struct {
	Status      StepStatus
	Score       *float64
	Issues      []string
	DocumentRef string
	UploadedAt  *time.Time
	VerifiedAt  *time.Time
}

// Present reports whether the step has been uploaded at least once.
func (s *Step) Present() bool {
	return s != nil && s.Status != "" && s.Status != StepNotUploaded
}

func (s *Step) IsVerified() bool {
	return s != nil && s.Status == StepVerified
}

// MarkUploaded resets the step for a fresh upload of ref. Any previous outcome
// is discarded so a rejected step can be retried by re-uploading.
func (s *Step) MarkUploaded(ref string, at time.Time) {
	s.Status = StepUploaded
	s.DocumentRef = ref
	s.Score = nil
	s.Issues = nil
	s.UploadedAt = &at
	s.VerifiedAt = nil
}

// Record stores a verification outcome.
func (s *Step) Record(verified bool, score float64, issues []string, at time.Time) {
	if verified {
		s.Status = StepVerified
	} else {
		s.Status = StepRejected
	}
	s.Score = &score
	s.Issues = append([]string(nil), issues...)
	s.VerifiedAt = &at
}

// Clone returns a deep copy.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	out := *s
	if s.Score != nil {
		v := *s.Score
		out.Score = &v
	}
	out.Issues = append([]string(nil), s.Issues...)
	out.UploadedAt = CloneTime(s.UploadedAt)
	out.VerifiedAt = CloneTime(s.VerifiedAt)
	return &out
}

// HistoryEntry is one decision in a workflow's verification history.
type HistoryEntry struct {
	Action string
	Actor  string
	Notes  string
	At     time.Time
}

// CloneTime copies an optional timestamp.
func CloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
