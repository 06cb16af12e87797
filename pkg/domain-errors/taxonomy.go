package domainerrors

import (
	"fmt"
	"strings"
)

// NotInitializedError is returned for operations on a subject that has no
// workflow. Only document upload may auto-initialize, and only where policy
// enables it.
type NotInitializedError struct {
	Subject string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("workflow not initialized for %s", e.Subject)
}

func (e *NotInitializedError) code() Code { return CodeNotInitialized }

// MissingDocumentsError lists the document kinds required before the
// requested operation can proceed, in policy order.
type MissingDocumentsError struct {
	Documents []string
}

func (e *MissingDocumentsError) Error() string {
	return "missing required documents: " + strings.Join(e.Documents, ", ")
}

func (e *MissingDocumentsError) code() Code { return CodeMissingDocuments }

// InvalidTransitionError reports an edge absent from a state machine's table.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) code() Code { return CodeInvalidTransition }

// VerificationTimeoutError reports a delegated verification that did not
// answer within its deadline. The step has already been recorded as rejected.
type VerificationTimeoutError struct {
	Step string
}

func (e *VerificationTimeoutError) Error() string {
	return fmt.Sprintf("verification of %s timed out", e.Step)
}

func (e *VerificationTimeoutError) code() Code { return CodeVerificationTimeout }

// CollaboratorError wraps any failure from storage, extraction, fraud or
// identity collaborators. Lower-level errors are reachable via Unwrap only.
type CollaboratorError struct {
	Collaborator string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Cause)
}

func (e *CollaboratorError) Unwrap() error { return e.Cause }

func (e *CollaboratorError) code() Code { return CodeCollaboratorFailure }

// LimitExceededError names the limit a transaction would breach.
type LimitExceededError struct {
	Limit     string
	Cap       int64
	Attempted int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit %d exceeded by attempted total %d", e.Limit, e.Cap, e.Attempted)
}

func (e *LimitExceededError) code() Code { return CodeLimitExceeded }

// Collaborator wraps cause as a CollaboratorError unless it already is one.
func Collaborator(name string, cause error) error {
	if cause == nil {
		return nil
	}
	if HasCode(cause, CodeCollaboratorFailure) {
		return cause
	}
	return &CollaboratorError{Collaborator: name, Cause: cause}
}
