package audit

import (
	"context"
	"log/slog"
	"time"

	"rwagate/pkg/attrs"
	"rwagate/pkg/requestcontext"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers decisions with regulatory significance:
	// verification outcomes, eligibility decisions, ledger writes.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine workflow activity useful for
	// debugging (uploads, stage bookkeeping).
	CategoryOperations EventCategory = "operations"
)

// SubjectKind says which identifier space Event.Subject belongs to.
type SubjectKind string

const (
	SubjectUser  SubjectKind = "user"
	SubjectAsset SubjectKind = "asset"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	SubjectKind SubjectKind
	Subject     string
	Action      string
	Decision    string
	Reason      string
	RequestID   string
	// ActorID tracks who performed the action: the user, a reviewer, or
	// "system" for sweepers and automatic finalisation.
	ActorID string
}

type AuditEvent string

const (
	// Identity verification
	EventKYCInitialized      AuditEvent = "kyc_initialized"
	EventKYCDocumentUploaded AuditEvent = "kyc_document_uploaded"
	EventKYCStepVerified     AuditEvent = "kyc_step_verified"
	EventKYCStepRejected     AuditEvent = "kyc_step_rejected"
	EventKYCSubmitted        AuditEvent = "kyc_submitted"
	EventKYCVerified         AuditEvent = "kyc_verified"
	EventKYCRejected         AuditEvent = "kyc_rejected"
	EventKYCExpired          AuditEvent = "kyc_expired"
	EventKYCCycleStarted     AuditEvent = "kyc_cycle_started"

	// Asset verification
	EventRWAInitialized        AuditEvent = "rwa_initialized"
	EventRWADocumentUploaded   AuditEvent = "rwa_document_uploaded"
	EventRWADocumentVerified   AuditEvent = "rwa_document_verified"
	EventRWADocumentRejected   AuditEvent = "rwa_document_rejected"
	EventRWAOwnershipValidated AuditEvent = "rwa_ownership_validated"
	EventRWALegalChecked       AuditEvent = "rwa_legal_checked"
	EventRWASubmitted          AuditEvent = "rwa_submitted"
	EventRWAVerified           AuditEvent = "rwa_verified"
	EventRWARejected           AuditEvent = "rwa_rejected"
	EventRWACycleStarted       AuditEvent = "rwa_cycle_started"

	// Compliance gate
	EventComplianceInitialized  AuditEvent = "compliance_initialized"
	EventComplianceStageChanged AuditEvent = "compliance_stage_changed"
	EventTokenizationChecked    AuditEvent = "compliance_tokenization_checked"
	EventTradingChecked         AuditEvent = "compliance_trading_checked"
	EventTransactionRecorded    AuditEvent = "transaction_recorded"
	EventTransactionFailed      AuditEvent = "transaction_record_failed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventKYCStepVerified:        CategoryCompliance,
	EventKYCStepRejected:        CategoryCompliance,
	EventKYCVerified:            CategoryCompliance,
	EventKYCRejected:            CategoryCompliance,
	EventKYCExpired:             CategoryCompliance,
	EventRWADocumentVerified:    CategoryCompliance,
	EventRWADocumentRejected:    CategoryCompliance,
	EventRWAOwnershipValidated:  CategoryCompliance,
	EventRWALegalChecked:        CategoryCompliance,
	EventRWAVerified:            CategoryCompliance,
	EventRWARejected:            CategoryCompliance,
	EventComplianceStageChanged: CategoryCompliance,
	EventTokenizationChecked:    CategoryCompliance,
	EventTradingChecked:         CategoryCompliance,
	EventTransactionRecorded:    CategoryCompliance,
	EventTransactionFailed:      CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Log records an audit-worthy action: it logs the event with standard audit
// fields and forwards it to the emitter. The emitter error is returned so
// fail-closed callers can abort; it is also logged here.
//
// attrList is a slog-style key/value list. "decision" and "reason" keys are
// lifted into the event.
func Log(ctx context.Context, logger *slog.Logger, emitter Emitter, event AuditEvent, kind SubjectKind, subject string, attrList ...any) error {
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	args := append(attrList, string(kind)+"_id", subject, "actor", actor, "event", string(event), "log_type", "audit")
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}

	if emitter == nil {
		return nil
	}
	err := emitter.Emit(ctx, Event{
		Category:    event.Category(),
		Timestamp:   requestcontext.Now(ctx),
		SubjectKind: kind,
		Subject:     subject,
		Action:      string(event),
		Decision:    attrs.String(attrList, "decision"),
		Reason:      attrs.String(attrList, "reason"),
		RequestID:   requestID,
		ActorID:     actor,
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
	return err
}
