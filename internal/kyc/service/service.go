// Package service runs identity verification (KYC) workflows.
//
// Every mutation takes the user's lock, loads the workflow, applies one
// validated transition and saves it together with its audit event in one unit
// of work. Only UploadDocument may create a workflow implicitly, and only when
// policy enables auto-initialization; every other operation on an unknown
// user fails with NotInitializedError.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/kyc/metrics"
	"rwagate/internal/kyc/models"
	"rwagate/internal/kyc/ports"
	"rwagate/internal/platform/config"
	"rwagate/internal/platform/subjectlock"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
	"rwagate/pkg/platform/audit"
	"rwagate/pkg/platform/sentinel"
	"rwagate/pkg/platform/tx"
	"rwagate/pkg/requestcontext"
)

const issueTimedOut = "verification timed out"

// Service manages identity workflows.
type Service struct {
	store      ports.Store
	verifier   ports.ClaimVerifier
	locker     ports.Locker
	reviewAuth ports.ReviewAuthorizer
	auditor    ports.AuditPublisher
	tx         tx.Runner
	policy     config.KYCPolicy
	required   []models.StepKind
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithTxRunner makes the workflow save and its audit event one transaction.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func WithLocker(l ports.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithReviewAuthorizer enables manual Finalize.
func WithReviewAuthorizer(a ports.ReviewAuthorizer) Option {
	return func(s *Service) {
		s.reviewAuth = a
	}
}

func WithPolicy(p config.KYCPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store ports.Store, verifier ports.ClaimVerifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("kyc store is required")
	}
	if verifier == nil {
		return nil, errors.New("claim verifier is required")
	}
	s := &Service{
		store:    store,
		verifier: verifier,
		policy:   config.DefaultPolicy().KYC,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = subjectlock.NewMemory()
	}
	if s.tx == nil {
		s.tx = tx.NopRunner{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("rwagate/kyc")
	}
	required, err := models.ParseStepKinds(s.policy.RequiredSteps)
	if err != nil {
		return nil, fmt.Errorf("kyc required steps: %w", err)
	}
	if len(required) == 0 {
		required = models.DefaultRequiredSteps
	}
	s.required = required
	return s, nil
}

// RequiredSteps returns the policy's required step kinds in order.
func (s *Service) RequiredSteps() []models.StepKind {
	return append([]models.StepKind(nil), s.required...)
}

// Initialize creates the user's workflow in NotStarted. Idempotent.
func (s *Service) Initialize(ctx context.Context, userID domain.UserID) (*models.Workflow, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out *models.Workflow
	err := s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if err == nil {
			out = wf
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
			return err
		}
		wf, err = s.create(ctx, userID)
		out = wf
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// UploadDocument records a document for a step and moves a new workflow to
// Pending. Re-uploading a step discards its previous outcome.
func (s *Service) UploadDocument(ctx context.Context, userID domain.UserID, kind models.StepKind, ref providers.DocumentRef, claim models.Claim) (*models.Workflow, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if _, err := models.ParseStepKind(string(kind)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(ref)) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document reference is required")
	}

	var out *models.Workflow
	err := s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if dErrors.HasCode(err, dErrors.CodeNotInitialized) && s.policy.AutoInitialize {
			wf, err = s.create(ctx, userID)
		}
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		switch wf.Status {
		case workflow.StatusNotStarted:
			if err := s.transition(wf, workflow.StatusPending, now); err != nil {
				return err
			}
		case workflow.StatusPending:
		default:
			return &dErrors.InvalidTransitionError{From: string(wf.Status), To: string(workflow.StatusPending)}
		}

		step := wf.Step(kind)
		step.MarkUploaded(string(ref), now)
		step.Claim = claim

		if err := s.audit(ctx, audit.EventKYCDocumentUploaded, userID, "document_type", string(kind)); err != nil {
			return err
		}
		out = wf
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// VerifyStep runs the claim verifier for an uploaded step and records the
// outcome. A negative verdict is a Rejected step, not an error. A timeout or
// collaborator failure is also recorded as Rejected, and then returned as
// VerificationTimeoutError or CollaboratorError.
func (s *Service) VerifyStep(ctx context.Context, userID domain.UserID, kind models.StepKind, evidence models.Claim) (*models.Step, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var (
		out       *models.Step
		verifyErr error
	)
	err := s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if wf.Status != workflow.StatusPending && wf.Status != workflow.StatusInReview {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("identity workflow is %s; steps are verified while pending or in review", wf.Status))
		}
		step, ok := wf.Lookup(kind)
		if !ok || !step.Present() {
			return &dErrors.MissingDocumentsError{Documents: []string{string(kind)}}
		}
		if step.Status != workflow.StepUploaded {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("%s is already %s; re-upload to verify again", kind, step.Status))
		}

		verifyErr = s.verify(ctx, wf, step, evidence)
		if err := s.auditStep(ctx, userID, step); err != nil {
			return err
		}
		out = step.Clone()
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return out, verifyErr
}

// SubmitForReview moves a Pending workflow to InReview once every required
// step has been uploaded. In automatic mode uploaded steps are verified and
// the workflow is finalized before returning; a collaborator failure during
// that pass aborts submission and leaves the workflow Pending.
func (s *Service) SubmitForReview(ctx context.Context, userID domain.UserID) (*models.Workflow, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var (
		out       *models.Workflow
		verifyErr error
	)
	err := s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if !workflow.IdentityMachine.CanTransition(wf.Status, workflow.StatusInReview) {
			return &dErrors.InvalidTransitionError{From: string(wf.Status), To: string(workflow.StatusInReview)}
		}
		if missing := wf.MissingSteps(s.required); len(missing) > 0 {
			return &dErrors.MissingDocumentsError{Documents: missing}
		}

		if s.policy.AutoVerify {
			verifyErr = s.verifyUploaded(ctx, wf)
			if verifyErr != nil {
				// Keep the recorded step outcomes; the workflow stays Pending.
				out = wf
				return s.save(ctx, wf)
			}
		}

		now := requestcontext.Now(ctx)
		if err := s.transition(wf, workflow.StatusInReview, now); err != nil {
			return err
		}
		wf.SubmittedAt = &now
		if err := s.audit(ctx, audit.EventKYCSubmitted, userID); err != nil {
			return err
		}

		if s.policy.AutoVerify {
			if err := s.decide(ctx, wf, true, ""); err != nil {
				return err
			}
		}
		out = wf
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	if verifyErr != nil {
		return out.Clone(), verifyErr
	}
	return out.Clone(), nil
}

// Decision is a reviewer's verdict for manual finalization.
type Decision struct {
	Approve bool
	Notes   string
}

// Finalize records a reviewer decision on an InReview workflow. Approval
// yields Verified only if every required step is individually Verified.
func (s *Service) Finalize(ctx context.Context, userID domain.UserID, reviewerToken string, decision Decision) (*models.Workflow, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if s.reviewAuth == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "manual review is not configured")
	}
	reviewerID, err := s.reviewAuth.AuthorizeReviewer(reviewerToken)
	if err != nil {
		return nil, err
	}
	ctx = requestcontext.WithActor(ctx, reviewerID)

	var out *models.Workflow
	err = s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if wf.Status != workflow.StatusInReview {
			target := workflow.StatusRejected
			if decision.Approve {
				target = workflow.StatusVerified
			}
			return &dErrors.InvalidTransitionError{From: string(wf.Status), To: string(target)}
		}
		if err := s.decide(ctx, wf, decision.Approve, decision.Notes); err != nil {
			return err
		}
		out = wf
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// IsVerified reports whether the user holds a Verified identity. When policy
// does not require KYC every user passes, and each such pass is logged.
func (s *Service) IsVerified(ctx context.Context, userID domain.UserID) (bool, error) {
	if !s.policy.Required {
		s.logger.WarnContext(ctx, "kyc not required by policy; treating user as verified",
			"user_id", string(userID), "request_id", requestcontext.RequestID(ctx))
		return true, nil
	}
	wf, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return wf.Status == workflow.StatusVerified, nil
}

// CurrentStatus returns the workflow status. Unknown users report NotStarted
// alongside NotInitializedError.
func (s *Service) CurrentStatus(ctx context.Context, userID domain.UserID) (workflow.Status, error) {
	wf, err := s.load(ctx, userID)
	if err != nil {
		return workflow.StatusNotStarted, err
	}
	return wf.Status, nil
}

// Progress is the percentage of required steps Verified.
func (s *Service) Progress(ctx context.Context, userID domain.UserID) (float64, error) {
	wf, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wf.Progress(s.required), nil
}

func (s *Service) Status(ctx context.Context, userID domain.UserID) (models.StatusView, error) {
	wf, err := s.load(ctx, userID)
	if err != nil {
		return models.StatusView{}, err
	}
	return wf.View(s.required, s.policy.Validity()), nil
}

// StartNewCycle begins a new submission cycle after Rejected or Expired.
func (s *Service) StartNewCycle(ctx context.Context, userID domain.UserID) (*models.Workflow, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out *models.Workflow
	err := s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		previous := wf.Status
		if err := wf.StartNewCycle(now); err != nil {
			return err
		}
		s.metrics.IncTransition(string(wf.Status))
		wf.AddHistory("new_cycle", requestcontext.Actor(ctx), fmt.Sprintf("generation %d after %s", wf.Generation, previous), now)
		if err := s.audit(ctx, audit.EventKYCCycleStarted, userID, "generation", wf.Generation); err != nil {
			return err
		}
		out = wf
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// Expire moves a Verified workflow to Expired regardless of its age.
func (s *Service) Expire(ctx context.Context, userID domain.UserID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.withUser(ctx, userID, func(ctx context.Context) error {
		wf, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		return s.expire(ctx, wf, "expired on request")
	})
}

// ExpireDue expires every Verified workflow whose validity has lapsed and
// returns how many were expired. Failures for one user do not stop the sweep.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	validity := s.policy.Validity()
	ids, err := s.store.ListVerifiedBefore(ctx, now.Add(-validity))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verified identities")
	}

	expired := 0
	var errs []error
	for _, userID := range ids {
		err := s.withUser(ctx, userID, func(ctx context.Context) error {
			wf, err := s.load(ctx, userID)
			if err != nil {
				return err
			}
			// Re-check under the lock: the workflow may have moved on.
			if at := wf.ExpiresAt(validity); at == nil || now.Before(*at) {
				return nil
			}
			if err := s.expire(ctx, wf, "validity period elapsed"); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", userID, err))
		}
	}
	return expired, errors.Join(errs...)
}

func (s *Service) expire(ctx context.Context, wf *models.Workflow, notes string) error {
	now := requestcontext.Now(ctx)
	if err := s.transition(wf, workflow.StatusExpired, now); err != nil {
		return err
	}
	wf.OverallApproved = false
	wf.AddHistory("expired", requestcontext.Actor(ctx), notes, now)
	if err := s.audit(ctx, audit.EventKYCExpired, wf.UserID, "reason", notes); err != nil {
		return err
	}
	if err := s.save(ctx, wf); err != nil {
		return err
	}
	s.metrics.IncExpired()
	return nil
}

// decide finalizes an InReview workflow. Verified requires approval and every
// required step Verified; anything else is Rejected.
func (s *Service) decide(ctx context.Context, wf *models.Workflow, approve bool, notes string) error {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	if approve && wf.AllRequiredVerified(s.required) {
		if err := s.transition(wf, workflow.StatusVerified, now); err != nil {
			return err
		}
		wf.OverallApproved = true
		wf.VerifiedAt = &now
		wf.AddHistory("verified", actor, notes, now)
		return s.audit(ctx, audit.EventKYCVerified, wf.UserID, "decision", "verified")
	}

	reason := notes
	if approve || reason == "" {
		reason = rejectionReason(wf, s.required)
	}
	if err := s.transition(wf, workflow.StatusRejected, now); err != nil {
		return err
	}
	wf.OverallApproved = false
	wf.AddHistory("rejected", actor, reason, now)
	return s.audit(ctx, audit.EventKYCRejected, wf.UserID, "decision", "rejected", "reason", reason)
}

func rejectionReason(wf *models.Workflow, required []models.StepKind) string {
	var failed []string
	for _, kind := range required {
		if s, ok := wf.Lookup(kind); !ok || !s.IsVerified() {
			failed = append(failed, string(kind))
		}
	}
	if len(failed) == 0 {
		return "rejected by reviewer"
	}
	return "required steps not verified: " + strings.Join(failed, ", ")
}

// verifyUploaded verifies each required step still awaiting verification.
// Timeouts are recorded as rejections and do not abort; the first
// collaborator failure does.
func (s *Service) verifyUploaded(ctx context.Context, wf *models.Workflow) error {
	for _, kind := range s.required {
		step, ok := wf.Lookup(kind)
		if !ok || step.Status != workflow.StepUploaded {
			continue
		}
		err := s.verify(ctx, wf, step, models.Claim{})
		if auditErr := s.auditStep(ctx, wf.UserID, step); auditErr != nil {
			return auditErr
		}
		var timeout *dErrors.VerificationTimeoutError
		if err != nil && !errors.As(err, &timeout) {
			return err
		}
	}
	return nil
}

// verify calls the claim verifier under the policy deadline and records the
// outcome on step.
func (s *Service) verify(ctx context.Context, wf *models.Workflow, step *models.Step, evidence models.Claim) error {
	req := s.claimRequest(wf, step, evidence)

	callCtx, span := s.tracer.Start(ctx, "kyc.verify_claim",
		trace.WithAttributes(attribute.String("step", string(step.Kind)), attribute.String("claim", string(req.Kind))))
	defer span.End()
	if s.policy.VerifierTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.policy.VerifierTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.verifier.VerifyClaim(callCtx, req)
	s.metrics.ObserveVerifierLatency(time.Since(start).Seconds())
	now := requestcontext.Now(ctx)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verifier failed")
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) || providers.IsTimeout(err) {
			step.Record(false, 0, []string{issueTimedOut}, now)
			s.metrics.IncStepOutcome(string(step.Kind), "timeout")
			s.logger.WarnContext(ctx, "identity verification timed out",
				"user_id", string(wf.UserID), "step", string(step.Kind), "timeout", s.policy.VerifierTimeout)
			return &dErrors.VerificationTimeoutError{Step: string(step.Kind)}
		}
		step.Record(false, 0, []string{"identity verifier unavailable"}, now)
		s.metrics.IncStepOutcome(string(step.Kind), "error")
		s.logger.ErrorContext(ctx, "identity verifier failed",
			"user_id", string(wf.UserID), "step", string(step.Kind), "error", err)
		return dErrors.Collaborator("identity_verifier", err)
	}

	step.Record(result.Verified, result.Score, result.Issues, now)
	outcome := "rejected"
	if result.Verified {
		outcome = "verified"
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	s.metrics.IncStepOutcome(string(step.Kind), outcome)
	return nil
}

// claimRequest builds the verifier request for a step. Evidence overrides the
// claim stored at upload; the liveness selfie is matched against the identity
// document.
func (s *Service) claimRequest(wf *models.Workflow, step *models.Step, evidence models.Claim) providers.ClaimRequest {
	number := evidence.Number
	if number == "" {
		number = step.Claim.Number
	}
	name := evidence.HolderName
	if name == "" {
		name = step.Claim.HolderName
	}
	if name == "" {
		if idDoc, ok := wf.Lookup(models.StepIdentityDocument); ok {
			name = idDoc.Claim.HolderName
		}
	}

	req := providers.ClaimRequest{
		Number:      number,
		Name:        name,
		DocumentRef: providers.DocumentRef(step.DocumentRef),
	}
	switch step.Kind {
	case models.StepIdentityDocument:
		req.Kind = providers.ClaimAadhaar
	case models.StepTaxIDDocument:
		req.Kind = providers.ClaimPAN
	case models.StepDrivingLicense:
		req.Kind = providers.ClaimDrivingLicense
	case models.StepPassport:
		req.Kind = providers.ClaimPassport
	case models.StepLivenessSelfie:
		req.Kind = providers.ClaimFaceMatch
		if idDoc, ok := wf.Lookup(models.StepIdentityDocument); ok && idDoc.Present() {
			req.ReferenceRef = providers.DocumentRef(idDoc.DocumentRef)
		}
	}
	return req
}

func (s *Service) auditStep(ctx context.Context, userID domain.UserID, step *models.Step) error {
	event := audit.EventKYCStepRejected
	decision := "rejected"
	if step.IsVerified() {
		event = audit.EventKYCStepVerified
		decision = "verified"
	}
	return s.audit(ctx, event, userID,
		"document_type", string(step.Kind),
		"decision", decision,
		"reason", strings.Join(step.Issues, "; "))
}

func (s *Service) transition(wf *models.Workflow, to workflow.Status, now time.Time) error {
	if err := wf.TransitionTo(to, now); err != nil {
		return err
	}
	s.metrics.IncTransition(string(to))
	return nil
}

func (s *Service) create(ctx context.Context, userID domain.UserID) (*models.Workflow, error) {
	wf := models.NewWorkflow(userID, requestcontext.Now(ctx))
	if err := s.audit(ctx, audit.EventKYCInitialized, userID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *Service) load(ctx context.Context, userID domain.UserID) (*models.Workflow, error) {
	wf, err := s.store.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, &dErrors.NotInitializedError{Subject: "user " + string(userID)}
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity workflow")
	}
	return wf, nil
}

func (s *Service) save(ctx context.Context, wf *models.Workflow) error {
	wf.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, wf); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity workflow")
	}
	return nil
}

func (s *Service) audit(ctx context.Context, event audit.AuditEvent, userID domain.UserID, attrs ...any) error {
	if err := audit.Log(ctx, s.logger, s.auditor, event, audit.SubjectUser, string(userID), attrs...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// withUser serialises fn against other mutations of the same user and runs it
// as one unit of work.
func (s *Service) withUser(ctx context.Context, userID domain.UserID, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, "kyc:"+string(userID))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire identity workflow lock")
	}
	defer unlock()
	return s.tx.RunInTx(ctx, fn)
}

func requireUser(userID domain.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	return nil
}
