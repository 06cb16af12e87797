// Package service runs asset verification (RWA) workflows.
//
// The workflow mirrors identity verification but is scored: each document is
// scored by its rule set and the asset's overall score is the weighted
// aggregate of document and check scores. Mutations are serialised per asset
// and saved together with their audit event in one unit of work.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/platform/config"
	"rwagate/internal/platform/subjectlock"
	"rwagate/internal/rwa/legal"
	"rwagate/internal/rwa/metrics"
	"rwagate/internal/rwa/models"
	"rwagate/internal/rwa/ports"
	"rwagate/internal/rwa/rules"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
	"rwagate/pkg/platform/audit"
	"rwagate/pkg/platform/sentinel"
	strs "rwagate/pkg/platform/strings"
	"rwagate/pkg/platform/tx"
	"rwagate/pkg/requestcontext"
)

const (
	OwnershipValidScore   = 95.0
	OwnershipInvalidScore = 65.0

	IssueTitleDeedMissing     = "title deed missing"
	IssueTitleDeedUnverified  = "title deed not verified"
	IssueOwnerMismatch        = "owner does not match the asset owner"
	IssueNotAuthentic         = "document authenticity could not be confirmed"
	IssueNotInStorage         = "document not found in storage"
	issueTimedOut             = "verification timed out"
	collaboratorExtractor     = "field_extractor"
	collaboratorStorage       = "document_storage"
	collaboratorFraudDetector = "fraud_detector"
	collaboratorLegalRegistry = "legal_registry"
)

// Service manages asset workflows.
type Service struct {
	store      ports.Store
	registry   ports.LegalRegistry
	checklist  *legal.Checklist
	storage    ports.DocumentStorage
	extractor  ports.FieldExtractor
	fraud      ports.FraudDetector
	locker     ports.Locker
	reviewAuth ports.ReviewAuthorizer
	auditor    ports.AuditPublisher
	tx         tx.Runner
	policy     config.RWAPolicy
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

func WithReviewAuthorizer(a ports.ReviewAuthorizer) Option {
	return func(s *Service) {
		s.reviewAuth = a
	}
}

func WithPolicy(p config.RWAPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithChecklist supplies a prepared legal checklist. Without it New prepares
// the embedded one.
func WithChecklist(c *legal.Checklist) Option {
	return func(s *Service) {
		s.checklist = c
	}
}

// WithDocumentPipeline enables VerifyUploadedDocument. storage and detector
// may be nil; the extractor may not.
func WithDocumentPipeline(storage ports.DocumentStorage, extractor ports.FieldExtractor, detector ports.FraudDetector) Option {
	return func(s *Service) {
		s.storage = storage
		s.extractor = extractor
		s.fraud = detector
	}
}

func New(store ports.Store, registry ports.LegalRegistry, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("rwa store is required")
	}
	if registry == nil {
		return nil, errors.New("legal registry is required")
	}
	s := &Service{
		store:    store,
		registry: registry,
		policy:   config.DefaultPolicy().RWA,
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
		s.tracer = otel.Tracer("rwagate/rwa")
	}
	if s.checklist == nil {
		checklist, err := legal.NewChecklist(context.Background())
		if err != nil {
			return nil, err
		}
		s.checklist = checklist
	}
	return s, nil
}

// Initialize creates the asset's workflow in NotStarted. Idempotent; an
// existing workflow is returned unchanged.
func (s *Service) Initialize(ctx context.Context, assetID domain.AssetID, ownerID domain.UserID) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	var out *models.Workflow
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
		if err == nil {
			out = wf
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
			return err
		}
		wf, err = s.create(ctx, assetID, ownerID)
		out = wf
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// UploadDocument records a document and moves a new workflow to Pending.
// fields, when given, are the values the document claims and are scored by
// VerifyDocument when no others are supplied. Re-uploading discards the
// previous outcome and fraud findings.
func (s *Service) UploadDocument(ctx context.Context, assetID domain.AssetID, docType models.DocType, ref providers.DocumentRef, fields providers.Fields) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	if _, err := models.ParseDocType(string(docType)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(ref)) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document reference is required")
	}

	var out *models.Workflow
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
		if dErrors.HasCode(err, dErrors.CodeNotInitialized) && s.policy.AutoInitialize {
			wf, err = s.create(ctx, assetID, "")
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

		doc := wf.Document(docType)
		doc.MarkUploaded(string(ref), now)
		doc.Fields = cloneFields(fields)
		doc.Fraud = nil

		if err := s.audit(ctx, audit.EventRWADocumentUploaded, assetID, "document_type", string(docType)); err != nil {
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

// VerifyDocument scores an uploaded document with its rule set. nil fields
// fall back to those recorded at upload. A document below the minimum
// threshold, or with a blocking condition, is Rejected; that is an outcome,
// not an error.
func (s *Service) VerifyDocument(ctx context.Context, assetID domain.AssetID, docType models.DocType, fields providers.Fields) (*models.Document, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	var out *models.Document
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, doc, err := s.uploadedDocument(ctx, assetID, docType)
		if err != nil {
			return err
		}
		if fields == nil {
			fields = doc.Fields
		}
		s.evaluate(ctx, doc, fields)
		if err := s.auditDocument(ctx, assetID, doc); err != nil {
			return err
		}
		out = doc.Clone()
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyUploadedDocument runs the document pipeline: the storage reference is
// confirmed while fields are extracted, the fraud detector analyses the
// result and the rule set scores it. A collaborator failure is recorded as a
// Rejected document and returned as VerificationTimeoutError or
// CollaboratorError.
func (s *Service) VerifyUploadedDocument(ctx context.Context, assetID domain.AssetID, docType models.DocType) (*models.Document, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	if s.extractor == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "document pipeline is not configured")
	}
	var (
		out         *models.Document
		pipelineErr error
	)
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, doc, err := s.uploadedDocument(ctx, assetID, docType)
		if err != nil {
			return err
		}
		pipelineErr = s.runPipeline(ctx, wf, doc)
		if err := s.auditDocument(ctx, assetID, doc); err != nil {
			return err
		}
		out = doc.Clone()
		return s.save(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return out, pipelineErr
}

// ValidateOwnership records the ownership check: the title deed must be
// present and Verified, and ownerID must be the asset's owner. A workflow
// created without an owner adopts ownerID.
func (s *Service) ValidateOwnership(ctx context.Context, assetID domain.AssetID, ownerID domain.UserID) (models.CheckResult, error) {
	if err := requireAsset(assetID); err != nil {
		return models.CheckResult{}, err
	}
	if ownerID.IsNil() {
		return models.CheckResult{}, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	var out models.CheckResult
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
		if err != nil {
			return err
		}
		if err := requireVerifying(wf); err != nil {
			return err
		}

		var issues []string
		deed, ok := wf.Lookup(models.DocTitleDeed)
		switch {
		case !ok || !deed.Present():
			issues = append(issues, IssueTitleDeedMissing)
		case !deed.IsVerified():
			issues = append(issues, IssueTitleDeedUnverified)
		}
		if wf.OwnerID.IsNil() {
			wf.OwnerID = ownerID
		} else if wf.OwnerID != ownerID {
			issues = append(issues, IssueOwnerMismatch)
		}

		out = models.CheckResult{
			Name:      models.CheckOwnership,
			Passed:    len(issues) == 0,
			Score:     OwnershipValidScore,
			Issues:    issues,
			CheckedAt: requestcontext.Now(ctx),
		}
		if !out.Passed {
			out.Score = OwnershipInvalidScore
		}
		wf.RecordCheck(out)
		if err := s.audit(ctx, audit.EventRWAOwnershipValidated, assetID,
			"owner_id", string(ownerID), "decision", passFail(out.Passed), "reason", strings.Join(issues, "; ")); err != nil {
			return err
		}
		return s.save(ctx, wf)
	})
	if err != nil {
		return models.CheckResult{}, err
	}
	return out, nil
}

// CheckLegalCompliance evaluates the legal checklist on the registry's facts
// for the asset and records the result. The score is 100 when every check
// passes and 60 otherwise.
func (s *Service) CheckLegalCompliance(ctx context.Context, assetID domain.AssetID) (legal.Result, error) {
	if err := requireAsset(assetID); err != nil {
		return legal.Result{}, err
	}
	var out legal.Result
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
		if err != nil {
			return err
		}
		if err := requireVerifying(wf); err != nil {
			return err
		}

		var facts providers.LegalFacts
		err = s.call(ctx, collaboratorLegalRegistry, string(models.CheckLegalCompliance), func(ctx context.Context) (err error) {
			facts, err = s.registry.Facts(ctx, string(assetID))
			return err
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "legal registry lookup failed", "asset_id", string(assetID), "error", err)
			return err
		}
		result, err := s.checklist.Evaluate(ctx, facts)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to evaluate legal checklist")
		}

		wf.RecordCheck(models.CheckResult{
			Name:      models.CheckLegalCompliance,
			Passed:    result.Compliant,
			Score:     result.Score,
			Issues:    result.Issues,
			CheckedAt: requestcontext.Now(ctx),
		})
		if err := s.audit(ctx, audit.EventRWALegalChecked, assetID,
			"decision", passFail(result.Compliant), "reason", strings.Join(result.Issues, "; ")); err != nil {
			return err
		}
		out = result
		return s.save(ctx, wf)
	})
	if err != nil {
		return legal.Result{}, err
	}
	return out, nil
}

// OverallScore recomputes the weighted score from the current documents and
// checks. It is 0 when nothing has been scored.
func (s *Service) OverallScore(ctx context.Context, assetID domain.AssetID) (float64, error) {
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return 0, err
	}
	score, _ := wf.Score()
	return score, nil
}

// SubmitForVerification moves a Pending workflow to InReview once the title
// deed is uploaded. In automatic mode documents still awaiting verification
// are verified (through the document pipeline when one is configured) and
// the workflow is finalized on the overall score before returning. A
// collaborator failure during that pass aborts submission and leaves the
// workflow Pending.
func (s *Service) SubmitForVerification(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	var (
		out       *models.Workflow
		verifyErr error
	)
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
		if err != nil {
			return err
		}
		if !workflow.AssetMachine.CanTransition(wf.Status, workflow.StatusInReview) {
			return &dErrors.InvalidTransitionError{From: string(wf.Status), To: string(workflow.StatusInReview)}
		}
		if deed, ok := wf.Lookup(models.DocTitleDeed); !ok || !deed.Present() {
			return &dErrors.MissingDocumentsError{Documents: []string{string(models.DocTitleDeed)}}
		}

		if s.policy.AutoVerify {
			verifyErr = s.verifyUploaded(ctx, wf)
			if verifyErr != nil {
				out = wf
				return s.save(ctx, wf)
			}
		}

		now := requestcontext.Now(ctx)
		if err := s.transition(wf, workflow.StatusInReview, now); err != nil {
			return err
		}
		wf.SubmittedAt = &now
		if err := s.audit(ctx, audit.EventRWASubmitted, assetID); err != nil {
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
// yields Verified only when the overall score clears the minimum threshold.
func (s *Service) Finalize(ctx context.Context, assetID domain.AssetID, reviewerToken string, decision Decision) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
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
	err = s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
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

// IsVerified reports whether the asset is Verified. When policy does not
// require asset verification every asset passes, and each such pass is logged.
func (s *Service) IsVerified(ctx context.Context, assetID domain.AssetID) (bool, error) {
	if !s.policy.Required {
		s.logger.WarnContext(ctx, "asset verification not required by policy; treating asset as verified",
			"asset_id", string(assetID), "request_id", requestcontext.RequestID(ctx))
		return true, nil
	}
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return false, err
	}
	return wf.Status == workflow.StatusVerified, nil
}

func (s *Service) CurrentStatus(ctx context.Context, assetID domain.AssetID) (workflow.Status, error) {
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return workflow.StatusNotStarted, err
	}
	return wf.Status, nil
}

func (s *Service) Status(ctx context.Context, assetID domain.AssetID) (models.StatusView, error) {
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return models.StatusView{}, err
	}
	return wf.View(), nil
}

// FraudFindings returns the combined fraud findings of the asset's documents,
// or nil when none has been analysed.
func (s *Service) FraudFindings(ctx context.Context, assetID domain.AssetID) (*providers.FraudFindings, error) {
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return wf.Fraud(), nil
}

// StartNewCycle begins a new submission cycle after a rejection.
func (s *Service) StartNewCycle(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	var out *models.Workflow
	err := s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
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
		if err := s.audit(ctx, audit.EventRWACycleStarted, assetID, "generation", wf.Generation); err != nil {
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

// decide finalizes an InReview workflow on its overall score.
func (s *Service) decide(ctx context.Context, wf *models.Workflow, approve bool, notes string) error {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	score, scored := wf.Score()
	wf.OverallScore = &score
	if approve && scored && score >= s.policy.MinimumThreshold {
		if err := s.transition(wf, workflow.StatusVerified, now); err != nil {
			return err
		}
		wf.RejectionReason = ""
		wf.VerifiedAt = &now
		wf.AddHistory("verified", actor, notes, now)
		s.metrics.IncDecision("verified")
		return s.audit(ctx, audit.EventRWAVerified, wf.AssetID, "decision", "verified", "score", score)
	}

	reason := notes
	if approve || reason == "" {
		reason = "verification score too low: " + strconv.FormatFloat(score, 'f', -1, 64) + "/100"
	}
	if err := s.transition(wf, workflow.StatusRejected, now); err != nil {
		return err
	}
	wf.RejectionReason = reason
	wf.AddHistory("rejected", actor, reason, now)
	s.metrics.IncDecision("rejected")
	return s.audit(ctx, audit.EventRWARejected, wf.AssetID, "decision", "rejected", "score", score, "reason", reason)
}

// verifyUploaded verifies every document still awaiting verification.
// Timeouts are recorded as rejections and do not abort; the first
// collaborator failure does.
func (s *Service) verifyUploaded(ctx context.Context, wf *models.Workflow) error {
	for _, t := range models.DocTypes() {
		doc, ok := wf.Lookup(t)
		if !ok || doc.Status != workflow.StepUploaded {
			continue
		}
		var err error
		if s.extractor != nil {
			err = s.runPipeline(ctx, wf, doc)
		} else {
			s.evaluate(ctx, doc, doc.Fields)
		}
		if auditErr := s.auditDocument(ctx, wf.AssetID, doc); auditErr != nil {
			return auditErr
		}
		var timeout *dErrors.VerificationTimeoutError
		if err != nil && !errors.As(err, &timeout) {
			return err
		}
	}
	return nil
}

func (s *Service) runPipeline(ctx context.Context, wf *models.Workflow, doc *models.Document) error {
	ctx, span := s.tracer.Start(ctx, "rwa.document_pipeline",
		trace.WithAttributes(attribute.String("doc_type", string(doc.Type))))
	defer span.End()

	ref := providers.DocumentRef(doc.DocumentRef)
	exists := true
	var fields providers.Fields

	g, gctx := errgroup.WithContext(ctx)
	if s.storage != nil {
		g.Go(func() error {
			return s.call(gctx, collaboratorStorage, string(doc.Type), func(ctx context.Context) (err error) {
				exists, err = s.storage.Exists(ctx, ref)
				return err
			})
		})
	}
	g.Go(func() error {
		return s.call(gctx, collaboratorExtractor, string(doc.Type), func(ctx context.Context) (err error) {
			fields, err = s.extractor.Extract(ctx, ref)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return s.recordFailure(ctx, wf, doc, span, err)
	}
	if !exists {
		doc.Record(false, 0, []string{IssueNotInStorage}, requestcontext.Now(ctx))
		span.SetAttributes(attribute.String("outcome", "rejected"))
		return nil
	}

	if s.fraud != nil {
		var findings providers.FraudFindings
		err := s.call(ctx, collaboratorFraudDetector, string(doc.Type), func(ctx context.Context) (err error) {
			findings, err = s.fraud.Analyze(ctx, ref, fields)
			return err
		})
		if err != nil {
			return s.recordFailure(ctx, wf, doc, span, err)
		}
		doc.Fraud = &findings
	}

	s.evaluate(ctx, doc, fields)
	span.SetAttributes(attribute.String("outcome", string(doc.Status)))
	return nil
}

// call runs one collaborator request under the policy deadline. Failures
// come back as VerificationTimeoutError or CollaboratorError.
func (s *Service) call(ctx context.Context, collaborator, step string, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if s.policy.VerifierTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.policy.VerifierTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(callCtx)
	s.metrics.ObserveCollaboratorLatency(collaborator, time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || providers.IsTimeout(err) {
		return &dErrors.VerificationTimeoutError{Step: step}
	}
	return dErrors.Collaborator(collaborator, providers.Normalize(collaborator, err))
}

func (s *Service) recordFailure(ctx context.Context, wf *models.Workflow, doc *models.Document, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "document pipeline failed")
	now := requestcontext.Now(ctx)

	var timeout *dErrors.VerificationTimeoutError
	if errors.As(err, &timeout) {
		doc.Record(false, 0, []string{issueTimedOut}, now)
		s.logger.WarnContext(ctx, "asset document verification timed out",
			"asset_id", string(wf.AssetID), "doc_type", string(doc.Type), "timeout", s.policy.VerifierTimeout)
		return err
	}

	issue := "document pipeline unavailable"
	var collab *dErrors.CollaboratorError
	if errors.As(err, &collab) {
		issue = strings.ReplaceAll(collab.Collaborator, "_", " ") + " unavailable"
	}
	doc.Record(false, 0, []string{issue}, now)
	s.logger.ErrorContext(ctx, "asset document pipeline failed",
		"asset_id", string(wf.AssetID), "doc_type", string(doc.Type), "error", err)
	return err
}

// evaluate scores doc with its rule set. An inauthentic fraud finding blocks
// the document whatever its score.
func (s *Service) evaluate(ctx context.Context, doc *models.Document, fields providers.Fields) {
	result := rules.Evaluate(doc.Type, fields, requestcontext.Now(ctx))
	if doc.Fraud != nil && !doc.Fraud.IsAuthentic {
		result.Blocking = true
		result.Issues = strs.AppendIssues(result.Issues, IssueNotAuthentic)
	}
	doc.Fields = cloneFields(fields)
	doc.Record(result.Verified(s.policy.MinimumThreshold), result.Score, result.Issues, requestcontext.Now(ctx))
	s.metrics.ObserveDocumentScore(string(doc.Type), result.Score)
}

// uploadedDocument loads the workflow and the document of docType, which must
// be awaiting verification.
func (s *Service) uploadedDocument(ctx context.Context, assetID domain.AssetID, docType models.DocType) (*models.Workflow, *models.Document, error) {
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireVerifying(wf); err != nil {
		return nil, nil, err
	}
	doc, ok := wf.Lookup(docType)
	if !ok || !doc.Present() {
		return nil, nil, &dErrors.MissingDocumentsError{Documents: []string{string(docType)}}
	}
	if doc.Status != workflow.StepUploaded {
		return nil, nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("%s is already %s; re-upload to verify again", docType, doc.Status))
	}
	return wf, doc, nil
}

func (s *Service) auditDocument(ctx context.Context, assetID domain.AssetID, doc *models.Document) error {
	event := audit.EventRWADocumentRejected
	if doc.IsVerified() {
		event = audit.EventRWADocumentVerified
	}
	attrs := []any{
		"document_type", string(doc.Type),
		"decision", passFail(doc.IsVerified()),
		"reason", strings.Join(doc.Issues, "; "),
	}
	if doc.Score != nil {
		attrs = append(attrs, "score", *doc.Score)
	}
	return s.audit(ctx, event, assetID, attrs...)
}

func (s *Service) transition(wf *models.Workflow, to workflow.Status, now time.Time) error {
	if err := wf.TransitionTo(to, now); err != nil {
		return err
	}
	s.metrics.IncTransition(string(to))
	return nil
}

func (s *Service) create(ctx context.Context, assetID domain.AssetID, ownerID domain.UserID) (*models.Workflow, error) {
	wf := models.NewWorkflow(assetID, ownerID, requestcontext.Now(ctx))
	if err := s.audit(ctx, audit.EventRWAInitialized, assetID, "owner_id", string(ownerID)); err != nil {
		return nil, err
	}
	if err := s.save(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *Service) load(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	wf, err := s.store.Get(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, &dErrors.NotInitializedError{Subject: "asset " + string(assetID)}
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset workflow")
	}
	return wf, nil
}

func (s *Service) save(ctx context.Context, wf *models.Workflow) error {
	wf.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, wf); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save asset workflow")
	}
	return nil
}

func (s *Service) audit(ctx context.Context, event audit.AuditEvent, assetID domain.AssetID, attrs ...any) error {
	if err := audit.Log(ctx, s.logger, s.auditor, event, audit.SubjectAsset, string(assetID), attrs...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) withAsset(ctx context.Context, assetID domain.AssetID, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, "rwa:"+string(assetID))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire asset workflow lock")
	}
	defer unlock()
	return s.tx.RunInTx(ctx, fn)
}

// requireVerifying rejects document and check operations outside the
// verification phase.
func requireVerifying(wf *models.Workflow) error {
	if wf.Status != workflow.StatusPending && wf.Status != workflow.StatusInReview {
		return dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("asset workflow is %s; documents are verified while pending or in review", wf.Status))
	}
	return nil
}

func requireAsset(assetID domain.AssetID) error {
	if assetID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset id is required")
	}
	return nil
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}

func cloneFields(fields providers.Fields) providers.Fields {
	return maps.Clone(fields)
}
