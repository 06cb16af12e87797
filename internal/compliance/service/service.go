// Package service is the compliance gate. It decides whether an asset may be
// tokenized and whether a user may trade, combining the compliance workflow,
// the identity and asset workflows it does not own, and the transaction
// ledger.
//
// Eligibility checks take no locks. The identity status and the ledger sums
// of a trading check are read concurrently within the request, so a trade
// committed while a check is running may or may not be counted by it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rwagate/internal/compliance/metrics"
	"rwagate/internal/compliance/models"
	"rwagate/internal/compliance/ports"
	"rwagate/internal/platform/config"
	"rwagate/internal/platform/subjectlock"
	"rwagate/internal/risk"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
	"rwagate/pkg/platform/audit"
	"rwagate/pkg/platform/sentinel"
	"rwagate/pkg/platform/tx"
	"rwagate/pkg/requestcontext"
)

// Tokenization requirements, reported when unmet.
const (
	MissingWorkflow          = "Verification workflow not initialized"
	MissingDocuments         = "Documents not uploaded"
	MissingAIVerification    = "AI verification not completed"
	MissingAssetVerification = "Asset verification not completed"
)

const IssueKYCRequired = "KYC verification required"

// AML windows, used as the Limit of a LimitExceededError.
const (
	WindowDaily   = "daily"
	WindowMonthly = "monthly"
)

const (
	kindTokenization = "tokenization"
	kindTrading      = "trading"
)

// Service is the compliance gate.
type Service struct {
	store    ports.Store
	ledger   ports.Ledger
	identity ports.IdentityGate
	assets   ports.AssetGate
	locker   ports.Locker
	auditor  ports.AuditPublisher
	tx       tx.Runner
	policy   config.Policy
	assessor *risk.Assessor
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
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

// WithPolicy sets the AML limits, the tokenization requirements and the risk
// tables used by AssessRisk.
func WithPolicy(p config.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store ports.Store, ledger ports.Ledger, identity ports.IdentityGate, assets ports.AssetGate, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("compliance store is required")
	}
	if ledger == nil {
		return nil, errors.New("transaction ledger is required")
	}
	if identity == nil {
		return nil, errors.New("identity gate is required")
	}
	if assets == nil {
		return nil, errors.New("asset gate is required")
	}
	s := &Service{
		store:    store,
		ledger:   ledger,
		identity: identity,
		assets:   assets,
		policy:   config.DefaultPolicy(),
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
		s.tracer = otel.Tracer("rwagate/compliance")
	}
	s.assessor = risk.NewAssessor(s.policy)
	return s, nil
}

// InitializeWorkflow creates the asset's compliance workflow in Pending.
// Idempotent: an existing workflow is returned unchanged.
func (s *Service) InitializeWorkflow(ctx context.Context, assetID domain.AssetID, ownerID domain.UserID) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	if err := requireUser(ownerID); err != nil {
		return nil, err
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
		wf = models.NewWorkflow(assetID, ownerID, requestcontext.Now(ctx))
		if err := s.audit(ctx, audit.EventComplianceInitialized, audit.SubjectAsset, string(assetID),
			"owner_id", string(ownerID)); err != nil {
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

// AdvanceStage moves the workflow along Pending, DocumentsUploaded,
// AIVerified, Tokenized, or to Rejected from any non-terminal stage.
func (s *Service) AdvanceStage(ctx context.Context, assetID domain.AssetID, to models.Stage, metadata map[string]string) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	target, err := models.ParseStage(string(to))
	if err != nil {
		return nil, err
	}

	var out *models.Workflow
	err = s.withAsset(ctx, assetID, func(ctx context.Context) error {
		wf, err := s.load(ctx, assetID)
		if err != nil {
			return err
		}
		from := wf.Stage
		if err := wf.Advance(target, metadata, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.audit(ctx, audit.EventComplianceStageChanged, audit.SubjectAsset, string(assetID),
			"from", string(from), "to", string(target)); err != nil {
			return err
		}
		if err := s.save(ctx, wf); err != nil {
			return err
		}
		s.metrics.IncStageTransition(string(target))
		out = wf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (s *Service) Workflow(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	wf, err := s.load(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return wf.Clone(), nil
}

// CheckTokenizationEligibility lists every unmet requirement. An asset with no
// compliance workflow is ineligible rather than an error.
func (s *Service) CheckTokenizationEligibility(ctx context.Context, assetID domain.AssetID) (models.TokenizationEligibility, error) {
	if err := requireAsset(assetID); err != nil {
		return models.TokenizationEligibility{}, err
	}
	ctx, span := s.tracer.Start(ctx, "compliance.tokenization_eligibility",
		trace.WithAttributes(attribute.String("asset_id", string(assetID))))
	defer span.End()

	result, err := s.tokenizationEligibility(ctx, assetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tokenization check failed")
		return models.TokenizationEligibility{}, err
	}
	span.SetAttributes(attribute.Bool("eligible", result.Eligible))
	s.metrics.IncEligibility(kindTokenization, result.Eligible)

	if err := s.audit(ctx, audit.EventTokenizationChecked, audit.SubjectAsset, string(assetID),
		"decision", eligibleOrDenied(result.Eligible),
		"reason", strings.Join(result.MissingRequirements, "; ")); err != nil {
		return models.TokenizationEligibility{}, err
	}
	return result, nil
}

func (s *Service) tokenizationEligibility(ctx context.Context, assetID domain.AssetID) (models.TokenizationEligibility, error) {
	wf, err := s.load(ctx, assetID)
	if dErrors.HasCode(err, dErrors.CodeNotInitialized) {
		return models.TokenizationEligibility{MissingRequirements: []string{MissingWorkflow}}, nil
	}
	if err != nil {
		return models.TokenizationEligibility{}, err
	}

	missing := []string{}
	if !wf.DocumentsUploaded {
		missing = append(missing, MissingDocuments)
	}
	if !wf.AIVerified {
		missing = append(missing, MissingAIVerification)
	}
	if s.policy.Compliance.RequireAssetVerification {
		verified, err := s.assets.IsVerified(ctx, assetID)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
			return models.TokenizationEligibility{}, err
		}
		if !verified {
			missing = append(missing, MissingAssetVerification)
		}
	}
	return models.TokenizationEligibility{
		Eligible:            len(missing) == 0,
		MissingRequirements: missing,
		Stage:               wf.Stage,
	}, nil
}

// snapshot is what a trading check reads, taken concurrently.
type snapshot struct {
	kycVerified bool
	kycStatus   string
	daily       domain.Amount
	monthly     domain.Amount
}

// CheckTradingEligibility runs every check and reports every failure: the
// identity must be verified and the amount must fit each configured AML
// window (calendar day and month, UTC) on top of what the user already
// traded in it.
func (s *Service) CheckTradingEligibility(ctx context.Context, userID domain.UserID, assetID domain.AssetID, amount domain.Amount) (models.TradingEligibility, error) {
	if err := requireUser(userID); err != nil {
		return models.TradingEligibility{}, err
	}
	if err := requireAsset(assetID); err != nil {
		return models.TradingEligibility{}, err
	}
	if !amount.IsPositive() {
		return models.TradingEligibility{}, dErrors.New(dErrors.CodeInvalidInput, "transaction amount must be positive")
	}

	ctx, span := s.tracer.Start(ctx, "compliance.trading_eligibility",
		trace.WithAttributes(
			attribute.String("user_id", string(userID)),
			attribute.String("asset_id", string(assetID)),
			attribute.Int64("amount", int64(amount)),
		))
	defer span.End()

	snap, err := s.tradingSnapshot(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "trading snapshot failed")
		return models.TradingEligibility{}, err
	}

	result := models.TradingEligibility{Issues: []string{}, KYCStatus: snap.kycStatus}
	if !snap.kycVerified {
		result.Issues = append(result.Issues, IssueKYCRequired)
	}
	s.checkLimit(&result, WindowDaily, "Daily", s.policy.AML.DailyLimit, snap.daily, amount)
	s.checkLimit(&result, WindowMonthly, "Monthly", s.policy.AML.MonthlyLimit, snap.monthly, amount)
	result.Eligible = len(result.Issues) == 0

	span.SetAttributes(attribute.Bool("eligible", result.Eligible))
	s.metrics.IncEligibility(kindTrading, result.Eligible)

	if err := s.audit(ctx, audit.EventTradingChecked, audit.SubjectUser, string(userID),
		"asset_id", string(assetID),
		"amount", int64(amount),
		"decision", eligibleOrDenied(result.Eligible),
		"reason", strings.Join(result.Issues, "; ")); err != nil {
		return models.TradingEligibility{}, err
	}
	return result, nil
}

func (s *Service) tradingSnapshot(ctx context.Context, userID domain.UserID) (snapshot, error) {
	now := requestcontext.Now(ctx).UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	snap := snapshot{kycStatus: string(workflow.StatusNotStarted)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		verified, err := s.identity.IsVerified(gctx, userID)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
			return err
		}
		snap.kycVerified = verified
		return nil
	})
	g.Go(func() error {
		status, err := s.identity.CurrentStatus(gctx, userID)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
			return err
		}
		if err == nil {
			snap.kycStatus = string(status)
		}
		return nil
	})
	if s.policy.AML.DailyLimit > 0 {
		g.Go(func() (err error) {
			snap.daily, err = s.sumSince(gctx, userID, dayStart)
			return err
		})
	}
	if s.policy.AML.MonthlyLimit > 0 {
		g.Go(func() (err error) {
			snap.monthly, err = s.sumSince(gctx, userID, monthStart)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// checkLimit appends an issue and a violation when amount does not fit the
// window. A zero limit disables the window.
func (s *Service) checkLimit(result *models.TradingEligibility, window, label string, limit, used, amount domain.Amount) {
	if limit <= 0 || used+amount <= limit {
		return
	}
	result.Issues = append(result.Issues, fmt.Sprintf("%s transaction limit exceeded (%s)", label, limit))
	result.Violations = append(result.Violations, &dErrors.LimitExceededError{
		Limit:     window,
		Cap:       int64(limit),
		Attempted: int64(used + amount),
	})
	s.metrics.IncLimitViolation(window)
}

// RecordTransaction appends a committed trade to the ledger. It is counted by
// every eligibility check that starts after it returns. An empty reference is
// replaced by a generated one.
func (s *Service) RecordTransaction(ctx context.Context, userID domain.UserID, amount domain.Amount, reference string) (models.LedgerEntry, error) {
	if err := requireUser(userID); err != nil {
		return models.LedgerEntry{}, err
	}
	if !amount.IsPositive() {
		return models.LedgerEntry{}, dErrors.New(dErrors.CodeInvalidInput, "transaction amount must be positive")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = uuid.NewString()
	}

	entry := models.LedgerEntry{
		UserID:     userID,
		Amount:     amount,
		OccurredAt: requestcontext.Now(ctx).UTC(),
		Reference:  reference,
	}
	err := s.withLock(ctx, "ledger:"+string(userID), func(ctx context.Context) error {
		// The ledger is not part of the ambient transaction, so the trade is
		// counted only once its audit record exists.
		if err := s.audit(ctx, audit.EventTransactionRecorded, audit.SubjectUser, string(userID),
			"amount", int64(amount), "reference", reference); err != nil {
			return err
		}
		start := time.Now()
		err := s.ledger.Append(ctx, entry)
		s.metrics.ObserveLedgerAppend(time.Since(start).Seconds())
		if err != nil {
			s.compensate(ctx, entry, err)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append to transaction ledger")
		}
		return nil
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// TransactionHistory lists the user's ledger entries, oldest first.
func (s *Service) TransactionHistory(ctx context.Context, userID domain.UserID) ([]models.LedgerEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.History(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transaction ledger")
	}
	return entries, nil
}

// AssessRisk scores the asset with the fraud findings cached by its document
// verification, if any.
func (s *Service) AssessRisk(ctx context.Context, assetID domain.AssetID, attrs risk.Attributes) (risk.Result, error) {
	if err := requireAsset(assetID); err != nil {
		return risk.Result{}, err
	}
	ctx, span := s.tracer.Start(ctx, "compliance.assess_risk",
		trace.WithAttributes(attribute.String("asset_id", string(assetID))))
	defer span.End()

	fraud, err := s.assets.FraudFindings(ctx, assetID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotInitialized) {
		span.RecordError(err)
		return risk.Result{}, err
	}
	if fraud == nil {
		s.logger.DebugContext(ctx, "no fraud findings for asset; document risk is unknown",
			"asset_id", string(assetID))
	}
	result := s.assessor.Assess(attrs, fraud)
	span.SetAttributes(
		attribute.Float64("score", result.OverallScore),
		attribute.String("category", string(result.Category)),
	)
	return result, nil
}

func (s *Service) sumSince(ctx context.Context, userID domain.UserID, since time.Time) (domain.Amount, error) {
	sum, err := s.ledger.SumSince(ctx, userID, since)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transaction ledger")
	}
	return sum, nil
}

func (s *Service) load(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	wf, err := s.store.Get(ctx, assetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, &dErrors.NotInitializedError{Subject: "compliance workflow for asset " + string(assetID)}
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load compliance workflow")
	}
	return wf, nil
}

func (s *Service) save(ctx context.Context, wf *models.Workflow) error {
	wf.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, wf); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save compliance workflow")
	}
	return nil
}

func (s *Service) audit(ctx context.Context, event audit.AuditEvent, kind audit.SubjectKind, subject string, attrs ...any) error {
	if err := audit.Log(ctx, s.logger, s.auditor, event, kind, subject, attrs...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// compensate records that an audited trade never reached the ledger. It is
// best effort: the caller already fails the request.
func (s *Service) compensate(ctx context.Context, entry models.LedgerEntry, cause error) {
	err := audit.Log(ctx, s.logger, s.auditor, audit.EventTransactionFailed, audit.SubjectUser, string(entry.UserID),
		"amount", int64(entry.Amount), "reference", entry.Reference, "reason", cause.Error())
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record transaction compensation",
			"user_id", string(entry.UserID), "reference", entry.Reference, "error", err)
	}
}

func (s *Service) withAsset(ctx context.Context, assetID domain.AssetID, fn func(ctx context.Context) error) error {
	return s.withLock(ctx, "compliance:"+string(assetID), fn)
}

func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire compliance lock")
	}
	defer unlock()
	return s.tx.RunInTx(ctx, fn)
}

func requireAsset(assetID domain.AssetID) error {
	if assetID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset id is required")
	}
	return nil
}

func requireUser(userID domain.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	return nil
}

func eligibleOrDenied(ok bool) string {
	if ok {
		return "eligible"
	}
	return "denied"
}
