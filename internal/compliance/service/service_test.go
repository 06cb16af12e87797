package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rwagate/internal/compliance/ledger"
	"rwagate/internal/compliance/models"
	"rwagate/internal/compliance/ports/mocks"
	compliancestore "rwagate/internal/compliance/store/memory"
	"rwagate/internal/evidence/providers"
	"rwagate/internal/platform/config"
	"rwagate/internal/platform/logger"
	"rwagate/internal/risk"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
	auditpublisher "rwagate/pkg/platform/audit/publishers/compliance"
	auditmemory "rwagate/pkg/platform/audit/store/memory"
	"rwagate/pkg/testutil"
)

// =============================================================================
// Compliance Gate Test Suite
// =============================================================================
// Justification for unit tests: the gate composes collaborators it does not
// own (identity and asset workflows, the ledger) and must report every unmet
// condition. Controlled collaborator answers and a pinned request time make
// the window arithmetic and the issue lists exact.

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	identity *mocks.MockIdentityGate
	assets   *mocks.MockAssetGate
	store    *compliancestore.InMemory
	ledger   *ledger.Memory
	audits   *auditmemory.InMemoryStore
	policy   config.Policy
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSubTest() {
	s.ctrl = gomock.NewController(s.T())
	s.identity = mocks.NewMockIdentityGate(s.ctrl)
	s.assets = mocks.NewMockAssetGate(s.ctrl)
	s.store = compliancestore.New()
	s.ledger = ledger.NewMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.policy = config.DefaultPolicy()
	s.ctx = testutil.ContextAs("user-1")
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithPolicy(s.policy),
		WithLogger(logger.Discard()),
		WithAuditPublisher(auditpublisher.New(s.audits)),
	}
	svc, err := New(s.store, s.ledger, s.identity, s.assets, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) identityIs(status workflow.Status) {
	s.identity.EXPECT().IsVerified(gomock.Any(), domain.UserID("user-1")).
		Return(status == workflow.StatusVerified, nil)
	s.identity.EXPECT().CurrentStatus(gomock.Any(), domain.UserID("user-1")).Return(status, nil)
}

func (s *ServiceSuite) traded(amount domain.Amount, at time.Time) {
	s.Require().NoError(s.ledger.Append(context.Background(), models.LedgerEntry{
		UserID: "user-1", Amount: amount, OccurredAt: at, Reference: "seed",
	}))
}

func (s *ServiceSuite) auditActions(subject string) []string {
	events, err := s.audits.ListBySubject(context.Background(), subject)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

// =============================================================================
// Constructor and Workflow
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("every collaborator is required", func() {
		_, err := New(nil, s.ledger, s.identity, s.assets)
		s.ErrorContains(err, "compliance store is required")

		_, err = New(s.store, nil, s.identity, s.assets)
		s.ErrorContains(err, "transaction ledger is required")

		_, err = New(s.store, s.ledger, nil, s.assets)
		s.ErrorContains(err, "identity gate is required")

		_, err = New(s.store, s.ledger, s.identity, nil)
		s.ErrorContains(err, "asset gate is required")
	})
}

func (s *ServiceSuite) TestInitializeWorkflow() {
	s.Run("creates a pending workflow and audits it", func() {
		svc := s.newService()

		wf, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().NoError(err)
		s.Equal(models.StagePending, wf.Stage)
		s.False(wf.DocumentsUploaded)
		s.Equal(testutil.FixedTime, wf.CreatedAt)
		s.Equal([]string{"compliance_initialized"}, s.auditActions("asset-1"))
	})

	s.Run("is idempotent", func() {
		svc := s.newService()
		_, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().NoError(err)
		_, err = svc.AdvanceStage(s.ctx, "asset-1", models.StageDocumentsUploaded, nil)
		s.Require().NoError(err)

		wf, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-2")
		s.Require().NoError(err)
		s.Equal(domain.UserID("owner-1"), wf.OwnerID)
		s.Equal(models.StageDocumentsUploaded, wf.Stage)
	})

	s.Run("owner is required", func() {
		_, err := s.newService().InitializeWorkflow(s.ctx, "asset-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("nothing is saved when the audit record cannot be written", func() {
		auditor := mocks.NewMockAuditPublisher(s.ctrl)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))
		svc := s.newService(WithAuditPublisher(auditor))

		_, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().Error(err)

		_, err = svc.Workflow(s.ctx, "asset-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))
	})
}

func (s *ServiceSuite) TestAdvanceStage() {
	s.Run("moves forward, merges metadata and audits the change", func() {
		svc := s.newService()
		_, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().NoError(err)

		_, err = svc.AdvanceStage(s.ctx, "asset-1", models.StageDocumentsUploaded, map[string]string{"count": "3"})
		s.Require().NoError(err)
		wf, err := svc.AdvanceStage(s.ctx, "asset-1", models.StageAIVerified, map[string]string{"model": "v2"})
		s.Require().NoError(err)

		s.Equal(models.StageAIVerified, wf.Stage)
		s.True(wf.DocumentsUploaded)
		s.True(wf.AIVerified)
		s.Equal(map[string]string{"count": "3", "model": "v2"}, wf.Metadata)
		s.Equal([]string{"compliance_initialized", "compliance_stage_changed", "compliance_stage_changed"},
			s.auditActions("asset-1"))
	})

	s.Run("skipping a stage fails and changes nothing", func() {
		svc := s.newService()
		_, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().NoError(err)

		_, err = svc.AdvanceStage(s.ctx, "asset-1", models.StageTokenized, nil)
		var invalid *dErrors.InvalidTransitionError
		s.Require().ErrorAs(err, &invalid)

		wf, err := svc.Workflow(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.Equal(models.StagePending, wf.Stage)
	})

	s.Run("terminal stages accept nothing", func() {
		svc := s.newService()
		_, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().NoError(err)
		_, err = svc.AdvanceStage(s.ctx, "asset-1", models.StageRejected, map[string]string{"reason": "dispute"})
		s.Require().NoError(err)

		_, err = svc.AdvanceStage(s.ctx, "asset-1", models.StageRejected, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("unknown asset is not initialized", func() {
		_, err := s.newService().AdvanceStage(s.ctx, "asset-9", models.StageDocumentsUploaded, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))
	})

	s.Run("unknown stage is invalid input", func() {
		_, err := s.newService().AdvanceStage(s.ctx, "asset-1", models.Stage("listed"), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Tokenization Eligibility
// =============================================================================

func (s *ServiceSuite) TestCheckTokenizationEligibility() {
	advanceTo := func(svc *Service, stages ...models.Stage) {
		_, err := svc.InitializeWorkflow(s.ctx, "asset-1", "owner-1")
		s.Require().NoError(err)
		for _, stage := range stages {
			_, err := svc.AdvanceStage(s.ctx, "asset-1", stage, nil)
			s.Require().NoError(err)
		}
	}

	s.Run("missing workflow is reported, not failed", func() {
		result, err := s.newService().CheckTokenizationEligibility(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal([]string{MissingWorkflow}, result.MissingRequirements)
	})

	s.Run("pending asset lists every unmet requirement", func() {
		svc := s.newService()
		advanceTo(svc)
		s.assets.EXPECT().IsVerified(gomock.Any(), domain.AssetID("asset-1")).Return(false, nil)

		result, err := svc.CheckTokenizationEligibility(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal([]string{MissingDocuments, MissingAIVerification, MissingAssetVerification}, result.MissingRequirements)
		s.Equal(models.StagePending, result.Stage)
	})

	s.Run("both stages and a verified asset are eligible", func() {
		svc := s.newService()
		advanceTo(svc, models.StageDocumentsUploaded, models.StageAIVerified)
		s.assets.EXPECT().IsVerified(gomock.Any(), domain.AssetID("asset-1")).Return(true, nil)

		result, err := svc.CheckTokenizationEligibility(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.True(result.Eligible)
		s.Empty(result.MissingRequirements)
		s.Contains(s.auditActions("asset-1"), "compliance_tokenization_checked")
	})

	s.Run("coarse stages alone pass when asset verification is not required", func() {
		s.policy.Compliance.RequireAssetVerification = false
		svc := s.newService()
		advanceTo(svc, models.StageDocumentsUploaded, models.StageAIVerified)

		result, err := svc.CheckTokenizationEligibility(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.True(result.Eligible)
	})

	s.Run("an asset that never started verification is unverified", func() {
		svc := s.newService()
		advanceTo(svc, models.StageDocumentsUploaded, models.StageAIVerified)
		s.assets.EXPECT().IsVerified(gomock.Any(), domain.AssetID("asset-1")).
			Return(false, &dErrors.NotInitializedError{Subject: "asset asset-1"})

		result, err := svc.CheckTokenizationEligibility(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.Equal([]string{MissingAssetVerification}, result.MissingRequirements)
	})

	s.Run("asset gate failure is returned", func() {
		svc := s.newService()
		advanceTo(svc, models.StageDocumentsUploaded)
		s.assets.EXPECT().IsVerified(gomock.Any(), domain.AssetID("asset-1")).
			Return(false, dErrors.New(dErrors.CodeInternal, "store down"))

		_, err := svc.CheckTokenizationEligibility(s.ctx, "asset-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// Trading Eligibility
// =============================================================================

func (s *ServiceSuite) TestCheckTradingEligibility() {
	s.Run("verified user with no history within the daily limit is eligible", func() {
		s.identityIs(workflow.StatusVerified)

		result, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 10_00_000)
		s.Require().NoError(err)
		s.True(result.Eligible)
		s.Empty(result.Issues)
		s.NotNil(result.Issues)
		s.Equal("verified", result.KYCStatus)
		s.Empty(result.Violations)
	})

	s.Run("second trade that crosses the daily limit is denied", func() {
		svc := s.newService()
		s.identity.EXPECT().IsVerified(gomock.Any(), domain.UserID("user-1")).Return(true, nil).Times(2)
		s.identity.EXPECT().CurrentStatus(gomock.Any(), domain.UserID("user-1")).Return(workflow.StatusVerified, nil).Times(2)

		first, err := svc.CheckTradingEligibility(s.ctx, "user-1", "asset-1", 6_00_000)
		s.Require().NoError(err)
		s.Require().True(first.Eligible)
		_, err = svc.RecordTransaction(s.ctx, "user-1", 6_00_000, "trade-1")
		s.Require().NoError(err)

		second, err := svc.CheckTradingEligibility(s.ctx, "user-1", "asset-1", 5_00_000)
		s.Require().NoError(err)
		s.False(second.Eligible)
		s.Equal([]string{"Daily transaction limit exceeded (₹10,00,000)"}, second.Issues)
		s.Require().Len(second.Violations, 1)
		s.Equal(WindowDaily, second.Violations[0].Limit)
		s.Equal(int64(10_00_000), second.Violations[0].Cap)
		s.Equal(int64(11_00_000), second.Violations[0].Attempted)
	})

	s.Run("all failures are reported together", func() {
		s.identityIs(workflow.StatusPending)
		s.traded(45_00_000, testutil.FixedTime.Add(-72*time.Hour))

		result, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 12_00_000)
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal([]string{
			IssueKYCRequired,
			"Daily transaction limit exceeded (₹10,00,000)",
			"Monthly transaction limit exceeded (₹50,00,000)",
		}, result.Issues)
		s.Equal("pending", result.KYCStatus)
		s.Require().Len(result.Violations, 2)
		s.Equal(WindowMonthly, result.Violations[1].Limit)
		s.Equal(int64(57_00_000), result.Violations[1].Attempted)
	})

	s.Run("trades before today count only toward the month", func() {
		s.identityIs(workflow.StatusVerified)
		dayStart := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
		s.traded(9_00_000, dayStart.Add(-time.Nanosecond))
		s.traded(40_00_000, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
		s.traded(30_00_000, time.Date(2025, time.February, 28, 23, 59, 0, 0, time.UTC))

		result, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1_00_000)
		s.Require().NoError(err)
		s.True(result.Eligible, "49L this month plus 1L is exactly the monthly limit")

		s.identityIs(workflow.StatusVerified)
		result, err = s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1_00_001)
		s.Require().NoError(err)
		s.Equal([]string{"Monthly transaction limit exceeded (₹50,00,000)"}, result.Issues)
	})

	s.Run("a zero limit disables that window", func() {
		s.policy.AML.DailyLimit = 0
		s.policy.AML.MonthlyLimit = 0
		s.identityIs(workflow.StatusVerified)
		s.traded(5_00_00_000, testutil.FixedTime)

		result, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1_00_00_000)
		s.Require().NoError(err)
		s.True(result.Eligible)
	})

	s.Run("user without an identity workflow needs KYC", func() {
		notStarted := &dErrors.NotInitializedError{Subject: "user user-1"}
		s.identity.EXPECT().IsVerified(gomock.Any(), domain.UserID("user-1")).Return(false, notStarted)
		s.identity.EXPECT().CurrentStatus(gomock.Any(), domain.UserID("user-1")).Return(workflow.StatusNotStarted, notStarted)

		result, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1_000)
		s.Require().NoError(err)
		s.Equal([]string{IssueKYCRequired}, result.Issues)
		s.Equal("not_started", result.KYCStatus)
		s.Contains(s.auditActions("user-1"), "compliance_trading_checked")
	})

	s.Run("identity failure is returned", func() {
		s.identity.EXPECT().IsVerified(gomock.Any(), domain.UserID("user-1")).
			Return(false, dErrors.New(dErrors.CodeInternal, "failed to load identity workflow")).AnyTimes()
		s.identity.EXPECT().CurrentStatus(gomock.Any(), domain.UserID("user-1")).
			Return(workflow.StatusPending, nil).AnyTimes()

		_, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1_000)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("amount must be positive", func() {
		_, err := s.newService().CheckTradingEligibility(s.ctx, "user-1", "asset-1", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Ledger
// =============================================================================

func (s *ServiceSuite) TestRecordTransaction() {
	s.Run("appends with a generated reference and audits it", func() {
		svc := s.newService()

		entry, err := svc.RecordTransaction(s.ctx, "user-1", 2_50_000, "  ")
		s.Require().NoError(err)
		s.NotEmpty(entry.Reference)
		s.Equal(testutil.FixedTime, entry.OccurredAt)

		history, err := svc.TransactionHistory(s.ctx, "user-1")
		s.Require().NoError(err)
		s.Equal([]models.LedgerEntry{entry}, history)
		s.Equal([]string{"transaction_recorded"}, s.auditActions("user-1"))
	})

	s.Run("recorded trades are visible to the next check", func() {
		svc := s.newService()
		_, err := svc.RecordTransaction(s.ctx, "user-1", 10_00_000, "trade-1")
		s.Require().NoError(err)
		s.identityIs(workflow.StatusVerified)

		result, err := svc.CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1)
		s.Require().NoError(err)
		s.False(result.Eligible)
	})

	s.Run("non-positive amounts are rejected", func() {
		_, err := s.newService().RecordTransaction(s.ctx, "user-1", -5, "trade-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("trade is not counted when its audit record cannot be written", func() {
		auditor := mocks.NewMockAuditPublisher(s.ctrl)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

		_, err := s.newService(WithAuditPublisher(auditor)).RecordTransaction(s.ctx, "user-1", 9_00_000, "trade-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		sum, err := s.ledger.SumSince(context.Background(), "user-1", testutil.FixedTime.Add(-time.Hour))
		s.Require().NoError(err)
		s.Zero(sum)
		history, err := s.ledger.History(context.Background(), "user-1")
		s.Require().NoError(err)
		s.Empty(history)
	})

	s.Run("failed append is followed by a compensating audit record", func() {
		failing := mocks.NewMockLedger(s.ctrl)
		failing.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("ledger unavailable"))
		svc, err := New(s.store, failing, s.identity, s.assets,
			WithPolicy(s.policy),
			WithLogger(logger.Discard()),
			WithAuditPublisher(auditpublisher.New(s.audits)))
		s.Require().NoError(err)

		_, err = svc.RecordTransaction(s.ctx, "user-1", 2_00_000, "trade-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal([]string{"transaction_recorded", "transaction_record_failed"}, s.auditActions("user-1"))
	})
}

func (s *ServiceSuite) TestConcurrentTrading() {
	s.Run("each trader sees its own recorded trade on the next check", func() {
		const traders = 10
		svc := s.newService()
		s.identity.EXPECT().IsVerified(gomock.Any(), domain.UserID("user-1")).Return(true, nil).AnyTimes()
		s.identity.EXPECT().CurrentStatus(gomock.Any(), domain.UserID("user-1")).Return(workflow.StatusVerified, nil).AnyTimes()

		var wg sync.WaitGroup
		denied := make([]bool, traders)
		errs := make([]error, traders)
		for i := range traders {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.RecordTransaction(s.ctx, "user-1", 1_00_000, fmt.Sprintf("trade-%d", i)); err != nil {
					errs[i] = err
					return
				}
				// 9,00,001 fits the daily limit only if this trader's own trade is missing.
				result, err := svc.CheckTradingEligibility(s.ctx, "user-1", "asset-1", 9_00_001)
				errs[i] = err
				denied[i] = !result.Eligible
			}()
		}
		wg.Wait()

		for i := range traders {
			s.Require().NoError(errs[i])
			s.True(denied[i], "trader %d", i)
		}
		sum, err := s.ledger.SumSince(context.Background(), "user-1", testutil.FixedTime.Add(-time.Hour))
		s.Require().NoError(err)
		s.Equal(domain.Amount(traders*1_00_000), sum)

		final, err := svc.CheckTradingEligibility(s.ctx, "user-1", "asset-1", 1)
		s.Require().NoError(err)
		s.False(final.Eligible)
	})

	s.Run("checks racing with records never fail", func() {
		svc := s.newService()
		s.identity.EXPECT().IsVerified(gomock.Any(), domain.UserID("user-1")).Return(true, nil).AnyTimes()
		s.identity.EXPECT().CurrentStatus(gomock.Any(), domain.UserID("user-1")).Return(workflow.StatusVerified, nil).AnyTimes()

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := svc.RecordTransaction(s.ctx, "user-1", 10_000, fmt.Sprintf("trade-%d", i))
				errs <- err
			}()
			go func() {
				defer wg.Done()
				_, err := svc.CheckTradingEligibility(s.ctx, "user-1", "asset-1", 10_000)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			s.Require().NoError(err)
		}

		history, err := svc.TransactionHistory(s.ctx, "user-1")
		s.Require().NoError(err)
		s.Len(history, 20)
	})
}

// =============================================================================
// Risk
// =============================================================================

func (s *ServiceSuite) TestAssessRisk() {
	attrs := risk.Attributes{
		City: "Pune", AssetType: "residential", ClearTitle: true, DocumentCount: 3,
		TotalValue: 2_00_00_000, TotalTokens: 1000,
	}

	s.Run("uses the asset's cached fraud findings", func() {
		s.assets.EXPECT().FraudFindings(gomock.Any(), domain.AssetID("asset-1")).
			Return(&providers.FraudFindings{IsAuthentic: true, ConfidenceScore: 80}, nil)

		result, err := s.newService().AssessRisk(s.ctx, "asset-1", attrs)
		s.Require().NoError(err)
		s.Equal(20.0, result.Factors[risk.FactorDocument])
	})

	s.Run("unverified asset has unknown document risk", func() {
		s.assets.EXPECT().FraudFindings(gomock.Any(), domain.AssetID("asset-1")).
			Return(nil, &dErrors.NotInitializedError{Subject: "asset asset-1"})

		result, err := s.newService().AssessRisk(s.ctx, "asset-1", attrs)
		s.Require().NoError(err)
		s.Equal(risk.UnknownDocumentRisk, result.Factors[risk.FactorDocument])
	})

	s.Run("asset gate failure is returned", func() {
		s.assets.EXPECT().FraudFindings(gomock.Any(), domain.AssetID("asset-1")).
			Return(nil, errors.New("boom"))

		_, err := s.newService().AssessRisk(s.ctx, "asset-1", attrs)
		s.Error(err)
	})
}
