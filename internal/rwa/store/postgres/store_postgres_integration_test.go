//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/rwa/models"
	rwapg "rwagate/internal/rwa/store/postgres"
	"rwagate/internal/workflow"
	"rwagate/pkg/platform/sentinel"
	"rwagate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *rwapg.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = rwapg.New(s.postgres.DB)
	s.now = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.postgres.Truncate(s.T(), "rwa_history", "rwa_checks", "rwa_documents", "rwa_workflows")
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, "asset-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	wf := models.NewWorkflow("asset-1", "owner-1", s.now)
	s.Require().NoError(wf.TransitionTo(workflow.StatusPending, s.now))

	deed := wf.Document(models.DocTitleDeed)
	deed.MarkUploaded("doc:deed", s.now)
	deed.Fields = providers.Fields{"deed_number": "TD-1", "owner_name": "Asha Rao"}
	deed.Fraud = &providers.FraudFindings{IsAuthentic: true, ConfidenceScore: 92, RiskLevel: "low"}
	deed.Record(true, 90, []string{"missing property_address"}, s.now)

	wf.Document(models.DocTaxReceipt).MarkUploaded("doc:tax", s.now)
	wf.RecordCheck(models.CheckResult{Name: models.CheckOwnership, Passed: true, Score: 95, CheckedAt: s.now})
	wf.AddHistory("submitted", "system", "", s.now)
	s.Require().NoError(s.store.Save(ctx, wf))

	score := 91.5
	wf.OverallScore = &score
	wf.AddHistory("verified", "reviewer-1", "ok", s.now)
	s.Require().NoError(s.store.Save(ctx, wf))

	got, err := s.store.Get(ctx, "asset-1")
	s.Require().NoError(err)
	s.Equal("owner-1", string(got.OwnerID))
	s.Require().NotNil(got.OverallScore)
	s.InDelta(91.5, *got.OverallScore, 0.001)

	gotDeed := got.Documents[models.DocTitleDeed]
	s.Equal(workflow.StepVerified, gotDeed.Status)
	s.Equal("TD-1", gotDeed.Fields.Get("deed_number"))
	s.Require().NotNil(gotDeed.Fraud)
	s.InDelta(92, gotDeed.Fraud.ConfidenceScore, 0.001)
	s.Equal([]string{"missing property_address"}, gotDeed.Issues)

	tax := got.Documents[models.DocTaxReceipt]
	s.Equal(workflow.StepUploaded, tax.Status)
	s.Nil(tax.Fraud)
	s.Nil(tax.Fields)

	s.True(got.Checks[models.CheckOwnership].Passed)
	s.Require().Len(got.History, 2, "history is appended, not duplicated")
}
