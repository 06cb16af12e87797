package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/workflow"
	dErrors "rwagate/pkg/domain-errors"
)

var now = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

func TestScore(t *testing.T) {
	t.Run("renormalizes over the scored factors only", func(t *testing.T) {
		wf := NewWorkflow("a1", "o1", now)
		wf.Document(DocTitleDeed).Record(true, 95, nil, now)
		wf.Document(DocTaxReceipt).MarkUploaded("doc:tax", now)

		score, ok := wf.Score()
		require.True(t, ok)
		assert.Equal(t, 95.0, score)
	})

	t.Run("checks count alongside documents", func(t *testing.T) {
		wf := NewWorkflow("a1", "o1", now)
		wf.Document(DocTitleDeed).Record(true, 95, nil, now)
		wf.RecordCheck(CheckResult{Name: CheckLegalCompliance, Score: 60})

		score, ok := wf.Score()
		require.True(t, ok)
		// (95*0.35 + 60*0.10) / 0.45
		assert.Equal(t, 87.22, score)
	})

	t.Run("nothing scored is not ok", func(t *testing.T) {
		_, ok := NewWorkflow("a1", "o1", now).Score()
		assert.False(t, ok)
	})
}

func TestFraud(t *testing.T) {
	wf := NewWorkflow("a1", "o1", now)
	assert.Nil(t, wf.Fraud())

	wf.Document(DocTitleDeed).Fraud = &providers.FraudFindings{IsAuthentic: true, ConfidenceScore: 90, Indicators: []string{"a"}}
	wf.Document(DocTaxReceipt).Fraud = &providers.FraudFindings{IsAuthentic: false, ConfidenceScore: 40, Indicators: []string{"b", "c"}}

	combined := wf.Fraud()
	require.NotNil(t, combined)
	assert.False(t, combined.IsAuthentic)
	assert.Equal(t, 40.0, combined.ConfidenceScore)
	assert.Equal(t, []string{"a", "b", "c"}, combined.Indicators)
	assert.Equal(t, "high", combined.RiskLevel)
}

func TestStartNewCycle(t *testing.T) {
	wf := NewWorkflow("a1", "o1", now)
	err := wf.StartNewCycle(now)
	var transition *dErrors.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	wf.Status = workflow.StatusRejected
	wf.RejectionReason = "verification score too low: 40/100"
	wf.Document(DocTitleDeed).Record(false, 40, nil, now)
	wf.AddHistory("rejected", "system", "low", now)
	require.NoError(t, wf.StartNewCycle(now))

	assert.Equal(t, 2, wf.Generation)
	assert.Empty(t, wf.Documents)
	assert.Empty(t, wf.RejectionReason)
	assert.Len(t, wf.History, 1, "history survives a new cycle")
}

func TestCloneIsDeep(t *testing.T) {
	wf := NewWorkflow("a1", "o1", now)
	doc := wf.Document(DocTitleDeed)
	doc.Fields = providers.Fields{"deed_number": "TD-1"}
	doc.Fraud = &providers.FraudFindings{Indicators: []string{"x"}}
	wf.RecordCheck(CheckResult{Name: CheckOwnership, Issues: []string{"title deed missing"}})

	clone := wf.Clone()
	clone.Documents[DocTitleDeed].Fields["deed_number"] = "changed"
	clone.Documents[DocTitleDeed].Fraud.Indicators[0] = "changed"
	clone.Checks[CheckOwnership].Issues[0] = "changed"

	assert.Equal(t, "TD-1", doc.Fields["deed_number"])
	assert.Equal(t, "x", doc.Fraud.Indicators[0])
	assert.Equal(t, "title deed missing", wf.Checks[CheckOwnership].Issues[0])
}

func TestView(t *testing.T) {
	wf := NewWorkflow("a1", "o1", now)
	wf.Document(DocTaxReceipt).MarkUploaded("doc:tax", now)
	wf.Document(DocTitleDeed).Record(true, 95, nil, now)
	wf.Document(DocTitleDeed).Fraud = &providers.FraudFindings{RiskLevel: "low"}

	view := wf.View()
	require.Len(t, view.Documents, 2)
	assert.Equal(t, DocTitleDeed, view.Documents[0].Type, "declaration order")
	assert.Equal(t, "low", view.Documents[0].RiskLevel)
	require.NotNil(t, view.OverallScore)
	assert.Equal(t, 95.0, *view.OverallScore)
}
