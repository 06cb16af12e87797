// Package models holds the asset verification (RWA) aggregate.
package models

import (
	"fmt"
	"slices"
	"time"

	"rwagate/internal/evidence/fraud"
	"rwagate/internal/evidence/providers"
	"rwagate/internal/scoring"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	dErrors "rwagate/pkg/domain-errors"
)

type DocType string

const (
	DocTitleDeed              DocType = "title_deed"
	DocEncumbranceCertificate DocType = "encumbrance_certificate"
	DocTaxReceipt             DocType = "tax_receipt"
	DocSaleDeed               DocType = "sale_deed"
	DocMutationCertificate    DocType = "mutation_certificate"
	DocOccupancyCertificate   DocType = "occupancy_certificate"
)

var docTypes = []DocType{
	DocTitleDeed, DocEncumbranceCertificate, DocTaxReceipt,
	DocSaleDeed, DocMutationCertificate, DocOccupancyCertificate,
}

// DocTypes lists the document types in declaration order.
func DocTypes() []DocType {
	return slices.Clone(docTypes)
}

func ParseDocType(raw string) (DocType, error) {
	if t := DocType(raw); slices.Contains(docTypes, t) {
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown asset document type %q", raw))
}

// CheckName names an asset-level check that contributes to the overall score.
type CheckName string

const (
	CheckOwnership       CheckName = "ownership"
	CheckLegalCompliance CheckName = "legal_compliance"
)

// Document is one legal document of an asset. Fraud holds the findings of the
// last pipeline run, kept for risk assessment.
type Document struct {
	workflow.Step
	Type   DocType
	Fields providers.Fields
	Fraud  *providers.FraudFindings
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Step: *d.Step.Clone(), Type: d.Type}
	if d.Fields != nil {
		out.Fields = make(providers.Fields, len(d.Fields))
		for k, v := range d.Fields {
			out.Fields[k] = v
		}
	}
	if d.Fraud != nil {
		f := *d.Fraud
		f.Indicators = append([]string(nil), d.Fraud.Indicators...)
		out.Fraud = &f
	}
	return out
}

// CheckResult is the outcome of an asset-level check.
type CheckResult struct {
	Name      CheckName
	Passed    bool
	Score     float64
	Issues    []string
	CheckedAt time.Time
}

// Workflow is an asset's verification. OverallScore is a cache of the
// weighted score of Documents and Checks at decision time; Score recomputes it.
type Workflow struct {
	AssetID         domain.AssetID
	OwnerID         domain.UserID
	Generation      int
	Status          workflow.Status
	Documents       map[DocType]*Document
	Checks          map[CheckName]*CheckResult
	OverallScore    *float64
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SubmittedAt     *time.Time
	VerifiedAt      *time.Time
	History         []workflow.HistoryEntry
}

func NewWorkflow(assetID domain.AssetID, ownerID domain.UserID, now time.Time) *Workflow {
	return &Workflow{
		AssetID:    assetID,
		OwnerID:    ownerID,
		Generation: 1,
		Status:     workflow.StatusNotStarted,
		Documents:  make(map[DocType]*Document),
		Checks:     make(map[CheckName]*CheckResult),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (w *Workflow) TransitionTo(to workflow.Status, now time.Time) error {
	next, err := workflow.AssetMachine.Transition(w.Status, to)
	if err != nil {
		return err
	}
	w.Status = next
	w.UpdatedAt = now
	return nil
}

// Document returns the document of type t, creating an empty one if absent.
func (w *Workflow) Document(t DocType) *Document {
	if w.Documents == nil {
		w.Documents = make(map[DocType]*Document)
	}
	d, ok := w.Documents[t]
	if !ok {
		d = &Document{Type: t, Step: workflow.Step{Status: workflow.StepNotUploaded}}
		w.Documents[t] = d
	}
	return d
}

func (w *Workflow) Lookup(t DocType) (*Document, bool) {
	d, ok := w.Documents[t]
	return d, ok
}

func (w *Workflow) RecordCheck(result CheckResult) {
	if w.Checks == nil {
		w.Checks = make(map[CheckName]*CheckResult)
	}
	r := result
	r.Issues = append([]string(nil), result.Issues...)
	w.Checks[result.Name] = &r
}

// Scores collects every scored document and every check that has run.
// Uploaded documents awaiting verification have no score yet and are absent.
func (w *Workflow) Scores() scoring.Scores {
	scores := scoring.Scores{}
	for t, d := range w.Documents {
		if d.Score != nil && (d.Status == workflow.StepVerified || d.Status == workflow.StepRejected) {
			scores[scoring.Factor(t)] = *d.Score
		}
	}
	for name, c := range w.Checks {
		scores[scoring.Factor(name)] = c.Score
	}
	return scores
}

// Score recomputes the overall weighted score. ok is false when nothing has
// been scored.
func (w *Workflow) Score() (float64, bool) {
	return scoring.Aggregate(w.Scores(), scoring.AssetWeights)
}

// Fraud combines the fraud findings cached on the documents. A single
// inauthentic document makes the asset inauthentic; confidence is the lowest
// seen and indicators are concatenated in document order. nil when no
// document has been analysed.
func (w *Workflow) Fraud() *providers.FraudFindings {
	var out *providers.FraudFindings
	for _, t := range docTypes {
		d, ok := w.Documents[t]
		if !ok || d.Fraud == nil {
			continue
		}
		if out == nil {
			out = &providers.FraudFindings{IsAuthentic: true, ConfidenceScore: d.Fraud.ConfidenceScore}
		}
		out.IsAuthentic = out.IsAuthentic && d.Fraud.IsAuthentic
		out.ConfidenceScore = min(out.ConfidenceScore, d.Fraud.ConfidenceScore)
		out.Indicators = append(out.Indicators, d.Fraud.Indicators...)
	}
	if out != nil {
		out.RiskLevel = fraud.RiskLevel(len(out.Indicators))
	}
	return out
}

func (w *Workflow) AddHistory(action, actor, notes string, at time.Time) {
	w.History = append(w.History, workflow.HistoryEntry{Action: action, Actor: actor, Notes: notes, At: at})
}

// StartNewCycle discards documents and checks after a rejection.
func (w *Workflow) StartNewCycle(now time.Time) error {
	if !w.Status.RequiresNewCycle() {
		return &dErrors.InvalidTransitionError{From: string(w.Status), To: string(workflow.StatusNotStarted)}
	}
	w.Generation++
	w.Status = workflow.StatusNotStarted
	w.Documents = make(map[DocType]*Document)
	w.Checks = make(map[CheckName]*CheckResult)
	w.OverallScore = nil
	w.RejectionReason = ""
	w.SubmittedAt = nil
	w.VerifiedAt = nil
	w.UpdatedAt = now
	return nil
}

func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Documents = make(map[DocType]*Document, len(w.Documents))
	for t, d := range w.Documents {
		out.Documents[t] = d.Clone()
	}
	out.Checks = make(map[CheckName]*CheckResult, len(w.Checks))
	for n, c := range w.Checks {
		cc := *c
		cc.Issues = append([]string(nil), c.Issues...)
		out.Checks[n] = &cc
	}
	if w.OverallScore != nil {
		v := *w.OverallScore
		out.OverallScore = &v
	}
	out.SubmittedAt = workflow.CloneTime(w.SubmittedAt)
	out.VerifiedAt = workflow.CloneTime(w.VerifiedAt)
	out.History = append([]workflow.HistoryEntry(nil), w.History...)
	return &out
}

// DocumentSummary is the read-model view of one document.
type DocumentSummary struct {
	Type       DocType
	Status     workflow.StepStatus
	Score      *float64
	Issues     []string
	RiskLevel  string
	UploadedAt *time.Time
	VerifiedAt *time.Time
}

// StatusView is the read model returned by Status.
type StatusView struct {
	AssetID         domain.AssetID
	OwnerID         domain.UserID
	Generation      int
	Status          workflow.Status
	OverallScore    *float64
	RejectionReason string
	Documents       []DocumentSummary
	Checks          []CheckResult
	SubmittedAt     *time.Time
	VerifiedAt      *time.Time
	History         []workflow.HistoryEntry
}

// View builds the read model with documents in declaration order. The
// overall score is recomputed from the current documents.
func (w *Workflow) View() StatusView {
	view := StatusView{
		AssetID:         w.AssetID,
		OwnerID:         w.OwnerID,
		Generation:      w.Generation,
		Status:          w.Status,
		RejectionReason: w.RejectionReason,
		SubmittedAt:     workflow.CloneTime(w.SubmittedAt),
		VerifiedAt:      workflow.CloneTime(w.VerifiedAt),
		History:         append([]workflow.HistoryEntry(nil), w.History...),
	}
	if score, ok := w.Score(); ok {
		view.OverallScore = &score
	}
	for _, t := range docTypes {
		d, ok := w.Documents[t]
		if !ok {
			continue
		}
		c := d.Clone()
		summary := DocumentSummary{
			Type: t, Status: c.Status, Score: c.Score, Issues: c.Issues,
			UploadedAt: c.UploadedAt, VerifiedAt: c.VerifiedAt,
		}
		if c.Fraud != nil {
			summary.RiskLevel = c.Fraud.RiskLevel
		}
		view.Documents = append(view.Documents, summary)
	}
	for _, name := range []CheckName{CheckOwnership, CheckLegalCompliance} {
		if c, ok := w.Checks[name]; ok {
			cc := *c
			cc.Issues = append([]string(nil), c.Issues...)
			view.Checks = append(view.Checks, cc)
		}
	}
	return view
}
