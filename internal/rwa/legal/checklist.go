// Package legal evaluates the fixed legal-compliance checklist (zoning,
// building code, dispute-free, tokenization-eligible) with an embedded Rego
// policy over facts from the legal registry.
package legal

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"rwagate/internal/evidence/providers"
)

const query = "data.rwagate.legal.result"

const (
	CompliantScore    = 100.0
	NonCompliantScore = 60.0
)

//go:embed checklist.rego
var checklistPolicy string

// Result of the checklist. Score is CompliantScore or NonCompliantScore,
// never anything in between.
type Result struct {
	Compliant bool
	Score     float64
	Checks    map[string]bool
	Issues    []string
}

type Checklist struct {
	query rego.PreparedEvalQuery
}

func NewChecklist(ctx context.Context) (*Checklist, error) {
	prepared, err := rego.New(
		rego.Query(query),
		rego.Module("checklist.rego", checklistPolicy),
		rego.StrictBuiltinErrors(true),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare legal checklist: %w", err)
	}
	return &Checklist{query: prepared}, nil
}

type input struct {
	ZoningApproved        bool `json:"zoning_approved"`
	BuildingCodeCompliant bool `json:"building_code_compliant"`
	DisputeFree           bool `json:"dispute_free"`
	TokenizationEligible  bool `json:"tokenization_eligible"`
}

type output struct {
	Compliant bool            `json:"compliant"`
	Checks    map[string]bool `json:"checks"`
	Issues    []string        `json:"issues"`
}

func (c *Checklist) Evaluate(ctx context.Context, facts providers.LegalFacts) (Result, error) {
	if c == nil {
		return Result{}, errors.New("legal checklist is nil")
	}
	results, err := c.query.Eval(ctx, rego.EvalInput(input{
		ZoningApproved:        facts.ZoningApproved,
		BuildingCodeCompliant: facts.BuildingCodeCompliant,
		DisputeFree:           facts.DisputeFree,
		TokenizationEligible:  facts.TokenizationEligible,
	}))
	if err != nil {
		return Result{}, fmt.Errorf("evaluate legal checklist: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{}, errors.New("empty legal checklist result")
	}

	payload, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return Result{}, fmt.Errorf("encode legal checklist result: %w", err)
	}
	var out output
	if err := json.Unmarshal(payload, &out); err != nil {
		return Result{}, fmt.Errorf("decode legal checklist result: %w", err)
	}

	res := Result{Compliant: out.Compliant, Checks: out.Checks, Issues: out.Issues, Score: NonCompliantScore}
	if out.Compliant {
		res.Score = CompliantScore
	}
	return res, nil
}
