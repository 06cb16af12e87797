// Package rules scores asset documents from their extracted fields. Every
// rule set starts from BaseScore and subtracts a fixed penalty per missing or
// failing condition, never going below zero. Fields are always treated as
// optionally absent.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/rwa/models"
)

const BaseScore = 95.0

const (
	IssueEncumbered = "Property has existing encumbrances"
	IssueTaxUnpaid  = "Property tax for the current year not paid"
)

// Result of evaluating one document.
type Result struct {
	Score  float64
	Issues []string
	// Blocking conditions (recorded liens, unpaid tax) reject the document
	// whatever its score.
	Blocking bool
}

// Verified reports whether the result clears threshold with nothing blocking.
func (r Result) Verified(threshold float64) bool {
	return !r.Blocking && r.Score >= threshold
}

type evaluation struct {
	Result
}

func (e *evaluation) penalize(points float64, issue string) {
	e.Score -= points
	if e.Score < 0 {
		e.Score = 0
	}
	e.Issues = append(e.Issues, issue)
}

func (e *evaluation) require(fields providers.Fields, name string, points float64) {
	if !fields.Has(name) {
		e.penalize(points, "missing "+name)
	}
}

// Evaluate runs the rule set of docType against fields. now decides the
// current (fiscal) year for tax receipts.
func Evaluate(docType models.DocType, fields providers.Fields, now time.Time) Result {
	e := &evaluation{Result{Score: BaseScore}}
	switch docType {
	case models.DocTitleDeed:
		e.require(fields, "deed_number", 10)
		e.require(fields, "owner_name", 10)
		e.require(fields, "property_address", 5)
	case models.DocEncumbranceCertificate:
		if liensRecorded(fields) {
			e.penalize(30, IssueEncumbered)
			e.Blocking = true
		}
		e.require(fields, "certificate_number", 5)
	case models.DocTaxReceipt:
		if !paidForCurrentYear(fields.Get("payment_year"), now) {
			e.penalize(15, IssueTaxUnpaid)
			e.Blocking = true
		}
		e.require(fields, "receipt_number", 5)
	default:
		e.require(fields, "document_number", 10)
	}
	return e.Result
}

func liensRecorded(fields providers.Fields) bool {
	for _, name := range []string{"liens", "encumbrances"} {
		v := strings.ToLower(fields.Get(name))
		if v != "" && v != "none" && v != "nil" && v != "no" {
			return true
		}
	}
	return false
}

// paidForCurrentYear accepts the calendar year ("2025") or the Indian fiscal
// year running April to March ("2025-26", "2025-2026", "FY2025-26").
func paidForCurrentYear(raw string, now time.Time) bool {
	v := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	v = strings.TrimPrefix(v, "FY")
	if v == "" {
		return false
	}
	if v == strconv.Itoa(now.Year()) {
		return true
	}
	start := now.Year()
	if now.Month() < time.April {
		start--
	}
	short := fmt.Sprintf("%d-%02d", start, (start+1)%100)
	long := fmt.Sprintf("%d-%d", start, start+1)
	return v == short || v == long
}
