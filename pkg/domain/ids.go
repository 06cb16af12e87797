// Package domain holds the identifier and money primitives shared by every
// verification module.
package domain

import (
	"fmt"
	"strings"
	"unicode"

	dErrors "rwagate/pkg/domain-errors"
)

// maxIDLength bounds opaque identifiers such as wallet addresses.
const maxIDLength = 128

// UserID identifies the subject of an identity (KYC) workflow, typically a
// wallet address. It is opaque: only its shape is validated.
type UserID string

// AssetID identifies a tokenizable asset (property).
type AssetID string

// ParseUserID validates an opaque user identifier at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	v, err := parseOpaque("user_id", s)
	if err != nil {
		return "", err
	}
	return UserID(v), nil
}

// ParseAssetID validates an opaque asset identifier at a trust boundary.
func ParseAssetID(s string) (AssetID, error) {
	v, err := parseOpaque("asset_id", s)
	if err != nil {
		return "", err
	}
	return AssetID(v), nil
}

func parseOpaque(field, s string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s exceeds %d characters", field, maxIDLength))
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || !unicode.IsPrint(r)
	}) >= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" contains whitespace or control characters")
	}
	return s, nil
}

func (id UserID) String() string { return string(id) }

// IsNil reports whether the identifier is empty.
func (id UserID) IsNil() bool { return id == "" }

func (id AssetID) String() string { return string(id) }

// IsNil reports whether the identifier is empty.
func (id AssetID) IsNil() bool { return id == "" }

// Amount is a monetary value in whole rupees. Ledger arithmetic never uses
// floating point.
type Amount int64

// IsPositive reports whether the amount can be transacted.
func (a Amount) IsPositive() bool { return a > 0 }

// String renders the amount with Indian digit grouping, e.g. ₹10,00,000.
func (a Amount) String() string {
	neg := a < 0
	if neg {
		a = -a
	}
	digits := fmt.Sprintf("%d", int64(a))
	var grouped string
	if len(digits) <= 3 {
		grouped = digits
	} else {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}
	if neg {
		return "-₹" + grouped
	}
	return "₹" + grouped
}
