// Package reviewauth authenticates manual-review decisions. A reviewer
// presents an HS256 token carrying role=reviewer; the verified subject
// becomes the actor recorded against the decision.
package reviewauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "rwagate/pkg/domain-errors"
)

const RoleReviewer = "reviewer"

// Claims carried by reviewer tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates reviewer tokens.
type Service struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func New(signingKey, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// IssueToken mints a reviewer token. Used by operators' tooling and tests.
func (s *Service) IssueToken(reviewerID, role string, expiresIn time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// AuthorizeReviewer validates the token and returns the reviewer's ID.
func (s *Service) AuthorizeReviewer(tokenString string) (string, error) {
	if tokenString == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "reviewer token is required")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "reviewer token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid reviewer token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid reviewer token claims")
	}
	if claims.Role != RoleReviewer {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token does not carry the reviewer role")
	}
	if claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "reviewer token has no subject")
	}
	return claims.Subject, nil
}
