package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/kyc/models"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/audit"
)

// Store persists identity workflows. Get returns sentinel.ErrNotFound for an
// unknown user.
type Store interface {
	Get(ctx context.Context, userID domain.UserID) (*models.Workflow, error)
	Save(ctx context.Context, wf *models.Workflow) error
	// ListVerifiedBefore returns users whose Verified workflow was verified
	// before cutoff, for the expiry sweep.
	ListVerifiedBefore(ctx context.Context, cutoff time.Time) ([]domain.UserID, error)
}

// ClaimVerifier checks identity claims against an external authority.
type ClaimVerifier interface {
	VerifyClaim(ctx context.Context, req providers.ClaimRequest) (providers.ClaimResult, error)
}

// Locker provides the per-user mutual exclusion scope.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ReviewAuthorizer validates a reviewer credential for manual decisions and
// returns the reviewer's ID.
type ReviewAuthorizer interface {
	AuthorizeReviewer(token string) (string, error)
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
