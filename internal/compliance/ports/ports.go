package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"rwagate/internal/compliance/models"
	"rwagate/internal/evidence/providers"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/audit"
)

// Store persists compliance workflows. Get returns sentinel.ErrNotFound for an
// unknown asset.
type Store interface {
	Get(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error)
	Save(ctx context.Context, wf *models.Workflow) error
}

// IdentityGate answers identity questions from the KYC workflows. Both
// methods fail with NotInitializedError for an unknown user.
type IdentityGate interface {
	IsVerified(ctx context.Context, userID domain.UserID) (bool, error)
	CurrentStatus(ctx context.Context, userID domain.UserID) (workflow.Status, error)
}

// AssetGate answers asset questions from the RWA workflows.
type AssetGate interface {
	IsVerified(ctx context.Context, assetID domain.AssetID) (bool, error)
	// FraudFindings returns nil when no document of the asset was analysed.
	FraudFindings(ctx context.Context, assetID domain.AssetID) (*providers.FraudFindings, error)
}

// Ledger is the append-only record of committed transactions per user.
// An Append is visible to every SumSince that starts after it returns.
type Ledger interface {
	Append(ctx context.Context, entry models.LedgerEntry) error
	// SumSince totals the user's entries that occurred at or after since.
	SumSince(ctx context.Context, userID domain.UserID, since time.Time) (domain.Amount, error)
	History(ctx context.Context, userID domain.UserID) ([]models.LedgerEntry, error)
}

type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
