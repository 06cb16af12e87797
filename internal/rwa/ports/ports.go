package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/rwa/models"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/audit"
)

// Store persists asset workflows. Get returns sentinel.ErrNotFound for an
// unknown asset.
type Store interface {
	Get(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error)
	Save(ctx context.Context, wf *models.Workflow) error
}

// DocumentStorage confirms that a reference points at a stored document.
type DocumentStorage interface {
	Exists(ctx context.Context, ref providers.DocumentRef) (bool, error)
}

// FieldExtractor extracts named fields from a stored document.
type FieldExtractor interface {
	Extract(ctx context.Context, ref providers.DocumentRef) (providers.Fields, error)
}

// FraudDetector produces document-fraud signals.
type FraudDetector interface {
	Analyze(ctx context.Context, ref providers.DocumentRef, fields providers.Fields) (providers.FraudFindings, error)
}

// LegalRegistry supplies the facts the legal checklist runs on.
type LegalRegistry interface {
	Facts(ctx context.Context, assetID string) (providers.LegalFacts, error)
}

type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ReviewAuthorizer validates a reviewer credential for manual decisions.
type ReviewAuthorizer interface {
	AuthorizeReviewer(token string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
