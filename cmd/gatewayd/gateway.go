package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"rwagate/internal/compliance/ledger"
	compliancemetrics "rwagate/internal/compliance/metrics"
	complianceports "rwagate/internal/compliance/ports"
	complianceservice "rwagate/internal/compliance/service"
	compliancememory "rwagate/internal/compliance/store/memory"
	compliancepg "rwagate/internal/compliance/store/postgres"
	"rwagate/internal/evidence/documents"
	"rwagate/internal/evidence/fraud"
	"rwagate/internal/evidence/identity"
	"rwagate/internal/evidence/registry"
	kycmetrics "rwagate/internal/kyc/metrics"
	kycports "rwagate/internal/kyc/ports"
	kycservice "rwagate/internal/kyc/service"
	kycmemory "rwagate/internal/kyc/store/memory"
	kycpg "rwagate/internal/kyc/store/postgres"
	"rwagate/internal/platform/config"
	"rwagate/internal/platform/reviewauth"
	"rwagate/internal/platform/subjectlock"
	"rwagate/internal/rwa/legal"
	rwametrics "rwagate/internal/rwa/metrics"
	rwaports "rwagate/internal/rwa/ports"
	rwaservice "rwagate/internal/rwa/service"
	rwamemory "rwagate/internal/rwa/store/memory"
	rwapg "rwagate/internal/rwa/store/postgres"
	"rwagate/pkg/platform/audit"
	auditpublisher "rwagate/pkg/platform/audit/publishers/compliance"
	auditmemory "rwagate/pkg/platform/audit/store/memory"
)

// gateway is the set of verification services an embedding application
// calls into.
type gateway struct {
	KYC        *kycservice.Service
	RWA        *rwaservice.Service
	Compliance *complianceservice.Service

	// Registries and document storage backing the built-in collaborators.
	Identities *registry.IdentityRegistry
	Legal      *registry.LegalRegistry
	Documents  *documents.MemoryStorage
	Extractor  *documents.StaticExtractor
}

func newGateway(ctx context.Context, cfg config.Config, in *infra, reg prometheus.Registerer, log *slog.Logger) (*gateway, error) {
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if in.outbox != nil {
		auditStore = in.outbox
	}
	publisher := auditpublisher.New(auditStore,
		auditpublisher.WithLogger(log),
		auditpublisher.WithMetrics(auditpublisher.NewMetrics(reg)))

	locker, err := newLocker(cfg.Redis, in)
	if err != nil {
		return nil, err
	}
	reviewers := reviewauth.New(cfg.ReviewerSigningKey, "rwagate")

	var (
		kycStore        kycports.Store        = kycmemory.New()
		rwaStore        rwaports.Store        = rwamemory.New()
		complianceStore complianceports.Store = compliancememory.New()
	)
	if in.db != nil {
		kycStore = kycpg.New(in.db)
		rwaStore = rwapg.New(in.db)
		complianceStore = compliancepg.New(in.db)
	}
	txLedger, err := newLedger(in)
	if err != nil {
		return nil, err
	}

	gw := &gateway{
		Identities: registry.NewIdentityRegistry(),
		Legal:      registry.NewLegalRegistry(),
		Documents:  documents.NewMemoryStorage(),
		Extractor:  documents.NewStaticExtractor(),
	}

	gw.KYC, err = kycservice.New(kycStore,
		identity.New(identity.WithRegistry(gw.Identities), identity.WithLogger(log)),
		kycservice.WithPolicy(cfg.Policy.KYC),
		kycservice.WithLogger(log),
		kycservice.WithMetrics(kycmetrics.New(reg)),
		kycservice.WithAuditPublisher(publisher),
		kycservice.WithTxRunner(in.runner),
		kycservice.WithLocker(locker),
		kycservice.WithReviewAuthorizer(reviewers),
	)
	if err != nil {
		return nil, fmt.Errorf("kyc service: %w", err)
	}

	checklist, err := legal.NewChecklist(ctx)
	if err != nil {
		return nil, fmt.Errorf("legal checklist: %w", err)
	}
	gw.RWA, err = rwaservice.New(rwaStore, gw.Legal,
		rwaservice.WithPolicy(cfg.Policy.RWA),
		rwaservice.WithChecklist(checklist),
		rwaservice.WithDocumentPipeline(gw.Documents, gw.Extractor, fraud.New()),
		rwaservice.WithLogger(log),
		rwaservice.WithMetrics(rwametrics.New(reg)),
		rwaservice.WithAuditPublisher(publisher),
		rwaservice.WithTxRunner(in.runner),
		rwaservice.WithLocker(locker),
		rwaservice.WithReviewAuthorizer(reviewers),
	)
	if err != nil {
		return nil, fmt.Errorf("rwa service: %w", err)
	}

	gw.Compliance, err = complianceservice.New(complianceStore, txLedger, gw.KYC, gw.RWA,
		complianceservice.WithPolicy(cfg.Policy),
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(compliancemetrics.New(reg)),
		complianceservice.WithAuditPublisher(publisher),
		complianceservice.WithTxRunner(in.runner),
		complianceservice.WithLocker(locker),
	)
	if err != nil {
		return nil, fmt.Errorf("compliance service: %w", err)
	}
	return gw, nil
}

// locker is the lock every service serialises its subjects through.
type locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func newLocker(cfg config.RedisConfig, in *infra) (locker, error) {
	if in.redis == nil {
		return subjectlock.NewMemory(), nil
	}
	return subjectlock.NewRedis(in.redis.Client, subjectlock.WithTTL(cfg.LockTTL))
}

// newLedger prefers Redis, then PostgreSQL, then memory.
func newLedger(in *infra) (complianceports.Ledger, error) {
	switch {
	case in.redis != nil:
		return ledger.NewRedis(in.redis.Client)
	case in.pool != nil:
		return ledger.NewPostgres(in.pool)
	default:
		return ledger.NewMemory(), nil
	}
}
