// Package compliance is the fail-closed audit publisher. Emit returns only
// after the event is in the audit store (the outbox when PostgreSQL is
// configured); callers abort the operation being audited when it fails.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dErrors "rwagate/pkg/domain-errors"
	audit "rwagate/pkg/platform/audit"
	"rwagate/pkg/requestcontext"
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills in the request time and the action's category when absent.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Subject == "" || event.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "audit event needs a subject and an action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	start := time.Now()
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit event not persisted",
				"action", event.Action, "subject_kind", string(event.SubjectKind), "subject", event.Subject, "error", err)
		}
		return fmt.Errorf("persist audit event %s: %w", event.Action, err)
	}
	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEventsEmitted(event.Category)
	return nil
}

// Trail lists a subject's audit events in the order they were stored.
func (p *Publisher) Trail(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}
