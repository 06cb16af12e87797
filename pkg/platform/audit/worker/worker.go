// Package worker relays audit outbox rows to the event stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rwagate/pkg/platform/audit/store/postgres"
	"rwagate/pkg/platform/tx"
)

// OutboxSource is the outbox side of the relay.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer publishes one keyed record to the audit topic.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Relay polls the outbox and publishes unpublished rows. Rows are marked
// published in the same transaction they were fetched in, so a crash between
// publish and commit re-delivers (at-least-once). Consumers dedupe on the
// payload id.
type Relay struct {
	source   OutboxSource
	producer Producer
	runner   tx.Runner
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(source OutboxSource, producer Producer, runner tx.Runner, opts ...Option) (*Relay, error) {
	if source == nil {
		return nil, fmt.Errorf("outbox source is required")
	}
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if runner == nil {
		runner = tx.NopRunner{}
	}
	r := &Relay{
		source:   source,
		producer: producer,
		runner:   runner,
		interval: time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && r.logger != nil {
				r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were relayed.
// When the producer fails mid-batch, the rows already published are still
// marked and committed; the rest wait for the next tick.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	relayed := 0
	var publishErr error
	err := r.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.source.FetchUnpublished(ctx, r.batch)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			if err := r.producer.Publish(ctx, e.AggregateID, e.Payload); err != nil {
				publishErr = fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
				break
			}
			ids = append(ids, e.ID)
		}
		if err := r.source.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		relayed = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return relayed, publishErr
}
