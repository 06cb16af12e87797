package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "rwagate/pkg/platform/audit"
	txcontext "rwagate/pkg/platform/tx"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction when
// one is present, and published to Kafka by the outbox relay.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON structure published to Kafka.
type Payload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	SubjectKind string `json:"subject_kind"`
	Subject     string `json:"subject"`
	Action      string `json:"action"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
}

// Entry is an unpublished outbox row.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.AuditEvent(event.Action).Category()

	payloadBytes, err := json.Marshal(Payload{
		ID:          eventID.String(),
		Category:    string(category),
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
		SubjectKind: string(event.SubjectKind),
		Subject:     event.Subject,
		Action:      event.Action,
		Decision:    event.Decision,
		Reason:      event.Reason,
		RequestID:   event.RequestID,
		ActorID:     event.ActorID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		string(event.SubjectKind),
		event.Subject,
		event.Action,
		payloadBytes,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns the events recorded for one user or asset, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM outbox
		WHERE aggregate_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		event, err := DecodePayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// FetchUnpublished returns up to limit outbox rows not yet relayed, oldest first.
// Rows are locked with SKIP LOCKED so parallel relays do not double-publish
// within a transaction.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	var q interface {
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	} = s.db
	if tx, ok := txcontext.From(ctx); ok {
		q = tx
	}
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox rows as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	query := `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := s.execer(ctx).ExecContext(ctx, query, at.UTC(), pq.Array(raw)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// DecodePayload turns a published outbox payload back into an audit event.
func DecodePayload(raw []byte) (audit.Event, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return audit.Event{}, fmt.Errorf("decode outbox payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("decode outbox timestamp: %w", err)
	}
	return audit.Event{
		Category:    audit.EventCategory(p.Category),
		Timestamp:   ts,
		SubjectKind: audit.SubjectKind(p.SubjectKind),
		Subject:     p.Subject,
		Action:      p.Action,
		Decision:    p.Decision,
		Reason:      p.Reason,
		RequestID:   p.RequestID,
		ActorID:     p.ActorID,
	}, nil
}
