package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rwagate/internal/kyc/models"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/sentinel"
	"rwagate/pkg/platform/tx"
)

// PostgresStore persists identity workflows across kyc_workflows, kyc_steps
// and kyc_history. Writes join the caller's transaction when there is one.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID domain.UserID) (*models.Workflow, error) {
	q := tx.Q(ctx, s.db)

	wf := &models.Workflow{UserID: userID, Steps: make(map[models.StepKind]*models.Step)}
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT generation, status, overall_approved, created_at, updated_at, submitted_at, verified_at
		FROM kyc_workflows
		WHERE user_id = $1
	`, string(userID)).Scan(&wf.Generation, &status, &wf.OverallApproved, &wf.CreatedAt, &wf.UpdatedAt,
		nullTime{&wf.SubmittedAt}, nullTime{&wf.VerifiedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get kyc workflow: %w", err)
	}
	if wf.Status, err = workflow.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("get kyc workflow: %w", err)
	}

	if err := s.loadSteps(ctx, q, wf); err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, q, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *PostgresStore) loadSteps(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	rows, err := q.QueryContext(ctx, `
		SELECT kind, status, score, issues, document_ref, claim_number, holder_name, uploaded_at, verified_at
		FROM kyc_steps
		WHERE user_id = $1
	`, string(wf.UserID))
	if err != nil {
		return fmt.Errorf("list kyc steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, status string
			score        sql.NullFloat64
			issues       []string
		)
		step := &models.Step{}
		if err := rows.Scan(&kind, &status, &score, pq.Array(&issues), &step.DocumentRef,
			&step.Claim.Number, &step.Claim.HolderName, nullTime{&step.UploadedAt}, nullTime{&step.VerifiedAt}); err != nil {
			return fmt.Errorf("scan kyc step: %w", err)
		}
		step.Kind = models.StepKind(kind)
		step.Status = workflow.StepStatus(status)
		step.Issues = issues
		if score.Valid {
			v := score.Float64
			step.Score = &v
		}
		wf.Steps[step.Kind] = step
	}
	return rows.Err()
}

func (s *PostgresStore) loadHistory(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	rows, err := q.QueryContext(ctx, `
		SELECT action, actor, notes, at
		FROM kyc_history
		WHERE user_id = $1
		ORDER BY seq
	`, string(wf.UserID))
	if err != nil {
		return fmt.Errorf("list kyc history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h workflow.HistoryEntry
		if err := rows.Scan(&h.Action, &h.Actor, &h.Notes, &h.At); err != nil {
			return fmt.Errorf("scan kyc history: %w", err)
		}
		wf.History = append(wf.History, h)
	}
	return rows.Err()
}

// Save upserts the workflow, replaces its steps and appends history entries
// not yet stored. History is append-only.
func (s *PostgresStore) Save(ctx context.Context, wf *models.Workflow) error {
	if wf == nil {
		return fmt.Errorf("kyc workflow is required")
	}
	return tx.Within(ctx, s.db, func(q tx.Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO kyc_workflows (user_id, generation, status, overall_approved, created_at, updated_at, submitted_at, verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id) DO UPDATE SET
				generation = EXCLUDED.generation,
				status = EXCLUDED.status,
				overall_approved = EXCLUDED.overall_approved,
				updated_at = EXCLUDED.updated_at,
				submitted_at = EXCLUDED.submitted_at,
				verified_at = EXCLUDED.verified_at
		`, string(wf.UserID), wf.Generation, string(wf.Status), wf.OverallApproved,
			wf.CreatedAt, wf.UpdatedAt, wf.SubmittedAt, wf.VerifiedAt)
		if err != nil {
			return fmt.Errorf("upsert kyc workflow: %w", err)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM kyc_steps WHERE user_id = $1`, string(wf.UserID)); err != nil {
			return fmt.Errorf("clear kyc steps: %w", err)
		}
		for _, step := range wf.Steps {
			_, err := q.ExecContext(ctx, `
				INSERT INTO kyc_steps (user_id, kind, status, score, issues, document_ref, claim_number, holder_name, uploaded_at, verified_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, string(wf.UserID), string(step.Kind), string(step.Status), step.Score, pq.Array(step.Issues),
				step.DocumentRef, step.Claim.Number, step.Claim.HolderName, step.UploadedAt, step.VerifiedAt)
			if err != nil {
				return fmt.Errorf("insert kyc step %s: %w", step.Kind, err)
			}
		}

		var stored int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM kyc_history WHERE user_id = $1`, string(wf.UserID)).Scan(&stored); err != nil {
			return fmt.Errorf("count kyc history: %w", err)
		}
		for _, h := range wf.History[min(stored, len(wf.History)):] {
			_, err := q.ExecContext(ctx, `
				INSERT INTO kyc_history (user_id, action, actor, notes, at)
				VALUES ($1, $2, $3, $4, $5)
			`, string(wf.UserID), h.Action, h.Actor, h.Notes, h.At)
			if err != nil {
				return fmt.Errorf("append kyc history: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListVerifiedBefore(ctx context.Context, cutoff time.Time) ([]domain.UserID, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT user_id
		FROM kyc_workflows
		WHERE status = $1 AND verified_at <= $2
		ORDER BY verified_at
	`, string(workflow.StatusVerified), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list verified kyc workflows: %w", err)
	}
	defer rows.Close()

	var ids []domain.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, domain.UserID(id))
	}
	return ids, rows.Err()
}

// nullTime scans a nullable timestamp into an optional *time.Time.
type nullTime struct {
	dst **time.Time
}

func (n nullTime) Scan(src any) error {
	var t sql.NullTime
	if err := t.Scan(src); err != nil {
		return err
	}
	if !t.Valid {
		*n.dst = nil
		return nil
	}
	v := t.Time
	*n.dst = &v
	return nil
}
