package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rwagate/internal/evidence/providers"
	"rwagate/internal/rwa/models"
	"rwagate/internal/workflow"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/sentinel"
	"rwagate/pkg/platform/tx"
)

// PostgresStore persists asset workflows across rwa_workflows,
// rwa_documents, rwa_checks and rwa_history. Extracted fields and fraud
// findings are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// fraudRecord is the JSONB shape of cached fraud findings.
type fraudRecord struct {
	IsAuthentic     bool     `json:"is_authentic"`
	ConfidenceScore float64  `json:"confidence_score"`
	Indicators      []string `json:"indicators"`
	RiskLevel       string   `json:"risk_level"`
}

func (s *PostgresStore) Get(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	q := tx.Q(ctx, s.db)

	wf := &models.Workflow{
		AssetID:   assetID,
		Documents: make(map[models.DocType]*models.Document),
		Checks:    make(map[models.CheckName]*models.CheckResult),
	}
	var (
		owner, status string
		overall       sql.NullFloat64
	)
	err := q.QueryRowContext(ctx, `
		SELECT owner_id, generation, status, overall_score, rejection_reason, created_at, updated_at, submitted_at, verified_at
		FROM rwa_workflows
		WHERE asset_id = $1
	`, string(assetID)).Scan(&owner, &wf.Generation, &status, &overall, &wf.RejectionReason,
		&wf.CreatedAt, &wf.UpdatedAt, nullTime{&wf.SubmittedAt}, nullTime{&wf.VerifiedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rwa workflow: %w", err)
	}
	wf.OwnerID = domain.UserID(owner)
	if wf.Status, err = workflow.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("get rwa workflow: %w", err)
	}
	if overall.Valid {
		v := overall.Float64
		wf.OverallScore = &v
	}

	if err := s.loadDocuments(ctx, q, wf); err != nil {
		return nil, err
	}
	if err := s.loadChecks(ctx, q, wf); err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, q, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *PostgresStore) loadDocuments(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	rows, err := q.QueryContext(ctx, `
		SELECT doc_type, status, score, issues, document_ref, fields, fraud, uploaded_at, verified_at
		FROM rwa_documents
		WHERE asset_id = $1
	`, string(wf.AssetID))
	if err != nil {
		return fmt.Errorf("list rwa documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docType, status string
			score           sql.NullFloat64
			issues          []string
			fields, fraud   []byte
		)
		doc := &models.Document{}
		if err := rows.Scan(&docType, &status, &score, pq.Array(&issues), &doc.DocumentRef, &fields, &fraud,
			nullTime{&doc.UploadedAt}, nullTime{&doc.VerifiedAt}); err != nil {
			return fmt.Errorf("scan rwa document: %w", err)
		}
		doc.Type = models.DocType(docType)
		doc.Status = workflow.StepStatus(status)
		doc.Issues = issues
		if score.Valid {
			v := score.Float64
			doc.Score = &v
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &doc.Fields); err != nil {
				return fmt.Errorf("decode fields of %s: %w", docType, err)
			}
			if len(doc.Fields) == 0 {
				doc.Fields = nil
			}
		}
		if len(fraud) > 0 {
			var rec fraudRecord
			if err := json.Unmarshal(fraud, &rec); err != nil {
				return fmt.Errorf("decode fraud findings of %s: %w", docType, err)
			}
			doc.Fraud = &providers.FraudFindings{
				IsAuthentic:     rec.IsAuthentic,
				ConfidenceScore: rec.ConfidenceScore,
				Indicators:      rec.Indicators,
				RiskLevel:       rec.RiskLevel,
			}
		}
		wf.Documents[doc.Type] = doc
	}
	return rows.Err()
}

func (s *PostgresStore) loadChecks(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	rows, err := q.QueryContext(ctx, `
		SELECT name, passed, score, issues, checked_at
		FROM rwa_checks
		WHERE asset_id = $1
	`, string(wf.AssetID))
	if err != nil {
		return fmt.Errorf("list rwa checks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name   string
			issues []string
		)
		c := &models.CheckResult{}
		if err := rows.Scan(&name, &c.Passed, &c.Score, pq.Array(&issues), &c.CheckedAt); err != nil {
			return fmt.Errorf("scan rwa check: %w", err)
		}
		c.Name = models.CheckName(name)
		c.Issues = issues
		wf.Checks[c.Name] = c
	}
	return rows.Err()
}

func (s *PostgresStore) loadHistory(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	rows, err := q.QueryContext(ctx, `
		SELECT action, actor, notes, at
		FROM rwa_history
		WHERE asset_id = $1
		ORDER BY seq
	`, string(wf.AssetID))
	if err != nil {
		return fmt.Errorf("list rwa history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h workflow.HistoryEntry
		if err := rows.Scan(&h.Action, &h.Actor, &h.Notes, &h.At); err != nil {
			return fmt.Errorf("scan rwa history: %w", err)
		}
		wf.History = append(wf.History, h)
	}
	return rows.Err()
}

// Save upserts the workflow, replaces its documents and checks and appends
// history entries not yet stored.
func (s *PostgresStore) Save(ctx context.Context, wf *models.Workflow) error {
	if wf == nil {
		return fmt.Errorf("rwa workflow is required")
	}
	return tx.Within(ctx, s.db, func(q tx.Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO rwa_workflows (asset_id, owner_id, generation, status, overall_score, rejection_reason,
				created_at, updated_at, submitted_at, verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (asset_id) DO UPDATE SET
				owner_id = EXCLUDED.owner_id,
				generation = EXCLUDED.generation,
				status = EXCLUDED.status,
				overall_score = EXCLUDED.overall_score,
				rejection_reason = EXCLUDED.rejection_reason,
				updated_at = EXCLUDED.updated_at,
				submitted_at = EXCLUDED.submitted_at,
				verified_at = EXCLUDED.verified_at
		`, string(wf.AssetID), string(wf.OwnerID), wf.Generation, string(wf.Status), wf.OverallScore,
			wf.RejectionReason, wf.CreatedAt, wf.UpdatedAt, wf.SubmittedAt, wf.VerifiedAt)
		if err != nil {
			return fmt.Errorf("upsert rwa workflow: %w", err)
		}

		if err := s.saveDocuments(ctx, q, wf); err != nil {
			return err
		}
		if err := s.saveChecks(ctx, q, wf); err != nil {
			return err
		}

		var stored int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rwa_history WHERE asset_id = $1`, string(wf.AssetID)).Scan(&stored); err != nil {
			return fmt.Errorf("count rwa history: %w", err)
		}
		for _, h := range wf.History[min(stored, len(wf.History)):] {
			_, err := q.ExecContext(ctx, `
				INSERT INTO rwa_history (asset_id, action, actor, notes, at)
				VALUES ($1, $2, $3, $4, $5)
			`, string(wf.AssetID), h.Action, h.Actor, h.Notes, h.At)
			if err != nil {
				return fmt.Errorf("append rwa history: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) saveDocuments(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM rwa_documents WHERE asset_id = $1`, string(wf.AssetID)); err != nil {
		return fmt.Errorf("clear rwa documents: %w", err)
	}
	for _, doc := range wf.Documents {
		fields := doc.Fields
		if fields == nil {
			fields = providers.Fields{}
		}
		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode fields of %s: %w", doc.Type, err)
		}
		var fraudJSON any
		if doc.Fraud != nil {
			encoded, err := json.Marshal(fraudRecord{
				IsAuthentic:     doc.Fraud.IsAuthentic,
				ConfidenceScore: doc.Fraud.ConfidenceScore,
				Indicators:      doc.Fraud.Indicators,
				RiskLevel:       doc.Fraud.RiskLevel,
			})
			if err != nil {
				return fmt.Errorf("encode fraud findings of %s: %w", doc.Type, err)
			}
			fraudJSON = encoded
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO rwa_documents (asset_id, doc_type, status, score, issues, document_ref, fields, fraud, uploaded_at, verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, string(wf.AssetID), string(doc.Type), string(doc.Status), doc.Score, pq.Array(doc.Issues),
			doc.DocumentRef, fieldsJSON, fraudJSON, doc.UploadedAt, doc.VerifiedAt)
		if err != nil {
			return fmt.Errorf("insert rwa document %s: %w", doc.Type, err)
		}
	}
	return nil
}

func (s *PostgresStore) saveChecks(ctx context.Context, q tx.Querier, wf *models.Workflow) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM rwa_checks WHERE asset_id = $1`, string(wf.AssetID)); err != nil {
		return fmt.Errorf("clear rwa checks: %w", err)
	}
	for _, c := range wf.Checks {
		_, err := q.ExecContext(ctx, `
			INSERT INTO rwa_checks (asset_id, name, passed, score, issues, checked_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, string(wf.AssetID), string(c.Name), c.Passed, c.Score, pq.Array(c.Issues), c.CheckedAt)
		if err != nil {
			return fmt.Errorf("insert rwa check %s: %w", c.Name, err)
		}
	}
	return nil
}

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
