package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rwagate/internal/compliance/models"
	"rwagate/pkg/domain"
	"rwagate/pkg/platform/sentinel"
	"rwagate/pkg/platform/tx"
)

// PostgresStore persists compliance workflows in compliance_workflows, with
// metadata as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, assetID domain.AssetID) (*models.Workflow, error) {
	var (
		owner, stage string
		metadata     []byte
	)
	wf := &models.Workflow{AssetID: assetID}
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT owner_id, stage, documents_uploaded, ai_verified, tokenized, metadata, created_at, updated_at
		FROM compliance_workflows
		WHERE asset_id = $1
	`, string(assetID)).Scan(&owner, &stage, &wf.DocumentsUploaded, &wf.AIVerified, &wf.Tokenized,
		&metadata, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get compliance workflow: %w", err)
	}
	wf.OwnerID = domain.UserID(owner)
	if wf.Stage, err = models.ParseStage(stage); err != nil {
		return nil, fmt.Errorf("get compliance workflow: %w", err)
	}
	wf.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &wf.Metadata); err != nil {
			return nil, fmt.Errorf("decode compliance metadata: %w", err)
		}
	}
	return wf, nil
}

func (s *PostgresStore) Save(ctx context.Context, wf *models.Workflow) error {
	if wf == nil {
		return fmt.Errorf("compliance workflow is required")
	}
	metadata := wf.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode compliance metadata: %w", err)
	}
	_, err = tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO compliance_workflows (asset_id, owner_id, stage, documents_uploaded, ai_verified, tokenized,
			metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (asset_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			stage = EXCLUDED.stage,
			documents_uploaded = EXCLUDED.documents_uploaded,
			ai_verified = EXCLUDED.ai_verified,
			tokenized = EXCLUDED.tokenized,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`, string(wf.AssetID), string(wf.OwnerID), string(wf.Stage), wf.DocumentsUploaded, wf.AIVerified,
		wf.Tokenized, encoded, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert compliance workflow: %w", err)
	}
	return nil
}
