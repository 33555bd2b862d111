package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lexfirm/lexcase-api/internal/models"
)

// PermissionRepository stores per-identity permission overrides as JSON
// documents. The record shape is validated before it ever reaches this layer.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository creates a new instance of PermissionRepository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// GetOverride returns the stored override record for an identity, or
// sql.ErrNoRows when none exists.
func (r *PermissionRepository) GetOverride(ctx context.Context, identityID string) (models.PermissionRecord, error) {
	const query = `SELECT record FROM permission_overrides WHERE identity_id = $1 LIMIT 1`
	var raw []byte
	if err := r.db.GetContext(ctx, &raw, query, identityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get permission override: %w", err)
	}

	var record models.PermissionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode permission override for %s: %w", identityID, err)
	}
	return record, nil
}

// UpsertOverride stores or replaces the override record for an identity.
func (r *PermissionRepository) UpsertOverride(ctx context.Context, identityID string, record models.PermissionRecord, updatedBy string) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode permission override for %s: %w", identityID, err)
	}

	const query = `INSERT INTO permission_overrides (id, identity_id, record, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_id) DO UPDATE SET record = EXCLUDED.record, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), identityID, raw, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert permission override: %w", err)
	}
	return nil
}

// DeleteOverride removes the stored override, restoring role defaults.
func (r *PermissionRepository) DeleteOverride(ctx context.Context, identityID string) error {
	const query = `DELETE FROM permission_overrides WHERE identity_id = $1`
	if _, err := r.db.ExecContext(ctx, query, identityID); err != nil {
		return fmt.Errorf("delete permission override: %w", err)
	}
	return nil
}
