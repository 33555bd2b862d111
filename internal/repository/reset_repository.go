package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lexfirm/lexcase-api/internal/models"
)

const resetColumns = `id, identity_id, email, status, requested_at, reviewed_at, reviewer_id, completed_at`

// ResetRepository persists password-reset requests.
type ResetRepository struct {
	db *sqlx.DB
}

// NewResetRepository creates a new instance of ResetRepository.
func NewResetRepository(db *sqlx.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

// Create inserts a new pending request.
func (r *ResetRepository) Create(ctx context.Context, request *models.ResetRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	request.Status = models.ResetPending

	const query = `INSERT INTO reset_requests (id, identity_id, email, status, requested_at) VALUES (:id, :identity_id, :email, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create reset request: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier.
func (r *ResetRepository) FindByID(ctx context.Context, id string) (*models.ResetRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM reset_requests WHERE id = $1 LIMIT 1`, resetColumns)
	var request models.ResetRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reset request: %w", err)
	}
	return &request, nil
}

// List returns every request, newest first.
func (r *ResetRepository) List(ctx context.Context) ([]models.ResetRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM reset_requests ORDER BY requested_at DESC`, resetColumns)
	var requests []models.ResetRequest
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("list reset requests: %w", err)
	}
	return requests, nil
}

// FindByIdentityAndStatus returns the most recent request for an identity in
// the given status, or sql.ErrNoRows.
func (r *ResetRepository) FindByIdentityAndStatus(ctx context.Context, identityID string, status models.ResetStatus) (*models.ResetRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM reset_requests WHERE identity_id = $1 AND status = $2 ORDER BY requested_at DESC LIMIT 1`, resetColumns)
	var request models.ResetRequest
	if err := r.db.GetContext(ctx, &request, query, identityID, status); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reset request by identity: %w", err)
	}
	return &request, nil
}

// Review stamps an administrator decision on a pending request.
func (r *ResetRepository) Review(ctx context.Context, id string, status models.ResetStatus, reviewerID string, reviewedAt time.Time) error {
	const query = `UPDATE reset_requests SET status = $2, reviewer_id = $3, reviewed_at = $4 WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, status, reviewerID, reviewedAt, models.ResetPending)
	if err != nil {
		return fmt.Errorf("review reset request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("review reset request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Complete flips an approved request to completed once the reset password has
// been consumed.
func (r *ResetRepository) Complete(ctx context.Context, id string, completedAt time.Time) error {
	const query = `UPDATE reset_requests SET status = $2, completed_at = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.ResetCompleted, completedAt, models.ResetApproved); err != nil {
		return fmt.Errorf("complete reset request: %w", err)
	}
	return nil
}
