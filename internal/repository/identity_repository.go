package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lexfirm/lexcase-api/internal/models"
)

// ErrDependentsWithoutReplacement is returned when a delete would orphan work
// items and the caller supplied no replacement assignee.
var ErrDependentsWithoutReplacement = errors.New("identity has dependent work items and no replacement was provided")

const identityColumns = `id, email, password_hash, display_name, role, function, admin_approved, password_set, must_change_password, secret_question, secret_answer_hash, last_login, created_at, updated_at`

// IdentityRepository provides database access for identity records and their
// dependent work items.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository creates a new instance of IdentityRepository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindByEmail returns an identity by its email identifier.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM identities WHERE email = $1 LIMIT 1`, identityColumns)
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return &identity, nil
}

// FindByID returns an identity by identifier.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM identities WHERE id = $1 LIMIT 1`, identityColumns)
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return &identity, nil
}

// List returns identities based on filters with total count.
func (r *IdentityRepository) List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, int, error) {
	baseQuery := `FROM identities WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Approved != nil {
		conditions = append(conditions, fmt.Sprintf("admin_approved = $%d", len(args)+1))
		args = append(args, *filter.Approved)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(display_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]bool{
		"email":        true,
		"created_at":   true,
		"updated_at":   true,
		"display_name": true,
		"role":         true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", identityColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var identities []models.Identity
	if err := r.db.SelectContext(ctx, &identities, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}

	return identities, total, nil
}

// ListPendingApproval returns unapproved identities, newest first. The top
// administrative role never appears in the queue.
func (r *IdentityRepository) ListPendingApproval(ctx context.Context) ([]models.Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM identities WHERE admin_approved = FALSE AND role <> $1 ORDER BY created_at DESC`, identityColumns)
	var identities []models.Identity
	if err := r.db.SelectContext(ctx, &identities, query, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return identities, nil
}

// ListIDsByRole returns the identifiers of every stored identity holding the
// given role. Used by the bulk permission apply.
func (r *IdentityRepository) ListIDsByRole(ctx context.Context, role models.Role) ([]string, error) {
	const query = `SELECT id FROM identities WHERE role = $1 ORDER BY created_at`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, role); err != nil {
		return nil, fmt.Errorf("list identity ids by role: %w", err)
	}
	return ids, nil
}

// Create inserts a new identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	identity.Email = strings.ToLower(identity.Email)

	const query = `INSERT INTO identities (id, email, password_hash, display_name, role, function, admin_approved, password_set, must_change_password, secret_question, secret_answer_hash, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :display_name, :role, :function, :admin_approved, :password_set, :must_change_password, :secret_question, :secret_answer_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, identity); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// Update updates the mutable profile fields of an identity.
func (r *IdentityRepository) Update(ctx context.Context, identity *models.Identity) error {
	identity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE identities SET display_name = :display_name, role = :role, function = :function, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, identity); err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return nil
}

// UpdateFlags applies lifecycle flag mutations. Unset fields are left alone.
func (r *IdentityRepository) UpdateFlags(ctx context.Context, id string, flags models.IdentityFlags) error {
	var sets []string
	args := []interface{}{id}

	if flags.AdminApproved != nil {
		sets = append(sets, fmt.Sprintf("admin_approved = $%d", len(args)+1))
		args = append(args, *flags.AdminApproved)
	}
	if flags.PasswordSet != nil {
		sets = append(sets, fmt.Sprintf("password_set = $%d", len(args)+1))
		args = append(args, *flags.PasswordSet)
	}
	if flags.MustChangePassword != nil {
		sets = append(sets, fmt.Sprintf("must_change_password = $%d", len(args)+1))
		args = append(args, *flags.MustChangePassword)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf("UPDATE identities SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update identity flags: %w", err)
	}
	return nil
}

// UpdatePassword stores a new password hash, marks the password as set and
// clears any compulsory-rotation flag. The previous hash is appended to the
// history inside the same transaction.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin password update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE identities SET password_hash = $2, password_set = TRUE, must_change_password = FALSE, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	const history = `INSERT INTO password_history (id, identity_id, password_hash, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, history, uuid.NewString(), id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit password update: %w", err)
	}
	return nil
}

// UpdateCredentials stores a new password hash together with the secret
// question and hashed answer, for the true first-login flow.
func (r *IdentityRepository) UpdateCredentials(ctx context.Context, id, passwordHash, secretQuestion, secretAnswerHash string, updatedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credentials update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE identities SET password_hash = $2, secret_question = $3, secret_answer_hash = $4, password_set = TRUE, must_change_password = FALSE, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, passwordHash, secretQuestion, secretAnswerHash, updatedAt); err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}

	const history = `INSERT INTO password_history (id, identity_id, password_hash, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, history, uuid.NewString(), id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials update: %w", err)
	}
	return nil
}

// PasswordHistory returns the most recent password hashes, newest first.
func (r *IdentityRepository) PasswordHistory(ctx context.Context, identityID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	const query = `SELECT password_hash FROM password_history WHERE identity_id = $1 ORDER BY created_at DESC LIMIT $2`
	var hashes []string
	if err := r.db.SelectContext(ctx, &hashes, query, identityID, limit); err != nil {
		return nil, fmt.Errorf("load password history: %w", err)
	}
	return hashes, nil
}

// UpdateLastLogin updates the last_login timestamp for an identity.
func (r *IdentityRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE identities SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ListDependents returns the work items currently assigned to the identity.
func (r *IdentityRepository) ListDependents(ctx context.Context, identityID string) ([]models.WorkItem, error) {
	const query = `SELECT id, title, case_ref, assignee_id, due_at FROM work_items WHERE assignee_id = $1 ORDER BY due_at`
	var items []models.WorkItem
	if err := r.db.SelectContext(ctx, &items, query, identityID); err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return items, nil
}

// DeleteReassigning removes an identity in one transaction, reassigning its
// work items to the replacement first. It fails with
// ErrDependentsWithoutReplacement when work items exist and no replacement
// was supplied, leaving everything unchanged.
func (r *IdentityRepository) DeleteReassigning(ctx context.Context, id string, replacementID *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var dependents int
	if err := tx.GetContext(ctx, &dependents, `SELECT COUNT(*) FROM work_items WHERE assignee_id = $1`, id); err != nil {
		return fmt.Errorf("count dependents: %w", err)
	}

	if dependents > 0 {
		if replacementID == nil || *replacementID == "" {
			return ErrDependentsWithoutReplacement
		}
		if _, err := tx.ExecContext(ctx, `UPDATE work_items SET assignee_id = $2 WHERE assignee_id = $1`, id, *replacementID); err != nil {
			return fmt.Errorf("reassign work items: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit trail entry.
func (r *IdentityRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :actor_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
