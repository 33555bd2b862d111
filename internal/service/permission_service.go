package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type permissionOverrideRepository interface {
	GetOverride(ctx context.Context, identityID string) (models.PermissionRecord, error)
	UpsertOverride(ctx context.Context, identityID string, record models.PermissionRecord, updatedBy string) error
	DeleteOverride(ctx context.Context, identityID string) error
}

type permissionIdentityRepository interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	ListIDsByRole(ctx context.Context, role models.Role) ([]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type permissionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// PermissionConfig tunes permission resolution.
type PermissionConfig struct {
	CacheTTL time.Duration
	// FullAccessTitles are function titles that bypass role defaults and
	// stored overrides entirely.
	FullAccessTitles []string
}

// BulkApplyResult reports the outcome of applying a record to every identity
// holding a role. Partial failure is explicit, never an all-or-nothing bool.
type BulkApplyResult struct {
	Succeeded int               `json:"succeeded"`
	Total     int               `json:"total"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// PermissionService is the single place permission decisions are derived.
// No other component re-implements "is this an admin" checks.
type PermissionService struct {
	overrides  permissionOverrideRepository
	identities permissionIdentityRepository
	cache      permissionCache
	metrics    *MetricsService
	logger     *zap.Logger
	config     PermissionConfig
}

// NewPermissionService constructs a PermissionService instance.
func NewPermissionService(overrides permissionOverrideRepository, identities permissionIdentityRepository, cache permissionCache, metrics *MetricsService, logger *zap.Logger, config PermissionConfig) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{
		overrides:  overrides,
		identities: identities,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		config:     config,
	}
}

func permissionCacheKey(identityID string) string {
	return "permissions:" + identityID
}

func (s *PermissionService) hasFullAccessTitle(identity *models.Identity) bool {
	if identity.Function == nil {
		return false
	}
	for _, title := range s.config.FullAccessTitles {
		if strings.EqualFold(title, *identity.Function) {
			return true
		}
	}
	return false
}

// Resolve returns the effective permission record for an identity: full
// access for the top administrative role and designated titles, else the
// stored override verbatim, else the role default table.
func (s *PermissionService) Resolve(ctx context.Context, identity *models.Identity) (models.PermissionRecord, error) {
	if identity.Role == models.RoleAdmin || s.hasFullAccessTitle(identity) {
		return models.FullAccessRecord(), nil
	}

	if s.cache != nil {
		var cached models.PermissionRecord
		if err := s.cache.Get(ctx, permissionCacheKey(identity.ID), &cached); err == nil {
			s.metrics.ObservePermissionCache(true)
			return cached, nil
		}
		s.metrics.ObservePermissionCache(false)
	}

	record, err := s.overrides.GetOverride(ctx, identity.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission override")
		}
		record = models.DefaultRecordForRole(identity.Role)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, permissionCacheKey(identity.ID), record, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache permission record", zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}

	return record, nil
}

// ResolveByID loads the identity first; used by the request middleware.
func (s *PermissionService) ResolveByID(ctx context.Context, identityID string) (models.PermissionRecord, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}
	return s.Resolve(ctx, identity)
}

// Override returns the stored override record, or nil when the identity
// falls through to role defaults.
func (s *PermissionService) Override(ctx context.Context, identityID string) (models.PermissionRecord, error) {
	record, err := s.overrides.GetOverride(ctx, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission override")
	}
	return record, nil
}

// SaveOverride validates, cascade-clears and persists an override for one
// identity, then invalidates the cached resolution.
func (s *PermissionService) SaveOverride(ctx context.Context, identityID string, record models.PermissionRecord, actorID string) error {
	if unknown := record.Validate(); len(unknown) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "unknown permission keys: "+strings.Join(unknown, ", "))
	}

	if _, err := s.identities.FindByID(ctx, identityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}

	cleaned := record.Normalize()
	if err := s.overrides.UpsertOverride(ctx, identityID, cleaned, actorID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save permission override")
	}

	s.invalidate(ctx, identityID)
	s.audit(ctx, actorID, identityID, cleaned)
	return nil
}

// ClearOverride removes the stored override so the identity falls back to
// its role default, then invalidates the cached resolution. Clearing an
// identity without an override is a no-op.
func (s *PermissionService) ClearOverride(ctx context.Context, identityID, actorID string) error {
	if _, err := s.identities.FindByID(ctx, identityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}

	if err := s.overrides.DeleteOverride(ctx, identityID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear permission override")
	}

	s.invalidate(ctx, identityID)
	s.audit(ctx, actorID, identityID, nil)
	return nil
}

// ApplyToRole applies the record to every stored identity holding the role
// and reports how many of the targets succeeded.
func (s *PermissionService) ApplyToRole(ctx context.Context, role models.Role, record models.PermissionRecord, actorID string) (*BulkApplyResult, error) {
	if !models.KnownRole(role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", role))
	}
	if unknown := record.Validate(); len(unknown) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown permission keys: "+strings.Join(unknown, ", "))
	}

	ids, err := s.identities.ListIDsByRole(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list identities for role")
	}

	cleaned := record.Normalize()
	result := &BulkApplyResult{Total: len(ids)}

	for _, id := range ids {
		if err := s.overrides.UpsertOverride(ctx, id, cleaned, actorID); err != nil {
			if result.Failures == nil {
				result.Failures = make(map[string]string)
			}
			result.Failures[id] = err.Error()
			s.logger.Warn("bulk permission apply failed for identity", zap.String("identity_id", id), zap.Error(err))
			continue
		}
		s.invalidate(ctx, id)
		result.Succeeded++
	}

	// Role membership may have drifted since the ids were listed; a pattern
	// sweep catches cached records the per-identity loop missed.
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, permissionCacheKey("*")); err != nil {
			s.logger.Warn("failed to sweep permission cache after bulk apply", zap.Error(err))
		}
	}

	s.audit(ctx, actorID, "role:"+string(role), cleaned)
	return result, nil
}

// InvalidateCached drops the cached resolution for one identity. Called on
// role changes, where the cached record still reflects the old role's
// default.
func (s *PermissionService) InvalidateCached(ctx context.Context, identityID string) {
	s.invalidate(ctx, identityID)
}

func (s *PermissionService) invalidate(ctx context.Context, identityID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, permissionCacheKey(identityID)); err != nil {
		s.logger.Warn("failed to invalidate permission cache", zap.String("identity_id", identityID), zap.Error(err))
	}
}

func (s *PermissionService) audit(ctx context.Context, actorID, resourceID string, record models.PermissionRecord) {
	payload, _ := json.Marshal(record)
	if err := s.identities.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &actorID,
		Action:     models.AuditActionPermissionChange,
		Resource:   "permissions",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record permission audit log", zap.Error(err))
	}
}
