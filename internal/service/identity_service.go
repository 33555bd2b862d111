package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/repository"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type identityRepository interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, int, error)
	Create(ctx context.Context, identity *models.Identity) error
	Update(ctx context.Context, identity *models.Identity) error
	DeleteReassigning(ctx context.Context, id string, replacementID *string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type permissionInvalidator interface {
	InvalidateCached(ctx context.Context, identityID string)
}

// IdentityService manages identity profiles: self-registration and the
// administrator CRUD surface.
type IdentityService struct {
	identities  identityRepository
	permissions permissionInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewIdentityService constructs an IdentityService instance.
func NewIdentityService(identities identityRepository, permissions permissionInvalidator, validate *validator.Validate, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &IdentityService{identities: identities, permissions: permissions, validator: validate, logger: logger}
}

// Register creates an unapproved account from a self-registration. The
// caller cannot log in until an administrator approves it.
func (s *IdentityService) Register(ctx context.Context, req models.RegisterRequest, ip, userAgent string) (*models.IdentityInfo, error) {
	identity, err := s.create(ctx, req.Email, req.DisplayName, req.Role, req.Function, false)
	if err != nil {
		return nil, err
	}
	s.auditIdentity(ctx, identity.ID, models.AuditActionIdentityCreate, identity.ID, ip, userAgent)
	info := identity.Info()
	return &info, nil
}

// Create is the administrator-side account creation: the account is
// approved immediately but still awaits its first-login password setup.
func (s *IdentityService) Create(ctx context.Context, req models.CreateIdentityRequest, actorID, ip, userAgent string) (*models.IdentityInfo, error) {
	identity, err := s.create(ctx, req.Email, req.DisplayName, req.Role, req.Function, true)
	if err != nil {
		return nil, err
	}
	s.auditIdentity(ctx, actorID, models.AuditActionIdentityCreate, identity.ID, ip, userAgent)
	info := identity.Info()
	return &info, nil
}

// Get returns one identity by ID.
func (s *IdentityService) Get(ctx context.Context, id string) (*models.IdentityInfo, error) {
	identity, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	info := identity.Info()
	return &info, nil
}

// List returns identities matching the filter, with pagination metadata.
func (s *IdentityService) List(ctx context.Context, filter models.IdentityFilter) (*models.IdentityList, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Role != nil && !models.KnownRole(*filter.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role filter")
	}

	identities, total, err := s.identities.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list identities")
	}

	infos := make([]models.IdentityInfo, 0, len(identities))
	for i := range identities {
		infos = append(infos, identities[i].Info())
	}
	return &models.IdentityList{
		Identities: infos,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}, nil
}

// Update applies a partial profile update.
func (s *IdentityService) Update(ctx context.Context, id string, req models.UpdateIdentityRequest, actorID, ip, userAgent string) (*models.IdentityInfo, error) {
	identity, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		if strings.TrimSpace(*req.DisplayName) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "display name cannot be empty")
		}
		identity.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	roleChanged := false
	if req.Role != nil {
		if !models.KnownRole(*req.Role) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		}
		roleChanged = identity.Role != *req.Role
		identity.Role = *req.Role
	}
	if req.Function != nil {
		identity.Function = req.Function
	}
	identity.UpdatedAt = time.Now().UTC()

	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update identity")
	}

	// The cached permission record still carries the old role's default.
	if roleChanged && s.permissions != nil {
		s.permissions.InvalidateCached(ctx, id)
	}

	s.auditIdentity(ctx, actorID, models.AuditActionIdentityUpdate, id, ip, userAgent)
	info := identity.Info()
	return &info, nil
}

// Delete removes an identity. When it still owns work items, a replacement
// assignee is required and the reassignment runs in the same transaction as
// the delete.
func (s *IdentityService) Delete(ctx context.Context, id string, replacementID *string, actorID, ip, userAgent string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if replacementID != nil {
		if *replacementID == id {
			return appErrors.Clone(appErrors.ErrValidation, "replacement must be a different identity")
		}
		if _, err := s.load(ctx, *replacementID); err != nil {
			return err
		}
	}

	if err := s.identities.DeleteReassigning(ctx, id, replacementID); err != nil {
		if errors.Is(err, repository.ErrDependentsWithoutReplacement) {
			return appErrors.Clone(appErrors.ErrHasDependents, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete identity")
	}

	s.auditIdentity(ctx, actorID, models.AuditActionIdentityUpdate, id, ip, userAgent)
	return nil
}

func (s *IdentityService) create(ctx context.Context, email, displayName string, role models.Role, function *string, approved bool) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	identity := &models.Identity{
		ID:            uuid.NewString(),
		Email:         email,
		DisplayName:   strings.TrimSpace(displayName),
		Role:          role,
		Function:      function,
		AdminApproved: approved,
	}
	if err := s.validator.Struct(models.CreateIdentityRequest{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        identity.Role,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid identity payload")
	}
	if !models.KnownRole(role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create identity")
	}
	return identity, nil
}

func (s *IdentityService) load(ctx context.Context, id string) (*models.Identity, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch identity")
	}
	return identity, nil
}

func (s *IdentityService) auditIdentity(ctx context.Context, actorID, action, subjectID, ip, userAgent string) {
	if err := s.identities.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &actorID,
		Action:     action,
		Resource:   "identity",
		ResourceID: &subjectID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record identity audit log", zap.Error(err))
	}
}
