package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/repository"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type approvalIdentityRepository interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	ListPendingApproval(ctx context.Context) ([]models.Identity, error)
	UpdateFlags(ctx context.Context, id string, flags models.IdentityFlags) error
	ListDependents(ctx context.Context, identityID string) ([]models.WorkItem, error)
	DeleteReassigning(ctx context.Context, id string, replacementID *string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type approvalResetRepository interface {
	Create(ctx context.Context, request *models.ResetRequest) error
	FindByID(ctx context.Context, id string) (*models.ResetRequest, error)
	List(ctx context.Context) ([]models.ResetRequest, error)
	FindByIdentityAndStatus(ctx context.Context, identityID string, status models.ResetStatus) (*models.ResetRequest, error)
	Review(ctx context.Context, id string, status models.ResetStatus, reviewerID string, reviewedAt time.Time) error
}

// ApprovalService runs the administrator review workflows: new-account
// approvals and password-reset requests.
type ApprovalService struct {
	identities approvalIdentityRepository
	resets     approvalResetRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewApprovalService constructs an ApprovalService instance.
func NewApprovalService(identities approvalIdentityRepository, resets approvalResetRepository, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{
		identities: identities,
		resets:     resets,
		validator:  validate,
		logger:     logger,
	}
}

// PendingApprovals lists accounts awaiting an administrator decision,
// newest first.
func (s *ApprovalService) PendingApprovals(ctx context.Context) ([]models.IdentityInfo, error) {
	identities, err := s.identities.ListPendingApproval(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending approvals")
	}
	infos := make([]models.IdentityInfo, 0, len(identities))
	for i := range identities {
		infos = append(infos, identities[i].Info())
	}
	return infos, nil
}

// Approve grants an account access. Approving an already-approved account
// is a no-op, not an error.
func (s *ApprovalService) Approve(ctx context.Context, id, actorID, ip, userAgent string) (*models.IdentityInfo, error) {
	identity, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !identity.AdminApproved {
		approved := true
		if err := s.identities.UpdateFlags(ctx, id, models.IdentityFlags{AdminApproved: &approved}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve identity")
		}
		identity.AdminApproved = true
		s.auditReview(ctx, actorID, models.AuditActionIdentityApprove, id, ip, userAgent)
	}

	info := identity.Info()
	return &info, nil
}

// Dependents lists the open work items assigned to an identity. A
// non-empty result means rejection requires a replacement assignee.
func (s *ApprovalService) Dependents(ctx context.Context, id string) ([]models.WorkItem, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.identities.ListDependents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dependents")
	}
	return items, nil
}

// Reject removes a pending account. When the account owns work items, a
// replacement assignee must be named; the reassignment and the delete run
// in one transaction.
func (s *ApprovalService) Reject(ctx context.Context, id string, replacementID *string, actorID, ip, userAgent string) error {
	identity, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if identity.AdminApproved {
		return appErrors.Clone(appErrors.ErrConflict, "identity is already approved")
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
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject identity")
	}

	s.auditReview(ctx, actorID, models.AuditActionIdentityReject, id, ip, userAgent)
	return nil
}

// ResetRequests returns the review queue split into the pending set and
// the decided history.
func (s *ApprovalService) ResetRequests(ctx context.Context) (*models.ResetQueue, error) {
	requests, err := s.resets.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reset requests")
	}
	queue := &models.ResetQueue{
		Pending: make([]models.ResetRequest, 0),
		History: make([]models.ResetRequest, 0),
	}
	for _, request := range requests {
		if request.Status == models.ResetPending {
			queue.Pending = append(queue.Pending, request)
		} else {
			queue.History = append(queue.History, request)
		}
	}
	return queue, nil
}

// CreateResetRequest files a password-reset request for administrator
// review. Unknown identifiers succeed silently so the endpoint cannot be
// used to probe for accounts; a second request while one is already
// pending is also a silent no-op.
func (s *ApprovalService) CreateResetRequest(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset request payload")
	}

	identity, err := s.identities.FindByEmail(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch identity")
	}

	if _, err := s.resets.FindByIdentityAndStatus(ctx, identity.ID, models.ResetPending); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}

	request := &models.ResetRequest{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		Email:      identity.Email,
	}
	if err := s.resets.Create(ctx, request); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reset request")
	}

	s.auditReset(ctx, identity.ID, models.AuditActionResetRequested, request.ID, req.IP, req.UserAgent)
	return nil
}

// ReviewResetRequest records an administrator's verdict on a pending
// request. Approval also clears the password-set flag so the next
// classification routes the account into the reset path.
func (s *ApprovalService) ReviewResetRequest(ctx context.Context, requestID string, req models.ReviewResetRequest, actorID, ip, userAgent string) (*models.ResetRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	request, err := s.resets.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reset request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch reset request")
	}
	if request.Status != models.ResetPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reset request is already decided")
	}

	status := models.ResetRejected
	if req.Decision == models.ResetDecisionApprove {
		status = models.ResetApproved
	}

	now := time.Now().UTC()
	if err := s.resets.Review(ctx, requestID, status, actorID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "reset request is already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review reset request")
	}

	if status == models.ResetApproved {
		unset := false
		if err := s.identities.UpdateFlags(ctx, request.IdentityID, models.IdentityFlags{PasswordSet: &unset}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag identity for reset")
		}
	}

	request.Status = status
	request.ReviewedAt = &now
	request.ReviewerID = &actorID
	s.auditReset(ctx, actorID, models.AuditActionResetReviewed, requestID, ip, userAgent)
	return request, nil
}

func (s *ApprovalService) load(ctx context.Context, id string) (*models.Identity, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch identity")
	}
	return identity, nil
}

func (s *ApprovalService) auditReview(ctx context.Context, actorID, action, subjectID, ip, userAgent string) {
	if err := s.identities.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &actorID,
		Action:     action,
		Resource:   "identity",
		ResourceID: &subjectID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record approval audit log", zap.Error(err))
	}
}

func (s *ApprovalService) auditReset(ctx context.Context, actorID, action, requestID, ip, userAgent string) {
	if err := s.identities.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &actorID,
		Action:     action,
		Resource:   "reset_request",
		ResourceID: &requestID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record reset audit log", zap.Error(err))
	}
}
