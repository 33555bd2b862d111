package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
	"github.com/lexfirm/lexcase-api/pkg/password"
)

type lifecycleIdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateCredentials(ctx context.Context, id, passwordHash, secretQuestion, secretAnswerHash string, updatedAt time.Time) error
	PasswordHistory(ctx context.Context, identityID string, limit int) ([]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type lifecycleResetRepository interface {
	FindByIdentityAndStatus(ctx context.Context, identityID string, status models.ResetStatus) (*models.ResetRequest, error)
	Complete(ctx context.Context, id string, completedAt time.Time) error
}

type credentialAuthenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

// LifecycleConfig tunes the credential lifecycle.
type LifecycleConfig struct {
	Policy password.Policy
	// HistoryDepth is how many prior password hashes the reuse check spans.
	HistoryDepth int
}

// LifecycleService is the credential lifecycle state machine: it classifies
// identifiers ahead of login and drives the first-login, reset-completion and
// secret-phrase recovery paths, each ending in an automatic login.
type LifecycleService struct {
	identities lifecycleIdentityRepository
	resets     lifecycleResetRepository
	auth       credentialAuthenticator
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	config     LifecycleConfig
}

// NewLifecycleService constructs a LifecycleService instance.
func NewLifecycleService(identities lifecycleIdentityRepository, resets lifecycleResetRepository, auth credentialAuthenticator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config LifecycleConfig) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.HistoryDepth <= 0 {
		config.HistoryDepth = 3
	}
	return &LifecycleService{
		identities: identities,
		resets:     resets,
		auth:       auth,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// Classify decides where an identifier stands before any password is asked
// for. It never verifies credentials and never mutates state; a lookup
// failure other than "not found" is surfaced as BLOCKED_TECHNICAL_ERROR with
// the underlying message.
func (s *LifecycleService) Classify(ctx context.Context, identifier string) (models.ClassifyResult, error) {
	result := models.ClassifyResult{Identifier: identifier}

	identity, err := s.identities.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.State = models.StateUnknown
			s.metrics.ObserveClassification(result.State)
			return result, nil
		}
		result.State = models.StateBlockedTechnicalError
		result.Reason = err.Error()
		s.metrics.ObserveClassification(result.State)
		return result, nil
	}

	if !identity.AdminApproved && identity.Role != models.RoleAdmin {
		result.State = models.StatePendingApproval
		s.metrics.ObserveClassification(result.State)
		return result, nil
	}

	reset, err := s.resets.FindByIdentityAndStatus(ctx, identity.ID, models.ResetApproved)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		result.State = models.StateBlockedTechnicalError
		result.Reason = err.Error()
		s.metrics.ObserveClassification(result.State)
		return result, nil
	}
	if reset != nil {
		result.State = models.StateNeedsReset
		s.metrics.ObserveClassification(result.State)
		return result, nil
	}

	if !identity.PasswordSet {
		result.State = models.StateNeedsPassword
		s.metrics.ObserveClassification(result.State)
		return result, nil
	}

	result.State = models.StateReadyToAuthenticate
	s.metrics.ObserveClassification(result.State)
	return result, nil
}

// SetInitialCredentials handles the true first login: store the password and
// the secret question/answer pair, then log the caller in with the password
// just set.
func (s *LifecycleService) SetInitialCredentials(ctx context.Context, req models.SetCredentialsRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid credentials payload")
	}
	if err := s.config.Policy.Validate(req.NewPassword); err != nil {
		return nil, err
	}

	identity, err := s.loadApproved(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	if err := s.checkReuse(ctx, identity.ID, req.NewPassword); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(normalizeAnswer(req.SecretAnswer)), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash secret answer")
	}

	if err := s.identities.UpdateCredentials(ctx, identity.ID, string(passwordHash), strings.TrimSpace(req.SecretQuestion), string(answerHash), time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store credentials")
	}

	s.completeApprovedReset(ctx, identity.ID)
	s.auditLifecycle(ctx, identity.ID, models.AuditActionPasswordSet, req.IP, req.UserAgent)

	return s.auth.Login(ctx, models.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.NewPassword,
		IP:         req.IP,
		UserAgent:  req.UserAgent,
	})
}

// CompleteReset consumes an administrator-approved reset: set the new
// password, mark the request completed and log in.
func (s *LifecycleService) CompleteReset(ctx context.Context, req models.SetPasswordRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	if err := s.config.Policy.Validate(req.NewPassword); err != nil {
		return nil, err
	}

	identity, err := s.loadApproved(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	if err := s.checkReuse(ctx, identity.ID, req.NewPassword); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.identities.UpdatePassword(ctx, identity.ID, string(passwordHash), time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store password")
	}

	s.completeApprovedReset(ctx, identity.ID)
	s.auditLifecycle(ctx, identity.ID, models.AuditActionPasswordSet, req.IP, req.UserAgent)

	return s.auth.Login(ctx, models.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.NewPassword,
		IP:         req.IP,
		UserAgent:  req.UserAgent,
	})
}

// SecretQuestion returns the stored recovery question for an identifier.
func (s *LifecycleService) SecretQuestion(ctx context.Context, identifier string) (*models.SecretQuestionResponse, error) {
	identity, err := s.identities.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "identifier not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch identity")
	}

	if identity.SecretQuestion == nil || *identity.SecretQuestion == "" {
		return nil, appErrors.Clone(appErrors.ErrNoSecretPhrase, "")
	}

	return &models.SecretQuestionResponse{IdentityID: identity.ID, Question: *identity.SecretQuestion}, nil
}

// RecoverWithSecretAnswer resets a password through the secret-phrase path,
// bypassing administrator review. The answer comparison is case-insensitive.
func (s *LifecycleService) RecoverWithSecretAnswer(ctx context.Context, req models.RecoverRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recovery payload")
	}
	if err := s.config.Policy.Validate(req.NewPassword); err != nil {
		return nil, err
	}

	identity, err := s.loadApproved(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	if identity.SecretAnswerHash == nil || *identity.SecretAnswerHash == "" {
		return nil, appErrors.Clone(appErrors.ErrNoSecretPhrase, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*identity.SecretAnswerHash), []byte(normalizeAnswer(req.SecretAnswer))); err != nil {
		return nil, appErrors.Clone(appErrors.ErrWrongSecretAnswer, "")
	}

	if err := s.checkReuse(ctx, identity.ID, req.NewPassword); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.identities.UpdatePassword(ctx, identity.ID, string(passwordHash), time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store password")
	}

	s.completeApprovedReset(ctx, identity.ID)
	s.auditLifecycle(ctx, identity.ID, models.AuditActionPasswordRecover, req.IP, req.UserAgent)

	return s.auth.Login(ctx, models.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.NewPassword,
		IP:         req.IP,
		UserAgent:  req.UserAgent,
	})
}

func (s *LifecycleService) loadApproved(ctx context.Context, identifier string) (*models.Identity, error) {
	identity, err := s.identities.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "identifier not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch identity")
	}
	if !identity.AdminApproved && identity.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrPendingApproval, "")
	}
	return identity, nil
}

// checkReuse rejects a password matching any of the recent hashes. The
// history already contains the current password.
func (s *LifecycleService) checkReuse(ctx context.Context, identityID, candidate string) error {
	hashes, err := s.identities.PasswordHistory(ctx, identityID, s.config.HistoryDepth)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load password history")
	}
	for _, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil {
			return appErrors.Clone(appErrors.ErrPasswordReused, "")
		}
	}
	return nil
}

func (s *LifecycleService) completeApprovedReset(ctx context.Context, identityID string) {
	reset, err := s.resets.FindByIdentityAndStatus(ctx, identityID, models.ResetApproved)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to look up approved reset request", zap.Error(err))
		}
		return
	}
	if err := s.resets.Complete(ctx, reset.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to complete reset request", zap.String("request_id", reset.ID), zap.Error(err))
	}
}

func (s *LifecycleService) auditLifecycle(ctx context.Context, identityID, action, ip, userAgent string) {
	if err := s.identities.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &identityID,
		Action:     action,
		Resource:   "credentials",
		ResourceID: &identityID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record lifecycle audit log", zap.Error(err))
	}
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
