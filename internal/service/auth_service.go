package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type authIdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
	RevokeAllForIdentity(ctx context.Context, identityID string) error
}

// AuthConfig defines configuration for session issuance.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	SessionExpiry     time.Duration
	Issuer            string
	SingleSession     bool
}

// AuthService issues and verifies sessions. The session token handed to the
// client is opaque and validated against storage; the JWT access token is a
// short-lived companion for API requests.
type AuthService struct {
	identities  authIdentityRepository
	sessions    sessionRepository
	permissions *PermissionService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(identities authIdentityRepository, sessions sessionRepository, permissions *PermissionService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		identities:  identities,
		sessions:    sessions,
		permissions: permissions,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      config,
	}
}

// Login authenticates an identity and issues a session. The approval and
// password-set flags are re-checked here so no unapproved or password-less
// account ever reaches application data, even when the caller skipped
// classification.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	identity, err := s.identities.FindByEmail(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.ObserveLogin("invalid")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		s.metrics.ObserveLogin("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch identity")
	}

	if !identity.AdminApproved && identity.Role != models.RoleAdmin {
		s.metrics.ObserveLogin("blocked")
		return nil, appErrors.Clone(appErrors.ErrPendingApproval, "")
	}

	if !identity.PasswordSet {
		s.metrics.ObserveLogin("blocked")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "first-login password setup required")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.ObserveLogin("invalid")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if s.config.SingleSession {
		if err := s.sessions.RevokeAllForIdentity(ctx, identity.ID); err != nil {
			s.logger.Warn("failed to revoke previous sessions", zap.Error(err))
		}
	}

	session, err := s.issueSession(ctx, identity, req.IP, req.UserAgent)
	if err != nil {
		s.metrics.ObserveLogin("error")
		return nil, err
	}

	accessToken, err := s.generateAccessToken(identity)
	if err != nil {
		s.metrics.ObserveLogin("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	permissions, err := s.permissions.Resolve(ctx, identity)
	if err != nil {
		s.metrics.ObserveLogin("error")
		return nil, err
	}

	if err := s.identities.UpdateLastLogin(ctx, identity.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.auditAuth(ctx, identity.ID, models.AuditActionLogin, req.IP, req.UserAgent)
	s.metrics.ObserveLogin("success")

	return &models.LoginResponse{
		SessionToken:       session.Token,
		AccessToken:        accessToken,
		ExpiresIn:          int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:           time.Now().UTC(),
		MustChangePassword: identity.MustChangePassword,
		Identity:           identity.Info(),
		Permissions:        permissions,
	}, nil
}

// VerifySession resolves the owner of a persisted session token and returns a
// fresh access token alongside the resolved permissions.
func (s *AuthService) VerifySession(ctx context.Context, req models.VerifySessionRequest) (*models.VerifySessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verify payload")
	}

	session, err := s.sessions.FindByToken(ctx, req.SessionToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	if !session.Live(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired or revoked")
	}

	identity, err := s.identities.FindByID(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session owner no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session owner")
	}

	if !identity.AdminApproved && identity.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrPendingApproval, "")
	}

	accessToken, err := s.generateAccessToken(identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	permissions, err := s.permissions.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	return &models.VerifySessionResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		Identity:    identity.Info(),
		Permissions: permissions,
	}, nil
}

// Logout revokes the session token. Unknown or already-revoked tokens are not
// errors: logging out twice must succeed both times.
func (s *AuthService) Logout(ctx context.Context, req models.LogoutRequest) error {
	if req.SessionToken == "" {
		return nil
	}

	session, err := s.sessions.FindByToken(ctx, req.SessionToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	if !session.Revoked {
		if err := s.sessions.Revoke(ctx, session.ID, time.Now().UTC()); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
		}
	}

	s.auditAuth(ctx, session.IdentityID, models.AuditActionLogout, req.IP, req.UserAgent)
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) issueSession(ctx context.Context, identity *models.Identity, ip, userAgent string) (*models.Session, error) {
	tokenValue, err := s.generateSessionTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}

	session := &models.Session{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		Token:      tokenValue,
		ExpiresAt:  time.Now().UTC().Add(s.config.SessionExpiry),
		CreatedAt:  time.Now().UTC(),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	return session, nil
}

func (s *AuthService) generateAccessToken(identity *models.Identity) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		IdentityID:  identity.ID,
		Role:        identity.Role,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Function:    identity.Function,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) generateSessionTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *AuthService) auditAuth(ctx context.Context, identityID, action, ip, userAgent string) {
	if err := s.identities.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &identityID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &identityID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.Error(err))
	}
}
