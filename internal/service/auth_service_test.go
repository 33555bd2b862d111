package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type mockAuthIdentityRepo struct {
	identity         *models.Identity
	findErr          error
	lastLoginUpdated bool
	auditLogs        []*models.AuditLog
}

func (m *mockAuthIdentityRepo) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.identity, nil
}

func (m *mockAuthIdentityRepo) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.identity == nil || m.identity.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.identity, nil
}

func (m *mockAuthIdentityRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthIdentityRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockSessionRepo struct {
	sessions   map[string]*models.Session
	revoked    []string
	revokedAll []string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]*models.Session)
	}
	m.sessions[session.Token] = session
	return nil
}

func (m *mockSessionRepo) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	session, ok := m.sessions[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

func (m *mockSessionRepo) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, session := range m.sessions {
		if session.ID == id {
			session.Revoked = true
		}
	}
	return nil
}

func (m *mockSessionRepo) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	m.revokedAll = append(m.revokedAll, identityID)
	for _, session := range m.sessions {
		if session.IdentityID == identityID {
			session.Revoked = true
		}
	}
	return nil
}

func newAuthService(identities *mockAuthIdentityRepo, sessions *mockSessionRepo, config AuthConfig) *AuthService {
	if config.AccessTokenSecret == "" {
		config.AccessTokenSecret = "test-secret"
	}
	if config.AccessTokenExpiry == 0 {
		config.AccessTokenExpiry = time.Hour
	}
	if config.SessionExpiry == 0 {
		config.SessionExpiry = 30 * 24 * time.Hour
	}
	permissions := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)
	return NewAuthService(identities, sessions, permissions, nil, nil, zap.NewNop(), config)
}

func readyIdentity(t *testing.T, password string) *models.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Identity{
		ID:            "id-1",
		Email:         "lawyer@firm.example",
		PasswordHash:  string(hash),
		DisplayName:   "Test Lawyer",
		Role:          models.RolePractitioner,
		AdminApproved: true,
		PasswordSet:   true,
	}
}

func TestLogin(t *testing.T) {
	t.Run("issues session, access token and permissions", func(t *testing.T) {
		identities := &mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}
		sessions := &mockSessionRepo{}
		svc := newAuthService(identities, sessions, AuthConfig{})

		resp, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.SessionToken)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.Permissions)
		assert.Contains(t, sessions.sessions, resp.SessionToken)
		assert.True(t, identities.lastLoginUpdated)

		claims, err := svc.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "id-1", claims.IdentityID)
		assert.Equal(t, models.RolePractitioner, claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc := newAuthService(&mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}, &mockSessionRepo{}, AuthConfig{})

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "wrong",
		})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
	})

	t.Run("unknown identifier uses the same error as a wrong password", func(t *testing.T) {
		svc := newAuthService(&mockAuthIdentityRepo{findErr: sql.ErrNoRows}, &mockSessionRepo{}, AuthConfig{})

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "nobody@firm.example",
			Password:   "anything",
		})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
	})

	t.Run("unapproved account is told so, not given invalid-credentials", func(t *testing.T) {
		identity := readyIdentity(t, "Sup3r-Secret")
		identity.AdminApproved = false
		svc := newAuthService(&mockAuthIdentityRepo{identity: identity}, &mockSessionRepo{}, AuthConfig{})

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrPendingApproval))
	})

	t.Run("password-less account cannot log in", func(t *testing.T) {
		identity := readyIdentity(t, "Sup3r-Secret")
		identity.PasswordSet = false
		svc := newAuthService(&mockAuthIdentityRepo{identity: identity}, &mockSessionRepo{}, AuthConfig{})

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	})

	t.Run("single-session mode revokes earlier sessions", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		svc := newAuthService(&mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}, sessions, AuthConfig{SingleSession: true})

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"id-1"}, sessions.revokedAll)
	})
}

func TestVerifySession(t *testing.T) {
	login := func(t *testing.T, identities *mockAuthIdentityRepo, sessions *mockSessionRepo, svc *AuthService) string {
		t.Helper()
		resp, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.NoError(t, err)
		return resp.SessionToken
	}

	t.Run("valid token yields a fresh access token", func(t *testing.T) {
		identities := &mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}
		sessions := &mockSessionRepo{}
		svc := newAuthService(identities, sessions, AuthConfig{})
		token := login(t, identities, sessions, svc)

		resp, err := svc.VerifySession(context.Background(), models.VerifySessionRequest{SessionToken: token})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "id-1", resp.Identity.ID)
		assert.NotEmpty(t, resp.Permissions)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc := newAuthService(&mockAuthIdentityRepo{}, &mockSessionRepo{}, AuthConfig{})

		_, err := svc.VerifySession(context.Background(), models.VerifySessionRequest{SessionToken: "bogus"})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
	})

	t.Run("expired session refused", func(t *testing.T) {
		identities := &mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}
		sessions := &mockSessionRepo{sessions: map[string]*models.Session{
			"stale": {ID: "s-1", IdentityID: "id-1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		}}
		svc := newAuthService(identities, sessions, AuthConfig{})

		_, err := svc.VerifySession(context.Background(), models.VerifySessionRequest{SessionToken: "stale"})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
	})

	t.Run("approval revoked after login blocks verification", func(t *testing.T) {
		identities := &mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}
		sessions := &mockSessionRepo{}
		svc := newAuthService(identities, sessions, AuthConfig{})
		token := login(t, identities, sessions, svc)

		identities.identity.AdminApproved = false
		_, err := svc.VerifySession(context.Background(), models.VerifySessionRequest{SessionToken: token})
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrPendingApproval))
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the session", func(t *testing.T) {
		identities := &mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}
		sessions := &mockSessionRepo{}
		svc := newAuthService(identities, sessions, AuthConfig{})
		resp, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.NoError(t, err)

		require.NoError(t, svc.Logout(context.Background(), models.LogoutRequest{SessionToken: resp.SessionToken}))
		assert.Len(t, sessions.revoked, 1)

		_, err = svc.VerifySession(context.Background(), models.VerifySessionRequest{SessionToken: resp.SessionToken})
		require.Error(t, err)
	})

	t.Run("logging out twice succeeds both times", func(t *testing.T) {
		identities := &mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}
		sessions := &mockSessionRepo{}
		svc := newAuthService(identities, sessions, AuthConfig{})
		resp, err := svc.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.NoError(t, err)

		require.NoError(t, svc.Logout(context.Background(), models.LogoutRequest{SessionToken: resp.SessionToken}))
		require.NoError(t, svc.Logout(context.Background(), models.LogoutRequest{SessionToken: resp.SessionToken}))
		// The second call found a revoked session and left it alone.
		assert.Len(t, sessions.revoked, 1)
	})

	t.Run("unknown token is not an error", func(t *testing.T) {
		svc := newAuthService(&mockAuthIdentityRepo{}, &mockSessionRepo{}, AuthConfig{})
		require.NoError(t, svc.Logout(context.Background(), models.LogoutRequest{SessionToken: "never-issued"}))
	})
}

func TestValidateToken(t *testing.T) {
	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		issuer := newAuthService(&mockAuthIdentityRepo{identity: readyIdentity(t, "Sup3r-Secret")}, &mockSessionRepo{}, AuthConfig{AccessTokenSecret: "secret-a"})
		verifier := newAuthService(&mockAuthIdentityRepo{}, &mockSessionRepo{}, AuthConfig{AccessTokenSecret: "secret-b"})

		resp, err := issuer.Login(context.Background(), models.LoginRequest{
			Identifier: "lawyer@firm.example",
			Password:   "Sup3r-Secret",
		})
		require.NoError(t, err)

		_, err = verifier.ValidateToken(resp.AccessToken)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		svc := newAuthService(&mockAuthIdentityRepo{}, &mockSessionRepo{}, AuthConfig{})
		_, err := svc.ValidateToken("not-a-jwt")
		require.Error(t, err)
	})
}
