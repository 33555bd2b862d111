package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/service"
	"github.com/lexfirm/lexcase-api/pkg/password"
)

func hiddenEverywhere() models.PermissionRecord {
	record := make(models.PermissionRecord, len(models.Modules))
	for _, module := range models.Modules {
		record[module] = models.ModulePermission{Visible: false, Actions: map[models.Action]bool{}}
	}
	return record
}

// newTestRouter mounts the full route table over stubbed storage so the
// middleware chain runs exactly as in production.
func newTestRouter(t *testing.T, identity *models.Identity, overrides *overrideStoreStub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	authIdentities := &identityRepoStub{identity: identity}
	sessions := &sessionRepoStub{}

	permissions := service.NewPermissionService(overrides, &permRepoStub{identity: identity}, nil, nil, logger, service.PermissionConfig{})
	auth := service.NewAuthService(authIdentities, sessions, permissions, nil, nil, logger, service.AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		SessionExpiry:     24 * time.Hour,
	})
	lifecycle := service.NewLifecycleService(authIdentities, resetRepoStub{}, auth, nil, nil, logger, service.LifecycleConfig{
		Policy: password.Policy{MinLength: 8},
	})
	approvals := service.NewApprovalService(&approvalRepoStub{}, &approvalResetStub{}, nil, logger)

	r := gin.New()
	RegisterRoutes(r, "/api/v1", Handlers{
		Auth:        NewAuthHandler(auth, lifecycle),
		Identity:    NewIdentityHandler(nil),
		Permission:  NewPermissionHandler(permissions),
		Approval:    NewApprovalHandler(approvals),
		AuthService: auth,
		Permissions: permissions,
	})
	return r
}

func loginFor(t *testing.T, r *gin.Engine, identifier, pass string) string {
	t.Helper()
	body, err := json.Marshal(models.LoginRequest{Identifier: identifier, Password: pass})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken
}

func managerIdentity(t *testing.T) *models.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r-Secret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Identity{
		ID:            "mgr-1",
		Email:         "manager@firm.example",
		PasswordHash:  string(hash),
		DisplayName:   "Test Manager",
		Role:          models.RoleManager,
		AdminApproved: true,
		PasswordSet:   true,
	}
}

func TestRouterPermissionGates(t *testing.T) {
	get := func(r *gin.Engine, token, target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("manager defaults reach the approval queue", func(t *testing.T) {
		r := newTestRouter(t, managerIdentity(t), &overrideStoreStub{})
		token := loginFor(t, r, "manager@firm.example", "Sup3r-Secret")

		w := get(r, token, "/api/v1/approvals/pending")
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("override hiding every module locks the admin surface", func(t *testing.T) {
		overrides := &overrideStoreStub{records: map[string]models.PermissionRecord{
			"mgr-1": hiddenEverywhere(),
		}}
		r := newTestRouter(t, managerIdentity(t), overrides)
		token := loginFor(t, r, "manager@firm.example", "Sup3r-Secret")

		w := get(r, token, "/api/v1/approvals/pending")
		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

		w = get(r, token, "/api/v1/identities")
		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	})

	t.Run("manager defaults cannot write overrides", func(t *testing.T) {
		r := newTestRouter(t, managerIdentity(t), &overrideStoreStub{})
		token := loginFor(t, r, "manager@firm.example", "Sup3r-Secret")

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/permissions/apply-role", strings.NewReader(`{"role":"USER","record":{}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	})

	t.Run("no token yields 401 before any gate", func(t *testing.T) {
		r := newTestRouter(t, managerIdentity(t), &overrideStoreStub{})
		w := get(r, "", "/api/v1/approvals/pending")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
