package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type gatewayStub struct {
	loginResp    *models.LoginResponse
	loginErr     error
	verifyErr    error
	verifyDelay  time.Duration
	verifyCalls  int64
	logoutCalls  int64
	logoutErr    error
	classifyResp *models.ClassifyResult
}

func (g *gatewayStub) Classify(ctx context.Context, identifier string) (*models.ClassifyResult, error) {
	return g.classifyResp, nil
}

func (g *gatewayStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if g.loginErr != nil {
		return nil, g.loginErr
	}
	return g.loginResp, nil
}

func (g *gatewayStub) Verify(ctx context.Context, sessionToken string) (*models.VerifySessionResponse, error) {
	atomic.AddInt64(&g.verifyCalls, 1)
	if g.verifyDelay > 0 {
		time.Sleep(g.verifyDelay)
	}
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return &models.VerifySessionResponse{
		AccessToken: "fresh-access",
		Identity:    models.IdentityInfo{ID: "id-1"},
		Permissions: models.FullAccessRecord(),
	}, nil
}

func (g *gatewayStub) Logout(ctx context.Context, sessionToken string) error {
	atomic.AddInt64(&g.logoutCalls, 1)
	return g.logoutErr
}

func loginResponse() *models.LoginResponse {
	return &models.LoginResponse{
		SessionToken: "opaque-token",
		AccessToken:  "access-token",
		Identity:     models.IdentityInfo{ID: "id-1"},
		Permissions:  models.FullAccessRecord(),
	}
}

func TestManagerLoginPersistsToken(t *testing.T) {
	store := NewMemoryStore()
	gateway := &gatewayStub{loginResp: loginResponse()}
	manager := NewManager(gateway, store, zap.NewNop())

	state, err := manager.Login(context.Background(), "lawyer@firm.example", "Sup3r-Secret")
	require.NoError(t, err)
	assert.Equal(t, "id-1", state.Identity.ID)

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
	assert.NotNil(t, manager.Current())
}

func TestManagerVerifyWithoutTokenSkipsNetwork(t *testing.T) {
	gateway := &gatewayStub{}
	manager := NewManager(gateway, NewMemoryStore(), zap.NewNop())

	_, err := manager.VerifySession(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
	assert.EqualValues(t, 0, atomic.LoadInt64(&gateway.verifyCalls))
}

func TestManagerVerifySingleFlight(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("opaque-token"))
	gateway := &gatewayStub{verifyDelay: 50 * time.Millisecond}
	manager := NewManager(gateway, store, zap.NewNop())

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.VerifySession(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "id-1", state.Identity.ID)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&gateway.verifyCalls))
}

func TestManagerVerifyRejectionClearsToken(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("dead-token"))
	gateway := &gatewayStub{verifyErr: appErrors.Clone(appErrors.ErrUnauthorized, "session expired or revoked")}
	manager := NewManager(gateway, store, zap.NewNop())

	_, err := manager.VerifySession(context.Background())
	require.Error(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestManagerLogout(t *testing.T) {
	t.Run("clears local state even when the server fails", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save("opaque-token"))
		gateway := &gatewayStub{logoutErr: appErrors.ErrInternal}
		manager := NewManager(gateway, store, zap.NewNop())

		require.NoError(t, manager.Logout(context.Background()))
		_, err := store.Load()
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("double logout succeeds and hits the server once", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save("opaque-token"))
		gateway := &gatewayStub{}
		manager := NewManager(gateway, store, zap.NewNop())

		require.NoError(t, manager.Logout(context.Background()))
		require.NoError(t, manager.Logout(context.Background()))
		assert.EqualValues(t, 1, atomic.LoadInt64(&gateway.logoutCalls))
	})
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/session/token"
	store := NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save("opaque-token"))
	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}
