package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

// State is the manager's view of the authenticated identity after a login or
// verification round trip.
type State struct {
	Identity    models.IdentityInfo
	Permissions models.PermissionRecord
	AccessToken string
}

// Manager owns the persisted session token on the consumer side. Login,
// Logout and VerifySession are the only paths that change the stored token;
// everything else reads. Concurrent VerifySession calls collapse into a
// single network round trip.
type Manager struct {
	gateway Gateway
	store   TokenStore
	logger  *zap.Logger

	group singleflight.Group

	mu    sync.RWMutex
	state *State
}

// NewManager constructs a Manager over the given gateway and token store.
func NewManager(gateway Gateway, store TokenStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{gateway: gateway, store: store, logger: logger}
}

// Classify forwards the pre-login classification; it never touches the
// stored token.
func (m *Manager) Classify(ctx context.Context, identifier string) (*models.ClassifyResult, error) {
	return m.gateway.Classify(ctx, identifier)
}

// Login authenticates and persists the returned session token. A failed
// login leaves any previously stored token alone.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*State, error) {
	res, err := m.gateway.Login(ctx, models.LoginRequest{Identifier: identifier, Password: password})
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(res.SessionToken); err != nil {
		m.logger.Warn("failed to persist session token", zap.Error(err))
	}

	state := &State{
		Identity:    res.Identity,
		Permissions: res.Permissions,
		AccessToken: res.AccessToken,
	}
	m.setState(state)
	return state, nil
}

// VerifySession validates the persisted token against the server. When no
// token is stored it fails fast without any network traffic. Concurrent
// callers share one in-flight verification.
func (m *Manager) VerifySession(ctx context.Context) (*State, error) {
	token, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no stored session")
		}
		return nil, err
	}

	value, err, _ := m.group.Do(token, func() (interface{}, error) {
		res, err := m.gateway.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		return &State{
			Identity:    res.Identity,
			Permissions: res.Permissions,
			AccessToken: res.AccessToken,
		}, nil
	})
	if err != nil {
		// A definitive rejection means the token is dead; drop it so the
		// next call does not retry the network.
		if appErrors.HasCode(err, appErrors.ErrUnauthorized) || appErrors.HasCode(err, appErrors.ErrPendingApproval) {
			m.clearLocal()
		}
		return nil, err
	}

	state := value.(*State)
	m.setState(state)
	return state, nil
}

// Logout revokes the session server-side, best effort, and always clears the
// local token. Calling it twice succeeds both times.
func (m *Manager) Logout(ctx context.Context) error {
	token, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil
		}
		return err
	}

	if err := m.gateway.Logout(ctx, token); err != nil {
		m.logger.Warn("server-side logout failed, clearing local session anyway", zap.Error(err))
	}

	m.clearLocal()
	return nil
}

// Current returns the last verified state, or nil before any login or
// verification.
func (m *Manager) Current() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(state *State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) clearLocal() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear stored session token", zap.Error(err))
	}
	m.setState(nil)
}
