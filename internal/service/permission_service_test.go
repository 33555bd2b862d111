package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexfirm/lexcase-api/internal/models"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type mockOverrideRepo struct {
	records    map[string]models.PermissionRecord
	getErr     error
	upsertErr  map[string]error
	upserted   map[string]models.PermissionRecord
	upsertedBy string
}

func (m *mockOverrideRepo) GetOverride(ctx context.Context, identityID string) (models.PermissionRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.records[identityID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (m *mockOverrideRepo) UpsertOverride(ctx context.Context, identityID string, record models.PermissionRecord, updatedBy string) error {
	if err, ok := m.upsertErr[identityID]; ok {
		return err
	}
	if m.upserted == nil {
		m.upserted = make(map[string]models.PermissionRecord)
	}
	m.upserted[identityID] = record
	m.upsertedBy = updatedBy
	return nil
}

func (m *mockOverrideRepo) DeleteOverride(ctx context.Context, identityID string) error {
	delete(m.records, identityID)
	return nil
}

type mockPermissionIdentityRepo struct {
	byID      map[string]*models.Identity
	roleIDs   []string
	auditLogs []*models.AuditLog
}

func (m *mockPermissionIdentityRepo) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	identity, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return identity, nil
}

func (m *mockPermissionIdentityRepo) ListIDsByRole(ctx context.Context, role models.Role) ([]string, error) {
	return m.roleIDs, nil
}

func (m *mockPermissionIdentityRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockPermissionCache struct {
	entries map[string][]byte
	gets    int
	hits    int
	deleted []string
}

func (m *mockPermissionCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	m.hits++
	return json.Unmarshal(payload, dest)
}

func (m *mockPermissionCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = payload
	return nil
}

func (m *mockPermissionCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.entries, key)
	return nil
}

func (m *mockPermissionCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	if pattern == "permissions:*" {
		m.entries = nil
	}
	return nil
}

func newPermissionService(overrides *mockOverrideRepo, identities *mockPermissionIdentityRepo, cache *mockPermissionCache) *PermissionService {
	var c permissionCache
	if cache != nil {
		c = cache
	}
	return NewPermissionService(overrides, identities, c, nil, zap.NewNop(), PermissionConfig{
		CacheTTL:         5 * time.Minute,
		FullAccessTitles: []string{"Managing Partner", "IT Administrator"},
	})
}

func practitioner(id string) *models.Identity {
	return &models.Identity{ID: id, Email: id + "@firm.example", Role: models.RolePractitioner, AdminApproved: true}
}

func TestResolvePrecedence(t *testing.T) {
	t.Run("admin role gets full access regardless of overrides", func(t *testing.T) {
		overrides := &mockOverrideRepo{records: map[string]models.PermissionRecord{
			"admin-1": {models.ModuleCases: {Visible: false}},
		}}
		svc := newPermissionService(overrides, &mockPermissionIdentityRepo{}, nil)

		record, err := svc.Resolve(context.Background(), &models.Identity{ID: "admin-1", Role: models.RoleAdmin})
		require.NoError(t, err)
		for _, module := range models.Modules {
			assert.True(t, record.Allows(module, models.ActionDelete), "module %s", module)
		}
	})

	t.Run("full-access title outranks role default", func(t *testing.T) {
		title := "managing partner"
		identity := practitioner("id-1")
		identity.Function = &title
		svc := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)

		record, err := svc.Resolve(context.Background(), identity)
		require.NoError(t, err)
		assert.True(t, record.Allows(models.ModuleBilling, models.ActionApprove))
	})

	t.Run("override beats role default", func(t *testing.T) {
		overrides := &mockOverrideRepo{records: map[string]models.PermissionRecord{
			"id-1": {models.ModuleBilling: {Visible: true, Actions: map[models.Action]bool{models.ActionExport: true}}},
		}}
		svc := newPermissionService(overrides, &mockPermissionIdentityRepo{}, nil)

		record, err := svc.Resolve(context.Background(), practitioner("id-1"))
		require.NoError(t, err)
		assert.True(t, record.Allows(models.ModuleBilling, models.ActionExport))
		// The override replaces the default table wholesale.
		assert.False(t, record.Allows(models.ModuleCases, ""))
	})

	t.Run("no override falls back to role default", func(t *testing.T) {
		svc := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)

		record, err := svc.Resolve(context.Background(), practitioner("id-1"))
		require.NoError(t, err)
		assert.Equal(t, models.DefaultRecordForRole(models.RolePractitioner), record)
	})
}

func TestResolveCaching(t *testing.T) {
	cache := &mockPermissionCache{}
	overrides := &mockOverrideRepo{records: map[string]models.PermissionRecord{
		"id-1": {models.ModuleTasks: {Visible: true, Actions: map[models.Action]bool{models.ActionCreate: true}}},
	}}
	svc := newPermissionService(overrides, &mockPermissionIdentityRepo{}, cache)

	first, err := svc.Resolve(context.Background(), practitioner("id-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)

	second, err := svc.Resolve(context.Background(), practitioner("id-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)
}

func TestSaveOverride(t *testing.T) {
	t.Run("normalizes before persisting and invalidates the cache", func(t *testing.T) {
		cache := &mockPermissionCache{entries: map[string][]byte{"permissions:id-1": []byte("{}")}}
		overrides := &mockOverrideRepo{}
		identities := &mockPermissionIdentityRepo{byID: map[string]*models.Identity{"id-1": practitioner("id-1")}}
		svc := newPermissionService(overrides, identities, cache)

		dirty := models.PermissionRecord{
			models.ModuleBilling: {Visible: false, Actions: map[models.Action]bool{models.ActionExport: true}},
		}
		require.NoError(t, svc.SaveOverride(context.Background(), "id-1", dirty, "admin-1"))

		stored := overrides.upserted["id-1"]
		require.NotNil(t, stored)
		// Hidden module keeps no action grants.
		assert.False(t, stored[models.ModuleBilling].Actions[models.ActionExport])
		assert.Contains(t, cache.deleted, "permissions:id-1")
		require.Len(t, identities.auditLogs, 1)
		assert.Equal(t, models.AuditActionPermissionChange, identities.auditLogs[0].Action)
	})

	t.Run("unknown keys rejected before any write", func(t *testing.T) {
		overrides := &mockOverrideRepo{}
		identities := &mockPermissionIdentityRepo{byID: map[string]*models.Identity{"id-1": practitioner("id-1")}}
		svc := newPermissionService(overrides, identities, nil)

		err := svc.SaveOverride(context.Background(), "id-1", models.PermissionRecord{
			"timeline": {Visible: true},
		}, "admin-1")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
		assert.Empty(t, overrides.upserted)
	})

	t.Run("unknown identity", func(t *testing.T) {
		svc := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)

		err := svc.SaveOverride(context.Background(), "missing", models.PermissionRecord{}, "admin-1")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	})
}

func TestApplyToRole(t *testing.T) {
	record := models.PermissionRecord{
		models.ModuleTasks: {Visible: true, Actions: map[models.Action]bool{models.ActionCreate: true}},
	}

	t.Run("reports partial failure", func(t *testing.T) {
		overrides := &mockOverrideRepo{upsertErr: map[string]error{"id-2": errors.New("write timeout")}}
		identities := &mockPermissionIdentityRepo{roleIDs: []string{"id-1", "id-2", "id-3"}}
		svc := newPermissionService(overrides, identities, nil)

		result, err := svc.ApplyToRole(context.Background(), models.RoleAssistant, record, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.Succeeded)
		assert.Contains(t, result.Failures, "id-2")
	})

	t.Run("empty role yields zero of zero", func(t *testing.T) {
		svc := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)

		result, err := svc.ApplyToRole(context.Background(), models.RoleAssistant, record, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 0, result.Total)
		assert.Equal(t, 0, result.Succeeded)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		svc := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)

		_, err := svc.ApplyToRole(context.Background(), "SENIOR_PARTNER", record, "admin-1")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	})

	t.Run("sweeps the whole permission cache", func(t *testing.T) {
		cache := &mockPermissionCache{entries: map[string][]byte{
			"permissions:id-1":  []byte("{}"),
			"permissions:stray": []byte("{}"),
		}}
		identities := &mockPermissionIdentityRepo{roleIDs: []string{"id-1"}}
		svc := newPermissionService(&mockOverrideRepo{}, identities, cache)

		_, err := svc.ApplyToRole(context.Background(), models.RoleAssistant, record, "admin-1")
		require.NoError(t, err)
		assert.Contains(t, cache.deleted, "permissions:*")
		assert.Empty(t, cache.entries)
	})
}

func TestClearOverride(t *testing.T) {
	t.Run("drops the override and the cached resolution", func(t *testing.T) {
		overrides := &mockOverrideRepo{records: map[string]models.PermissionRecord{
			"id-1": {models.ModuleTasks: {Visible: true}},
		}}
		identities := &mockPermissionIdentityRepo{byID: map[string]*models.Identity{"id-1": practitioner("id-1")}}
		cache := &mockPermissionCache{entries: map[string][]byte{"permissions:id-1": []byte("{}")}}
		svc := newPermissionService(overrides, identities, cache)

		require.NoError(t, svc.ClearOverride(context.Background(), "id-1", "admin-1"))
		assert.NotContains(t, overrides.records, "id-1")
		assert.Contains(t, cache.deleted, "permissions:id-1")
		require.Len(t, identities.auditLogs, 1)
	})

	t.Run("unknown identity rejected", func(t *testing.T) {
		svc := newPermissionService(&mockOverrideRepo{}, &mockPermissionIdentityRepo{}, nil)

		err := svc.ClearOverride(context.Background(), "ghost", "admin-1")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	})
}
