package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/repository"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

type mockApprovalIdentityRepo struct {
	identities      map[string]*models.Identity
	byEmail         *models.Identity
	findByEmailErr  error
	pending         []models.Identity
	dependents      []models.WorkItem
	deleteErr       error
	deletedID       string
	deleteReplaceID *string
	flags           map[string]models.IdentityFlags
	auditLogs       []*models.AuditLog
}

func (m *mockApprovalIdentityRepo) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	identity, ok := m.identities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return identity, nil
}

func (m *mockApprovalIdentityRepo) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.byEmail, nil
}

func (m *mockApprovalIdentityRepo) ListPendingApproval(ctx context.Context) ([]models.Identity, error) {
	return m.pending, nil
}

func (m *mockApprovalIdentityRepo) UpdateFlags(ctx context.Context, id string, flags models.IdentityFlags) error {
	if m.flags == nil {
		m.flags = make(map[string]models.IdentityFlags)
	}
	m.flags[id] = flags
	return nil
}

func (m *mockApprovalIdentityRepo) ListDependents(ctx context.Context, identityID string) ([]models.WorkItem, error) {
	return m.dependents, nil
}

func (m *mockApprovalIdentityRepo) DeleteReassigning(ctx context.Context, id string, replacementID *string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedID = id
	m.deleteReplaceID = replacementID
	return nil
}

func (m *mockApprovalIdentityRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockApprovalResetRepo struct {
	requests  map[string]*models.ResetRequest
	listAll   []models.ResetRequest
	pendingBy map[string]*models.ResetRequest
	created   []*models.ResetRequest
	createErr error
	reviewErr error
	reviewed  []string
}

func (m *mockApprovalResetRepo) Create(ctx context.Context, request *models.ResetRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, request)
	return nil
}

func (m *mockApprovalResetRepo) FindByID(ctx context.Context, id string) (*models.ResetRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return request, nil
}

func (m *mockApprovalResetRepo) List(ctx context.Context) ([]models.ResetRequest, error) {
	return m.listAll, nil
}

func (m *mockApprovalResetRepo) FindByIdentityAndStatus(ctx context.Context, identityID string, status models.ResetStatus) (*models.ResetRequest, error) {
	request, ok := m.pendingBy[identityID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return request, nil
}

func (m *mockApprovalResetRepo) Review(ctx context.Context, id string, status models.ResetStatus, reviewerID string, reviewedAt time.Time) error {
	if m.reviewErr != nil {
		return m.reviewErr
	}
	m.reviewed = append(m.reviewed, id)
	return nil
}

func newApprovalService(identities *mockApprovalIdentityRepo, resets *mockApprovalResetRepo) *ApprovalService {
	return NewApprovalService(identities, resets, nil, zap.NewNop())
}

func pendingIdentity(id string) *models.Identity {
	return &models.Identity{
		ID:          id,
		Email:       id + "@firm.example",
		Role:        models.RolePractitioner,
		DisplayName: "Pending " + id,
	}
}

func TestApprove(t *testing.T) {
	t.Run("grants access and audits", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{identities: map[string]*models.Identity{"id-1": pendingIdentity("id-1")}}
		svc := newApprovalService(identities, &mockApprovalResetRepo{})

		info, err := svc.Approve(context.Background(), "id-1", "admin-1", "10.0.0.1", "cli")
		require.NoError(t, err)
		assert.True(t, info.AdminApproved)
		require.Contains(t, identities.flags, "id-1")
		require.NotNil(t, identities.flags["id-1"].AdminApproved)
		assert.True(t, *identities.flags["id-1"].AdminApproved)
		require.Len(t, identities.auditLogs, 1)
		assert.Equal(t, models.AuditActionIdentityApprove, identities.auditLogs[0].Action)
	})

	t.Run("already approved is a no-op", func(t *testing.T) {
		identity := pendingIdentity("id-1")
		identity.AdminApproved = true
		identities := &mockApprovalIdentityRepo{identities: map[string]*models.Identity{"id-1": identity}}
		svc := newApprovalService(identities, &mockApprovalResetRepo{})

		info, err := svc.Approve(context.Background(), "id-1", "admin-1", "", "")
		require.NoError(t, err)
		assert.True(t, info.AdminApproved)
		assert.Empty(t, identities.flags)
		assert.Empty(t, identities.auditLogs)
	})

	t.Run("unknown identity", func(t *testing.T) {
		svc := newApprovalService(&mockApprovalIdentityRepo{}, &mockApprovalResetRepo{})

		_, err := svc.Approve(context.Background(), "missing", "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	})
}

func TestReject(t *testing.T) {
	t.Run("dependents without replacement refused", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{
			identities: map[string]*models.Identity{"id-1": pendingIdentity("id-1")},
			deleteErr:  repository.ErrDependentsWithoutReplacement,
		}
		svc := newApprovalService(identities, &mockApprovalResetRepo{})

		err := svc.Reject(context.Background(), "id-1", nil, "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrHasDependents))
	})

	t.Run("replacement forwarded to the delete", func(t *testing.T) {
		replacement := "id-2"
		identities := &mockApprovalIdentityRepo{identities: map[string]*models.Identity{
			"id-1": pendingIdentity("id-1"),
			"id-2": pendingIdentity("id-2"),
		}}
		svc := newApprovalService(identities, &mockApprovalResetRepo{})

		err := svc.Reject(context.Background(), "id-1", &replacement, "admin-1", "", "")
		require.NoError(t, err)
		assert.Equal(t, "id-1", identities.deletedID)
		require.NotNil(t, identities.deleteReplaceID)
		assert.Equal(t, "id-2", *identities.deleteReplaceID)
	})

	t.Run("replacement must differ from the subject", func(t *testing.T) {
		replacement := "id-1"
		identities := &mockApprovalIdentityRepo{identities: map[string]*models.Identity{"id-1": pendingIdentity("id-1")}}
		svc := newApprovalService(identities, &mockApprovalResetRepo{})

		err := svc.Reject(context.Background(), "id-1", &replacement, "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	})

	t.Run("approved account cannot be rejected", func(t *testing.T) {
		identity := pendingIdentity("id-1")
		identity.AdminApproved = true
		identities := &mockApprovalIdentityRepo{identities: map[string]*models.Identity{"id-1": identity}}
		svc := newApprovalService(identities, &mockApprovalResetRepo{})

		err := svc.Reject(context.Background(), "id-1", nil, "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	})
}

func TestResetRequests(t *testing.T) {
	now := time.Now().UTC()
	resets := &mockApprovalResetRepo{listAll: []models.ResetRequest{
		{ID: "r-1", Status: models.ResetPending, RequestedAt: now},
		{ID: "r-2", Status: models.ResetApproved, RequestedAt: now.Add(-time.Hour)},
		{ID: "r-3", Status: models.ResetPending, RequestedAt: now.Add(-2 * time.Hour)},
		{ID: "r-4", Status: models.ResetRejected, RequestedAt: now.Add(-3 * time.Hour)},
	}}
	svc := newApprovalService(&mockApprovalIdentityRepo{}, resets)

	queue, err := svc.ResetRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, queue.Pending, 2)
	require.Len(t, queue.History, 2)
	assert.Equal(t, "r-1", queue.Pending[0].ID)
	assert.Equal(t, "r-4", queue.History[1].ID)
}

func TestCreateResetRequest(t *testing.T) {
	t.Run("creates a pending request", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{byEmail: pendingIdentity("id-1")}
		resets := &mockApprovalResetRepo{}
		svc := newApprovalService(identities, resets)

		err := svc.CreateResetRequest(context.Background(), models.ForgotPasswordRequest{Identifier: "id-1@firm.example"})
		require.NoError(t, err)
		require.Len(t, resets.created, 1)
		assert.Equal(t, "id-1", resets.created[0].IdentityID)
		require.Len(t, identities.auditLogs, 1)
		assert.Equal(t, models.AuditActionResetRequested, identities.auditLogs[0].Action)
	})

	t.Run("unknown identifier succeeds without creating", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{findByEmailErr: sql.ErrNoRows}
		resets := &mockApprovalResetRepo{}
		svc := newApprovalService(identities, resets)

		err := svc.CreateResetRequest(context.Background(), models.ForgotPasswordRequest{Identifier: "nobody@firm.example"})
		require.NoError(t, err)
		assert.Empty(t, resets.created)
	})

	t.Run("duplicate while pending is a silent no-op", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{byEmail: pendingIdentity("id-1")}
		resets := &mockApprovalResetRepo{pendingBy: map[string]*models.ResetRequest{
			"id-1": {ID: "r-1", Status: models.ResetPending},
		}}
		svc := newApprovalService(identities, resets)

		err := svc.CreateResetRequest(context.Background(), models.ForgotPasswordRequest{Identifier: "id-1@firm.example"})
		require.NoError(t, err)
		assert.Empty(t, resets.created)
	})
}

func TestReviewResetRequest(t *testing.T) {
	t.Run("approval clears the password flag", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{}
		resets := &mockApprovalResetRepo{requests: map[string]*models.ResetRequest{
			"r-1": {ID: "r-1", IdentityID: "id-1", Status: models.ResetPending},
		}}
		svc := newApprovalService(identities, resets)

		request, err := svc.ReviewResetRequest(context.Background(), "r-1", models.ReviewResetRequest{Decision: models.ResetDecisionApprove}, "admin-1", "", "")
		require.NoError(t, err)
		assert.Equal(t, models.ResetApproved, request.Status)
		require.Contains(t, identities.flags, "id-1")
		require.NotNil(t, identities.flags["id-1"].PasswordSet)
		assert.False(t, *identities.flags["id-1"].PasswordSet)
	})

	t.Run("rejection leaves the identity untouched", func(t *testing.T) {
		identities := &mockApprovalIdentityRepo{}
		resets := &mockApprovalResetRepo{requests: map[string]*models.ResetRequest{
			"r-1": {ID: "r-1", IdentityID: "id-1", Status: models.ResetPending},
		}}
		svc := newApprovalService(identities, resets)

		request, err := svc.ReviewResetRequest(context.Background(), "r-1", models.ReviewResetRequest{Decision: models.ResetDecisionReject}, "admin-1", "", "")
		require.NoError(t, err)
		assert.Equal(t, models.ResetRejected, request.Status)
		assert.Empty(t, identities.flags)
	})

	t.Run("already decided request conflicts", func(t *testing.T) {
		resets := &mockApprovalResetRepo{requests: map[string]*models.ResetRequest{
			"r-1": {ID: "r-1", IdentityID: "id-1", Status: models.ResetApproved},
		}}
		svc := newApprovalService(&mockApprovalIdentityRepo{}, resets)

		_, err := svc.ReviewResetRequest(context.Background(), "r-1", models.ReviewResetRequest{Decision: models.ResetDecisionApprove}, "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	})

	t.Run("concurrent decision loses the race", func(t *testing.T) {
		resets := &mockApprovalResetRepo{
			requests:  map[string]*models.ResetRequest{"r-1": {ID: "r-1", IdentityID: "id-1", Status: models.ResetPending}},
			reviewErr: sql.ErrNoRows,
		}
		svc := newApprovalService(&mockApprovalIdentityRepo{}, resets)

		_, err := svc.ReviewResetRequest(context.Background(), "r-1", models.ReviewResetRequest{Decision: models.ResetDecisionApprove}, "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	})

	t.Run("invalid decision rejected", func(t *testing.T) {
		svc := newApprovalService(&mockApprovalIdentityRepo{}, &mockApprovalResetRepo{})

		_, err := svc.ReviewResetRequest(context.Background(), "r-1", models.ReviewResetRequest{Decision: "escalate"}, "admin-1", "", "")
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	})
}
