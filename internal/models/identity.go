package models

import "time"

// Role is the closed set of roles an identity may hold. RoleAdmin is the top
// administrative tier: it is exempt from the approval queue and bypasses
// stored permission overrides.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleManager      Role = "MANAGER"
	RolePractitioner Role = "PRACTITIONER"
	RoleAssistant    Role = "ASSISTANT"
	RoleUser         Role = "USER"
)

// KnownRole reports whether the role belongs to the closed set.
func KnownRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RolePractitioner, RoleAssistant, RoleUser:
		return true
	}
	return false
}

// Identity represents one person's account record in the identities table.
type Identity struct {
	ID                 string     `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	DisplayName        string     `db:"display_name" json:"display_name"`
	Role               Role       `db:"role" json:"role"`
	Function           *string    `db:"function" json:"function,omitempty"`
	AdminApproved      bool       `db:"admin_approved" json:"admin_approved"`
	PasswordSet        bool       `db:"password_set" json:"password_set"`
	MustChangePassword bool       `db:"must_change_password" json:"must_change_password"`
	SecretQuestion     *string    `db:"secret_question" json:"-"`
	SecretAnswerHash   *string    `db:"secret_answer_hash" json:"-"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IdentityFlags captures the lifecycle flag mutations the approval and reset
// workflows apply.
type IdentityFlags struct {
	AdminApproved      *bool
	PasswordSet        *bool
	MustChangePassword *bool
}

// IdentityFilter captures filtering criteria for listing identities.
type IdentityFilter struct {
	Role      *Role
	Approved  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// IdentityInfo describes an identity in API responses.
type IdentityInfo struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name"`
	Role               Role      `json:"role"`
	Function           *string   `json:"function,omitempty"`
	AdminApproved      bool      `json:"admin_approved"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

// Info projects the identity into its response shape.
func (i *Identity) Info() IdentityInfo {
	return IdentityInfo{
		ID:                 i.ID,
		Email:              i.Email,
		DisplayName:        i.DisplayName,
		Role:               i.Role,
		Function:           i.Function,
		AdminApproved:      i.AdminApproved,
		MustChangePassword: i.MustChangePassword,
		CreatedAt:          i.CreatedAt,
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// RegisterRequest is the self-registration payload. The resulting account
// waits in the approval queue until an administrator decides on it.
type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	DisplayName string  `json:"display_name" validate:"required"`
	Role        Role    `json:"role" validate:"required"`
	Function    *string `json:"function,omitempty"`
}

// CreateIdentityRequest is the administrator-side account creation payload.
// The account is approved on creation but still has no password, so the
// owner goes through the first-login flow.
type CreateIdentityRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	DisplayName string  `json:"display_name" validate:"required"`
	Role        Role    `json:"role" validate:"required"`
	Function    *string `json:"function,omitempty"`
}

// UpdateIdentityRequest carries partial profile updates; nil fields are
// left unchanged.
type UpdateIdentityRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Role        *Role   `json:"role,omitempty"`
	Function    *string `json:"function,omitempty"`
}

// IdentityList is a paginated identity listing.
type IdentityList struct {
	Identities []IdentityInfo `json:"identities"`
	Pagination Pagination     `json:"pagination"`
}

// WorkItem is a work record (task, filing, hearing preparation) assigned to
// an identity. Identities with outstanding work items cannot be deleted until
// the items are reassigned.
type WorkItem struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	CaseRef    string    `db:"case_ref" json:"case_ref"`
	AssigneeID string    `db:"assignee_id" json:"assignee_id"`
	DueAt      time.Time `db:"due_at" json:"due_at"`
}
