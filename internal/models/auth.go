package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClassifyRequest asks where an identifier stands before login.
type ClassifyRequest struct {
	Identifier string `json:"identifier" validate:"required,email"`
}

// LoginRequest holds credentials for authenticating an identity.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// LoginResponse returns the issued tokens, the resolved identity and its
// permission record. Permissions are resolved eagerly at login so clients do
// not need a second round trip before rendering.
type LoginResponse struct {
	SessionToken       string           `json:"session_token"`
	AccessToken        string           `json:"access_token"`
	ExpiresIn          int64            `json:"expires_in"`
	IssuedAt           time.Time        `json:"issued_at"`
	MustChangePassword bool             `json:"must_change_password"`
	Identity           IdentityInfo     `json:"identity"`
	Permissions        PermissionRecord `json:"permissions"`
}

// VerifySessionRequest validates a persisted session token.
type VerifySessionRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// VerifySessionResponse resolves the session owner and a fresh access token.
type VerifySessionResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresIn   int64            `json:"expires_in"`
	Identity    IdentityInfo     `json:"identity"`
	Permissions PermissionRecord `json:"permissions"`
}

// LogoutRequest revokes a session token.
type LogoutRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// SetPasswordRequest completes an administrator-approved password reset.
type SetPasswordRequest struct {
	Identifier  string `json:"identifier" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required"`
	IP          string `json:"-"`
	UserAgent   string `json:"-"`
}

// SetCredentialsRequest is the true first-login payload: the new password
// plus the secret question/answer pair used for self-service recovery later.
type SetCredentialsRequest struct {
	Identifier     string `json:"identifier" validate:"required,email"`
	NewPassword    string `json:"new_password" validate:"required"`
	SecretQuestion string `json:"secret_question" validate:"required"`
	SecretAnswer   string `json:"secret_answer" validate:"required"`
	IP             string `json:"-"`
	UserAgent      string `json:"-"`
}

// SecretQuestionResponse carries the stored question for an identifier.
type SecretQuestionResponse struct {
	IdentityID string `json:"identity_id"`
	Question   string `json:"question"`
}

// RecoverRequest resets a password through the secret-phrase path.
type RecoverRequest struct {
	Identifier   string `json:"identifier" validate:"required,email"`
	SecretAnswer string `json:"secret_answer" validate:"required"`
	NewPassword  string `json:"new_password" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// ForgotPasswordRequest files a reset request for administrator review.
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" validate:"required,email"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// ReviewResetRequest carries an administrator decision on a reset request.
type ReviewResetRequest struct {
	Decision ResetDecision `json:"decision" validate:"required,oneof=approve reject"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	IdentityID  string  `json:"identity_id"`
	Role        Role    `json:"role"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	Function    *string `json:"function,omitempty"`
	jwt.RegisteredClaims
}
