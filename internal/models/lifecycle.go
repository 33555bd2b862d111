package models

// LoginState classifies where an identifier stands in the credential
// lifecycle before authentication is attempted.
type LoginState string

const (
	// StateUnknown means the identifier has no profile row.
	StateUnknown LoginState = "UNKNOWN"
	// StatePendingApproval means the profile exists but an administrator has
	// not validated it yet.
	StatePendingApproval LoginState = "PENDING_APPROVAL"
	// StateNeedsPassword means the account is approved but has never set a
	// personal password.
	StateNeedsPassword LoginState = "NEEDS_PASSWORD"
	// StateNeedsReset means an administrator approved a password reset that
	// the account has not completed yet.
	StateNeedsReset LoginState = "NEEDS_RESET"
	// StateReadyToAuthenticate means the caller should supply a password.
	StateReadyToAuthenticate LoginState = "READY_TO_AUTHENTICATE"
	// StateAuthenticated is reached only through a successful login.
	StateAuthenticated LoginState = "AUTHENTICATED"
	// StateBlockedTechnicalError surfaces a lookup failure other than
	// "not found"; the underlying message travels with it.
	StateBlockedTechnicalError LoginState = "BLOCKED_TECHNICAL_ERROR"
)

// ClassifyResult is the outcome of classifying an identifier.
type ClassifyResult struct {
	State      LoginState `json:"state"`
	Identifier string     `json:"identifier"`
	// Reason carries the message for BLOCKED_TECHNICAL_ERROR.
	Reason string `json:"reason,omitempty"`
}
