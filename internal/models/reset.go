package models

import "time"

// ResetStatus is the closed status set of a password-reset request.
// pending moves to approved or rejected under administrator review;
// approved moves to completed when the user sets the new password.
// rejected and completed are terminal.
type ResetStatus string

const (
	ResetPending   ResetStatus = "pending"
	ResetApproved  ResetStatus = "approved"
	ResetRejected  ResetStatus = "rejected"
	ResetCompleted ResetStatus = "completed"
)

// ResetDecision is an administrator's verdict on a pending request.
type ResetDecision string

const (
	ResetDecisionApprove ResetDecision = "approve"
	ResetDecisionReject  ResetDecision = "reject"
)

// ResetRequest is one self-service password-reset request.
type ResetRequest struct {
	ID          string      `db:"id" json:"id"`
	IdentityID  string      `db:"identity_id" json:"identity_id"`
	Email       string      `db:"email" json:"email"`
	Status      ResetStatus `db:"status" json:"status"`
	RequestedAt time.Time   `db:"requested_at" json:"requested_at"`
	ReviewedAt  *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewerID  *string     `db:"reviewer_id" json:"reviewer_id,omitempty"`
	CompletedAt *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
}

// ResetQueue partitions requests into the actionable pending set and the
// read-only history.
type ResetQueue struct {
	Pending []ResetRequest `json:"pending"`
	History []ResetRequest `json:"history"`
}
