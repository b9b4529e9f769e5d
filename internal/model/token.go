package model

import "time"

// VerificationToken proves ownership of a user's email address. Single-use:
// UsedAt is set on consumption and the token is never valid again.
type VerificationToken struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	UserID    int64      `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
)

// Invitation grants join rights to a household. Consumed exactly once on
// acceptance; flips to expired once ExpiresAt passes.
type Invitation struct {
	ID          int64     `json:"id"`
	Token       string    `json:"token"`
	HouseholdID int64     `json:"household_id"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
