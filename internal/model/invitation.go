package model

import "time"

const (
	InvitationPending = "PENDING"

	// InvitationTTL is how long an invitation link stays valid.
	InvitationTTL = 7 * 24 * time.Hour
)

type ProjectInvitation struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (i *ProjectInvitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
