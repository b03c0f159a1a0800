package model

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "DRAFT"
	ProjectOnboarding ProjectStatus = "ONBOARDING"
	ProjectActive     ProjectStatus = "ACTIVE"
	ProjectCompleted  ProjectStatus = "COMPLETED"
	ProjectOnHold     ProjectStatus = "ON_HOLD"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectDraft, ProjectOnboarding, ProjectActive, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

type Project struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	FreelancerID string        `json:"freelancer_id"`
	ClientID     string        `json:"client_id,omitempty"`
	Status       ProjectStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// OwnedBy reports whether userID is the freelancer that owns the project.
func (p *Project) OwnedBy(userID string) bool {
	return userID != "" && p.FreelancerID == userID
}

// HasClient reports whether userID is the client attached to the project.
func (p *Project) HasClient(userID string) bool {
	return userID != "" && p.ClientID == userID
}
