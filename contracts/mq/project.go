package mq

import "time"

// ProjectStatusPayload is used by every project.* status event. From is empty
// for project.created and To is empty for project.deleted.
type ProjectStatusPayload struct {
	EventID    string    `json:"event_id"`
	ProjectID  string    `json:"project_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ClientAttachedPayload struct {
	EventID    string    `json:"event_id"`
	ProjectID  string    `json:"project_id"`
	ClientID   string    `json:"client_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InvitationCreatedPayload carries the link a mailer would deliver.
type InvitationCreatedPayload struct {
	EventID      string    `json:"event_id"`
	InvitationID string    `json:"invitation_id"`
	ProjectID    string    `json:"project_id"`
	Email        string    `json:"email"`
	Link         string    `json:"link"`
	ExpiresAt    time.Time `json:"expires_at"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
