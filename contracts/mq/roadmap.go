package mq

import "time"

// Routing keys of the domain events.
const (
	RoutingRoadmapReplaced        = "roadmap.replaced"
	RoutingRoadmapReordered       = "roadmap.reordered"
	RoutingMilestoneAdded         = "milestone.added"
	RoutingMilestoneUpdated       = "milestone.updated"
	RoutingMilestoneDeleted       = "milestone.deleted"
	RoutingMilestoneStatusChanged = "milestone.status_changed"
	RoutingProjectCreated         = "project.created"
	RoutingProjectActivated       = "project.activated"
	RoutingProjectCompleted       = "project.completed"
	RoutingProjectOnHold          = "project.on_hold"
	RoutingProjectResumed         = "project.resumed"
	RoutingProjectDeleted         = "project.deleted"
	RoutingProjectClientAttached  = "project.client_attached"
	RoutingInvitationCreated      = "invitation.created"
)

const (
	AggregateProject   = "project"
	AggregateMilestone = "milestone"
)

// Every payload carries EventID so consumers can de-duplicate redeliveries.

type RoadmapReplacedPayload struct {
	EventID      string    `json:"event_id"`
	ProjectID    string    `json:"project_id"`
	ActorID      string    `json:"actor_id"`
	Removed      int       `json:"removed"`
	MilestoneIDs []string  `json:"milestone_ids"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type RoadmapReorderedPayload struct {
	EventID      string    `json:"event_id"`
	ProjectID    string    `json:"project_id"`
	ActorID      string    `json:"actor_id"`
	MilestoneIDs []string  `json:"milestone_ids"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// MilestonePayload is used by milestone.added, milestone.updated and
// milestone.deleted.
type MilestonePayload struct {
	EventID     string    `json:"event_id"`
	ProjectID   string    `json:"project_id"`
	MilestoneID string    `json:"milestone_id"`
	ActorID     string    `json:"actor_id"`
	Title       string    `json:"title"`
	Order       int       `json:"order"`
	TraceID     string    `json:"trace_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type MilestoneStatusChangedPayload struct {
	EventID     string    `json:"event_id"`
	ProjectID   string    `json:"project_id"`
	MilestoneID string    `json:"milestone_id"`
	ActorID     string    `json:"actor_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	TraceID     string    `json:"trace_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
