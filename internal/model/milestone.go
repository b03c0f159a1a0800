package model

import (
	"fmt"
	"time"
)

// MilestoneStatus is the per-milestone workflow state.
type MilestoneStatus string

const (
	MilestonePending          MilestoneStatus = "PENDING"
	MilestoneInProgress       MilestoneStatus = "IN_PROGRESS"
	MilestoneAwaitingApproval MilestoneStatus = "AWAITING_APPROVAL"
	MilestoneCompleted        MilestoneStatus = "COMPLETED"
)

// milestoneTransitions lists the only legal edges of the workflow.
// COMPLETED is terminal.
var milestoneTransitions = map[MilestoneStatus]MilestoneStatus{
	MilestonePending:          MilestoneInProgress,
	MilestoneInProgress:       MilestoneAwaitingApproval,
	MilestoneAwaitingApproval: MilestoneCompleted,
}

// ParseMilestoneStatus converts a raw status string into a MilestoneStatus.
func ParseMilestoneStatus(raw string) (MilestoneStatus, error) {
	s := MilestoneStatus(raw)
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneAwaitingApproval, MilestoneCompleted:
		return s, nil
	}
	return "", fmt.Errorf("unknown milestone status %q", raw)
}

// CanTransitionTo reports whether the workflow allows moving from s to next.
func (s MilestoneStatus) CanTransitionTo(next MilestoneStatus) bool {
	to, ok := milestoneTransitions[s]
	return ok && to == next
}

// Next returns the status that follows s, or false when s is terminal.
func (s MilestoneStatus) Next() (MilestoneStatus, bool) {
	to, ok := milestoneTransitions[s]
	return to, ok
}

func (s MilestoneStatus) Terminal() bool {
	return s == MilestoneCompleted
}

type Milestone struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	EstimatedDuration string          `json:"estimated_duration"`
	Order             int             `json:"order"`
	Status            MilestoneStatus `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
