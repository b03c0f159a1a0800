package roadmap

import (
	"context"
	"math"

	"go.uber.org/zap"

	"freelancehub/internal/guard"
	"freelancehub/internal/model"
)

type Stats struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	InProgress       int `json:"in_progress"`
	AwaitingApproval int `json:"awaiting_approval"`
	Completed        int `json:"completed"`
	// Progress is round(Completed/Total*100), 0 for an empty roadmap.
	Progress int `json:"progress"`
	// Current is the first IN_PROGRESS milestone, else the first PENDING one.
	Current *model.Milestone `json:"current,omitempty"`
}

// ComputeStats aggregates milestones, which must be ordered by Order.
func ComputeStats(milestones []model.Milestone) Stats {
	var s Stats
	var firstPending *model.Milestone
	for i := range milestones {
		m := &milestones[i]
		s.Total++
		switch m.Status {
		case model.MilestonePending:
			s.Pending++
			if firstPending == nil {
				firstPending = m
			}
		case model.MilestoneInProgress:
			s.InProgress++
			if s.Current == nil {
				s.Current = m
			}
		case model.MilestoneAwaitingApproval:
			s.AwaitingApproval++
		case model.MilestoneCompleted:
			s.Completed++
		}
	}
	if s.Current == nil {
		s.Current = firstPending
	}
	if s.Total > 0 {
		s.Progress = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

// FirstIncomplete returns the lowest-order milestone that is not COMPLETED.
func FirstIncomplete(milestones []model.Milestone) *model.Milestone {
	for i := range milestones {
		if !milestones[i].Status.Terminal() {
			m := milestones[i]
			return &m
		}
	}
	return nil
}

// List returns the project's milestones by ascending order. The owner and the
// assigned client may read it.
func (e *Engine) List(ctx context.Context, actor model.Actor, projectID string) ([]model.Milestone, error) {
	if _, err := guard.RequireVisibleProject(ctx, e.store, actor, projectID); err != nil {
		return nil, e.finish(ctx, "list", err, zap.String("project_id", projectID))
	}
	ms, err := e.store.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, e.finish(ctx, "list", err, zap.String("project_id", projectID))
	}
	return ms, nil
}

// NextMilestone returns nil when every milestone is COMPLETED or there are
// none.
func (e *Engine) NextMilestone(ctx context.Context, actor model.Actor, projectID string) (*model.Milestone, error) {
	if _, err := guard.RequireVisibleProject(ctx, e.store, actor, projectID); err != nil {
		return nil, e.finish(ctx, "next_milestone", err, zap.String("project_id", projectID))
	}
	ms, err := e.store.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, e.finish(ctx, "next_milestone", err, zap.String("project_id", projectID))
	}
	return FirstIncomplete(ms), nil
}

func (e *Engine) Stats(ctx context.Context, actor model.Actor, projectID string) (*Stats, error) {
	if _, err := guard.RequireVisibleProject(ctx, e.store, actor, projectID); err != nil {
		return nil, e.finish(ctx, "stats", err, zap.String("project_id", projectID))
	}
	ms, err := e.store.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, e.finish(ctx, "stats", err, zap.String("project_id", projectID))
	}
	s := ComputeStats(ms)
	return &s, nil
}
