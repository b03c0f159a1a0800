package roadmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"freelancehub/contracts/mq"
	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
	"freelancehub/pkg/metrics"
)

// SetStatus moves a milestone one step along
// PENDING -> IN_PROGRESS -> AWAITING_APPROVAL -> COMPLETED.
// Any other transition, including staying in place, is a validation error.
func (e *Engine) SetStatus(ctx context.Context, actor model.Actor, milestoneID string, to model.MilestoneStatus) (*model.Milestone, error) {
	var (
		out  *model.Milestone
		from model.MilestoneStatus
	)
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		m, p, err := e.lockOwnedMilestone(ctx, tx, actor, milestoneID)
		if err != nil {
			return err
		}
		if !m.Status.CanTransitionTo(to) {
			return apperr.Validation("cannot move milestone from %s to %s", m.Status, to)
		}

		from = m.Status
		m.Status = to
		if err := tx.UpdateMilestone(ctx, m); err != nil {
			return err
		}

		err = e.record(ctx, tx, mq.RoutingMilestoneStatusChanged, mq.AggregateMilestone, m.ID, func(id, traceID string, at time.Time) any {
			return mq.MilestoneStatusChangedPayload{
				EventID:     id,
				ProjectID:   p.ID,
				MilestoneID: m.ID,
				ActorID:     actor.UserID,
				From:        string(from),
				To:          string(to),
				TraceID:     traceID,
				OccurredAt:  at,
			}
		})
		if err != nil {
			return err
		}

		out = m
		return nil
	})
	if err != nil {
		return nil, e.finish(ctx, "set_status", err,
			zap.String("milestone_id", milestoneID),
			zap.String("to", string(to)),
		)
	}

	metrics.IncrementMilestoneTransition(string(from), string(to))
	return out, e.finish(ctx, "set_status", nil)
}

func (e *Engine) Start(ctx context.Context, actor model.Actor, milestoneID string) (*model.Milestone, error) {
	return e.SetStatus(ctx, actor, milestoneID, model.MilestoneInProgress)
}

func (e *Engine) SubmitForApproval(ctx context.Context, actor model.Actor, milestoneID string) (*model.Milestone, error) {
	return e.SetStatus(ctx, actor, milestoneID, model.MilestoneAwaitingApproval)
}

func (e *Engine) Complete(ctx context.Context, actor model.Actor, milestoneID string) (*model.Milestone, error) {
	return e.SetStatus(ctx, actor, milestoneID, model.MilestoneCompleted)
}

// ValidateRoadmap marks the project ACTIVE once it has at least one
// milestone. Validating an ACTIVE project is a no-op.
func (e *Engine) ValidateRoadmap(ctx context.Context, actor model.Actor, projectID string) (*model.Project, error) {
	var out *model.Project
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := e.lockOwnedProject(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}

		ms, err := tx.ListMilestones(ctx, projectID)
		if err != nil {
			return err
		}
		if len(ms) == 0 {
			return apperr.Validation("add at least one milestone before validating the roadmap")
		}

		switch p.Status {
		case model.ProjectActive:
			out = p
			return nil
		case model.ProjectCompleted:
			return apperr.Validation("project is already completed")
		case model.ProjectOnHold:
			return apperr.Validation("project is on hold; resume it instead")
		}

		from := p.Status
		p.Status = model.ProjectActive
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}

		err = e.record(ctx, tx, mq.RoutingProjectActivated, mq.AggregateProject, p.ID, func(id, traceID string, at time.Time) any {
			return mq.ProjectStatusPayload{
				EventID:    id,
				ProjectID:  p.ID,
				ActorID:    actor.UserID,
				From:       string(from),
				To:         string(model.ProjectActive),
				TraceID:    traceID,
				OccurredAt: at,
			}
		})
		if err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, e.finish(ctx, "validate_roadmap", err, zap.String("project_id", projectID))
	}
	return out, e.finish(ctx, "validate_roadmap", nil)
}

// CompleteProjectIfFinished moves an ACTIVE project to COMPLETED once every
// milestone is COMPLETED. It runs on behalf of the system, not a user, so
// store errors are returned as-is for the caller to classify. A project that
// no longer exists is not an error.
func (e *Engine) CompleteProjectIfFinished(ctx context.Context, projectID string) (bool, error) {
	completed := false
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProject(ctx, projectID); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p.Status != model.ProjectActive {
			return nil
		}

		ms, err := tx.ListMilestones(ctx, projectID)
		if err != nil {
			return err
		}
		if len(ms) == 0 || FirstIncomplete(ms) != nil {
			return nil
		}

		p.Status = model.ProjectCompleted
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		completed = true
		return e.record(ctx, tx, mq.RoutingProjectCompleted, mq.AggregateProject, p.ID, func(id, traceID string, at time.Time) any {
			return mq.ProjectStatusPayload{
				EventID:    id,
				ProjectID:  p.ID,
				From:       string(model.ProjectActive),
				To:         string(model.ProjectCompleted),
				TraceID:    traceID,
				OccurredAt: at,
			}
		})
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete project %s: %w", projectID, err)
	}
	return completed, nil
}
