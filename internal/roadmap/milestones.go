package roadmap

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"freelancehub/contracts/mq"
	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

// MilestoneInput is one item of a full roadmap replacement.
type MilestoneInput struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	EstimatedDuration string `json:"estimatedDuration"`
}

// MilestonePatch is a partial update; nil fields are left unchanged.
type MilestonePatch struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	EstimatedDuration *string `json:"estimatedDuration"`
}

func (p MilestonePatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.EstimatedDuration == nil
}

// ReplaceAll deletes every milestone of the project and inserts items in
// order, all PENDING. A project the caller does not own is reported as
// NotFound.
func (e *Engine) ReplaceAll(ctx context.Context, actor model.Actor, projectID string, items []MilestoneInput) ([]model.Milestone, error) {
	var out []model.Milestone
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := e.lockOwnedProject(ctx, tx, actor, projectID); err != nil {
			if errors.Is(err, apperr.ErrAccessDenied) {
				return apperr.NotFound("project")
			}
			return err
		}

		milestones := make([]model.Milestone, len(items))
		for i, item := range items {
			title := strings.TrimSpace(item.Title)
			if title == "" {
				return apperr.Validation("milestone %d: title is required", i+1)
			}
			milestones[i] = model.Milestone{
				ID:                e.newID(),
				ProjectID:         projectID,
				Title:             title,
				Description:       strings.TrimSpace(item.Description),
				EstimatedDuration: strings.TrimSpace(item.EstimatedDuration),
				Order:             i,
				Status:            model.MilestonePending,
			}
		}

		removed, err := tx.DeleteMilestonesByProject(ctx, projectID)
		if err != nil {
			return err
		}
		if err := tx.InsertMilestones(ctx, milestones); err != nil {
			return err
		}

		err = e.record(ctx, tx, mq.RoutingRoadmapReplaced, mq.AggregateProject, projectID, func(id, traceID string, at time.Time) any {
			return mq.RoadmapReplacedPayload{
				EventID:      id,
				ProjectID:    projectID,
				ActorID:      actor.UserID,
				Removed:      removed,
				MilestoneIDs: milestoneIDs(milestones),
				TraceID:      traceID,
				OccurredAt:   at,
			}
		})
		if err != nil {
			return err
		}

		out = milestones
		return nil
	})
	if err != nil {
		return nil, e.finish(ctx, "replace_all", err, zap.String("project_id", projectID))
	}

	e.logger.Info("Roadmap replaced",
		zap.String("project_id", projectID),
		zap.Int("milestones", len(out)),
	)
	return out, e.finish(ctx, "replace_all", nil)
}

// Reorder assigns order = index for every id of orderedIDs, which must be a
// permutation of the project's current milestone ids.
func (e *Engine) Reorder(ctx context.Context, actor model.Actor, projectID string, orderedIDs []string) ([]model.Milestone, error) {
	var out []model.Milestone
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := e.lockOwnedProject(ctx, tx, actor, projectID); err != nil {
			return err
		}

		current, err := tx.ListMilestones(ctx, projectID)
		if err != nil {
			return err
		}
		if err := checkPermutation(current, orderedIDs); err != nil {
			return err
		}

		if err := tx.SetMilestoneOrders(ctx, projectID, orderedIDs); err != nil {
			return err
		}

		err = e.record(ctx, tx, mq.RoutingRoadmapReordered, mq.AggregateProject, projectID, func(id, traceID string, at time.Time) any {
			return mq.RoadmapReorderedPayload{
				EventID:      id,
				ProjectID:    projectID,
				ActorID:      actor.UserID,
				MilestoneIDs: orderedIDs,
				TraceID:      traceID,
				OccurredAt:   at,
			}
		})
		if err != nil {
			return err
		}

		out, err = tx.ListMilestones(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, e.finish(ctx, "reorder", err, zap.String("project_id", projectID))
	}
	return out, e.finish(ctx, "reorder", nil)
}

// checkPermutation rejects missing, extra and duplicate ids.
func checkPermutation(current []model.Milestone, orderedIDs []string) error {
	if len(orderedIDs) != len(current) {
		return apperr.Validation("expected %d milestone ids, got %d", len(current), len(orderedIDs))
	}
	known := make(map[string]bool, len(current))
	for _, m := range current {
		known[m.ID] = false
	}
	for _, id := range orderedIDs {
		seen, ok := known[id]
		if !ok {
			return apperr.Validation("milestone %s does not belong to this project", id)
		}
		if seen {
			return apperr.Validation("milestone %s is listed twice", id)
		}
		known[id] = true
	}
	return nil
}

// Update applies a partial edit to a milestone. A provided title must not be
// blank.
func (e *Engine) Update(ctx context.Context, actor model.Actor, milestoneID string, patch MilestonePatch) (*model.Milestone, error) {
	var out *model.Milestone
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		m, p, err := e.lockOwnedMilestone(ctx, tx, actor, milestoneID)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return apperr.Validation("title cannot be empty")
			}
			m.Title = title
		}
		if patch.Description != nil {
			m.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.EstimatedDuration != nil {
			m.EstimatedDuration = strings.TrimSpace(*patch.EstimatedDuration)
		}
		if patch.empty() {
			out = m
			return nil
		}

		if err := tx.UpdateMilestone(ctx, m); err != nil {
			return err
		}

		err = e.record(ctx, tx, mq.RoutingMilestoneUpdated, mq.AggregateMilestone, m.ID, func(id, traceID string, at time.Time) any {
			return mq.MilestonePayload{
				EventID:     id,
				ProjectID:   p.ID,
				MilestoneID: m.ID,
				ActorID:     actor.UserID,
				Title:       m.Title,
				Order:       m.Order,
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
		return nil, e.finish(ctx, "update", err, zap.String("milestone_id", milestoneID))
	}
	return out, e.finish(ctx, "update", nil)
}

// Delete removes the milestone and renumbers the survivors 0..n-1, keeping
// their relative order.
func (e *Engine) Delete(ctx context.Context, actor model.Actor, milestoneID string) error {
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		m, p, err := e.lockOwnedMilestone(ctx, tx, actor, milestoneID)
		if err != nil {
			return err
		}

		if err := tx.DeleteMilestone(ctx, m.ID); err != nil {
			return err
		}
		rest, err := tx.ListMilestones(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := tx.SetMilestoneOrders(ctx, p.ID, milestoneIDs(rest)); err != nil {
			return err
		}

		return e.record(ctx, tx, mq.RoutingMilestoneDeleted, mq.AggregateMilestone, m.ID, func(id, traceID string, at time.Time) any {
			return mq.MilestonePayload{
				EventID:     id,
				ProjectID:   p.ID,
				MilestoneID: m.ID,
				ActorID:     actor.UserID,
				Title:       m.Title,
				Order:       m.Order,
				TraceID:     traceID,
				OccurredAt:  at,
			}
		})
	})
	return e.finish(ctx, "delete", err, zap.String("milestone_id", milestoneID))
}

// Add inserts a PENDING placeholder milestone. With afterOrder it goes to
// afterOrder+1 and later milestones shift up; -1 inserts first. Without it,
// or when afterOrder is at or past the last milestone, it is appended.
func (e *Engine) Add(ctx context.Context, actor model.Actor, projectID string, afterOrder *int) (*model.Milestone, error) {
	var out *model.Milestone
	err := e.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := e.lockOwnedProject(ctx, tx, actor, projectID); err != nil {
			return err
		}
		if afterOrder != nil && *afterOrder < -1 {
			return apperr.Validation("after_order must be -1 or greater")
		}

		current, err := tx.ListMilestones(ctx, projectID)
		if err != nil {
			return err
		}

		position := len(current)
		if afterOrder != nil && *afterOrder+1 < len(current) {
			position = *afterOrder + 1
			if err := tx.ShiftMilestones(ctx, projectID, position, 1); err != nil {
				return err
			}
		}

		m := model.Milestone{
			ID:        e.newID(),
			ProjectID: projectID,
			Title:     DefaultMilestoneTitle,
			Order:     position,
			Status:    model.MilestonePending,
		}
		batch := []model.Milestone{m}
		if err := tx.InsertMilestones(ctx, batch); err != nil {
			return err
		}
		m = batch[0]

		err = e.record(ctx, tx, mq.RoutingMilestoneAdded, mq.AggregateMilestone, m.ID, func(id, traceID string, at time.Time) any {
			return mq.MilestonePayload{
				EventID:     id,
				ProjectID:   projectID,
				MilestoneID: m.ID,
				ActorID:     actor.UserID,
				Title:       m.Title,
				Order:       m.Order,
				TraceID:     traceID,
				OccurredAt:  at,
			}
		})
		if err != nil {
			return err
		}

		out = &m
		return nil
	})
	if err != nil {
		return nil, e.finish(ctx, "add", err, zap.String("project_id", projectID))
	}
	return out, e.finish(ctx, "add", nil)
}
