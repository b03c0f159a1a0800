// Package roadmap owns the ordered milestone list of a project and the
// per-milestone status workflow.
//
// Every mutation runs in one store transaction: ownership check, project row
// lock, validation, writes and the outbox event commit or fail together, so
// milestone orders stay dense (0..n-1) after every successful call.
package roadmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/guard"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/trace"
)

// DefaultMilestoneTitle is given to milestones added without a title.
const DefaultMilestoneTitle = "New milestone"

type Engine struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewEngine(store storage.Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// failureMessages are the user-facing texts of OperationFailed per operation.
var failureMessages = map[string]string{
	"replace_all":      "could not save the roadmap",
	"reorder":          "could not reorder milestones",
	"update":           "could not update the milestone",
	"delete":           "could not delete the milestone",
	"add":              "could not add a milestone",
	"set_status":       "could not change the milestone status",
	"validate_roadmap": "could not validate the roadmap",
	"next_milestone":   "could not load the next milestone",
	"stats":            "could not load roadmap statistics",
	"list":             "could not load milestones",
}

// finish is the error boundary of every public operation. Application
// errors pass through; anything else is logged with its detail and replaced
// by an opaque OperationFailed.
func (e *Engine) finish(ctx context.Context, op string, err error, fields ...zap.Field) error {
	if err == nil {
		metrics.IncrementRoadmapOperation(op, "ok")
		return nil
	}
	if apperr.IsApp(err) {
		metrics.IncrementRoadmapOperation(op, apperr.KindOf(err).String())
		return err
	}

	metrics.IncrementRoadmapOperation(op, apperr.KindOperationFailed.String())
	logger.WithTrace(ctx, e.logger).Error("Roadmap operation failed",
		append(fields, zap.String("operation", op), zap.Error(err))...,
	)

	msg, ok := failureMessages[op]
	if !ok {
		msg = "operation failed"
	}
	return apperr.OperationFailed(msg)
}

// lockOwnedProject checks ownership, then takes the project row lock so the
// milestone set read afterwards cannot change until commit.
func (e *Engine) lockOwnedProject(ctx context.Context, tx storage.Tx, actor model.Actor, projectID string) (*model.Project, error) {
	p, err := guard.RequireOwnedProject(ctx, tx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := tx.LockProject(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// lockOwnedMilestone resolves the milestone through its project and re-reads
// it once the project is locked.
func (e *Engine) lockOwnedMilestone(ctx context.Context, tx storage.Tx, actor model.Actor, milestoneID string) (*model.Milestone, *model.Project, error) {
	m, p, err := guard.RequireOwnedMilestone(ctx, tx, actor, milestoneID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.LockProject(ctx, p.ID); err != nil {
		return nil, nil, err
	}
	m, err = tx.GetMilestone(ctx, m.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperr.NotFound("milestone")
	}
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// record appends an outbox event. build receives the event id so the payload
// can carry it for consumer-side de-duplication.
func (e *Engine) record(ctx context.Context, tx storage.Tx, routingKey, aggregateType, aggregateID string, build func(eventID, traceID string, at time.Time) any) error {
	id := e.newID()
	at := e.now().UTC()
	err := tx.AppendEvent(ctx, storage.Event{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       build(id, trace.FromContext(ctx), at),
		CreatedAt:     at,
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", routingKey, err)
	}
	return nil
}

func milestoneIDs(ms []model.Milestone) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}
