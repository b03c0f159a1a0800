// Package project manages the freelancer's projects and the invitations that
// attach a client to one of them.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freelancehub/contracts/mq"
	"freelancehub/internal/apperr"
	"freelancehub/internal/guard"
	"freelancehub/internal/model"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/trace"
)

const maxTitleLength = 200

// Detail is a project with its ordered roadmap and progress.
type Detail struct {
	Project    *model.Project    `json:"project"`
	Milestones []model.Milestone `json:"milestones"`
	Stats      roadmap.Stats     `json:"stats"`
}

type Service struct {
	store    storage.Store
	logger   *zap.Logger
	baseURL  string
	now      func() time.Time
	newID    func() string
	newToken func() (string, error)
}

// NewService builds the project service. baseURL prefixes invitation links.
func NewService(store storage.Store, baseURL string, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		newID:    uuid.NewString,
		newToken: newInvitationToken,
	}
}

var failureMessages = map[string]string{
	"create_project":    "could not create the project",
	"list_projects":     "could not load projects",
	"get_project":       "could not load the project",
	"delete_project":    "could not delete the project",
	"hold_project":      "could not put the project on hold",
	"resume_project":    "could not resume the project",
	"create_invitation": "could not create the invitation",
	"lookup_invitation": "could not load the invitation",
	"accept_invitation": "could not accept the invitation",
}

func (s *Service) finish(ctx context.Context, op string, err error, fields ...zap.Field) error {
	if err == nil {
		metrics.IncrementRoadmapOperation(op, "ok")
		return nil
	}
	if apperr.IsApp(err) {
		metrics.IncrementRoadmapOperation(op, apperr.KindOf(err).String())
		return err
	}

	metrics.IncrementRoadmapOperation(op, apperr.KindOperationFailed.String())
	logger.WithTrace(ctx, s.logger).Error("Project operation failed",
		append(fields, zap.String("operation", op), zap.Error(err))...,
	)
	msg, ok := failureMessages[op]
	if !ok {
		msg = "operation failed"
	}
	return apperr.OperationFailed(msg)
}

func (s *Service) record(ctx context.Context, tx storage.Tx, routingKey, aggregateID string, build func(eventID, traceID string, at time.Time) any) error {
	id := s.newID()
	at := s.now().UTC()
	err := tx.AppendEvent(ctx, storage.Event{
		ID:            id,
		AggregateType: mq.AggregateProject,
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

func (s *Service) recordStatus(ctx context.Context, tx storage.Tx, routingKey string, actor model.Actor, projectID string, from, to model.ProjectStatus) error {
	return s.record(ctx, tx, routingKey, projectID, func(id, traceID string, at time.Time) any {
		return mq.ProjectStatusPayload{
			EventID:    id,
			ProjectID:  projectID,
			ActorID:    actor.UserID,
			From:       string(from),
			To:         string(to),
			TraceID:    traceID,
			OccurredAt: at,
		}
	})
}

// Create starts a DRAFT project owned by the calling freelancer.
func (s *Service) Create(ctx context.Context, actor model.Actor, title, description string) (*model.Project, error) {
	if err := guard.Authenticate(actor); err != nil {
		return nil, err
	}
	if actor.Role != model.RoleFreelancer {
		return nil, apperr.AccessDenied("only freelancers can create projects")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, apperr.Validation("title must be at most %d characters", maxTitleLength)
	}

	p := &model.Project{
		ID:           s.newID(),
		Title:        title,
		Description:  strings.TrimSpace(description),
		FreelancerID: actor.UserID,
		Status:       model.ProjectDraft,
	}
	err := s.store.RunInTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		return s.recordStatus(ctx, tx, mq.RoutingProjectCreated, actor, p.ID, "", model.ProjectDraft)
	})
	if err != nil {
		return nil, s.finish(ctx, "create_project", err)
	}
	return p, nil
}

// ListOwned returns the caller's projects, newest first.
func (s *Service) ListOwned(ctx context.Context, actor model.Actor) ([]model.Project, error) {
	if err := guard.Authenticate(actor); err != nil {
		return nil, err
	}
	ps, err := s.store.ListProjectsByFreelancer(ctx, actor.UserID)
	if err != nil {
		return nil, s.finish(ctx, "list_projects", err)
	}
	return ps, nil
}

// ListForClient returns the projects the caller is attached to as client.
func (s *Service) ListForClient(ctx context.Context, actor model.Actor) ([]model.Project, error) {
	if err := guard.Authenticate(actor); err != nil {
		return nil, err
	}
	ps, err := s.store.ListProjectsByClient(ctx, actor.UserID)
	if err != nil {
		return nil, s.finish(ctx, "list_projects", err)
	}
	return ps, nil
}

// Get returns the project with its milestones and stats. The owner and the
// assigned client may read it.
func (s *Service) Get(ctx context.Context, actor model.Actor, id string) (*Detail, error) {
	p, err := guard.RequireVisibleProject(ctx, s.store, actor, id)
	if err != nil {
		return nil, s.finish(ctx, "get_project", err, zap.String("project_id", id))
	}
	ms, err := s.store.ListMilestones(ctx, id)
	if err != nil {
		return nil, s.finish(ctx, "get_project", err, zap.String("project_id", id))
	}
	if ms == nil {
		ms = []model.Milestone{}
	}
	return &Detail{Project: p, Milestones: ms, Stats: roadmap.ComputeStats(ms)}, nil
}

// Delete removes the project with its milestones and invitations.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id string) error {
	err := s.store.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := guard.RequireOwnedProject(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if err := tx.LockProject(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteProject(ctx, id); err != nil {
			return err
		}
		return s.recordStatus(ctx, tx, mq.RoutingProjectDeleted, actor, id, p.Status, "")
	})
	return s.finish(ctx, "delete_project", err, zap.String("project_id", id))
}

// Hold pauses an ACTIVE project.
func (s *Service) Hold(ctx context.Context, actor model.Actor, id string) (*model.Project, error) {
	p, err := s.transition(ctx, actor, id, model.ProjectActive, model.ProjectOnHold, mq.RoutingProjectOnHold)
	if err != nil {
		return nil, s.finish(ctx, "hold_project", err, zap.String("project_id", id))
	}
	return p, nil
}

// Resume reactivates an ON_HOLD project.
func (s *Service) Resume(ctx context.Context, actor model.Actor, id string) (*model.Project, error) {
	p, err := s.transition(ctx, actor, id, model.ProjectOnHold, model.ProjectActive, mq.RoutingProjectResumed)
	if err != nil {
		return nil, s.finish(ctx, "resume_project", err, zap.String("project_id", id))
	}
	return p, nil
}

func (s *Service) transition(ctx context.Context, actor model.Actor, id string, from, to model.ProjectStatus, routingKey string) (*model.Project, error) {
	var out *model.Project
	err := s.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := guard.RequireOwnedProject(ctx, tx, actor, id); err != nil {
			return err
		}
		if err := tx.LockProject(ctx, id); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("project")
		}
		if err != nil {
			return err
		}
		if p.Status != from {
			return apperr.Validation("project is %s, expected %s", p.Status, from)
		}
		p.Status = to
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		out = p
		return s.recordStatus(ctx, tx, routingKey, actor, id, from, to)
	})
	return out, err
}
