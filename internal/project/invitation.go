package project

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"freelancehub/contracts/mq"
	"freelancehub/internal/apperr"
	"freelancehub/internal/guard"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

const invitationTokenBytes = 32

// Invitation is a created invitation together with the link the client
// follows to accept it.
type Invitation struct {
	*model.ProjectInvitation
	Link string `json:"link"`
}

// InvitationPreview is what an unauthenticated visitor of an invitation link
// may see.
type InvitationPreview struct {
	ProjectID      string    `json:"project_id"`
	ProjectTitle   string    `json:"project_title"`
	FreelancerName string    `json:"freelancer_name"`
	Email          string    `json:"email"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func newInvitationToken() (string, error) {
	b := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Service) invitationLink(token string) string {
	return s.baseURL + "/invite/" + token
}

// CreateInvitation replaces any earlier invitation of email to the project
// and moves a DRAFT project to ONBOARDING. Delivering the link is left to a
// consumer of invitation.created.
func (s *Service) CreateInvitation(ctx context.Context, actor model.Actor, projectID, email string) (*Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation("invalid email address")
	}

	token, err := s.newToken()
	if err != nil {
		return nil, s.finish(ctx, "create_invitation", err, zap.String("project_id", projectID))
	}

	var out *Invitation
	err = s.store.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := guard.RequireOwnedProject(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}
		if err := tx.LockProject(ctx, projectID); err != nil {
			return err
		}
		if p.Status == model.ProjectCompleted {
			return apperr.Validation("project is already completed")
		}
		if p.ClientID != "" {
			return apperr.Validation("project already has a client")
		}

		if _, err := tx.DeleteInvitationsFor(ctx, projectID, email); err != nil {
			return err
		}
		now := s.now()
		inv := &model.ProjectInvitation{
			ID:        s.newID(),
			Email:     email,
			Token:     token,
			ProjectID: projectID,
			Status:    model.InvitationPending,
			ExpiresAt: now.Add(model.InvitationTTL).UTC(),
			CreatedAt: now.UTC(),
		}
		if err := tx.InsertInvitation(ctx, inv); err != nil {
			return err
		}

		if p.Status == model.ProjectDraft {
			p.Status = model.ProjectOnboarding
			if err := tx.UpdateProject(ctx, p); err != nil {
				return err
			}
		}

		out = &Invitation{ProjectInvitation: inv, Link: s.invitationLink(token)}
		return s.record(ctx, tx, mq.RoutingInvitationCreated, projectID, func(id, traceID string, at time.Time) any {
			return mq.InvitationCreatedPayload{
				EventID:      id,
				InvitationID: inv.ID,
				ProjectID:    projectID,
				Email:        email,
				Link:         out.Link,
				ExpiresAt:    inv.ExpiresAt,
				TraceID:      traceID,
				OccurredAt:   at,
			}
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "create_invitation", err, zap.String("project_id", projectID))
	}
	s.logger.Info("Invitation created",
		zap.String("project_id", projectID),
		zap.String("invitation_id", out.ID),
	)
	return out, nil
}

// LookupInvitation previews a pending invitation without authentication.
func (s *Service) LookupInvitation(ctx context.Context, token string) (*InvitationPreview, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("invitation")
	}
	if err != nil {
		return nil, s.finish(ctx, "lookup_invitation", err)
	}
	if inv.ExpiredAt(s.now()) {
		return nil, apperr.Validation("invitation has expired")
	}

	p, err := s.store.GetProject(ctx, inv.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("invitation")
	}
	if err != nil {
		return nil, s.finish(ctx, "lookup_invitation", err)
	}
	preview := &InvitationPreview{
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		Email:        inv.Email,
		ExpiresAt:    inv.ExpiresAt,
	}
	if u, err := s.store.GetUser(ctx, p.FreelancerID); err == nil {
		preview.FreelancerName = u.Name
	}
	return preview, nil
}

// AcceptInvitation attaches the calling client to the invited project and
// activates it. The invitation is consumed.
func (s *Service) AcceptInvitation(ctx context.Context, actor model.Actor, token string) (*model.Project, error) {
	if err := guard.Authenticate(actor); err != nil {
		return nil, err
	}
	if actor.Role != model.RoleClient {
		return nil, apperr.AccessDenied("only clients can accept invitations")
	}

	var out *model.Project
	err := s.store.RunInTx(ctx, func(tx storage.Tx) error {
		inv, err := tx.GetInvitationByToken(ctx, token)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("invitation")
		}
		if err != nil {
			return err
		}
		if inv.ExpiredAt(s.now()) {
			return apperr.Validation("invitation has expired")
		}
		if err := tx.LockProject(ctx, inv.ProjectID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("invitation")
			}
			return err
		}
		p, err := tx.GetProject(ctx, inv.ProjectID)
		if err != nil {
			return err
		}
		if p.ClientID != "" && p.ClientID != actor.UserID {
			return apperr.Validation("project already has a client")
		}
		if p.Status == model.ProjectCompleted {
			return apperr.Validation("project is already completed")
		}

		from := p.Status
		p.ClientID = actor.UserID
		p.Status = model.ProjectActive
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		if err := tx.DeleteInvitation(ctx, inv.ID); err != nil {
			return err
		}
		out = p

		err = s.record(ctx, tx, mq.RoutingProjectClientAttached, p.ID, func(id, traceID string, at time.Time) any {
			return mq.ClientAttachedPayload{
				EventID:    id,
				ProjectID:  p.ID,
				ClientID:   actor.UserID,
				TraceID:    traceID,
				OccurredAt: at,
			}
		})
		if err != nil {
			return err
		}
		if from != model.ProjectActive {
			return s.recordStatus(ctx, tx, mq.RoutingProjectActivated, actor, p.ID, from, model.ProjectActive)
		}
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "accept_invitation", err)
	}
	s.logger.Info("Client attached to project",
		zap.String("project_id", out.ID),
		zap.String("client_id", actor.UserID),
	)
	return out, nil
}
