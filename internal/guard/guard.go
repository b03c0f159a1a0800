// Package guard resolves the target of a request and checks that the caller
// may act on it. Every roadmap mutation goes through RequireOwnedProject or
// RequireOwnedMilestone before touching the store.
package guard

import (
	"context"
	"errors"
	"fmt"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

// Authenticate fails with Unauthenticated when no identity is attached.
func Authenticate(actor model.Actor) error {
	if !actor.Authenticated() {
		return apperr.Unauthenticated()
	}
	return nil
}

// RequireOwnedProject loads the project and checks the caller is its
// freelancer. A missing project is NotFound; someone else's is AccessDenied.
func RequireOwnedProject(ctx context.Context, r storage.Reader, actor model.Actor, projectID string) (*model.Project, error) {
	if err := Authenticate(actor); err != nil {
		return nil, err
	}
	p, err := loadProject(ctx, r, projectID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(actor.UserID) {
		return nil, apperr.AccessDenied("you do not own this project")
	}
	return p, nil
}

// RequireOwnedMilestone resolves the milestone's parent project and applies
// the project ownership check to it.
func RequireOwnedMilestone(ctx context.Context, r storage.Reader, actor model.Actor, milestoneID string) (*model.Milestone, *model.Project, error) {
	if err := Authenticate(actor); err != nil {
		return nil, nil, err
	}
	m, err := r.GetMilestone(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperr.NotFound("milestone")
		}
		return nil, nil, fmt.Errorf("load milestone %s: %w", milestoneID, err)
	}
	p, err := RequireOwnedProject(ctx, r, actor, m.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// RequireVisibleProject allows the owner and the assigned client.
func RequireVisibleProject(ctx context.Context, r storage.Reader, actor model.Actor, projectID string) (*model.Project, error) {
	if err := Authenticate(actor); err != nil {
		return nil, err
	}
	p, err := loadProject(ctx, r, projectID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(actor.UserID) && !p.HasClient(actor.UserID) {
		return nil, apperr.AccessDenied("you do not have access to this project")
	}
	return p, nil
}

func loadProject(ctx context.Context, r storage.Reader, projectID string) (*model.Project, error) {
	p, err := r.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("project")
		}
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	return p, nil
}
