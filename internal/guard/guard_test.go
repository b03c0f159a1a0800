package guard

import (
	"context"
	"errors"
	"testing"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
	"freelancehub/internal/storage/memory"
)

var (
	owner    = model.Actor{UserID: "owner", Role: model.RoleFreelancer}
	stranger = model.Actor{UserID: "stranger", Role: model.RoleFreelancer}
	client   = model.Actor{UserID: "client", Role: model.RoleClient}
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	err := s.RunInTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProject(ctx, &model.Project{ID: "p1", Title: "Site", FreelancerID: owner.UserID, ClientID: client.UserID, Status: model.ProjectActive}); err != nil {
			return err
		}
		return tx.InsertMilestones(ctx, []model.Milestone{{ID: "m1", ProjectID: "p1", Title: "Design", Status: model.MilestonePending}})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestRequireOwnedProject(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     model.Actor
		projectID string
		want      error
	}{
		{"owner", owner, "p1", nil},
		{"stranger", stranger, "p1", apperr.ErrAccessDenied},
		{"client cannot mutate", client, "p1", apperr.ErrAccessDenied},
		{"anonymous", model.Actor{}, "p1", apperr.ErrUnauthenticated},
		{"missing", owner, "nope", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := RequireOwnedProject(ctx, s, tt.actor, tt.projectID)
			if tt.want == nil {
				if err != nil || p == nil || p.ID != tt.projectID {
					t.Fatalf("got (%v, %v)", p, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequireOwnedMilestone(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	m, p, err := RequireOwnedMilestone(ctx, s, owner, "m1")
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if m.ID != "m1" || p.ID != "p1" {
		t.Fatalf("resolved %s/%s", m.ID, p.ID)
	}

	if _, _, err := RequireOwnedMilestone(ctx, s, stranger, "m1"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("stranger err = %v", err)
	}
	if _, _, err := RequireOwnedMilestone(ctx, s, owner, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestRequireVisibleProject(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, a := range []model.Actor{owner, client} {
		if _, err := RequireVisibleProject(ctx, s, a, "p1"); err != nil {
			t.Fatalf("%s: %v", a.UserID, err)
		}
	}
	if _, err := RequireVisibleProject(ctx, s, stranger, "p1"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("stranger err = %v", err)
	}
}
