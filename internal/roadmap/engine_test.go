package roadmap

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"go.uber.org/zap"

	"freelancehub/contracts/mq"
	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
	"freelancehub/internal/storage/memory"
)

var (
	owner    = model.Actor{UserID: "freelancer-1", Role: model.RoleFreelancer}
	stranger = model.Actor{UserID: "freelancer-2", Role: model.RoleFreelancer}
	client   = model.Actor{UserID: "client-1", Role: model.RoleClient}
)

const projectID = "project-1"

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	err := s.RunInTx(ctx, func(tx storage.Tx) error {
		return tx.InsertProject(ctx, &model.Project{
			ID:           projectID,
			Title:        "Website redesign",
			FreelancerID: owner.UserID,
			ClientID:     client.UserID,
			Status:       model.ProjectDraft,
		})
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return NewEngine(s, zap.NewNop()), s
}

// seedMilestones replaces the roadmap with one milestone per title and
// returns their ids in order.
func seedMilestones(t *testing.T, e *Engine, titles ...string) []string {
	t.Helper()
	items := make([]MilestoneInput, len(titles))
	for i, title := range titles {
		items[i] = MilestoneInput{Title: title}
	}
	ms, err := e.ReplaceAll(context.Background(), owner, projectID, items)
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	return milestoneIDs(ms)
}

func listOrder(t *testing.T, s *memory.Store) []model.Milestone {
	t.Helper()
	ms, err := s.ListMilestones(context.Background(), projectID)
	if err != nil {
		t.Fatalf("ListMilestones: %v", err)
	}
	return ms
}

func titlesOf(ms []model.Milestone) string {
	titles := make([]string, len(ms))
	for i, m := range ms {
		titles[i] = m.Title
	}
	return strings.Join(titles, ",")
}

func assertDense(t *testing.T, ms []model.Milestone) {
	t.Helper()
	for i, m := range ms {
		if m.Order != i {
			t.Fatalf("milestone %s has order %d at index %d: %s", m.ID, m.Order, i, titlesOf(ms))
		}
	}
}

func TestReorderThenDelete(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "A", "B", "C")
	a, b, c := ids[0], ids[1], ids[2]

	if _, err := e.Reorder(ctx, owner, projectID, []string{b, c, a}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	ms := listOrder(t, s)
	if got := titlesOf(ms); got != "B,C,A" {
		t.Fatalf("after reorder = %s, want B,C,A", got)
	}
	assertDense(t, ms)

	if err := e.Delete(ctx, owner, b); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ms = listOrder(t, s)
	if got := titlesOf(ms); got != "C,A" {
		t.Fatalf("after delete = %s, want C,A", got)
	}
	assertDense(t, ms)
}

func TestReorderRejectsNonPermutation(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "A", "B", "C")

	tests := []struct {
		name string
		ids  []string
	}{
		{"missing", []string{ids[2], ids[0]}},
		{"extra", []string{ids[2], ids[1], ids[0], "other"}},
		{"duplicate", []string{ids[0], ids[0], ids[1]}},
		{"foreign", []string{ids[0], ids[1], "other"}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Reorder(ctx, owner, projectID, tt.ids)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if got := titlesOf(listOrder(t, s)); got != "A,B,C" {
				t.Fatalf("order changed to %s", got)
			}
		})
	}
}

func TestReorderMatchesPermutation(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "A", "B", "C", "D", "E", "F")
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		perm := append([]string(nil), ids...)
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		if _, err := e.Reorder(ctx, owner, projectID, perm); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		position := make(map[string]int, len(perm))
		for i, id := range perm {
			position[id] = i
		}
		for _, m := range listOrder(t, s) {
			if m.Order != position[m.ID] {
				t.Fatalf("round %d: %s order = %d, want %d", round, m.ID, m.Order, position[m.ID])
			}
		}
	}
}

func TestOrderStaysDenseUnderMixedOperations(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedMilestones(t, e, "A", "B", "C")
	rng := rand.New(rand.NewSource(42))

	for step := 0; step < 200; step++ {
		current := listOrder(t, s)
		switch op := rng.Intn(3); {
		case op == 0 || len(current) == 0:
			var after *int
			if rng.Intn(2) == 0 {
				v := rng.Intn(len(current)+2) - 1
				after = &v
			}
			if _, err := e.Add(ctx, owner, projectID, after); err != nil {
				t.Fatalf("step %d add: %v", step, err)
			}
		case op == 1:
			victim := current[rng.Intn(len(current))]
			if err := e.Delete(ctx, owner, victim.ID); err != nil {
				t.Fatalf("step %d delete: %v", step, err)
			}
		default:
			perm := milestoneIDs(current)
			rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
			if _, err := e.Reorder(ctx, owner, projectID, perm); err != nil {
				t.Fatalf("step %d reorder: %v", step, err)
			}
		}
		assertDense(t, listOrder(t, s))
	}
}

func TestDeleteKeepsRelativeOrder(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "A", "B", "C", "D")

	if err := e.Delete(ctx, owner, ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ms := listOrder(t, s)
	if len(ms) != 3 || titlesOf(ms) != "A,C,D" {
		t.Fatalf("after delete = %s", titlesOf(ms))
	}
	assertDense(t, ms)

	if err := e.Delete(ctx, owner, ids[1]); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete err = %v, want not found", err)
	}
}

func TestAddPositions(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name      string
		after     *int
		wantOrder int
		want      string
	}{
		{"append", nil, 3, "A,B,C,N"},
		{"first", intp(-1), 0, "N,A,B,C"},
		{"middle", intp(0), 1, "A,N,B,C"},
		{"after last", intp(2), 3, "A,B,C,N"},
		{"past the end", intp(10), 3, "A,B,C,N"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := newTestEngine(t)
			seedMilestones(t, e, "A", "B", "C")

			m, err := e.Add(context.Background(), owner, projectID, tt.after)
			if err != nil {
				t.Fatalf("Add: %v", err)
			}
			if m.Order != tt.wantOrder || m.Status != model.MilestonePending || m.Title != DefaultMilestoneTitle {
				t.Fatalf("added %+v", m)
			}

			ms := listOrder(t, s)
			got := strings.ReplaceAll(titlesOf(ms), DefaultMilestoneTitle, "N")
			if got != tt.want {
				t.Fatalf("order = %s, want %s", got, tt.want)
			}
			assertDense(t, ms)
		})
	}
}

func TestAddToEmptyRoadmapAndInvalidPosition(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	m, err := e.Add(ctx, owner, projectID, nil)
	if err != nil || m.Order != 0 {
		t.Fatalf("Add on empty = (%+v, %v)", m, err)
	}

	bad := -2
	if _, err := e.Add(ctx, owner, projectID, &bad); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "Design")

	desc := "  Wireframes and mockups "
	m, err := e.Update(ctx, owner, ids[0], MilestonePatch{Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.Title != "Design" || m.Description != "Wireframes and mockups" {
		t.Fatalf("updated = %+v", m)
	}

	blank := "   "
	if _, err := e.Update(ctx, owner, ids[0], MilestonePatch{Title: &blank}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank title err = %v", err)
	}

	dur := "2 weeks"
	m, err = e.Update(ctx, owner, ids[0], MilestonePatch{EstimatedDuration: &dur})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.EstimatedDuration != "2 weeks" || m.Description != "Wireframes and mockups" {
		t.Fatalf("updated = %+v", m)
	}
}

func TestNonOwnerIsDenied(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "A", "B")
	title := "Hijacked"

	for _, actor := range []model.Actor{stranger, client} {
		ops := map[string]func() error{
			"update": func() error {
				_, err := e.Update(ctx, actor, ids[0], MilestonePatch{Title: &title})
				return err
			},
			"delete": func() error { return e.Delete(ctx, actor, ids[0]) },
			"reorder": func() error {
				_, err := e.Reorder(ctx, actor, projectID, []string{ids[1], ids[0]})
				return err
			},
			"add": func() error {
				_, err := e.Add(ctx, actor, projectID, nil)
				return err
			},
			"set_status": func() error {
				_, err := e.SetStatus(ctx, actor, ids[0], model.MilestoneInProgress)
				return err
			},
			"validate": func() error {
				_, err := e.ValidateRoadmap(ctx, actor, projectID)
				return err
			},
		}
		for name, op := range ops {
			if err := op(); !errors.Is(err, apperr.ErrAccessDenied) {
				t.Fatalf("%s by %s: err = %v, want access denied", name, actor.UserID, err)
			}
		}
	}

	if _, err := e.ReplaceAll(ctx, stranger, projectID, []MilestoneInput{{Title: "X"}}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("replace by stranger: err = %v, want not found", err)
	}
	if _, err := e.Update(ctx, model.Actor{}, ids[0], MilestonePatch{Title: &title}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("anonymous update: err = %v", err)
	}

	if got := titlesOf(listOrder(t, s)); got != "A,B" {
		t.Fatalf("denied calls changed the roadmap: %s", got)
	}
}

func TestReplaceAllDiscardsPreviousRoadmap(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedMilestones(t, e, "One", "Two", "Three")

	ms, err := e.ReplaceAll(ctx, owner, projectID, []MilestoneInput{{Title: "X"}, {Title: "Y", EstimatedDuration: "3 days"}})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("returned %d milestones", len(ms))
	}

	stored := listOrder(t, s)
	if titlesOf(stored) != "X,Y" {
		t.Fatalf("stored = %s", titlesOf(stored))
	}
	assertDense(t, stored)
	for _, m := range stored {
		if m.Status != model.MilestonePending {
			t.Fatalf("%s status = %s", m.Title, m.Status)
		}
	}
}

func TestReplaceAllRejectsBlankTitle(t *testing.T) {
	e, s := newTestEngine(t)
	seedMilestones(t, e, "Keep")

	_, err := e.ReplaceAll(context.Background(), owner, projectID, []MilestoneInput{{Title: "X"}, {Title: " "}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got := titlesOf(listOrder(t, s)); got != "Keep" {
		t.Fatalf("failed replace changed roadmap to %s", got)
	}
}

func TestMissingTargetsAreNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Reorder(ctx, owner, "nope", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("reorder err = %v", err)
	}
	if _, err := e.Start(ctx, owner, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("start err = %v", err)
	}
}

type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) RunInTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return f.err
}

func (f failingStore) ListMilestones(ctx context.Context, projectID string) ([]model.Milestone, error) {
	return nil, f.err
}

func TestStoreFailureIsOpaque(t *testing.T) {
	_, s := newTestEngine(t)
	e := NewEngine(failingStore{Store: s, err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}, zap.NewNop())
	ctx := context.Background()

	_, err := e.Reorder(ctx, owner, projectID, nil)
	if !errors.Is(err, apperr.ErrOperationFailed) {
		t.Fatalf("err = %v, want operation failed", err)
	}
	if strings.Contains(err.Error(), "10.0.0.5") {
		t.Fatalf("store detail leaked: %q", err.Error())
	}

	if _, err := e.Stats(ctx, owner, projectID); !errors.Is(err, apperr.ErrOperationFailed) {
		t.Fatalf("stats err = %v", err)
	}
}

func TestMutationsRecordEvents(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	ids := seedMilestones(t, e, "A", "B")

	if _, err := e.Reorder(ctx, owner, projectID, []string{ids[1], ids[0]}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if _, err := e.Start(ctx, owner, ids[0]); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.Reorder(ctx, owner, projectID, []string{ids[0]}); err == nil {
		t.Fatalf("invalid reorder succeeded")
	}

	var keys []string
	for _, ev := range s.Events() {
		keys = append(keys, ev.RoutingKey)
	}
	want := []string{mq.RoutingRoadmapReplaced, mq.RoutingRoadmapReordered, mq.RoutingMilestoneStatusChanged}
	if strings.Join(keys, " ") != strings.Join(want, " ") {
		t.Fatalf("events = %v, want %v", keys, want)
	}

	changed, ok := s.Events()[2].Payload.(mq.MilestoneStatusChangedPayload)
	if !ok {
		t.Fatalf("payload type %T", s.Events()[2].Payload)
	}
	if changed.EventID != s.Events()[2].ID || changed.From != "PENDING" || changed.To != "IN_PROGRESS" {
		t.Fatalf("payload = %+v", changed)
	}
}
