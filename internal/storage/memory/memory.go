// Package memory implements storage.Store with in-memory maps.
// It backs the "memory" storage driver used for local development and the
// domain tests. Each transaction works on a private copy of the data which
// replaces the shared copy only when the transaction function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

var _ storage.Store = (*Store)(nil)
var _ storage.Tx = (*tx)(nil)

type data struct {
	users       map[string]model.User
	projects    map[string]model.Project
	milestones  map[string]model.Milestone
	invitations map[string]model.ProjectInvitation
	events      []storage.Event
}

func newData() *data {
	return &data{
		users:       make(map[string]model.User),
		projects:    make(map[string]model.Project),
		milestones:  make(map[string]model.Milestone),
		invitations: make(map[string]model.ProjectInvitation),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.projects {
		c.projects[k] = v
	}
	for k, v := range d.milestones {
		c.milestones[k] = v
	}
	for k, v := range d.invitations {
		c.invitations[k] = v
	}
	c.events = append([]storage.Event(nil), d.events...)
	return c
}

type Store struct {
	mu   sync.RWMutex
	data *data
	now  func() time.Time
}

func New() *Store {
	return &Store{data: newData(), now: time.Now}
}

// RunInTx serialises transactions: the write lock is held for the duration
// of fn.
func (s *Store) RunInTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{data: s.data.clone(), now: s.now}
	if err := fn(t); err != nil {
		return err
	}
	s.data = t.data
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() {}

// Events returns a copy of every event appended so far, oldest first.
func (s *Store) Events() []storage.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]storage.Event(nil), s.data.events...)
}

func (s *Store) read() *data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.read().getUser(id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.read().getUserByEmail(email)
}

func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.read().getProject(id)
}

func (s *Store) ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]model.Project, error) {
	return s.read().listProjects(func(p model.Project) bool { return p.FreelancerID == freelancerID }), nil
}

func (s *Store) ListProjectsByClient(ctx context.Context, clientID string) ([]model.Project, error) {
	return s.read().listProjects(func(p model.Project) bool { return clientID != "" && p.ClientID == clientID }), nil
}

func (s *Store) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	return s.read().getMilestone(id)
}

func (s *Store) ListMilestones(ctx context.Context, projectID string) ([]model.Milestone, error) {
	return s.read().listMilestones(projectID), nil
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (*model.ProjectInvitation, error) {
	return s.read().getInvitationByToken(token)
}

// Data is never mutated in place once published by RunInTx, so readers may
// keep using a snapshot after releasing the lock.

func (d *data) getUser(id string) (*model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (d *data) getUserByEmail(email string) (*model.User, error) {
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (d *data) getProject(id string) (*model.Project, error) {
	p, ok := d.projects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (d *data) listProjects(match func(model.Project) bool) []model.Project {
	out := []model.Project{}
	for _, p := range d.projects {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (d *data) getMilestone(id string) (*model.Milestone, error) {
	m, ok := d.milestones[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (d *data) listMilestones(projectID string) []model.Milestone {
	out := []model.Milestone{}
	for _, m := range d.milestones {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (d *data) getInvitationByToken(token string) (*model.ProjectInvitation, error) {
	for _, inv := range d.invitations {
		if inv.Token == token {
			inv := inv
			return &inv, nil
		}
	}
	return nil, storage.ErrNotFound
}

type tx struct {
	data *data
	now  func() time.Time
}

func (t *tx) GetUser(ctx context.Context, id string) (*model.User, error) {
	return t.data.getUser(id)
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return t.data.getUserByEmail(email)
}

func (t *tx) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return t.data.getProject(id)
}

func (t *tx) ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]model.Project, error) {
	return t.data.listProjects(func(p model.Project) bool { return p.FreelancerID == freelancerID }), nil
}

func (t *tx) ListProjectsByClient(ctx context.Context, clientID string) ([]model.Project, error) {
	return t.data.listProjects(func(p model.Project) bool { return clientID != "" && p.ClientID == clientID }), nil
}

func (t *tx) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	return t.data.getMilestone(id)
}

func (t *tx) ListMilestones(ctx context.Context, projectID string) ([]model.Milestone, error) {
	return t.data.listMilestones(projectID), nil
}

func (t *tx) GetInvitationByToken(ctx context.Context, token string) (*model.ProjectInvitation, error) {
	return t.data.getInvitationByToken(token)
}

// LockProject only checks existence; the store-wide lock already serialises
// transactions.
func (t *tx) LockProject(ctx context.Context, id string) error {
	if _, ok := t.data.projects[id]; !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) InsertUser(ctx context.Context, u *model.User) error {
	if _, err := t.data.getUserByEmail(u.Email); err == nil {
		return fmt.Errorf("email %s: %w", u.Email, storage.ErrConflict)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now()
	}
	t.data.users[u.ID] = *u
	return nil
}

func (t *tx) InsertProject(ctx context.Context, p *model.Project) error {
	if _, ok := t.data.projects[p.ID]; ok {
		return fmt.Errorf("project %s: %w", p.ID, storage.ErrConflict)
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.data.projects[p.ID] = *p
	return nil
}

func (t *tx) UpdateProject(ctx context.Context, p *model.Project) error {
	if _, ok := t.data.projects[p.ID]; !ok {
		return storage.ErrNotFound
	}
	p.UpdatedAt = t.now()
	t.data.projects[p.ID] = *p
	return nil
}

func (t *tx) DeleteProject(ctx context.Context, id string) error {
	if _, ok := t.data.projects[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.data.projects, id)
	for mid, m := range t.data.milestones {
		if m.ProjectID == id {
			delete(t.data.milestones, mid)
		}
	}
	for iid, inv := range t.data.invitations {
		if inv.ProjectID == id {
			delete(t.data.invitations, iid)
		}
	}
	return nil
}

func (t *tx) InsertMilestones(ctx context.Context, ms []model.Milestone) error {
	now := t.now()
	for i := range ms {
		m := ms[i]
		if _, ok := t.data.projects[m.ProjectID]; !ok {
			return fmt.Errorf("milestone %s: project %s: %w", m.ID, m.ProjectID, storage.ErrNotFound)
		}
		if _, ok := t.data.milestones[m.ID]; ok {
			return fmt.Errorf("milestone %s: %w", m.ID, storage.ErrConflict)
		}
		m.CreatedAt, m.UpdatedAt = now, now
		t.data.milestones[m.ID] = m
		ms[i] = m
	}
	return t.checkOrders(ms)
}

func (t *tx) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	cur, ok := t.data.milestones[m.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.Title = m.Title
	cur.Description = m.Description
	cur.EstimatedDuration = m.EstimatedDuration
	cur.Status = m.Status
	cur.UpdatedAt = t.now()
	t.data.milestones[m.ID] = cur
	*m = cur
	return nil
}

func (t *tx) DeleteMilestone(ctx context.Context, id string) error {
	if _, ok := t.data.milestones[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.data.milestones, id)
	return nil
}

func (t *tx) DeleteMilestonesByProject(ctx context.Context, projectID string) (int, error) {
	n := 0
	for id, m := range t.data.milestones {
		if m.ProjectID == projectID {
			delete(t.data.milestones, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) SetMilestoneOrders(ctx context.Context, projectID string, orderedIDs []string) error {
	now := t.now()
	for i, id := range orderedIDs {
		m, ok := t.data.milestones[id]
		if !ok || m.ProjectID != projectID {
			return fmt.Errorf("milestone %s: %w", id, storage.ErrNotFound)
		}
		m.Order = i
		m.UpdatedAt = now
		t.data.milestones[id] = m
	}
	return t.checkOrders(nil)
}

func (t *tx) ShiftMilestones(ctx context.Context, projectID string, fromOrder, delta int) error {
	for id, m := range t.data.milestones {
		if m.ProjectID == projectID && m.Order >= fromOrder {
			m.Order += delta
			t.data.milestones[id] = m
		}
	}
	return nil
}

// checkOrders mirrors the (project_id, position) unique constraint that the
// postgres schema checks at commit time. It runs after bulk writes; shifts
// may leave a transient gap that a following insert fills.
func (t *tx) checkOrders(inserted []model.Milestone) error {
	projects := make(map[string]bool)
	for _, m := range inserted {
		projects[m.ProjectID] = true
	}
	if inserted == nil {
		for _, m := range t.data.milestones {
			projects[m.ProjectID] = true
		}
	}
	for pid := range projects {
		seen := make(map[int]string)
		for _, m := range t.data.milestones {
			if m.ProjectID != pid {
				continue
			}
			if other, dup := seen[m.Order]; dup {
				return fmt.Errorf("milestones %s and %s share order %d: %w", other, m.ID, m.Order, storage.ErrConflict)
			}
			seen[m.Order] = m.ID
		}
	}
	return nil
}

func (t *tx) InsertInvitation(ctx context.Context, inv *model.ProjectInvitation) error {
	if _, err := t.data.getInvitationByToken(inv.Token); err == nil {
		return fmt.Errorf("invitation token: %w", storage.ErrConflict)
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = t.now()
	}
	t.data.invitations[inv.ID] = *inv
	return nil
}

func (t *tx) DeleteInvitation(ctx context.Context, id string) error {
	if _, ok := t.data.invitations[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.data.invitations, id)
	return nil
}

func (t *tx) DeleteInvitationsFor(ctx context.Context, projectID, email string) (int, error) {
	n := 0
	for id, inv := range t.data.invitations {
		if inv.ProjectID == projectID && strings.EqualFold(inv.Email, email) {
			delete(t.data.invitations, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) AppendEvent(ctx context.Context, e storage.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	t.data.events = append(t.data.events, e)
	return nil
}
