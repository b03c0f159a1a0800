// Package storage defines the data-access interface used by the domain
// services. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"freelancehub/internal/model"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("storage: conflict")
)

// Event is a domain event recorded in the transactional outbox.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	RoutingKey    string
	Payload       any
	CreatedAt     time.Time
}

// Reader groups the read operations available both on the store and inside
// a transaction.
type Reader interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]model.Project, error)
	ListProjectsByClient(ctx context.Context, clientID string) ([]model.Project, error)

	GetMilestone(ctx context.Context, id string) (*model.Milestone, error)
	// ListMilestones returns the project's milestones ordered by Order.
	ListMilestones(ctx context.Context, projectID string) ([]model.Milestone, error)

	GetInvitationByToken(ctx context.Context, token string) (*model.ProjectInvitation, error)
}

// Tx is a unit of work. Everything done through a Tx is committed together
// or not at all.
type Tx interface {
	Reader

	// LockProject takes a write lock on the project row so concurrent
	// roadmap mutations of the same project are serialised.
	LockProject(ctx context.Context, id string) error

	InsertUser(ctx context.Context, u *model.User) error

	InsertProject(ctx context.Context, p *model.Project) error
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id string) error

	InsertMilestones(ctx context.Context, ms []model.Milestone) error
	UpdateMilestone(ctx context.Context, m *model.Milestone) error
	DeleteMilestone(ctx context.Context, id string) error
	DeleteMilestonesByProject(ctx context.Context, projectID string) (int, error)
	// SetMilestoneOrders assigns Order = index for every id in orderedIDs.
	SetMilestoneOrders(ctx context.Context, projectID string, orderedIDs []string) error
	// ShiftMilestones adds delta to the order of every milestone of the
	// project whose order is >= fromOrder.
	ShiftMilestones(ctx context.Context, projectID string, fromOrder, delta int) error

	InsertInvitation(ctx context.Context, inv *model.ProjectInvitation) error
	DeleteInvitation(ctx context.Context, id string) error
	DeleteInvitationsFor(ctx context.Context, projectID, email string) (int, error)

	AppendEvent(ctx context.Context, e Event) error
}

type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
