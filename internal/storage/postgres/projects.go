package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

const projectColumns = `id, title, description, freelancer_id, client_id, status, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var clientID *string
	if err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.FreelancerID,
		&clientID,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if clientID != nil {
		p.ClientID = *clientID
	}
	return &p, nil
}

func (q queries) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(q.q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (q queries) ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]model.Project, error) {
	return q.listProjects(ctx, `SELECT `+projectColumns+` FROM projects WHERE freelancer_id = $1 ORDER BY created_at DESC, id`, freelancerID)
}

func (q queries) ListProjectsByClient(ctx context.Context, clientID string) ([]model.Project, error) {
	return q.listProjects(ctx, `SELECT `+projectColumns+` FROM projects WHERE client_id = $1 ORDER BY created_at DESC, id`, clientID)
}

func (q queries) listProjects(ctx context.Context, query string, arg string) ([]model.Project, error) {
	rows, err := q.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", mapError(err))
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", mapError(err))
	}
	return projects, nil
}

func (t *tx) InsertProject(ctx context.Context, p *model.Project) error {
	query := `
		INSERT INTO projects (id, title, description, freelancer_id, client_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := t.tx.QueryRow(ctx, query,
		p.ID,
		p.Title,
		p.Description,
		p.FreelancerID,
		nullable(p.ClientID),
		p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", mapError(err))
	}
	return nil
}

func (t *tx) UpdateProject(ctx context.Context, p *model.Project) error {
	query := `
		UPDATE projects
		SET title = $2, description = $3, client_id = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := t.tx.QueryRow(ctx, query,
		p.ID,
		p.Title,
		p.Description,
		nullable(p.ClientID),
		p.Status,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, mapError(err))
	}
	return nil
}

// DeleteProject relies on ON DELETE CASCADE for milestones and invitations.
func (t *tx) DeleteProject(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
