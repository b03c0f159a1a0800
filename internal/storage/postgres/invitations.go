package postgres

import (
	"context"
	"fmt"

	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

func (q queries) GetInvitationByToken(ctx context.Context, token string) (*model.ProjectInvitation, error) {
	query := `
		SELECT id, email, token, project_id, status, expires_at, created_at
		FROM project_invitations
		WHERE token = $1
	`
	var inv model.ProjectInvitation
	err := q.q.QueryRow(ctx, query, token).Scan(
		&inv.ID,
		&inv.Email,
		&inv.Token,
		&inv.ProjectID,
		&inv.Status,
		&inv.ExpiresAt,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &inv, nil
}

func (t *tx) InsertInvitation(ctx context.Context, inv *model.ProjectInvitation) error {
	query := `
		INSERT INTO project_invitations (id, email, token, project_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query,
		inv.ID,
		inv.Email,
		inv.Token,
		inv.ProjectID,
		inv.Status,
		inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", mapError(err))
	}
	return nil
}

func (t *tx) DeleteInvitation(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM project_invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invitation %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) DeleteInvitationsFor(ctx context.Context, projectID, email string) (int, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM project_invitations WHERE project_id = $1 AND LOWER(email) = LOWER($2)`,
		projectID, email,
	)
	if err != nil {
		return 0, fmt.Errorf("delete invitations: %w", mapError(err))
	}
	return int(tag.RowsAffected()), nil
}
