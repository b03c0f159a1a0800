package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"freelancehub/internal/model"
	"freelancehub/internal/storage"
)

const milestoneColumns = `id, project_id, title, description, estimated_duration, position, status, created_at, updated_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	if err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Title,
		&m.Description,
		&m.EstimatedDuration,
		&m.Order,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (q queries) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	m, err := scanMilestone(q.q.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (q queries) ListMilestones(ctx context.Context, projectID string) ([]model.Milestone, error) {
	rows, err := q.q.Query(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1 ORDER BY position ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", mapError(err))
	}
	defer rows.Close()

	milestones := []model.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list milestones: %w", mapError(err))
	}
	return milestones, nil
}

// InsertMilestones sends every insert in one batch round trip.
func (t *tx) InsertMilestones(ctx context.Context, ms []model.Milestone) error {
	if len(ms) == 0 {
		return nil
	}

	query := `
		INSERT INTO milestones (id, project_id, title, description, estimated_duration, position, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	batch := &pgx.Batch{}
	for i := range ms {
		m := &ms[i]
		batch.Queue(query,
			m.ID,
			m.ProjectID,
			m.Title,
			m.Description,
			m.EstimatedDuration,
			m.Order,
			m.Status,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&m.CreatedAt, &m.UpdatedAt)
		})
	}

	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert milestones: %w", mapError(err))
	}
	return nil
}

func (t *tx) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	query := `
		UPDATE milestones
		SET title = $2, description = $3, estimated_duration = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + milestoneColumns
	updated, err := scanMilestone(t.tx.QueryRow(ctx, query,
		m.ID,
		m.Title,
		m.Description,
		m.EstimatedDuration,
		m.Status,
	))
	if err != nil {
		return fmt.Errorf("update milestone %s: %w", m.ID, mapError(err))
	}
	*m = *updated
	return nil
}

func (t *tx) DeleteMilestone(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete milestone %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) DeleteMilestonesByProject(ctx context.Context, projectID string) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM milestones WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete milestones of %s: %w", projectID, mapError(err))
	}
	return int(tag.RowsAffected()), nil
}

// SetMilestoneOrders renumbers in a single statement; the deferred unique
// constraint tolerates the transient duplicates.
func (t *tx) SetMilestoneOrders(ctx context.Context, projectID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return nil
	}
	positions := make([]int32, len(orderedIDs))
	for i := range orderedIDs {
		positions[i] = int32(i)
	}

	query := `
		UPDATE milestones AS m
		SET position = v.position, updated_at = NOW()
		FROM unnest($2::uuid[], $3::int[]) AS v(id, position)
		WHERE m.id = v.id AND m.project_id = $1
	`
	tag, err := t.tx.Exec(ctx, query, projectID, orderedIDs, positions)
	if err != nil {
		return fmt.Errorf("set milestone orders: %w", mapError(err))
	}
	if int(tag.RowsAffected()) != len(orderedIDs) {
		return fmt.Errorf("set milestone orders: %d of %d rows matched: %w", tag.RowsAffected(), len(orderedIDs), storage.ErrNotFound)
	}
	return nil
}

func (t *tx) ShiftMilestones(ctx context.Context, projectID string, fromOrder, delta int) error {
	query := `
		UPDATE milestones
		SET position = position + $3, updated_at = NOW()
		WHERE project_id = $1 AND position >= $2
	`
	if _, err := t.tx.Exec(ctx, query, projectID, fromOrder, delta); err != nil {
		return fmt.Errorf("shift milestones: %w", mapError(err))
	}
	return nil
}
