// Package postgres implements storage.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"freelancehub/internal/storage"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/otel"
	"freelancehub/pkg/outbox"
)

var _ storage.Store = (*Store)(nil)
var _ storage.Tx = (*tx)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// queries holds the read statements shared by Store and tx.
type queries struct {
	q querier
}

type Store struct {
	queries
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		queries: queries{q: pool},
		pool:    pool,
		outbox:  outbox.NewRepository(pool),
		logger:  logger,
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx runs fn in one database transaction. The deferred unique
// constraint on milestone positions is checked at commit, so fn may pass
// through intermediate states while renumbering.
func (s *Store) RunInTx(ctx context.Context, fn func(tx storage.Tx) error) (err error) {
	ctx, span := otel.DBSpan(ctx, "transaction", "")
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("transaction", "all", time.Since(start))
		otel.WrapDBError(span, err)
		span.End()
	}()

	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgtx.Rollback(ctx)

	if err := fn(&tx{queries: queries{q: pgtx}, tx: pgtx, outbox: s.outbox}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapError(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type tx struct {
	queries
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *tx) LockProject(ctx context.Context, id string) error {
	var locked string
	err := t.tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		return fmt.Errorf("lock project %s: %w", id, mapError(err))
	}
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, e storage.Event) error {
	return outbox.InsertEventInTx(ctx, t.tx, t.outbox, e.ID, e.AggregateType, e.AggregateID, e.RoutingKey, e.Payload)
}

// mapError converts driver errors into storage sentinels, keeping the
// original in the chain for logging.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, storage.ErrConflict)
		case "22P02":
			// malformed uuid in a lookup: nothing can match it
			return storage.ErrNotFound
		}
	}
	return err
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
