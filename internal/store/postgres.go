package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/PratikDhanave/next-action-service/internal/metrics"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

const driverPostgres = "postgres"

// PostgresStore is the Postgres-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// Migrate applies pending migrations from migrations/postgres.
func (p *PostgresStore) Migrate(ctx context.Context) ([]int, error) {
	return runMigrations(ctx, "migrations/postgres", p)
}

func (p *PostgresStore) LastAction(ctx context.Context, userID string) (ev models.ActionEvent, found bool, err error) {
	defer func(start time.Time) { metrics.ObserveStore("last_action", driverPostgres, start, err) }(time.Now())

	var meta []byte
	err = p.pool.QueryRow(ctx, `
		SELECT user_id, action_name, timestamp, metadata
		FROM user_actions
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, userID).Scan(&ev.UserID, &ev.ActionName, &ev.Timestamp, &meta)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ActionEvent{}, false, nil
	}
	if err != nil {
		return models.ActionEvent{}, false, errors.Wrap(err, "select last action")
	}

	ev.Timestamp = ev.Timestamp.UTC()
	if ev.Metadata, err = decodeMetadata(meta); err != nil {
		return models.ActionEvent{}, false, err
	}
	return ev, true, nil
}

// UpsertAction inserts the event or overwrites the metadata of an existing one.
//
// xmax is 0 only for a row version created by an INSERT, which tells a fresh
// insert apart from the DO UPDATE branch in a single round trip.
func (p *PostgresStore) UpsertAction(ctx context.Context, ev models.ActionEvent) (inserted bool, err error) {
	defer func(start time.Time) { metrics.ObserveStore("upsert_action", driverPostgres, start, err) }(time.Now())

	meta, err := encodeMetadata(ev.Metadata)
	if err != nil {
		return false, err
	}

	err = p.pool.QueryRow(ctx, `
		INSERT INTO user_actions (user_id, action_name, timestamp, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, action_name, timestamp)
		DO UPDATE SET metadata = EXCLUDED.metadata
		RETURNING (xmax = 0)
	`, ev.UserID, ev.ActionName, ev.Timestamp, meta).Scan(&inserted)
	if err != nil {
		return false, errors.Wrap(err, "upsert user action")
	}
	return inserted, nil
}

func (p *PostgresStore) UpsertTransition(ctx context.Context, edge models.TransitionEdge) (err error) {
	defer func(start time.Time) { metrics.ObserveStore("upsert_transition", driverPostgres, start, err) }(time.Now())

	_, err = p.pool.Exec(ctx, `
		INSERT INTO actions (user_id, action_name, next_action_name, count, created_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, action_name, next_action_name)
		DO UPDATE SET count = actions.count + 1, created_at = EXCLUDED.created_at
	`, edge.UserID, edge.ActionName, edge.NextActionName, edge.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert transition")
	}
	return nil
}

func (p *PostgresStore) TransitionCounts(ctx context.Context, userID, actionName string) (out []models.TransitionCount, err error) {
	defer func(start time.Time) { metrics.ObserveStore("transition_counts", driverPostgres, start, err) }(time.Now())

	rows, err := p.pool.Query(ctx, `
		SELECT next_action_name, count
		FROM actions
		WHERE action_name = $1 AND user_id = $2
		ORDER BY count DESC, next_action_name
	`, actionName, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select transitions")
	}
	defer rows.Close()

	for rows.Next() {
		var tc models.TransitionCount
		if err := rows.Scan(&tc.NextAction, &tc.Count); err != nil {
			return nil, errors.Wrap(err, "scan transition")
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate transitions")
	}
	return out, nil
}

func (p *PostgresStore) ensureMigrationsTable(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (p *PostgresStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := p.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (p *PostgresStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// No arguments, so pgx uses the simple protocol and accepts several statements.
	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// encodeMetadata returns nil (SQL NULL) for absent metadata.
func encodeMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.Wrap(err, "encode metadata")
	}
	return b, nil
}

func decodeMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}
	return meta, nil
}

var _ Store = (*PostgresStore)(nil)
