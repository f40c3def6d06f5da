package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/PratikDhanave/next-action-service/internal/metrics"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

const driverSQLite = "sqlite"

// SQLiteStore is the embedded Store used for local runs, the CLI and tests.
// Timestamps are stored as unix microseconds in UTC.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database file at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// Single writer; every statement runs on the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate applies pending migrations from migrations/sqlite.
func (s *SQLiteStore) Migrate(ctx context.Context) ([]int, error) {
	return runMigrations(ctx, "migrations/sqlite", s)
}

func (s *SQLiteStore) LastAction(ctx context.Context, userID string) (ev models.ActionEvent, found bool, err error) {
	defer func(start time.Time) { metrics.ObserveStore("last_action", driverSQLite, start, err) }(time.Now())

	var (
		tsMicro int64
		meta    sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id, action_name, timestamp, metadata
		FROM user_actions
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, userID).Scan(&ev.UserID, &ev.ActionName, &tsMicro, &meta)

	if errors.Is(err, sql.ErrNoRows) {
		return models.ActionEvent{}, false, nil
	}
	if err != nil {
		return models.ActionEvent{}, false, errors.Wrap(err, "select last action")
	}

	ev.Timestamp = time.UnixMicro(tsMicro).UTC()
	if meta.Valid {
		if ev.Metadata, err = decodeMetadata([]byte(meta.String)); err != nil {
			return models.ActionEvent{}, false, err
		}
	}
	return ev, true, nil
}

// UpsertAction checks for the key and upserts inside one transaction so the
// inserted flag matches what the upsert did.
func (s *SQLiteStore) UpsertAction(ctx context.Context, ev models.ActionEvent) (inserted bool, err error) {
	defer func(start time.Time) { metrics.ObserveStore("upsert_action", driverSQLite, start, err) }(time.Now())

	meta, err := encodeMetadata(ev.Metadata)
	if err != nil {
		return false, err
	}
	var metaArg any
	if meta != nil {
		metaArg = string(meta)
	}
	tsMicro := ev.Timestamp.UTC().UnixMicro()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_actions
		WHERE user_id = ? AND action_name = ? AND timestamp = ?
	`, ev.UserID, ev.ActionName, tsMicro).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check user action")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_actions (user_id, action_name, timestamp, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, action_name, timestamp)
		DO UPDATE SET metadata = excluded.metadata
	`, ev.UserID, ev.ActionName, tsMicro, metaArg)
	if err != nil {
		return false, errors.Wrap(err, "upsert user action")
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit")
	}
	return exists == 0, nil
}

func (s *SQLiteStore) UpsertTransition(ctx context.Context, edge models.TransitionEdge) (err error) {
	defer func(start time.Time) { metrics.ObserveStore("upsert_transition", driverSQLite, start, err) }(time.Now())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (user_id, action_name, next_action_name, count, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (user_id, action_name, next_action_name)
		DO UPDATE SET count = count + 1, created_at = excluded.created_at
	`, edge.UserID, edge.ActionName, edge.NextActionName, edge.CreatedAt.UTC().UnixMicro())
	if err != nil {
		return errors.Wrap(err, "upsert transition")
	}
	return nil
}

func (s *SQLiteStore) TransitionCounts(ctx context.Context, userID, actionName string) (out []models.TransitionCount, err error) {
	defer func(start time.Time) { metrics.ObserveStore("transition_counts", driverSQLite, start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT next_action_name, count
		FROM actions
		WHERE action_name = ? AND user_id = ?
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

func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	return err
}

func (s *SQLiteStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
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

func (s *SQLiteStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.Version, time.Now().UnixMicro(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

var _ Store = (*SQLiteStore)(nil)
