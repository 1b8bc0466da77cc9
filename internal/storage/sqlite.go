package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps sessions in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS game_sessions (
			id         TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			finished   INTEGER NOT NULL DEFAULT 0,
			version    INTEGER NOT NULL,
			state_json TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_game_sessions_finished ON game_sessions(finished);
	`)
	return err
}

// Save upserts rec unless a newer version is already stored.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (id, status, finished, version, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished = excluded.finished,
			version = excluded.version,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
		WHERE excluded.version >= game_sessions.version
	`, rec.ID, rec.Status, rec.Finished, rec.Version, string(rec.State), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the record for id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, status, finished, version, state_json, updated_at FROM game_sessions WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// ListActive returns unfinished sessions, oldest update first.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, status, finished, version, state_json, updated_at FROM game_sessions WHERE finished = 0 ORDER BY updated_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM game_sessions WHERE id = ?", id)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		state     string
		updatedAt time.Time
	)
	if err := row.Scan(&rec.ID, &rec.Status, &rec.Finished, &rec.Version, &state, &updatedAt); err != nil {
		return Record{}, err
	}
	rec.State = []byte(state)
	rec.UpdatedAt = updatedAt
	return rec, nil
}
