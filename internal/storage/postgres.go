package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in a PostgreSQL table with the state as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the table if needed.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_sessions (
			id         TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			finished   BOOLEAN NOT NULL DEFAULT FALSE,
			version    BIGINT NOT NULL,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Save upserts rec unless a newer version is already stored.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_sessions (id, status, finished, version, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished = EXCLUDED.finished,
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.version >= game_sessions.version
	`, rec.ID, rec.Status, rec.Finished, rec.Version, string(rec.State), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the record for id.
func (s *PostgresStore) Load(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, status, finished, version, state::text, updated_at FROM game_sessions WHERE id = $1", id)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// ListActive returns unfinished sessions, oldest update first.
func (s *PostgresStore) ListActive(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, status, finished, version, state::text, updated_at FROM game_sessions WHERE NOT finished ORDER BY updated_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Delete removes a session.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM game_sessions WHERE id = $1", id)
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgRecord(row pgx.Row) (Record, error) {
	var (
		rec   Record
		state string
	)
	if err := row.Scan(&rec.ID, &rec.Status, &rec.Finished, &rec.Version, &state, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.State = []byte(state)
	return rec, nil
}
