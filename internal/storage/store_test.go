package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRecord(id string, version int64, finished bool) Record {
	status := "IN_PROGRESS"
	if finished {
		status = "FINISHED"
	}
	return Record{
		ID:        id,
		Status:    status,
		Finished:  finished,
		Version:   version,
		State:     []byte(fmt.Sprintf(`{"id":%q,"version":%d}`, id, version)),
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, int(version), 0, time.UTC),
	}
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	prefix := uuid.NewString()[:8] + "-"

	t.Run("load missing", func(t *testing.T) {
		_, err := s.Load(ctx, prefix+"missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		rec := newRecord(prefix+"a", 1, false)
		require.NoError(t, s.Save(ctx, rec))

		got, err := s.Load(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Status, got.Status)
		assert.False(t, got.Finished)
		assert.Equal(t, int64(1), got.Version)
		assert.JSONEq(t, string(rec.State), string(got.State))
		assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", rec.UpdatedAt, got.UpdatedAt)
	})

	t.Run("stale version ignored", func(t *testing.T) {
		id := prefix + "b"
		require.NoError(t, s.Save(ctx, newRecord(id, 5, false)))
		require.NoError(t, s.Save(ctx, newRecord(id, 3, false)))

		got, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Version)
	})

	t.Run("list active skips finished", func(t *testing.T) {
		active := prefix + "c"
		done := prefix + "d"
		require.NoError(t, s.Save(ctx, newRecord(active, 1, false)))
		require.NoError(t, s.Save(ctx, newRecord(done, 1, false)))
		require.NoError(t, s.Save(ctx, newRecord(done, 2, true)))

		records, err := s.ListActive(ctx)
		require.NoError(t, err)
		ids := make(map[string]bool)
		for _, rec := range records {
			ids[rec.ID] = true
		}
		assert.True(t, ids[active])
		assert.False(t, ids[done])
	})

	t.Run("delete", func(t *testing.T) {
		id := prefix + "e"
		require.NoError(t, s.Save(ctx, newRecord(id, 1, false)))
		require.NoError(t, s.Delete(ctx, id))

		_, err := s.Load(ctx, id)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	t.Cleanup(func() { s.Close() })
	runStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	runStoreContract(t, s)
}

func TestSQLiteStoreFile(t *testing.T) {
	path := t.TempDir() + "/sessions.db"
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, newRecord("persisted", 4, false)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	records, err := reopened.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].ID)
	assert.Equal(t, int64(4), records[0].Version)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("UA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("UA_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	runStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("UA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("UA_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedis(context.Background(), RedisOptions{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	runStoreContract(t, s)
}

func TestCachedStore(t *testing.T) {
	primary := NewMemory()
	cache := NewMemory()
	s := NewCached(primary, cache, zaptest.NewLogger(t))
	runStoreContract(t, s)
}

func TestCachedStoreFillsCacheOnMiss(t *testing.T) {
	ctx := context.Background()
	primary := NewMemory()
	cache := NewMemory()
	s := NewCached(primary, cache, zaptest.NewLogger(t))

	rec := newRecord("only-primary", 2, false)
	require.NoError(t, primary.Save(ctx, rec))

	_, err := cache.Load(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Version, got.Version)

	cached, err := cache.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Version, cached.Version)
}
