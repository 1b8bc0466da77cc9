package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeSetKey = "games:active"

func stateKey(id string) string {
	return fmt.Sprintf("game:%s:state", id)
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL expires finished sessions. Zero keeps them forever.
	TTL time.Duration
}

// RedisStore keeps each session in a hash and tracks unfinished sessions in a set.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

// Save writes rec unless a newer version is already stored. The compare and
// write run in one optimistic transaction.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	key := stateKey(rec.ID)
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && current > rec.Version {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"status", rec.Status,
				"finished", strconv.FormatBool(rec.Finished),
				"version", rec.Version,
				"state", rec.State,
				"updated_at", rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
			)
			if rec.Finished {
				pipe.SRem(ctx, activeSetKey, rec.ID)
				if s.ttl > 0 {
					pipe.Expire(ctx, key, s.ttl)
				}
			} else {
				pipe.SAdd(ctx, activeSetKey, rec.ID)
				pipe.Persist(ctx, key)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("save session %s: %w", rec.ID, err)
		}
		return nil
	}
	return fmt.Errorf("save session %s: too much contention", rec.ID)
}

// Load returns the record for id.
func (s *RedisStore) Load(ctx context.Context, id string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, stateKey(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return recordFromHash(id, fields)
}

// ListActive returns every session in the active set.
func (s *RedisStore) ListActive(ctx context.Context) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	result := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, activeSetKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, stateKey(id))
	pipe.SRem(ctx, activeSetKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func recordFromHash(id string, fields map[string]string) (Record, error) {
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("session %s: bad version: %w", id, err)
	}
	finished, _ := strconv.ParseBool(fields["finished"])
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return Record{}, fmt.Errorf("session %s: bad updated_at: %w", id, err)
	}
	return Record{
		ID:        id,
		Status:    fields["status"],
		Finished:  finished,
		Version:   version,
		State:     []byte(fields["state"]),
		UpdatedAt: updatedAt,
	}, nil
}
