package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// CachedStore writes through to a durable primary and a fast cache. Reads
// try the cache first. Cache failures are logged and never fail a call.
type CachedStore struct {
	primary Store
	cache   Store
	logger  *zap.Logger
}

// NewCached layers cache in front of primary.
func NewCached(primary, cache Store, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{primary: primary, cache: cache, logger: logger}
}

func (s *CachedStore) Save(ctx context.Context, rec Record) error {
	if err := s.primary.Save(ctx, rec); err != nil {
		return err
	}
	if err := s.cache.Save(ctx, rec); err != nil {
		s.logger.Warn("cache save failed", zap.String("game_id", rec.ID), zap.Error(err))
	}
	return nil
}

func (s *CachedStore) Load(ctx context.Context, id string) (Record, error) {
	rec, err := s.cache.Load(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.logger.Warn("cache load failed", zap.String("game_id", id), zap.Error(err))
	}

	rec, err = s.primary.Load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if err := s.cache.Save(ctx, rec); err != nil {
		s.logger.Warn("cache fill failed", zap.String("game_id", id), zap.Error(err))
	}
	return rec, nil
}

// ListActive always reads the primary; the cache may have lost keys.
func (s *CachedStore) ListActive(ctx context.Context) ([]Record, error) {
	return s.primary.ListActive(ctx)
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("cache delete failed", zap.String("game_id", id), zap.Error(err))
	}
	return s.primary.Delete(ctx, id)
}

func (s *CachedStore) Close() error {
	return errors.Join(s.cache.Close(), s.primary.Close())
}
