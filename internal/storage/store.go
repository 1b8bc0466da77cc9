// Package storage persists game sessions as opaque JSON documents keyed by id.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// Record is one persisted session.
type Record struct {
	ID        string
	Status    string
	Finished  bool
	Version   int64
	State     []byte
	UpdatedAt time.Time
}

// Store is implemented by every backend.
type Store interface {
	// Save upserts a record. A record with a lower version than the stored
	// one is ignored.
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	// ListActive returns every record that is not finished.
	ListActive(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
