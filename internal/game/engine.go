package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uaarena/session-engine/internal/game/rules"
	"github.com/uaarena/session-engine/internal/storage"
)

// SessionStore persists sessions. Implementations live in internal/storage.
type SessionStore interface {
	Save(ctx context.Context, rec storage.Record) error
	ListActive(ctx context.Context) ([]storage.Record, error)
}

// ShuffleFunc has the signature of rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// Engine owns the session registry and applies every lifecycle operation
// and player action to it.
type Engine struct {
	logger   *zap.Logger
	registry *Registry
	rules    Ruleset
	bus      *rules.EventBus
	store    SessionStore
	recorder *ReplayRecorder
	shuffle  ShuffleFunc
	now      func() time.Time

	mu                  sync.RWMutex
	notificationHandler NotificationHandler
	notifier            *notifier
}

// Option customizes an Engine.
type Option func(*Engine)

// WithStore enables write-through persistence.
func WithStore(store SessionStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithReplayRecorder records a snapshot after every accepted mutation.
func WithReplayRecorder(recorder *ReplayRecorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// WithShuffle replaces the deck shuffler.
func WithShuffle(shuffle ShuffleFunc) Option {
	return func(e *Engine) { e.shuffle = shuffle }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine enforcing ruleset.
func NewEngine(logger *zap.Logger, ruleset Ruleset, opts ...Option) (*Engine, error) {
	if err := ruleset.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:   logger,
		registry: NewRegistry(),
		rules:    ruleset,
		bus:      rules.NewEventBus(),
		shuffle:  rand.Shuffle,
		now:      time.Now,
	}
	e.notifier = &notifier{deliver: e.deliver}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Events returns the bus every accepted event is published on. Listeners run
// on the delivery goroutine, one batch at a time in commit order.
func (e *Engine) Events() *rules.EventBus {
	return e.bus
}

// Registry exposes the session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Rules returns the ruleset new sessions are created with.
func (e *Engine) Rules() Ruleset {
	return e.rules
}

// committed is what is left of a mutation once the session lock is released.
type committed struct {
	// snapshot is a private copy of the committed session, nil when nothing
	// needs it after the lock is released.
	snapshot *GameSession
}

// commit bumps the version, records the replay snapshot and queues the
// events for delivery. Called with the session write lock held, so batches
// are queued in version order. Store and disk I/O is left to finish.
func (e *Engine) commit(s *GameSession, c *actionContext) committed {
	s.touch(c.now)

	if e.recorder != nil {
		e.recorder.RecordState(s)
	}
	e.notifier.enqueue(eventBatch{events: c.events, version: s.Version})

	var cm committed
	if e.store != nil || (e.recorder != nil && s.IsFinished()) {
		cm.snapshot = s.Clone()
	}
	return cm
}

// finish writes a committed snapshot through to the store and saves the
// replay of a finished session. Called without locks. Stores drop saves
// older than the version they hold.
func (e *Engine) finish(ctx context.Context, cm committed) {
	s := cm.snapshot
	if s == nil {
		return
	}
	e.persist(ctx, s)

	if s.IsFinished() && e.recorder != nil {
		if err := e.recorder.SaveReplay(s.ID); err != nil {
			e.logger.Warn("failed to save replay",
				zap.String("game_id", s.ID),
				zap.Error(err),
			)
		}
	}
}

// deliver hands one committed batch to the bus and the notification
// handler. It runs on the notifier goroutine, never under a session lock.
func (e *Engine) deliver(batch eventBatch) {
	e.bus.PublishBatch(batch.events)

	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()
	if handler == nil {
		return
	}
	for _, evt := range batch.events {
		handler(notificationFromEvent(evt, batch.version))
	}
}

func (e *Engine) persist(ctx context.Context, s *GameSession) {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		e.logger.Error("failed to encode session",
			zap.String("game_id", s.ID),
			zap.Error(err),
		)
		return
	}
	rec := storage.Record{
		ID:        s.ID,
		Status:    string(s.Status),
		Finished:  s.IsFinished(),
		Version:   s.Version,
		State:     data,
		UpdatedAt: s.UpdatedAt,
	}
	if err := e.store.Save(ctx, rec); err != nil {
		e.logger.Error("failed to persist session",
			zap.String("game_id", s.ID),
			zap.Int64("version", s.Version),
			zap.Error(err),
		)
	}
}

// Restore loads every unfinished session from the store into the registry.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.store == nil {
		return 0, nil
	}
	records, err := e.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	restored := 0
	for _, rec := range records {
		var s GameSession
		if err := json.Unmarshal(rec.State, &s); err != nil {
			e.logger.Warn("skipping undecodable session",
				zap.String("game_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		if !sessionIntact(&s) {
			e.logger.Warn("skipping incomplete session", zap.String("game_id", rec.ID))
			continue
		}
		if _, err := e.registry.Create(&s); err != nil {
			e.logger.Debug("session already registered", zap.String("game_id", rec.ID))
			continue
		}
		restored++
	}

	e.logger.Info("restored sessions",
		zap.Int("restored", restored),
		zap.Int("found", len(records)),
	)
	return restored, nil
}

func sessionIntact(s *GameSession) bool {
	if s.ID == "" {
		return false
	}
	for _, slot := range s.Slots {
		if slot == nil || slot.State == nil {
			return false
		}
	}
	return true
}

// CleanupLoop periodically evicts finished sessions older than maxAge from
// memory. The persisted copy is kept. It returns when ctx is cancelled.
func (e *Engine) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.Cleanup(maxAge); n > 0 {
				e.logger.Info("evicted finished sessions", zap.Int("count", n))
			}
		}
	}
}

// Cleanup evicts finished sessions whose last update is older than maxAge.
func (e *Engine) Cleanup(maxAge time.Duration) int {
	cutoff := e.now().Add(-maxAge)
	evicted := 0
	for _, id := range e.registry.IDs() {
		entry, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		stale := false
		entry.Read(func(s *GameSession) {
			stale = s.IsFinished() && s.UpdatedAt.Before(cutoff)
		})
		if stale && e.registry.Remove(id) {
			if e.recorder != nil {
				e.recorder.ClearReplay(id)
			}
			evicted++
		}
	}
	return evicted
}
