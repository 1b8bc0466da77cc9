package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uaarena/session-engine/internal/game/rules"
)

const (
	alice = "alice"
	bob   = "bob"
)

var noShuffle ShuffleFunc = func(int, func(i, j int)) {}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testDeck builds a deck of n cards cycling CHARACTER, FIELD, EVENT, AP.
// With the no-op shuffle the opening hand is C F E A C F E.
func testDeck(n int) []Card {
	types := []CardType{CardTypeCharacter, CardTypeField, CardTypeEvent, CardTypeAP}
	deck := make([]Card, n)
	for i := range deck {
		ct := types[i%4]
		deck[i] = Card{
			CardNumber: fmt.Sprintf("UA01-%s-%d", ct, i/16),
			Name:       fmt.Sprintf("%s %d", ct, i),
			CardType:   ct,
			BP:         1000 * (i % 4),
		}
		switch ct {
		case CardTypeCharacter:
			deck[i].APCost = 1
		case CardTypeEvent:
			deck[i].APCost = 1
		}
	}
	return deck
}

type harness struct {
	t      *testing.T
	engine *Engine
	clock  *testClock
	ctx    context.Context
}

func newHarness(t *testing.T, ruleset Ruleset, opts ...Option) *harness {
	t.Helper()
	clock := newTestClock()
	opts = append([]Option{WithShuffle(noShuffle), WithClock(clock.Now)}, opts...)
	engine, err := NewEngine(zaptest.NewLogger(t), ruleset, opts...)
	require.NoError(t, err)
	return &harness{t: t, engine: engine, clock: clock, ctx: context.Background()}
}

func (h *harness) create() string {
	h.t.Helper()
	n := h.engine.Rules().DeckSize
	view, err := h.engine.CreateSession(h.ctx, CreateConfig{
		Player1ID:   alice,
		Player2ID:   bob,
		Player1Deck: testDeck(n),
		Player2Deck: testDeck(n),
	})
	require.NoError(h.t, err)
	return view.ID
}

func (h *harness) joinBoth(id string) {
	h.t.Helper()
	_, err := h.engine.Join(h.ctx, id, alice)
	require.NoError(h.t, err)
	_, err = h.engine.Join(h.ctx, id, bob)
	require.NoError(h.t, err)
}

// started returns a session on turn 1, START, alice active.
func (h *harness) started() string {
	h.t.Helper()
	id := h.create()
	h.joinBoth(id)
	_, err := h.engine.Mulligan(h.ctx, id, alice, false)
	require.NoError(h.t, err)
	_, err = h.engine.Mulligan(h.ctx, id, bob, false)
	require.NoError(h.t, err)
	return id
}

func (h *harness) apply(id, player string, action rules.ActionType, data ...any) (*Result, error) {
	return h.engine.Apply(h.ctx, id, player, action, data)
}

func (h *harness) mustApply(id, player string, action rules.ActionType, data ...any) *Result {
	h.t.Helper()
	res, err := h.apply(id, player, action, data...)
	require.NoError(h.t, err, "%s by %s", action, player)
	return res
}

func (h *harness) snapshot(id string) *GameSession {
	h.t.Helper()
	entry, err := h.engine.Registry().Get(id)
	require.NoError(h.t, err)
	return entry.Snapshot()
}

func (h *harness) player(id, playerID string) *PlayerState {
	h.t.Helper()
	p, ok := h.snapshot(id).Player(playerID)
	require.True(h.t, ok)
	return p
}

// requireConservation checks that no card was created or destroyed.
func (h *harness) requireConservation(id string) {
	h.t.Helper()
	s := h.snapshot(id)
	for _, slot := range s.Slots {
		if slot.State == nil {
			continue
		}
		require.Equal(h.t, s.Rules.DeckSize, slot.State.TotalCards(), "cards of %s", slot.PlayerID)
	}
}
