package game

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// CreateConfig is the payload of a create-game request.
type CreateConfig struct {
	Player1ID   string `json:"player1_id"`
	Player2ID   string `json:"player2_id"`
	GameMode    string `json:"game_mode"`
	Player1Deck []Card `json:"player1_deck"`
	Player2Deck []Card `json:"player2_deck"`
}

// Result is what a mutating operation returns to its caller: the public
// summary, the caller's view of the state and the events produced.
type Result struct {
	Game   GameView      `json:"game"`
	State  StateView     `json:"game_state"`
	Events []rules.Event `json:"events"`
}

func resultFor(s *GameSession, viewerID string, events []rules.Event) *Result {
	return &Result{
		Game:   s.View(),
		State:  s.StateFor(viewerID),
		Events: events,
	}
}

// CreateSession validates cfg and registers a new session waiting for players.
func (e *Engine) CreateSession(ctx context.Context, cfg CreateConfig) (GameView, error) {
	p1 := strings.TrimSpace(cfg.Player1ID)
	p2 := strings.TrimSpace(cfg.Player2ID)
	if p1 != "" && p1 == p2 {
		return GameView{}, fmt.Errorf("%w: player1_id and player2_id are the same", ErrInvalidConfig)
	}

	deck1 := cloneCards(cfg.Player1Deck)
	deck2 := cloneCards(cfg.Player2Deck)
	if err := e.rules.ValidateDeck("player1_deck", deck1); err != nil {
		return GameView{}, err
	}
	if err := e.rules.ValidateDeck("player2_deck", deck2); err != nil {
		return GameView{}, err
	}
	assignCardIDs(deck1, deck2)

	mode := strings.TrimSpace(cfg.GameMode)
	if mode == "" {
		mode = "CASUAL"
	}

	now := e.now()
	session := &GameSession{
		ID:       uuid.NewString(),
		Status:   StatusWaitingForPlayers,
		GameMode: mode,
		Phase:    rules.PhaseStart,
		Slots: [2]*Slot{
			{Reserved: p1, State: newPlayerState(deck1)},
			{Reserved: p2, State: newPlayerState(deck2)},
		},
		Rules:     e.rules,
		History:   make([]ActionRecord, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}

	entry, err := e.registry.Create(session)
	if err != nil {
		return GameView{}, err
	}

	var (
		view GameView
		cm   committed
	)
	err = entry.Mutate(func(s *GameSession) error {
		c := newActionContext(s, "", now)
		c.emit(rules.NewEvent(rules.EventSessionCreated, s.ID, ""))
		cm = e.commit(s, c)
		view = s.View()
		return nil
	})
	if err != nil {
		return GameView{}, err
	}

	e.logger.Info("session created",
		zap.String("game_id", session.ID),
		zap.String("game_mode", mode),
		zap.String("player1_id", p1),
		zap.String("player2_id", p2),
	)
	e.finish(ctx, cm)
	return view, nil
}

// assignCardIDs gives every card a session-unique instance id, keeping
// caller-supplied ids that are not already taken.
func assignCardIDs(decks ...[]Card) {
	seen := make(map[string]bool)
	for _, deck := range decks {
		for i := range deck {
			id := strings.TrimSpace(deck[i].ID)
			if id == "" || seen[id] {
				id = uuid.NewString()
			}
			deck[i].ID = id
			deck[i].Rested = false
			seen[id] = true
		}
	}
}

// mutate runs fn against a session under its write lock and commits on
// success. Persistence runs once the lock is released.
func (e *Engine) mutate(ctx context.Context, sessionID, playerID string, fn func(c *actionContext) error) (*Result, error) {
	entry, err := e.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var (
		result *Result
		cm     committed
	)
	err = entry.Mutate(func(s *GameSession) error {
		c := newActionContext(s, playerID, e.now())
		if err := fn(c); err != nil {
			return err
		}
		cm = e.commit(s, c)
		result = resultFor(s, playerID, c.events)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.finish(ctx, cm)
	return result, nil
}

// Join binds playerID to a free slot of the session. When the second player
// joins both decks are shuffled, opening hands are dealt and the session
// moves to mulligan.
func (e *Engine) Join(ctx context.Context, sessionID, playerID string) (*Result, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: empty player id", ErrNotParticipant)
	}

	result, err := e.mutate(ctx, sessionID, playerID, func(c *actionContext) error {
		s := c.session
		if s.IsFinished() {
			return ErrGameFinished
		}
		if s.IsParticipant(playerID) {
			return ErrAlreadyJoined
		}
		if s.bothJoined() {
			return ErrSessionFull
		}

		idx := pickSlot(s, playerID)
		if idx < 0 {
			return fmt.Errorf("%w: open seats are reserved", ErrNotParticipant)
		}
		slot := s.Slots[idx]
		slot.PlayerID = playerID
		slot.Joined = true
		slot.State.PlayerID = playerID
		c.emit(rules.NewEvent(rules.EventPlayerJoined, s.ID, playerID))

		if s.bothJoined() {
			e.dealOpeningHands(c)
		}
		return nil
	})
	if err != nil {
		e.logger.Debug("join rejected",
			zap.String("game_id", sessionID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("player joined",
		zap.String("game_id", sessionID),
		zap.String("player_id", playerID),
		zap.String("status", string(result.Game.Status)),
	)
	return result, nil
}

// pickSlot returns the slot reserved for playerID, else the first open
// unreserved slot, else -1.
func pickSlot(s *GameSession, playerID string) int {
	for i, slot := range s.Slots {
		if !slot.Joined && slot.Reserved == playerID {
			return i
		}
	}
	for i, slot := range s.Slots {
		if !slot.Joined && slot.Reserved == "" {
			return i
		}
	}
	return -1
}

func (e *Engine) dealOpeningHands(c *actionContext) {
	s := c.session
	for _, slot := range s.Slots {
		p := slot.State
		e.shuffleDeck(p)
		p.drawN(s.Rules.HandSize)
	}
	s.Status = StatusMulligan
	c.emit(rules.NewEvent(rules.EventMulliganStarted, s.ID, ""))
}

func (e *Engine) shuffleDeck(p *PlayerState) {
	e.shuffle(len(p.Deck), func(i, j int) {
		p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i]
	})
}

// Mulligan resolves the opening hand of playerID. With reshuffle the hand
// goes back into the deck, the deck is shuffled and a fresh hand is drawn.
// Each player resolves exactly once; when both have, turn 1 begins with the
// slot 1 player active.
func (e *Engine) Mulligan(ctx context.Context, sessionID, playerID string, reshuffle bool) (*Result, error) {
	result, err := e.mutate(ctx, sessionID, playerID, func(c *actionContext) error {
		s := c.session
		if s.IsFinished() {
			return ErrGameFinished
		}
		p, ok := s.Player(playerID)
		if !ok {
			return ErrNotParticipant
		}
		if s.Status != StatusMulligan {
			return fmt.Errorf("%w: status is %s", ErrMulliganNotOpen, s.Status)
		}
		if p.MulliganResolved {
			return ErrAlreadyMulliganed
		}

		if reshuffle {
			p.returnHandToDeck()
			e.shuffleDeck(p)
			p.drawN(s.Rules.HandSize)
			p.Mulliganed = true
		}
		p.MulliganResolved = true
		evt := rules.NewEvent(rules.EventMulliganResolved, s.ID, playerID)
		evt.Metadata = map[string]string{"reshuffle": fmt.Sprintf("%t", reshuffle)}
		c.emit(evt)

		for _, slot := range s.Slots {
			if !slot.State.MulliganResolved {
				return nil
			}
		}
		for _, slot := range s.Slots {
			slot.State.placeLife(s.Rules.LifeCards)
		}
		c.startTurnOne(s.Slots[0].PlayerID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("mulligan resolved",
		zap.String("game_id", sessionID),
		zap.String("player_id", playerID),
		zap.Bool("reshuffle", reshuffle),
		zap.String("status", string(result.Game.Status)),
	)
	return result, nil
}

// Surrender ends the session in favour of the opponent. Either participant
// may surrender at any time once both players have joined.
func (e *Engine) Surrender(ctx context.Context, sessionID, playerID string) (*Result, error) {
	result, err := e.mutate(ctx, sessionID, playerID, func(c *actionContext) error {
		s := c.session
		if s.IsFinished() {
			return ErrGameFinished
		}
		if !s.IsParticipant(playerID) {
			return ErrNotParticipant
		}
		if !s.bothJoined() {
			return ErrGameNotStarted
		}
		c.surrender(playerID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("player surrendered",
		zap.String("game_id", sessionID),
		zap.String("player_id", playerID),
		zap.String("winner_id", result.Game.WinnerID),
	)
	return result, nil
}

// GetState returns the session as seen by viewerID.
func (e *Engine) GetState(sessionID, viewerID string) (*Result, error) {
	entry, err := e.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var result *Result
	entry.Read(func(s *GameSession) {
		result = resultFor(s, viewerID, nil)
	})
	return result, nil
}

// TurnInfo returns the turn summary of a session.
func (e *Engine) TurnInfo(sessionID string) (TurnInfo, error) {
	entry, err := e.registry.Get(sessionID)
	if err != nil {
		return TurnInfo{}, err
	}
	var info TurnInfo
	entry.Read(func(s *GameSession) {
		info = s.TurnInfo()
	})
	return info, nil
}

// GameInfo returns the public summary of a session.
func (e *Engine) GameInfo(sessionID string) (GameInfo, error) {
	entry, err := e.registry.Get(sessionID)
	if err != nil {
		return GameInfo{}, err
	}
	var info GameInfo
	entry.Read(func(s *GameSession) {
		info = s.Info()
	})
	return info, nil
}

// ActiveGames lists the unfinished sessions playerID has joined or holds a
// reserved seat in, newest first.
func (e *Engine) ActiveGames(playerID string) []GameView {
	games := make([]GameView, 0)
	if playerID == "" {
		return games
	}
	for _, id := range e.registry.IDs() {
		entry, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		entry.Read(func(s *GameSession) {
			if s.IsFinished() {
				return
			}
			if s.SlotPlayer(0) == playerID || s.SlotPlayer(1) == playerID {
				games = append(games, s.View())
			}
		})
	}
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	return games
}

// History returns the action log. Only participants may read it.
func (e *Engine) History(sessionID, playerID string) ([]ActionRecord, error) {
	entry, err := e.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var (
		history []ActionRecord
		allowed bool
	)
	entry.Read(func(s *GameSession) {
		allowed = s.IsParticipant(playerID)
		if allowed {
			history = s.Clone().History
		}
	})
	if !allowed {
		return nil, ErrNotParticipant
	}
	return history, nil
}
