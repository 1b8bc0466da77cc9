package game

import (
	"fmt"
	"time"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// actionContext carries one mutation through handlers and collects the
// events it produces.
type actionContext struct {
	session  *GameSession
	playerID string
	now      time.Time
	events   []rules.Event
}

func newActionContext(session *GameSession, playerID string, now time.Time) *actionContext {
	return &actionContext{
		session:  session,
		playerID: playerID,
		now:      now,
		events:   make([]rules.Event, 0, 4),
	}
}

func (c *actionContext) emit(evt rules.Event) {
	evt.GameID = c.session.ID
	evt.Turn = c.session.CurrentTurn
	evt.Phase = c.session.Phase
	evt.Timestamp = c.now
	c.events = append(c.events, evt)
}

// draw draws one card for p, applying the deck-out rule when the deck is empty.
func (c *actionContext) draw(p *PlayerState, eventType rules.EventType) bool {
	card, ok := p.drawTop()
	if ok {
		c.emit(rules.NewZoneEvent(eventType, c.session.ID, p.PlayerID, card.ID, "deck", "hand"))
		return true
	}

	c.emit(rules.NewEvent(rules.EventDeckOut, c.session.ID, p.PlayerID))
	if c.session.Rules.DeckOut == DeckOutLose {
		c.session.finish(c.session.Opponent(p.PlayerID), FinishDeckOut)
		c.emit(rules.NewEvent(rules.EventGameEnded, c.session.ID, c.session.WinnerID))
	}
	return false
}

// phaseEffect runs when the active player enters a phase.
type phaseEffect func(c *actionContext, p *PlayerState)

// phaseEntryEffects lists what happens on entering each phase.
var phaseEntryEffects = map[rules.Phase][]phaseEffect{
	rules.PhaseStart: {
		untapEffect,
		refreshAPEffect,
		resetTurnFlagsEffect,
		autoDrawEffect,
	},
}

func untapEffect(c *actionContext, p *PlayerState) {
	if n := p.untapAll(); n > 0 {
		c.emit(rules.NewEventWithAmount(rules.EventUntapped, c.session.ID, p.PlayerID, n))
	}
}

func refreshAPEffect(c *actionContext, p *PlayerState) {
	p.TurnsTaken++
	p.MaxAP = c.session.Rules.maxAPForTurn(p.TurnsTaken)
	p.AP = p.MaxAP
	c.emit(rules.NewEventWithAmount(rules.EventAPRefreshed, c.session.ID, p.PlayerID, p.AP))
}

func resetTurnFlagsEffect(_ *actionContext, p *PlayerState) {
	p.DrewThisTurn = false
	p.ExtraDrawUsed = false
}

func autoDrawEffect(c *actionContext, p *PlayerState) {
	if !c.session.Rules.AutoDraw {
		return
	}
	p.DrewThisTurn = true
	c.draw(p, rules.EventCardDrawn)
}

// enterPhase applies the entry effects of the current phase to the active player.
func (c *actionContext) enterPhase() {
	effects := phaseEntryEffects[c.session.Phase]
	if len(effects) == 0 {
		return
	}
	p, ok := c.session.Player(c.session.ActivePlayer)
	if !ok {
		return
	}
	for _, effect := range effects {
		if c.session.IsFinished() {
			return
		}
		effect(c, p)
	}
}

// advancePhase moves the session to the next phase. It is the only place
// that changes the active player after the game has started.
func (c *actionContext) advancePhase() (bool, error) {
	s := c.session
	tm, err := rules.RestoreTurnManager(s.turnState())
	if err != nil {
		return false, fmt.Errorf("restore turn state: %w", err)
	}

	next := s.Opponent(s.ActivePlayer)
	if next == "" {
		return false, fmt.Errorf("session %s has no opponent for %s", s.ID, s.ActivePlayer)
	}

	from := s.Phase
	_, wrapped := tm.AdvancePhase(next)
	state := tm.State()
	s.CurrentTurn = state.Turn
	s.Phase = state.Phase
	s.ActivePlayer = state.ActivePlayer

	evt := rules.NewEvent(rules.EventPhaseChanged, s.ID, s.ActivePlayer)
	evt.Metadata = map[string]string{"from": from.String(), "to": s.Phase.String()}
	c.emit(evt)
	if wrapped {
		c.emit(rules.NewEvent(rules.EventTurnStarted, s.ID, s.ActivePlayer))
	}

	c.enterPhase()
	return wrapped, nil
}

// advanceTo advances within the current turn until target is reached.
func (c *actionContext) advanceTo(target rules.Phase) error {
	for c.session.Phase != target {
		wrapped, err := c.advancePhase()
		if err != nil {
			return err
		}
		if wrapped {
			return fmt.Errorf("auto-advance to %s crossed a turn boundary", target)
		}
		if c.session.IsFinished() {
			return nil
		}
	}
	return nil
}

// startTurnOne puts the session on turn 1, START, with first as active player.
func (c *actionContext) startTurnOne(first string) {
	s := c.session
	tm := rules.NewTurnManager(first)
	state := tm.State()
	s.CurrentTurn = state.Turn
	s.Phase = state.Phase
	s.ActivePlayer = state.ActivePlayer
	s.Status = StatusInProgress

	c.emit(rules.NewEvent(rules.EventGameStarted, s.ID, first))
	c.emit(rules.NewEvent(rules.EventTurnStarted, s.ID, first))
	c.enterPhase()
}
