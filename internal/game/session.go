package game

import (
	"encoding/json"
	"time"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaitingForPlayers Status = "WAITING_FOR_PLAYERS"
	StatusMulligan          Status = "MULLIGAN"
	StatusInProgress        Status = "IN_PROGRESS"
	StatusFinished          Status = "FINISHED"
)

// FinishReason records why a session ended.
type FinishReason string

const (
	FinishLifeDepleted FinishReason = "LIFE_DEPLETED"
	FinishDeckOut      FinishReason = "DECK_OUT"
	FinishSurrender    FinishReason = "SURRENDER"
)

// Slot is one of the two seats of a session. Reserved, when set, is the
// only player allowed to take the seat.
type Slot struct {
	Reserved string       `json:"reserved_player_id,omitempty"`
	PlayerID string       `json:"player_id,omitempty"`
	Joined   bool         `json:"joined"`
	State    *PlayerState `json:"state"`
}

// ActionRecord is one entry of the session's action log.
type ActionRecord struct {
	Seq        int              `json:"seq"`
	PlayerID   string           `json:"player_id"`
	ActionType rules.ActionType `json:"action_type"`
	ActionData json.RawMessage  `json:"action_data,omitempty"`
	Turn       int              `json:"turn"`
	Phase      rules.Phase      `json:"phase"`
	At         time.Time        `json:"at"`
}

// GameSession is the aggregate root of one match.
type GameSession struct {
	ID           string         `json:"id"`
	Status       Status         `json:"status"`
	GameMode     string         `json:"game_mode"`
	CurrentTurn  int            `json:"current_turn"`
	Phase        rules.Phase    `json:"phase"`
	ActivePlayer string         `json:"active_player"`
	Slots        [2]*Slot       `json:"slots"`
	WinnerID     string         `json:"winner_id,omitempty"`
	FinishReason FinishReason   `json:"finish_reason,omitempty"`
	Rules        Ruleset        `json:"rules"`
	History      []ActionRecord `json:"history"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *GameSession) Clone() *GameSession {
	cp := *s
	for i, slot := range s.Slots {
		if slot == nil {
			continue
		}
		slotCopy := *slot
		slotCopy.State = slot.State.clone()
		cp.Slots[i] = &slotCopy
	}
	cp.History = make([]ActionRecord, len(s.History))
	for i, rec := range s.History {
		rec.ActionData = append(json.RawMessage(nil), rec.ActionData...)
		cp.History[i] = rec
	}
	return &cp
}

// IsFinished reports whether the session has ended.
func (s *GameSession) IsFinished() bool {
	return s.Status == StatusFinished
}

// slotOf returns the index of the slot the player has joined, or -1.
func (s *GameSession) slotOf(playerID string) int {
	for i, slot := range s.Slots {
		if slot != nil && slot.Joined && slot.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// IsParticipant reports whether the player has joined the session.
func (s *GameSession) IsParticipant(playerID string) bool {
	return playerID != "" && s.slotOf(playerID) >= 0
}

// Player returns the state of a joined player.
func (s *GameSession) Player(playerID string) (*PlayerState, bool) {
	idx := s.slotOf(playerID)
	if idx < 0 {
		return nil, false
	}
	return s.Slots[idx].State, true
}

// Opponent returns the id of the other joined player.
func (s *GameSession) Opponent(playerID string) string {
	idx := s.slotOf(playerID)
	if idx < 0 {
		return ""
	}
	other := s.Slots[1-idx]
	if other == nil || !other.Joined {
		return ""
	}
	return other.PlayerID
}

// PlayerIDs returns the ids of joined players in slot order.
func (s *GameSession) PlayerIDs() []string {
	ids := make([]string, 0, 2)
	for _, slot := range s.Slots {
		if slot != nil && slot.Joined {
			ids = append(ids, slot.PlayerID)
		}
	}
	return ids
}

// SlotPlayer returns the player id in slot i (0 or 1), joined or reserved.
func (s *GameSession) SlotPlayer(i int) string {
	if i < 0 || i > 1 || s.Slots[i] == nil {
		return ""
	}
	if s.Slots[i].Joined {
		return s.Slots[i].PlayerID
	}
	return s.Slots[i].Reserved
}

func (s *GameSession) bothJoined() bool {
	return len(s.PlayerIDs()) == 2
}

func (s *GameSession) finish(winner string, reason FinishReason) {
	s.Status = StatusFinished
	s.WinnerID = winner
	s.FinishReason = reason
}

func (s *GameSession) turnState() rules.TurnState {
	return rules.TurnState{
		Turn:         s.CurrentTurn,
		Phase:        s.Phase,
		ActivePlayer: s.ActivePlayer,
	}
}

// touch bumps the version after a successful mutation.
func (s *GameSession) touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now
}
