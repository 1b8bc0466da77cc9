package game

import (
	"time"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// GameView is the public summary of a session.
type GameView struct {
	ID           string       `json:"id"`
	Status       Status       `json:"status"`
	GameMode     string       `json:"game_mode"`
	CurrentTurn  int          `json:"current_turn"`
	Phase        rules.Phase  `json:"phase"`
	PhaseName    string       `json:"phase_name"`
	ActivePlayer string       `json:"active_player"`
	Player1ID    string       `json:"player1_id,omitempty"`
	Player2ID    string       `json:"player2_id,omitempty"`
	WinnerID     string       `json:"winner_id,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CardView is a card as seen by one viewer. Face-down cards carry no details.
type CardView struct {
	*Card
	FaceDown bool `json:"face_down,omitempty"`
}

// BoardView mirrors Board with per-viewer visibility applied.
type BoardView struct {
	FrontLine   []CardView `json:"front_line"`
	EnergyLine  []CardView `json:"energy_line"`
	Graveyard   []CardView `json:"graveyard"`
	LifeArea    []CardView `json:"life_area"`
	OutsideArea []CardView `json:"outside_area"`
	RemoveArea  []CardView `json:"remove_area"`
	PublicArea  []CardView `json:"public_area"`
	HiddenArea  []CardView `json:"hidden_area"`
}

// PlayerView is one player's state as seen by a viewer.
type PlayerView struct {
	PlayerID         string     `json:"player_id"`
	Hand             []CardView `json:"hand"`
	Deck             []CardView `json:"deck"`
	HandCount        int        `json:"hand_count"`
	DeckCount        int        `json:"deck_count"`
	AP               int        `json:"ap"`
	MaxAP            int        `json:"max_ap"`
	Board            BoardView  `json:"board"`
	MulliganResolved bool       `json:"mulligan_resolved"`
	ExtraDrawUsed    bool       `json:"extra_draw_used"`
}

// StateView is the game_state payload returned to a player.
type StateView struct {
	Players      map[string]PlayerView `json:"players"`
	Turn         int                   `json:"turn"`
	Phase        rules.Phase           `json:"phase"`
	PhaseName    string                `json:"phase_name"`
	ActivePlayer string                `json:"active_player"`
	Status       Status                `json:"status"`
	Checksum     string                `json:"checksum"`
}

// ReplayFrame is one recorded step of a session as seen by one player.
type ReplayFrame struct {
	Version int64     `json:"version"`
	Game    GameView  `json:"game"`
	State   StateView `json:"game_state"`
}

// TurnInfo is the minimal turn summary.
type TurnInfo struct {
	Turn          int         `json:"turn"`
	Phase         rules.Phase `json:"phase"`
	PhaseName     string      `json:"phase_name"`
	ActivePlayer  string      `json:"active_player"`
	IsPlayer1Turn bool        `json:"is_player1_turn"`
	IsPlayer2Turn bool        `json:"is_player2_turn"`
}

// PublicPlayerInfo holds the counts anyone may see.
type PublicPlayerInfo struct {
	PlayerID  string `json:"player_id"`
	Joined    bool   `json:"joined"`
	HandCount int    `json:"hand_count"`
	DeckCount int    `json:"deck_count"`
	LifeCount int    `json:"life_count"`
	AP        int    `json:"ap"`
	MaxAP     int    `json:"max_ap"`
}

// GameInfo is the unauthenticated summary of a session.
type GameInfo struct {
	Game    GameView           `json:"game"`
	Players []PublicPlayerInfo `json:"players"`
}

// View builds the public game summary.
func (s *GameSession) View() GameView {
	return GameView{
		ID:           s.ID,
		Status:       s.Status,
		GameMode:     s.GameMode,
		CurrentTurn:  s.CurrentTurn,
		Phase:        s.Phase,
		PhaseName:    s.Phase.String(),
		ActivePlayer: s.ActivePlayer,
		Player1ID:    s.SlotPlayer(0),
		Player2ID:    s.SlotPlayer(1),
		WinnerID:     s.WinnerID,
		FinishReason: s.FinishReason,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// TurnInfo builds the turn summary.
func (s *GameSession) TurnInfo() TurnInfo {
	active := s.ActivePlayer
	return TurnInfo{
		Turn:          s.CurrentTurn,
		Phase:         s.Phase,
		PhaseName:     s.Phase.String(),
		ActivePlayer:  active,
		IsPlayer1Turn: active != "" && active == s.SlotPlayer(0),
		IsPlayer2Turn: active != "" && active == s.SlotPlayer(1),
	}
}

// Info builds the public summary with per-player counts.
func (s *GameSession) Info() GameInfo {
	info := GameInfo{Game: s.View(), Players: make([]PublicPlayerInfo, 0, 2)}
	for i, slot := range s.Slots {
		if slot == nil {
			continue
		}
		entry := PublicPlayerInfo{PlayerID: s.SlotPlayer(i), Joined: slot.Joined}
		if slot.Joined && slot.State != nil {
			entry.HandCount = len(slot.State.Hand)
			entry.DeckCount = len(slot.State.Deck)
			entry.LifeCount = len(slot.State.Board.LifeArea)
			entry.AP = slot.State.AP
			entry.MaxAP = slot.State.MaxAP
		}
		info.Players = append(info.Players, entry)
	}
	return info
}

// StateFor builds the game_state as seen by viewerID. Decks and life areas are
// face down for everyone; hands and hidden areas are visible to their owner only.
func (s *GameSession) StateFor(viewerID string) StateView {
	view := StateView{
		Players:      make(map[string]PlayerView, 2),
		Turn:         s.CurrentTurn,
		Phase:        s.Phase,
		PhaseName:    s.Phase.String(),
		ActivePlayer: s.ActivePlayer,
		Status:       s.Status,
		Checksum:     s.Checksum(),
	}
	for _, slot := range s.Slots {
		if slot == nil || !slot.Joined || slot.State == nil {
			continue
		}
		p := slot.State
		owner := viewerID != "" && viewerID == slot.PlayerID
		view.Players[slot.PlayerID] = PlayerView{
			PlayerID:         slot.PlayerID,
			Hand:             cardViews(p.Hand, owner),
			Deck:             cardViews(p.Deck, false),
			HandCount:        len(p.Hand),
			DeckCount:        len(p.Deck),
			AP:               p.AP,
			MaxAP:            p.MaxAP,
			MulliganResolved: p.MulliganResolved,
			ExtraDrawUsed:    p.ExtraDrawUsed,
			Board: BoardView{
				FrontLine:   cardViews(p.Board.FrontLine, true),
				EnergyLine:  cardViews(p.Board.EnergyLine, true),
				Graveyard:   cardViews(p.Board.Graveyard, true),
				LifeArea:    cardViews(p.Board.LifeArea, false),
				OutsideArea: cardViews(p.Board.OutsideArea, true),
				RemoveArea:  cardViews(p.Board.RemoveArea, true),
				PublicArea:  cardViews(p.Board.PublicArea, true),
				HiddenArea:  cardViews(p.Board.HiddenArea, owner),
			},
		}
	}
	return view
}

func cardViews(cards []Card, visible bool) []CardView {
	out := make([]CardView, len(cards))
	for i := range cards {
		if visible {
			card := cards[i]
			out[i] = CardView{Card: &card}
		} else {
			out[i] = CardView{FaceDown: true}
		}
	}
	return out
}
