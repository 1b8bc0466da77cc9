package rules

import (
	"fmt"
	"strings"
)

// Phase represents one phase of a Union Arena turn.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseMove
	PhaseMain
	PhaseAttack
	PhaseEnd
)

var phaseNames = map[Phase]string{
	PhaseStart:  "START",
	PhaseMove:   "MOVE",
	PhaseMain:   "MAIN",
	PhaseAttack: "ATTACK",
	PhaseEnd:    "END",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Valid reports whether p is part of the turn sequence.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// ParsePhase resolves a phase by name, case-insensitively.
func ParsePhase(name string) (Phase, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for phase, phaseName := range phaseNames {
		if phaseName == upper {
			return phase, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// turnSequence is the fixed order of phases within a turn.
var turnSequence = []Phase{
	PhaseStart,
	PhaseMove,
	PhaseMain,
	PhaseAttack,
	PhaseEnd,
}

// Sequence returns a copy of the phase order.
func Sequence() []Phase {
	out := make([]Phase, len(turnSequence))
	copy(out, turnSequence)
	return out
}

// TurnState is the serializable form of a TurnManager.
type TurnState struct {
	Turn         int    `json:"turn"`
	Phase        Phase  `json:"phase"`
	ActivePlayer string `json:"active_player"`
}

// TurnManager tracks the active player and turn progression.
type TurnManager struct {
	orderIndex   int
	turnNumber   int
	activePlayer string
}

// NewTurnManager creates a turn manager at turn 1, START phase.
func NewTurnManager(activePlayer string) *TurnManager {
	return &TurnManager{
		orderIndex:   0,
		turnNumber:   1,
		activePlayer: strings.TrimSpace(activePlayer),
	}
}

// RestoreTurnManager rebuilds a manager from a saved state.
func RestoreTurnManager(state TurnState) (*TurnManager, error) {
	idx := -1
	for i, phase := range turnSequence {
		if phase == state.Phase {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown phase %d", int(state.Phase))
	}
	if state.Turn < 1 {
		return nil, fmt.Errorf("invalid turn number %d", state.Turn)
	}
	return &TurnManager{
		orderIndex:   idx,
		turnNumber:   state.Turn,
		activePlayer: state.ActivePlayer,
	}, nil
}

// State returns the serializable snapshot of the manager.
func (tm *TurnManager) State() TurnState {
	return TurnState{
		Turn:         tm.turnNumber,
		Phase:        tm.CurrentPhase(),
		ActivePlayer: tm.activePlayer,
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return turnSequence[tm.orderIndex]
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	return tm.activePlayer
}

// AdvancePhase moves to the next phase in the sequence.
// When END closes the turn wraps: the turn number is incremented, the phase
// resets to START and the active player becomes nextActivePlayer.
// The returned flag reports whether a wrap happened.
func (tm *TurnManager) AdvancePhase(nextActivePlayer string) (Phase, bool) {
	tm.orderIndex++
	if tm.orderIndex < len(turnSequence) {
		return tm.CurrentPhase(), false
	}

	tm.orderIndex = 0
	tm.turnNumber++
	if next := strings.TrimSpace(nextActivePlayer); next != "" {
		tm.activePlayer = next
	}
	return tm.CurrentPhase(), true
}

// Clone returns an independent copy.
func (tm *TurnManager) Clone() *TurnManager {
	cp := *tm
	return &cp
}
