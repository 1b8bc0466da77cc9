package rules

import (
	"sort"
	"strings"
)

// ActionType names a player action accepted by the dispatcher.
type ActionType string

const (
	ActionDrawCard      ActionType = "DRAW_CARD"
	ActionExtraDraw     ActionType = "EXTRA_DRAW"
	ActionEndPhase      ActionType = "END_PHASE"
	ActionMoveCharacter ActionType = "MOVE_CHARACTER"
	ActionPlayCard      ActionType = "PLAY_CARD"
	ActionAttack        ActionType = "ATTACK"
	ActionEndTurn       ActionType = "END_TURN"
	ActionSurrender     ActionType = "SURRENDER"
)

// ActionRule describes when an action may be taken and what it does to the
// phase once it succeeds.
type ActionRule struct {
	Action ActionType
	// Phases lists the phases the action is legal in. Empty means any phase.
	Phases []Phase
	// AdvanceTo is the phase the session moves to after the action, within
	// the same turn. Only read when AutoAdvance is set.
	AdvanceTo   Phase
	AutoAdvance bool
	// TurnAgnostic actions may be submitted by either participant.
	TurnAgnostic bool
}

// AllowedIn reports whether the action is legal in phase.
func (r ActionRule) AllowedIn(phase Phase) bool {
	if len(r.Phases) == 0 {
		return true
	}
	for _, p := range r.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// actionRules is the declarative legality table.
var actionRules = map[ActionType]ActionRule{
	ActionDrawCard: {
		Action: ActionDrawCard,
		Phases: []Phase{PhaseStart},
	},
	ActionExtraDraw: {
		Action:      ActionExtraDraw,
		Phases:      []Phase{PhaseStart},
		AdvanceTo:   PhaseMove,
		AutoAdvance: true,
	},
	ActionEndPhase: {
		Action: ActionEndPhase,
	},
	ActionMoveCharacter: {
		Action: ActionMoveCharacter,
		Phases: []Phase{PhaseMove},
	},
	ActionPlayCard: {
		Action: ActionPlayCard,
		Phases: []Phase{PhaseMove, PhaseMain},
	},
	ActionAttack: {
		Action: ActionAttack,
		Phases: []Phase{PhaseAttack},
	},
	ActionEndTurn: {
		Action: ActionEndTurn,
	},
	ActionSurrender: {
		Action:       ActionSurrender,
		TurnAgnostic: true,
	},
}

// LookupAction returns the rule for an action type. Lookup is
// case-insensitive and ignores surrounding whitespace.
func LookupAction(action ActionType) (ActionRule, bool) {
	normalized := ActionType(strings.ToUpper(strings.TrimSpace(string(action))))
	rule, ok := actionRules[normalized]
	return rule, ok
}

// Actions returns every known action type in a stable order.
func Actions() []ActionType {
	out := make([]ActionType, 0, len(actionRules))
	for action := range actionRules {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
