package game

import (
	"fmt"
	"strings"
)

// DeckOutRule decides what happens when a player draws from an empty deck.
type DeckOutRule string

const (
	DeckOutLose DeckOutRule = "lose"
	DeckOutNoop DeckOutRule = "noop"
)

// Ruleset holds the tunable numbers of the game.
type Ruleset struct {
	DeckSize           int         `mapstructure:"deck_size" json:"deck_size"`
	MaxCopies          int         `mapstructure:"max_copies" json:"max_copies"`
	HandSize           int         `mapstructure:"hand_size" json:"hand_size"`
	LifeCards          int         `mapstructure:"life_cards" json:"life_cards"`
	InitialAP          int         `mapstructure:"initial_ap" json:"initial_ap"`
	APPerTurn          int         `mapstructure:"ap_per_turn" json:"ap_per_turn"`
	MaxAP              int         `mapstructure:"max_ap" json:"max_ap"`
	AutoDraw           bool        `mapstructure:"auto_draw" json:"auto_draw"`
	DeckOut            DeckOutRule `mapstructure:"deck_out" json:"deck_out"`
	FrontLineCapacity  int         `mapstructure:"front_line_capacity" json:"front_line_capacity"`
	EnergyLineCapacity int         `mapstructure:"energy_line_capacity" json:"energy_line_capacity"`
	ExtraDrawCost      int         `mapstructure:"extra_draw_cost" json:"extra_draw_cost"`
}

// DefaultRuleset returns the standard tournament numbers.
func DefaultRuleset() Ruleset {
	return Ruleset{
		DeckSize:           50,
		MaxCopies:          4,
		HandSize:           7,
		LifeCards:          7,
		InitialAP:          3,
		APPerTurn:          1,
		MaxAP:              10,
		AutoDraw:           false,
		DeckOut:            DeckOutLose,
		FrontLineCapacity:  4,
		EnergyLineCapacity: 4,
		ExtraDrawCost:      1,
	}
}

// Validate checks that the ruleset can produce a playable game.
func (r Ruleset) Validate() error {
	switch {
	case r.DeckSize <= 0:
		return fmt.Errorf("%w: deck_size must be positive", ErrInvalidConfig)
	case r.MaxCopies <= 0:
		return fmt.Errorf("%w: max_copies must be positive", ErrInvalidConfig)
	case r.HandSize < 0 || r.LifeCards < 0:
		return fmt.Errorf("%w: hand_size and life_cards must not be negative", ErrInvalidConfig)
	case r.HandSize+r.LifeCards > r.DeckSize:
		return fmt.Errorf("%w: hand_size + life_cards exceeds deck_size", ErrInvalidConfig)
	case r.InitialAP < 0 || r.APPerTurn < 0 || r.MaxAP < r.InitialAP:
		return fmt.Errorf("%w: AP settings out of range", ErrInvalidConfig)
	case r.FrontLineCapacity <= 0 || r.EnergyLineCapacity <= 0:
		return fmt.Errorf("%w: line capacities must be positive", ErrInvalidConfig)
	case r.ExtraDrawCost < 0:
		return fmt.Errorf("%w: extra_draw_cost must not be negative", ErrInvalidConfig)
	}
	switch r.DeckOut {
	case DeckOutLose, DeckOutNoop:
	default:
		return fmt.Errorf("%w: unknown deck_out rule %q", ErrInvalidConfig, r.DeckOut)
	}
	return nil
}

// maxAPForTurn returns the AP ceiling for a player's n-th own turn.
func (r Ruleset) maxAPForTurn(turnsTaken int) int {
	if turnsTaken < 1 {
		turnsTaken = 1
	}
	ap := r.InitialAP + (turnsTaken-1)*r.APPerTurn
	if ap > r.MaxAP {
		ap = r.MaxAP
	}
	return ap
}

// ValidateDeck checks deck composition and normalizes card fields in place.
func (r Ruleset) ValidateDeck(label string, deck []Card) error {
	if len(deck) != r.DeckSize {
		return fmt.Errorf("%w: %s has %d cards, expected %d", ErrInvalidConfig, label, len(deck), r.DeckSize)
	}
	copies := make(map[string]int)
	for i := range deck {
		card := &deck[i]
		card.CardNumber = strings.TrimSpace(card.CardNumber)
		if card.CardNumber == "" {
			return fmt.Errorf("%w: %s card %d has no card_number", ErrInvalidConfig, label, i)
		}
		if card.CardType == "" {
			card.CardType = CardTypeCharacter
		}
		card.CardType = CardType(strings.ToUpper(string(card.CardType)))
		if !card.CardType.Valid() {
			return fmt.Errorf("%w: %s card %s has unknown type %q", ErrInvalidConfig, label, card.CardNumber, card.CardType)
		}
		if card.APCost < 0 || card.EnergyCost < 0 || card.BP < 0 {
			return fmt.Errorf("%w: %s card %s has negative stats", ErrInvalidConfig, label, card.CardNumber)
		}
		copies[card.CardNumber]++
		if copies[card.CardNumber] > r.MaxCopies {
			return fmt.Errorf("%w: %s has more than %d copies of %s", ErrInvalidConfig, label, r.MaxCopies, card.CardNumber)
		}
	}
	return nil
}

// zoneRule describes how PLAY_CARD may put a card into a zone.
type zoneRule struct {
	capacity     func(Ruleset) int // nil means unbounded
	types        map[CardType]bool
	needsEnergy  bool
	entersRested bool
}

var playableZones = map[Zone]zoneRule{
	ZoneFrontLine: {
		capacity:     func(r Ruleset) int { return r.FrontLineCapacity },
		types:        map[CardType]bool{CardTypeCharacter: true},
		needsEnergy:  true,
		entersRested: true,
	},
	ZoneEnergyLine: {
		capacity: func(r Ruleset) int { return r.EnergyLineCapacity },
		types:    map[CardType]bool{CardTypeCharacter: true, CardTypeField: true, CardTypeAP: true},
	},
	ZoneOutsideArea: {
		types: map[CardType]bool{CardTypeEvent: true},
	},
}
