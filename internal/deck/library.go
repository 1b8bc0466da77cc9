// Package deck loads named decks from a YAML card library.
package deck

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/uaarena/session-engine/internal/game"
)

// File is the top-level YAML structure: a card catalogue and the decks
// built from it.
type File struct {
	Cards []CardDef `yaml:"cards"`
	Decks []Entry   `yaml:"decks"`
}

// CardDef describes one printed card.
type CardDef struct {
	CardNumber string `yaml:"card_number"`
	Name       string `yaml:"name"`
	CardType   string `yaml:"card_type"`
	Color      string `yaml:"color"`
	BP         int    `yaml:"bp"`
	APCost     int    `yaml:"ap_cost"`
	EnergyCost int    `yaml:"energy_cost"`
}

// Entry is a named deck.
type Entry struct {
	Name  string      `yaml:"name"`
	Cards []CardCount `yaml:"cards"`
}

// CardCount is a card and its number of copies in a deck.
type CardCount struct {
	CardNumber string `yaml:"card_number"`
	Count      int    `yaml:"count"`
}

// Library resolves deck names to card lists.
type Library struct {
	decks map[string][]game.Card
}

// Load reads and parses a library file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a library from YAML. Every deck entry must reference a card
// defined in the catalogue.
func Parse(data []byte) (*Library, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse deck YAML: %w", err)
	}

	catalogue := make(map[string]CardDef, len(f.Cards))
	for _, def := range f.Cards {
		number := strings.TrimSpace(def.CardNumber)
		if number == "" {
			return nil, fmt.Errorf("card %q has no card_number", def.Name)
		}
		if _, dup := catalogue[number]; dup {
			return nil, fmt.Errorf("card %s defined twice", number)
		}
		catalogue[number] = def
	}

	lib := &Library{decks: make(map[string][]game.Card, len(f.Decks))}
	for _, entry := range f.Decks {
		if entry.Name == "" {
			return nil, fmt.Errorf("deck without a name")
		}
		if _, dup := lib.decks[entry.Name]; dup {
			return nil, fmt.Errorf("deck %q defined twice", entry.Name)
		}
		var cards []game.Card
		for _, cc := range entry.Cards {
			def, ok := catalogue[strings.TrimSpace(cc.CardNumber)]
			if !ok {
				return nil, fmt.Errorf("deck %q: unknown card %s", entry.Name, cc.CardNumber)
			}
			if cc.Count < 1 {
				return nil, fmt.Errorf("deck %q: card %s has count %d", entry.Name, cc.CardNumber, cc.Count)
			}
			for i := 0; i < cc.Count; i++ {
				cards = append(cards, def.card())
			}
		}
		lib.decks[entry.Name] = cards
	}
	return lib, nil
}

func (def CardDef) card() game.Card {
	return game.Card{
		CardNumber: strings.TrimSpace(def.CardNumber),
		Name:       def.Name,
		CardType:   game.CardType(strings.ToUpper(def.CardType)),
		Color:      def.Color,
		BP:         def.BP,
		APCost:     def.APCost,
		EnergyCost: def.EnergyCost,
	}
}

// Deck returns a fresh copy of the named deck.
func (l *Library) Deck(name string) ([]game.Card, bool) {
	if l == nil {
		return nil, false
	}
	cards, ok := l.decks[name]
	if !ok {
		return nil, false
	}
	out := make([]game.Card, len(cards))
	copy(out, cards)
	return out, true
}

// Names lists the deck names, sorted.
func (l *Library) Names() []string {
	if l == nil {
		return []string{}
	}
	names := make([]string, 0, len(l.decks))
	for name := range l.decks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
