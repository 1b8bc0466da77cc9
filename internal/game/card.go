package game

import (
	"fmt"
	"strings"
)

// CardType is the printed type of a card.
type CardType string

const (
	CardTypeCharacter CardType = "CHARACTER"
	CardTypeField     CardType = "FIELD"
	CardTypeEvent     CardType = "EVENT"
	CardTypeAP        CardType = "AP"
)

var cardTypes = map[CardType]bool{
	CardTypeCharacter: true,
	CardTypeField:     true,
	CardTypeEvent:     true,
	CardTypeAP:        true,
}

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	return cardTypes[t]
}

// Card is one physical card instance inside a session.
// ID is unique per session; CardNumber identifies the printed card.
type Card struct {
	ID         string   `json:"id"`
	CardNumber string   `json:"card_number"`
	Name       string   `json:"name"`
	CardType   CardType `json:"card_type"`
	Color      string   `json:"color,omitempty"`
	BP         int      `json:"bp"`
	APCost     int      `json:"ap_cost"`
	EnergyCost int      `json:"energy_cost"`
	Rested     bool     `json:"rested"`
}

// Zone identifies one of the eight board zones.
type Zone int

const (
	ZoneFrontLine Zone = iota
	ZoneEnergyLine
	ZoneGraveyard
	ZoneLifeArea
	ZoneOutsideArea
	ZoneRemoveArea
	ZonePublicArea
	ZoneHiddenArea
)

var zoneNames = map[Zone]string{
	ZoneFrontLine:   "front_line",
	ZoneEnergyLine:  "energy_line",
	ZoneGraveyard:   "graveyard",
	ZoneLifeArea:    "life_area",
	ZoneOutsideArea: "outside_area",
	ZoneRemoveArea:  "remove_area",
	ZonePublicArea:  "public_area",
	ZoneHiddenArea:  "hidden_area",
}

// Zones lists every board zone in code order.
var Zones = []Zone{
	ZoneFrontLine,
	ZoneEnergyLine,
	ZoneGraveyard,
	ZoneLifeArea,
	ZoneOutsideArea,
	ZoneRemoveArea,
	ZonePublicArea,
	ZoneHiddenArea,
}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("zone_%d", int(z))
}

// ZoneFromCode maps a numeric zone code to a zone.
func ZoneFromCode(code int) (Zone, bool) {
	z := Zone(code)
	_, ok := zoneNames[z]
	return z, ok
}

// ParseZone maps a zone name such as "energy_line" to a zone.
func ParseZone(name string) (Zone, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for z, zoneName := range zoneNames {
		if zoneName == normalized {
			return z, true
		}
	}
	return 0, false
}

// Board holds the eight ordered zones of one player.
type Board struct {
	FrontLine   []Card `json:"front_line"`
	EnergyLine  []Card `json:"energy_line"`
	Graveyard   []Card `json:"graveyard"`
	LifeArea    []Card `json:"life_area"`
	OutsideArea []Card `json:"outside_area"`
	RemoveArea  []Card `json:"remove_area"`
	PublicArea  []Card `json:"public_area"`
	HiddenArea  []Card `json:"hidden_area"`
}

func newBoard() Board {
	var b Board
	for _, z := range Zones {
		*b.Zone(z) = make([]Card, 0)
	}
	return b
}

// Zone returns a pointer to the slice backing z.
func (b *Board) Zone(z Zone) *[]Card {
	switch z {
	case ZoneFrontLine:
		return &b.FrontLine
	case ZoneEnergyLine:
		return &b.EnergyLine
	case ZoneGraveyard:
		return &b.Graveyard
	case ZoneLifeArea:
		return &b.LifeArea
	case ZoneOutsideArea:
		return &b.OutsideArea
	case ZoneRemoveArea:
		return &b.RemoveArea
	case ZonePublicArea:
		return &b.PublicArea
	case ZoneHiddenArea:
		return &b.HiddenArea
	}
	return nil
}

// Count returns the number of cards across all zones.
func (b *Board) Count() int {
	total := 0
	for _, z := range Zones {
		total += len(*b.Zone(z))
	}
	return total
}

func (b Board) clone() Board {
	var out Board
	for _, z := range Zones {
		*out.Zone(z) = cloneCards(*b.Zone(z))
	}
	return out
}

func cloneCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
