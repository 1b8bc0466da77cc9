package game

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// actionHandler mutates the session for one action. p is the acting player.
type actionHandler func(c *actionContext, p *PlayerState, data []any) error

var actionHandlers = map[rules.ActionType]actionHandler{
	rules.ActionDrawCard:      handleDrawCard,
	rules.ActionExtraDraw:     handleExtraDraw,
	rules.ActionEndPhase:      handleEndPhase,
	rules.ActionMoveCharacter: handleMoveCharacter,
	rules.ActionPlayCard:      handlePlayCard,
	rules.ActionAttack:        handleAttack,
	rules.ActionEndTurn:       handleEndTurn,
	rules.ActionSurrender:     handleSurrender,
}

func handleDrawCard(c *actionContext, p *PlayerState, _ []any) error {
	if p.DrewThisTurn {
		return ErrDrawLimitReached
	}
	p.DrewThisTurn = true
	c.draw(p, rules.EventCardDrawn)
	return nil
}

func handleExtraDraw(c *actionContext, p *PlayerState, _ []any) error {
	if p.ExtraDrawUsed {
		return fmt.Errorf("%w: extra draw already used", ErrDrawLimitReached)
	}
	cost := c.session.Rules.ExtraDrawCost
	if p.AP < cost {
		return fmt.Errorf("%w: extra draw costs %d, have %d", ErrInsufficientAP, cost, p.AP)
	}
	p.AP -= cost
	p.ExtraDrawUsed = true
	c.draw(p, rules.EventExtraDraw)
	return nil
}

func handleEndPhase(c *actionContext, _ *PlayerState, _ []any) error {
	_, err := c.advancePhase()
	return err
}

func handleEndTurn(c *actionContext, _ *PlayerState, _ []any) error {
	for {
		wrapped, err := c.advancePhase()
		if err != nil {
			return err
		}
		if wrapped || c.session.IsFinished() {
			return nil
		}
	}
}

func handleMoveCharacter(c *actionContext, p *PlayerState, data []any) error {
	index, err := intArg(data, 0)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.Board.EnergyLine) {
		return fmt.Errorf("%w: energy line index %d out of range", ErrInvalidActionData, index)
	}
	if p.Board.EnergyLine[index].CardType != CardTypeCharacter {
		return fmt.Errorf("%w: only characters can move to the front line", ErrInvalidDestination)
	}
	if len(p.Board.FrontLine) >= c.session.Rules.FrontLineCapacity {
		return fmt.Errorf("%w: front line is full", ErrInvalidDestination)
	}

	card, _ := p.takeFromZone(ZoneEnergyLine, index)
	p.putInZone(ZoneFrontLine, card)
	c.emit(rules.NewZoneEvent(rules.EventCharacterMoved, c.session.ID, p.PlayerID, card.ID,
		ZoneEnergyLine.String(), ZoneFrontLine.String()))
	return nil
}

func handlePlayCard(c *actionContext, p *PlayerState, data []any) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: PLAY_CARD expects [hand_index, zone]", ErrInvalidActionData)
	}
	index, err := intArg(data, 0)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.Hand) {
		return fmt.Errorf("%w: %d (hand has %d cards)", ErrInvalidHandIndex, index, len(p.Hand))
	}
	zone, err := zoneArg(data, 1)
	if err != nil {
		return err
	}

	rule, ok := playableZones[zone]
	if !ok {
		return fmt.Errorf("%w: cards cannot be played to %s", ErrInvalidDestination, zone)
	}
	card := p.Hand[index]
	if !rule.types[card.CardType] {
		return fmt.Errorf("%w: %s cards cannot enter %s", ErrInvalidDestination, card.CardType, zone)
	}
	if rule.capacity != nil && len(*p.Board.Zone(zone)) >= rule.capacity(c.session.Rules) {
		return fmt.Errorf("%w: %s is full", ErrInvalidDestination, zone)
	}
	if rule.needsEnergy && len(p.Board.EnergyLine) < card.EnergyCost {
		return fmt.Errorf("%w: needs %d energy, have %d", ErrInvalidDestination, card.EnergyCost, len(p.Board.EnergyLine))
	}
	if p.AP < card.APCost {
		return fmt.Errorf("%w: costs %d AP, have %d", ErrInvalidDestination, card.APCost, p.AP)
	}

	card, _ = p.takeFromHand(index)
	p.AP -= card.APCost
	card.Rested = rule.entersRested
	p.putInZone(zone, card)
	c.emit(rules.NewZoneEvent(rules.EventCardPlayed, c.session.ID, p.PlayerID, card.ID, "hand", zone.String()))
	return nil
}

func handleAttack(c *actionContext, p *PlayerState, data []any) error {
	index, err := intArg(data, 0)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.Board.FrontLine) {
		return fmt.Errorf("%w: front line index %d out of range", ErrInvalidActionData, index)
	}
	attacker := &p.Board.FrontLine[index]
	if attacker.Rested {
		return fmt.Errorf("%w: %s is rested", ErrInvalidActionData, attacker.Name)
	}

	defenderID := c.session.Opponent(p.PlayerID)
	defender, ok := c.session.Player(defenderID)
	if !ok {
		return fmt.Errorf("attack target %q not found", defenderID)
	}

	attacker.Rested = true
	c.emit(rules.NewZoneEvent(rules.EventAttackDeclared, c.session.ID, p.PlayerID, attacker.ID,
		ZoneFrontLine.String(), ""))

	if len(defender.Board.LifeArea) == 0 {
		c.session.finish(p.PlayerID, FinishLifeDepleted)
		c.emit(rules.NewEvent(rules.EventGameEnded, c.session.ID, p.PlayerID))
		return nil
	}

	life, _ := defender.takeFromZone(ZoneLifeArea, len(defender.Board.LifeArea)-1)
	defender.putInZone(ZoneOutsideArea, life)
	c.emit(rules.NewZoneEvent(rules.EventLifeLost, c.session.ID, defenderID, life.ID,
		ZoneLifeArea.String(), ZoneOutsideArea.String()))
	return nil
}

func handleSurrender(c *actionContext, p *PlayerState, _ []any) error {
	c.surrender(p.PlayerID)
	return nil
}

func (c *actionContext) surrender(playerID string) {
	winner := c.session.Opponent(playerID)
	c.emit(rules.NewEvent(rules.EventSurrendered, c.session.ID, playerID))
	c.session.finish(winner, FinishSurrender)
	c.emit(rules.NewEvent(rules.EventGameEnded, c.session.ID, winner))
}

// intArg reads data[i] as an integer. JSON numbers arrive as float64.
func intArg(data []any, i int) (int, error) {
	if i >= len(data) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrInvalidActionData, i)
	}
	switch v := data[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: argument %d is not an integer", ErrInvalidActionData, i)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: argument %d: %v", ErrInvalidActionData, i, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: argument %d is not an integer", ErrInvalidActionData, i)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: argument %d has type %T", ErrInvalidActionData, i, data[i])
	}
}

// zoneArg reads data[i] as a zone code or a zone name.
func zoneArg(data []any, i int) (Zone, error) {
	if i < len(data) {
		if name, ok := data[i].(string); ok {
			if z, ok := ParseZone(name); ok {
				return z, nil
			}
		}
	}
	code, err := intArg(data, i)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown zone %v", ErrInvalidDestination, valueAt(data, i))
	}
	z, ok := ZoneFromCode(code)
	if !ok {
		return 0, fmt.Errorf("%w: unknown zone code %d", ErrInvalidDestination, code)
	}
	return z, nil
}

func valueAt(data []any, i int) any {
	if i < len(data) {
		return data[i]
	}
	return nil
}
