package game

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// Apply validates and executes one player action. Validation runs in a fixed
// order: lifecycle, participation, turn ownership, action type, phase. Any
// error leaves the session exactly as it was.
func (e *Engine) Apply(ctx context.Context, sessionID, playerID string, actionType rules.ActionType, data []any) (*Result, error) {
	if data == nil {
		data = []any{}
	}

	result, err := e.mutate(ctx, sessionID, playerID, func(c *actionContext) error {
		s := c.session
		if s.IsFinished() {
			return ErrGameFinished
		}
		if s.Status != StatusInProgress {
			return fmt.Errorf("%w: status is %s", ErrGameNotStarted, s.Status)
		}
		p, ok := s.Player(playerID)
		if !ok {
			return ErrNotParticipant
		}

		rule, known := rules.LookupAction(actionType)
		if playerID != s.ActivePlayer && !(known && rule.TurnAgnostic) {
			return ErrNotActivePlayer
		}
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownAction, actionType)
		}
		if !rule.AllowedIn(s.Phase) {
			return fmt.Errorf("%w: %s during %s", ErrIllegalPhase, rule.Action, s.Phase)
		}
		handler, ok := actionHandlers[rule.Action]
		if !ok {
			return fmt.Errorf("%w: %q has no handler", ErrUnknownAction, rule.Action)
		}

		turn, phase := s.CurrentTurn, s.Phase
		if err := handler(c, p, data); err != nil {
			return err
		}
		if rule.AutoAdvance && !s.IsFinished() {
			if err := c.advanceTo(rule.AdvanceTo); err != nil {
				return err
			}
		}

		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidActionData, err)
		}
		s.History = append(s.History, ActionRecord{
			Seq:        len(s.History) + 1,
			PlayerID:   playerID,
			ActionType: rule.Action,
			ActionData: raw,
			Turn:       turn,
			Phase:      phase,
			At:         c.now,
		})
		return nil
	})
	if err != nil {
		if IsClientError(err) {
			e.logger.Debug("action rejected",
				zap.String("game_id", sessionID),
				zap.String("player_id", playerID),
				zap.String("action_type", string(actionType)),
				zap.Error(err),
			)
		} else {
			e.logger.Error("action failed",
				zap.String("game_id", sessionID),
				zap.String("player_id", playerID),
				zap.String("action_type", string(actionType)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	e.logger.Debug("action applied",
		zap.String("game_id", sessionID),
		zap.String("player_id", playerID),
		zap.String("action_type", string(actionType)),
		zap.Int("turn", result.Game.CurrentTurn),
		zap.String("phase", result.Game.PhaseName),
		zap.Int("events", len(result.Events)),
	)
	return result, nil
}

// AdvancePhase closes the current phase for the active player. It is the
// END_PHASE action and follows the same validation and history rules.
func (e *Engine) AdvancePhase(ctx context.Context, sessionID, playerID string) (*Result, error) {
	return e.Apply(ctx, sessionID, playerID, rules.ActionEndPhase, nil)
}
