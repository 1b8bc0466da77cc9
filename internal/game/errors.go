package game

import "errors"

// ErrorKind classifies an engine error for callers that need to map it to a
// transport status.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindBadRequest
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindForbidden:
		return "FORBIDDEN"
	case KindConflict:
		return "CONFLICT"
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindConfig:
		return "INVALID_CONFIG"
	default:
		return "INTERNAL"
	}
}

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrReplayUnavailable = errors.New("no replay recorded for this game")

	ErrNotActivePlayer = errors.New("player is not the active player")
	ErrNotParticipant  = errors.New("player is not part of this game")

	ErrIllegalPhase      = errors.New("action is not legal in the current phase")
	ErrAlreadyMulliganed = errors.New("player has already resolved mulligan")
	ErrMulliganNotOpen   = errors.New("game is not in mulligan")
	ErrSessionFull       = errors.New("game is full")
	ErrAlreadyJoined     = errors.New("player has already joined")
	ErrGameFinished      = errors.New("game has finished")
	ErrGameNotStarted    = errors.New("game is not in progress")
	ErrDrawLimitReached  = errors.New("card already drawn this turn")
	ErrInsufficientAP    = errors.New("not enough AP")

	ErrUnknownAction      = errors.New("unknown action type")
	ErrInvalidHandIndex   = errors.New("invalid hand index")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrInvalidActionData  = errors.New("invalid action data")

	ErrInvalidConfig = errors.New("invalid game config")
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrSessionNotFound, KindNotFound},
	{ErrReplayUnavailable, KindNotFound},
	{ErrNotActivePlayer, KindForbidden},
	{ErrNotParticipant, KindForbidden},
	{ErrIllegalPhase, KindConflict},
	{ErrAlreadyMulliganed, KindConflict},
	{ErrMulliganNotOpen, KindConflict},
	{ErrSessionFull, KindConflict},
	{ErrAlreadyJoined, KindConflict},
	{ErrGameFinished, KindConflict},
	{ErrGameNotStarted, KindConflict},
	{ErrDrawLimitReached, KindConflict},
	{ErrInsufficientAP, KindConflict},
	{ErrUnknownAction, KindBadRequest},
	{ErrInvalidHandIndex, KindBadRequest},
	{ErrInvalidDestination, KindBadRequest},
	{ErrInvalidActionData, KindBadRequest},
	{ErrInvalidConfig, KindConfig},
}

// KindOf classifies err. Errors not produced by the engine are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// IsClientError reports whether err was caused by the caller rather than the engine.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k != KindInternal
}
