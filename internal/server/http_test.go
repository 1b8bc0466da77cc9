package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uaarena/session-engine/internal/auth"
	"github.com/uaarena/session-engine/internal/deck"
	"github.com/uaarena/session-engine/internal/game"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createGame()

	code, body := ts.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["sessions"])
}

func TestGameFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createGame()

	code, body := ts.do(http.MethodGet, "/game-info/"+id, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "WAITING_FOR_PLAYERS", dataOf(body)["game"].(map[string]any)["status"])

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/join", alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, body = ts.do(http.MethodPost, "/games/"+id+"/join", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "MULLIGAN", dataOf(body)["game"].(map[string]any)["status"])

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/mulligan", alice, map[string]any{
		"game_id": id, "player_id": alice, "mulligan": false,
	})
	require.Equal(t, http.StatusOK, code)
	code, body = ts.do(http.MethodPost, "/games/"+id+"/mulligan", alice, map[string]any{"mulligan": true})
	require.Equal(t, http.StatusConflict, code, "second mulligan")
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	code, body = ts.do(http.MethodPost, "/games/"+id+"/mulligan", bob, map[string]any{"mulligan": false})
	require.Equal(t, http.StatusOK, code)
	g := dataOf(body)["game"].(map[string]any)
	assert.Equal(t, "IN_PROGRESS", g["status"])
	assert.EqualValues(t, 1, g["current_turn"])
	assert.Equal(t, alice, g["active_player"])

	code, body = ts.do(http.MethodGet, "/games/"+id+"/turn-info", "", nil)
	require.Equal(t, http.StatusOK, code)
	info := dataOf(body)
	assert.Equal(t, true, info["is_player1_turn"])
	assert.Equal(t, "START", info["phase_name"])

	code, body = ts.do(http.MethodGet, "/games/"+id, alice, nil)
	require.Equal(t, http.StatusOK, code)
	players := dataOf(body)["game_state"].(map[string]any)["players"].(map[string]any)
	own := players[alice].(map[string]any)
	assert.Len(t, own["hand"], 7)
	assert.EqualValues(t, 3, own["ap"])
	opp := players[bob].(map[string]any)
	for _, card := range opp["hand"].([]any) {
		assert.Equal(t, map[string]any{"face_down": true}, card)
	}

	code, body = ts.do(http.MethodPost, "/games/"+id+"/actions", bob, map[string]any{
		"action_type": "DRAW_CARD", "action_data": []any{},
	})
	assert.Equal(t, http.StatusForbidden, code, "bob is not active")

	code, body = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{
		"game_id": id, "player_id": alice, "action_type": "DRAW_CARD", "action_data": []any{},
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])
	require.Contains(t, body, "game_state")
	require.Contains(t, body, "events")
	hand := body["game_state"].(map[string]any)["players"].(map[string]any)[alice].(map[string]any)["hand"]
	assert.Len(t, hand, 8)

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{"action_type": "DRAW_CARD"})
	assert.Equal(t, http.StatusConflict, code, "one draw per turn")

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{"action_type": "CAST_SPELL"})
	assert.Equal(t, http.StatusBadRequest, code, "unknown action is a client error")

	code, body = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{"action_type": "END_PHASE"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "MOVE", body["game"].(map[string]any)["phase_name"])

	code, body = ts.do(http.MethodGet, "/games/"+id+"/history", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, dataOf(body)["actions"], 2)

	code, _ = ts.do(http.MethodGet, "/games/"+id+"/history", "carol", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = ts.do(http.MethodPost, "/games/"+id+"/surrender", bob, nil)
	require.Equal(t, http.StatusOK, code)
	g = dataOf(body)["game"].(map[string]any)
	assert.Equal(t, "FINISHED", g["status"])
	assert.Equal(t, alice, g["winner_id"])

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{"action_type": "END_TURN"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestAPIVersionPrefix(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createGame()

	code, body := ts.do(http.MethodGet, "/api/v1/game-info/"+id, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, _ = ts.do(http.MethodPost, "/api/v1/games/"+id+"/join", alice, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createGame()

	code, body := ts.do(http.MethodGet, "/games/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])

	ts.tokens["mallory"] = "not-a-token"
	code, _ = ts.do(http.MethodGet, "/games/"+id, "mallory", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	other, err := auth.NewVerifier("other-secret")
	require.NoError(t, err)
	forged, err := other.Issue(alice, "", 0)
	require.NoError(t, err)
	ts.tokens["forged"] = forged
	code, _ = ts.do(http.MethodPost, "/games/"+id+"/join", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/games/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token "+ts.tokens[alice])
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBodyIdentityMustMatch(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.startedGame()

	code, _ := ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{
		"player_id": bob, "action_type": "DRAW_CARD",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{
		"game_id": "another-game", "action_type": "DRAW_CARD",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{
		"action_type": "PLAY_CARD", "action_data": map[string]any{"index": 0},
	})
	assert.Equal(t, http.StatusBadRequest, code, "action_data must be an array")

	code, _ = ts.do(http.MethodPost, "/games/"+id+"/actions", alice, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code, "action_type is required")

	s, err := ts.engine.GetState(id, alice)
	require.NoError(t, err)
	assert.Len(t, s.State.Players[alice].Hand, 7, "rejected requests change nothing")
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t, nil)

	code, _ := ts.do(http.MethodGet, "/game-info/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(http.MethodGet, "/games/missing/turn-info", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(http.MethodPost, "/games/missing/actions", alice, map[string]any{"action_type": "DRAW_CARD"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateGameValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body := ts.do(http.MethodPost, "/games", "", map[string]any{
		"player1_deck": testCards()[:40],
		"player2_deck": testCards(),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])

	code, _ = ts.do(http.MethodPost, "/games", "", map[string]any{"player1_deck_name": "starter"})
	assert.Equal(t, http.StatusBadRequest, code, "no library configured")
	assert.Equal(t, 0, ts.engine.Registry().Len())
}

func TestCreateGameFromLibrary(t *testing.T) {
	doc := "cards:\n"
	for i := 0; i < 13; i++ {
		doc += fmt.Sprintf("  - card_number: UA01-%03d\n    name: Card %d\n    card_type: CHARACTER\n", i, i)
	}
	doc += "decks:\n  - name: starter\n    cards:\n"
	for i := 0; i < 12; i++ {
		doc += fmt.Sprintf("      - card_number: UA01-%03d\n        count: 4\n", i)
	}
	doc += "      - card_number: UA01-012\n        count: 2\n"

	lib, err := deck.Parse([]byte(doc))
	require.NoError(t, err)
	ts := newTestServer(t, lib)

	code, body := ts.do(http.MethodGet, "/decks", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"starter"}, dataOf(body)["decks"])

	code, body = ts.do(http.MethodPost, "/games", "", map[string]any{
		"player1_deck_name": "starter",
		"player2_deck_name": "starter",
		"game_mode":         "RANKED",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "RANKED", dataOf(body)["game"].(map[string]any)["game_mode"])

	code, _ = ts.do(http.MethodPost, "/games", "", map[string]any{
		"player1_deck_name": "starter",
		"player2_deck_name": "missing",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{game.ErrSessionNotFound, http.StatusNotFound},
		{game.ErrNotActivePlayer, http.StatusForbidden},
		{game.ErrNotParticipant, http.StatusForbidden},
		{game.ErrIllegalPhase, http.StatusConflict},
		{game.ErrAlreadyMulliganed, http.StatusConflict},
		{game.ErrUnknownAction, http.StatusBadRequest},
		{fmt.Errorf("%w: index 9", game.ErrInvalidHandIndex), http.StatusBadRequest},
		{game.ErrInvalidConfig, http.StatusBadRequest},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestActiveGames(t *testing.T) {
	ts := newTestServer(t, nil)
	live := ts.startedGame()
	done := ts.startedGame()
	code, _ := ts.do(http.MethodPost, "/games/"+done+"/surrender", bob, nil)
	require.Equal(t, http.StatusOK, code)

	for _, prefix := range []string{"", "/api/v1"} {
		code, body := ts.do(http.MethodGet, prefix+"/games/active", alice, nil)
		require.Equal(t, http.StatusOK, code, body)
		games := dataOf(body)["games"].([]any)
		require.Len(t, games, 1)
		assert.Equal(t, live, games[0].(map[string]any)["id"])
	}

	code, body := ts.do(http.MethodGet, "/games/active", "carol", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, dataOf(body)["games"])

	code, _ = ts.do(http.MethodGet, "/games/active", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestReplayRoute(t *testing.T) {
	recorder := game.NewReplayRecorder(zaptest.NewLogger(t), t.TempDir(), 0)
	ts := newTestServer(t, nil, game.WithReplayRecorder(recorder))
	id := ts.startedGame()

	code, body := ts.do(http.MethodGet, "/games/"+id+"/replay", alice, nil)
	require.Equal(t, http.StatusOK, code, body)
	frames := dataOf(body)["frames"].([]any)
	require.Len(t, frames, 5)
	first := frames[0].(map[string]any)
	assert.EqualValues(t, 1, first["version"])
	assert.Equal(t, "WAITING_FOR_PLAYERS", first["game"].(map[string]any)["status"])

	code, _ = ts.do(http.MethodGet, "/games/"+id+"/replay", "carol", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodGet, "/games/missing/replay", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	plain := newTestServer(t, nil)
	other := plain.startedGame()
	code, _ = plain.do(http.MethodGet, "/games/"+other+"/replay", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
