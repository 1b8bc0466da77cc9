package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uaarena/session-engine/internal/auth"
	"github.com/uaarena/session-engine/internal/deck"
	"github.com/uaarena/session-engine/internal/game"
)

const (
	alice = "alice"
	bob   = "bob"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testCards builds a legal 50-card deck as plain JSON-able cards.
func testCards() []game.Card {
	types := []game.CardType{game.CardTypeCharacter, game.CardTypeField, game.CardTypeEvent, game.CardTypeAP}
	cards := make([]game.Card, 50)
	for i := range cards {
		ct := types[i%4]
		cards[i] = game.Card{
			CardNumber: fmt.Sprintf("UA01-%s-%d", ct, i/16),
			Name:       fmt.Sprintf("%s %d", ct, i),
			CardType:   ct,
		}
	}
	return cards
}

type testServer struct {
	t        *testing.T
	engine   *game.Engine
	verifier *auth.Verifier
	hub      *Hub
	http     *httptest.Server
	tokens   map[string]string
}

func newTestServer(t *testing.T, decks *deck.Library, opts ...game.Option) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	opts = append([]game.Option{game.WithShuffle(func(int, func(i, j int)) {})}, opts...)
	engine, err := game.NewEngine(logger, game.DefaultRuleset(), opts...)
	require.NoError(t, err)

	verifier, err := auth.NewVerifier("test-secret")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger)
	go hub.Run(ctx)
	engine.SetNotificationHandler(hub.Notify)

	srv := httptest.NewServer(NewAPI(engine, verifier, decks, hub, logger).Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	ts := &testServer{
		t:        t,
		engine:   engine,
		verifier: verifier,
		hub:      hub,
		http:     srv,
		tokens:   make(map[string]string),
	}
	for _, user := range []string{alice, bob, "carol"} {
		token, err := verifier.Issue(user, user, time.Hour)
		require.NoError(t, err)
		ts.tokens[user] = token
	}
	return ts
}

// do sends a JSON request as user ("" for anonymous) and decodes the reply.
func (ts *testServer) do(method, path, user string, body any) (int, map[string]any) {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user])
	}

	resp, err := ts.http.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// createGame creates a session reserved for alice and bob.
func (ts *testServer) createGame() string {
	ts.t.Helper()
	code, body := ts.do(http.MethodPost, "/games", "", map[string]any{
		"player1_id":   alice,
		"player2_id":   bob,
		"player1_deck": testCards(),
		"player2_deck": testCards(),
	})
	require.Equal(ts.t, http.StatusCreated, code, body)
	return body["data"].(map[string]any)["game"].(map[string]any)["id"].(string)
}

// startedGame creates a session and runs it through joins and mulligans.
func (ts *testServer) startedGame() string {
	ts.t.Helper()
	id := ts.createGame()
	for _, user := range []string{alice, bob} {
		code, body := ts.do(http.MethodPost, "/games/"+id+"/join", user, nil)
		require.Equal(ts.t, http.StatusOK, code, body)
	}
	for _, user := range []string{alice, bob} {
		code, body := ts.do(http.MethodPost, "/games/"+id+"/mulligan", user, map[string]any{"mulligan": false})
		require.Equal(ts.t, http.StatusOK, code, body)
	}
	return id
}

func dataOf(body map[string]any) map[string]any {
	data, _ := body["data"].(map[string]any)
	return data
}
