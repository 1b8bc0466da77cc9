package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uaarena/session-engine/internal/auth"
	"github.com/uaarena/session-engine/internal/deck"
	"github.com/uaarena/session-engine/internal/game"
	"github.com/uaarena/session-engine/internal/game/rules"
)

// API serves the session engine over HTTP.
type API struct {
	engine   *game.Engine
	decks    *deck.Library
	verifier *auth.Verifier
	hub      *Hub
	logger   *zap.Logger
}

// NewAPI wires the HTTP handlers. decks and hub may be nil.
func NewAPI(engine *game.Engine, verifier *auth.Verifier, decks *deck.Library, hub *Hub, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		engine:   engine,
		decks:    decks,
		verifier: verifier,
		hub:      hub,
		logger:   logger,
	}
}

// Router builds the gin engine. Game routes are served both under /api/v1
// and at the root.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(a.logger), requestLogger(a.logger), cors())

	r.GET("/health", a.health)
	a.mount(r.Group("/api/v1"))
	a.mount(r.Group(""))
	return r
}

func (a *API) mount(g *gin.RouterGroup) {
	authed := requireAuth(a.verifier, false)

	g.POST("/games", a.createGame)
	g.GET("/decks", a.listDecks)
	g.GET("/game-info/:id", a.gameInfo)
	g.GET("/games/:id/turn-info", a.turnInfo)

	g.GET("/games/active", authed, a.activeGames)
	g.POST("/games/:id/join", authed, a.joinGame)
	g.GET("/games/:id", authed, a.getGame)
	g.POST("/games/:id/mulligan", authed, a.mulligan)
	g.POST("/games/:id/actions", authed, a.applyAction)
	g.POST("/games/:id/surrender", authed, a.surrender)
	g.GET("/games/:id/history", authed, a.history)
	g.GET("/games/:id/replay", authed, a.replay)

	if a.hub != nil {
		g.GET("/games/:id/ws", requireAuth(a.verifier, true), a.websocket)
	}
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": a.engine.Registry().Len(),
	})
}

type createGameRequest struct {
	game.CreateConfig
	Player1DeckName string `json:"player1_deck_name"`
	Player2DeckName string `json:"player2_deck_name"`
}

// resolveDecks replaces empty decks with the named library decks.
func (a *API) resolveDecks(req *createGameRequest) error {
	resolve := func(name string, cards *[]game.Card) error {
		if name == "" || len(*cards) > 0 {
			return nil
		}
		named, ok := a.decks.Deck(name)
		if !ok {
			return fmt.Errorf("%w: unknown deck %q", game.ErrInvalidConfig, name)
		}
		*cards = named
		return nil
	}
	if err := resolve(req.Player1DeckName, &req.Player1Deck); err != nil {
		return err
	}
	return resolve(req.Player2DeckName, &req.Player2Deck)
}

func (a *API) createGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := a.resolveDecks(&req); err != nil {
		respondEngineError(c, err)
		return
	}

	view, err := a.engine.CreateSession(c.Request.Context(), req.CreateConfig)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondCreated(c, gin.H{"game": view})
}

func (a *API) listDecks(c *gin.Context) {
	respondOK(c, gin.H{"decks": a.decks.Names()})
}

func (a *API) gameInfo(c *gin.Context) {
	info, err := a.engine.GameInfo(c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, info)
}

func (a *API) turnInfo(c *gin.Context) {
	info, err := a.engine.TurnInfo(c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, info)
}

func (a *API) joinGame(c *gin.Context) {
	res, err := a.engine.Join(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, stateData(res))
}

func (a *API) getGame(c *gin.Context) {
	res, err := a.engine.GetState(c.Param("id"), userID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, stateData(res))
}

func stateData(res *game.Result) gin.H {
	return gin.H{"game": res.Game, "game_state": res.State}
}

// actorFields are the optional identity fields clients echo in bodies.
type actorFields struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// checkActor rejects bodies naming another game or another player than the
// token holder.
func checkActor(c *gin.Context, body actorFields) bool {
	if body.GameID != "" && body.GameID != c.Param("id") {
		respondError(c, http.StatusBadRequest, "game_id does not match path")
		return false
	}
	if body.PlayerID != "" && body.PlayerID != userID(c) {
		respondError(c, http.StatusForbidden, "player_id does not match token")
		return false
	}
	return true
}

type mulliganRequest struct {
	actorFields
	Mulligan bool `json:"mulligan"`
}

func (a *API) mulligan(c *gin.Context) {
	var req mulliganRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !checkActor(c, req.actorFields) {
		return
	}

	res, err := a.engine.Mulligan(c.Request.Context(), c.Param("id"), userID(c), req.Mulligan)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, stateData(res))
}

type actionRequest struct {
	actorFields
	ActionType string          `json:"action_type" binding:"required"`
	ActionData json.RawMessage `json:"action_data"`
}

// decodeActionData accepts a JSON array or nothing at all.
func decodeActionData(raw json.RawMessage) ([]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var data []any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: action_data must be an array", game.ErrInvalidActionData)
	}
	return data, nil
}

// actionResponse is flat rather than enveloped under data, matching what
// action clients read.
type actionResponse struct {
	Success   bool           `json:"success"`
	Game      game.GameView  `json:"game"`
	GameState game.StateView `json:"game_state"`
	Events    []rules.Event  `json:"events"`
}

func (a *API) applyAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !checkActor(c, req.actorFields) {
		return
	}
	data, err := decodeActionData(req.ActionData)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	res, err := a.engine.Apply(c.Request.Context(), c.Param("id"), userID(c), rules.ActionType(req.ActionType), data)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, actionResponse{
		Success:   true,
		Game:      res.Game,
		GameState: res.State,
		Events:    res.Events,
	})
}

func (a *API) surrender(c *gin.Context) {
	res, err := a.engine.Surrender(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, stateData(res))
}

func (a *API) history(c *gin.Context) {
	records, err := a.engine.History(c.Param("id"), userID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, gin.H{"actions": records})
}

func (a *API) activeGames(c *gin.Context) {
	respondOK(c, gin.H{"games": a.engine.ActiveGames(userID(c))})
}

func (a *API) replay(c *gin.Context) {
	frames, err := a.engine.Replay(c.Param("id"), userID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, gin.H{"frames": frames})
}

func (a *API) websocket(c *gin.Context) {
	if _, err := a.engine.GameInfo(c.Param("id")); err != nil {
		respondEngineError(c, err)
		return
	}
	a.hub.Serve(c.Writer, c.Request, c.Param("id"), userID(c))
}
