package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/game/match"
	mw "github.com/kasuganosora/crayonmonsters/server/middleware"
	"go.uber.org/zap"
)

// MatchHandler exposes match creation to the lobby and battle state to players.
type MatchHandler struct {
	matches *match.Manager
	logger  *zap.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(matches *match.Manager, logger *zap.Logger) *MatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchHandler{matches: matches, logger: logger}
}

// statusOf maps match errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, match.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, match.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, match.ErrInvalidPlayers):
		return http.StatusBadRequest
	case errors.Is(err, match.ErrPlayerBusy),
		errors.Is(err, match.ErrWrongPhase):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *MatchHandler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("match request failed",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type createMatchRequest struct {
	Player1 string `json:"player1" binding:"required"`
	Player2 string `json:"player2" binding:"required"`
}

// Create handles POST /api/matches.
func (h *MatchHandler) Create(c *gin.Context) {
	var req createMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.matches.Create(c.Request.Context(), req.Player1, req.Player2)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match_id": m.ID, "players": m.Players})
}

// Get handles GET /api/matches/:id.
func (h *MatchHandler) Get(c *gin.Context) {
	m, err := h.matches.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m.Summary())
}

// List handles GET /api/matches.
func (h *MatchHandler) List(c *gin.Context) {
	list := h.matches.List()
	c.JSON(http.StatusOK, gin.H{"matches": list, "count": len(list)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles DELETE /api/matches/:id.
func (h *MatchHandler) Cancel(c *gin.Context) {
	m, err := h.matches.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled"
	}
	cancelled := m.Cancel(c.Request.Context(), req.Reason)
	c.JSON(http.StatusOK, gin.H{"ok": true, "cancelled": cancelled})
}

// State handles GET /api/matches/:id/state for the authenticated player.
func (h *MatchHandler) State(c *gin.Context) {
	m, err := h.matches.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	st, err := m.State(mw.GetPlayerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
