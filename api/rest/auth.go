package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/config"
	mw "github.com/kasuganosora/crayonmonsters/server/middleware"
	"go.uber.org/zap"
)

// TokenHandler issues and revokes player tokens on behalf of the lobby,
// which owns accounts and matchmaking.
type TokenHandler struct {
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *TokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenHandler{cache: c, sec: sec, logger: logger}
}

type issueRequest struct {
	PlayerID string `json:"player_id" binding:"required,min=1,max=64"`
}

// Issue handles POST /api/tokens.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, claims, err := mw.IssueToken(c.Request.Context(), h.sec, h.cache, req.PlayerID)
	if err != nil {
		h.logger.Error("issue token", zap.String("player_id", req.PlayerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      tok,
		"player_id":  claims.PlayerID,
		"expires_at": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}

type revokeRequest struct {
	Token string `json:"token" binding:"required"`
}

// Revoke handles DELETE /api/tokens.
func (h *TokenHandler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := mw.RevokeToken(c.Request.Context(), h.sec, h.cache, req.Token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
