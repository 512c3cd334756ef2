package rest

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/game/match"
	"github.com/kasuganosora/crayonmonsters/server/game/player"
	"github.com/kasuganosora/crayonmonsters/server/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	sm      *player.SessionManager
	matches *match.Manager
	sched   *scheduler.Scheduler
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	sm *player.SessionManager,
	matches *match.Manager,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{sm: sm, matches: matches, sched: sched, logger: logger}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_players":  h.sm.Count(),
		"matches":         h.matches.Count(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListPlayers returns a snapshot of all connected players.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	infos := h.sm.Infos()
	c.JSON(http.StatusOK, gin.H{"players": infos, "count": len(infos)})
}

type kickRequest struct {
	Reason string `json:"reason"`
}

// KickPlayer forcibly disconnects a player.
// POST /api/admin/kick/:id
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	playerID := c.Param("id")
	var req kickRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "kicked by admin"
	}
	if !h.sm.Kick(playerID, req.Reason) {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	h.logger.Info("admin kicked player",
		zap.String("player_id", playerID),
		zap.String("reason", req.Reason))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListSchedulerTasks returns every registered ticker task with its stats.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// RunSchedulerTask runs a ticker task immediately.
// POST /api/admin/scheduler/:name/run
func (h *AdminHandler) RunSchedulerTask(c *gin.Context) {
	name := c.Param("name")
	if err := h.sched.RunNow(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownTask) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.logger.Info("admin ran scheduler task", zap.String("task", name))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
