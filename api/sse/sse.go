package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/game/match"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// Handler streams the public packets of a match to spectators.
type Handler struct {
	pubsub    cache.PubSub
	matches   *match.Manager
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, matches *match.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, matches: matches, logger: logger, keepalive: keepaliveInterval}
}

// ServeMatch handles GET /api/matches/:id/events.
// Only packets addressed to both players are relayed, so a spectator never
// sees one side's private view. The stream ends with the match.
func (h *Handler) ServeMatch(c *gin.Context) {
	m, err := h.matches.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, match.Channel(m.ID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("match_id", m.ID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// The summary is taken after subscribing so nothing falls in between.
	sum := m.Summary()
	raw, _ := json.Marshal(sum)
	writeEvent(c, "connected", raw)
	if sum.Phase == match.PhaseFinished {
		return
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			pkt, err := match.DecodePacket(msg.Payload)
			if err != nil || pkt.To != "" {
				continue
			}
			writeEvent(c, pkt.Type, pkt.Payload)
			if pkt.Type == match.PacketBattleEnded || pkt.Type == match.PacketMatchAbandoned {
				return
			}

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, event string, data []byte) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}
