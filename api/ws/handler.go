package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/config"
	"github.com/kasuganosora/crayonmonsters/server/game/match"
	"github.com/kasuganosora/crayonmonsters/server/game/player"
	mw "github.com/kasuganosora/crayonmonsters/server/middleware"
	"go.uber.org/zap"
)

const disconnectTimeout = 5 * time.Second

// Handler is the Gin handler for GET /ws.
type Handler struct {
	cache    cache.Cache
	ps       cache.PubSub
	sec      config.SecurityConfig
	sm       *player.SessionManager
	matches  *match.Manager
	router   *Router
	limiter  *mw.KeyedLimiter
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
// limiter caps inbound packets per player; nil disables the cap.
func NewHandler(
	c cache.Cache,
	ps cache.PubSub,
	sec config.SecurityConfig,
	sm *player.SessionManager,
	matches *match.Manager,
	router *Router,
	limiter *mw.KeyedLimiter,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		cache:   c,
		ps:      ps,
		sec:     sec,
		sm:      sm,
		matches: matches,
		router:  router,
		limiter: limiter,
		logger:  logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.Authenticate(c.Request.Context(), h.sec, h.cache, tokenStr)
	if errors.Is(err, mw.ErrSessionExpired) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewSession(claims.PlayerID, mw.GetTraceID(c), conn, h.logger)
	ctx := context.WithoutCancel(c.Request.Context())
	// Matches do not survive a lost connection, a replaced one included.
	if old := h.sm.Register(sess); old != nil {
		h.forfeit(ctx, old.PlayerID, "replaced")
	}

	var matchID string
	if m, err := h.matches.ForPlayer(sess.PlayerID); err == nil {
		if err := h.Watch(ctx, sess, m.ID); err != nil {
			h.logger.Warn("watch match on connect",
				zap.String("player_id", sess.PlayerID),
				zap.Error(err))
		}
		matchID = m.ID
	}
	sess.Reply(nil, "connected", map[string]string{
		"player_id": sess.PlayerID,
		"match_id":  matchID,
	})

	h.readPump(ctx, sess)
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(ctx context.Context, s *player.Session) {
	defer h.handleDisconnect(s)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("player_id", s.PlayerID),
					zap.Error(err))
			}
			return
		}
		// Reset read deadline on any message (heartbeat or otherwise).
		s.SetReadDeadline()
		if h.limiter != nil && !h.limiter.Allow(s.PlayerID) {
			s.SendError(nil, "rate_limited", "too many messages")
			continue
		}
		h.router.Dispatch(ctx, s, raw)
	}
}

// handleDisconnect cleans up the session after the connection closes. A
// player who drops out of an unfinished match forfeits it. Sessions displaced
// by a newer login were already handled in ServeWS.
func (h *Handler) handleDisconnect(s *player.Session) {
	s.Close()
	if !h.sm.Unregister(s) {
		return
	}

	h.logger.Info("player disconnected", zap.String("player_id", s.PlayerID))
	h.forfeit(context.Background(), s.PlayerID, "disconnect")
}

// forfeit abandons the player's unfinished match, if any.
func (h *Handler) forfeit(ctx context.Context, playerID, reason string) {
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	err := h.matches.Abandon(ctx, playerID, reason)
	if err != nil && !errors.Is(err, match.ErrMatchNotFound) {
		h.logger.Warn("abandon match",
			zap.String("reason", reason),
			zap.String("player_id", playerID),
			zap.Error(err))
	}
}

// Watch subscribes s to the packets of matchID, replacing any previous
// subscription. It is a no-op when s already watches matchID.
func (h *Handler) Watch(ctx context.Context, s *player.Session, matchID string) error {
	if s.MatchID() == matchID {
		return nil
	}
	msgs, cancel, err := h.ps.Subscribe(ctx, match.Channel(matchID))
	if err != nil {
		return err
	}
	s.Watch(matchID, cancel)
	go h.forward(s, msgs)
	return nil
}

// forward relays match packets addressed to the session's player until the
// subscription ends.
func (h *Handler) forward(s *player.Session, msgs <-chan *cache.Message) {
	for msg := range msgs {
		pkt, err := match.DecodePacket(msg.Payload)
		if err != nil {
			h.logger.Warn("bad match packet",
				zap.String("channel", msg.Channel),
				zap.Error(err))
			continue
		}
		if !pkt.For(s.PlayerID) {
			continue
		}
		s.Send(&player.Packet{Type: pkt.Type, Payload: pkt.Payload})
	}
}
