package ws

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"

	"github.com/kasuganosora/crayonmonsters/server/game/player"
	mw "github.com/kasuganosora/crayonmonsters/server/middleware"
	"go.uber.org/zap"
)

// HandlerFunc processes one decoded WS request. Direct replies go through
// s.Reply so they echo the request's seq and trace ID.
type HandlerFunc func(ctx context.Context, s *player.Session, req *player.Packet) error

// ClientError is a handler failure the client can act on. Any other error
// is logged and reported as "internal".
type ClientError struct {
	Code string
	Err  error
}

func (e *ClientError) Error() string { return e.Code + ": " + e.Err.Error() }
func (e *ClientError) Unwrap() error { return e.Err }

func clientError(code string, err error) error { return &ClientError{Code: code, Err: err} }

// Router dispatches incoming WS packets to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given message type.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Types lists the registered message types.
func (r *Router) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch decodes raw bytes, validates seq, and invokes the appropriate handler.
func (r *Router) Dispatch(ctx context.Context, s *player.Session, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet",
			zap.String("player_id", s.PlayerID),
			zap.Error(err))
		s.SendError(nil, "malformed", "packet is not valid JSON")
		return
	}

	if !s.AcceptSeq(pkt.Seq) {
		r.logger.Warn("replayed or out-of-order packet",
			zap.String("player_id", s.PlayerID),
			zap.Uint64("seq", pkt.Seq))
		return
	}

	if pkt.TraceID == "" {
		pkt.TraceID = mw.NewTraceID()
	}
	ctx = context.WithValue(ctx, ctxKeyTraceID{}, pkt.TraceID)

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type",
			zap.String("type", pkt.Type),
			zap.String("player_id", s.PlayerID))
		s.SendError(&pkt, "unknown_type", "unknown message type")
		return
	}

	err := r.call(ctx, fn, s, &pkt)
	if err == nil {
		return
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		r.logger.Debug("request rejected",
			zap.String("type", pkt.Type),
			zap.String("player_id", s.PlayerID),
			zap.String("trace_id", pkt.TraceID),
			zap.Error(err))
		s.SendError(&pkt, ce.Code, ce.Err.Error())
		return
	}
	r.logger.Error("handler error",
		zap.String("type", pkt.Type),
		zap.String("player_id", s.PlayerID),
		zap.String("trace_id", pkt.TraceID),
		zap.Error(err))
	s.SendError(&pkt, "internal", "internal error")
}

// call runs fn and turns a panic into an error so one bad request cannot
// take the connection down.
func (r *Router) call(ctx context.Context, fn HandlerFunc, s *player.Session, pkt *player.Packet) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in ws handler",
				zap.String("type", pkt.Type),
				zap.Any("recover", rec),
				zap.String("stack", string(debug.Stack())))
			err = errors.New("handler panic")
		}
	}()
	return fn(ctx, s, pkt)
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
