package player

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
	maxMessageLen = 64 << 10
)

// Packet is the unified WS message envelope. Seq is set by the client on
// requests and echoed on direct replies.
type Packet struct {
	Seq     uint64          `json:"seq,omitempty"`
	Type    string          `json:"type"`
	TraceID string          `json:"trace_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the body of an "error" packet.
type ErrorPayload struct {
	Request string `json:"request,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Session is one player's WebSocket connection.
type Session struct {
	PlayerID    string
	TraceID     string
	ConnectedAt time.Time

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}

	mu      sync.Mutex
	lastSeq uint64
	matchID string
	cancel  func() // ends the current match subscription

	closeOnce sync.Once
	dropped   atomic.Int64
	logger    *zap.Logger
}

// NewSession creates a Session and starts its write goroutine.
func NewSession(playerID, traceID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn.SetReadLimit(maxMessageLen)
	s := &Session{
		PlayerID:    playerID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
		Conn:        conn,
		SendChan:    make(chan []byte, sendChanBuf),
		Done:        make(chan struct{}),
		logger:      logger.With(zap.String("player_id", playerID)),
	}
	go s.writePump()
	return s
}

// writePump drains SendChan and writes to the WebSocket connection.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log().Warn("ws write error", zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done:
			s.flush()
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued when the session closes.
func (s *Session) flush() {
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send encodes pkt and queues it. Drops if the queue is full or closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		s.log().Error("encode packet", zap.String("type", pkt.Type), zap.Error(err))
		return
	}
	s.enqueue(data, pkt.Type)
}

// SendRaw queues pre-encoded bytes. Drops if the queue is full or closed.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	s.enqueue(data, "")
}

func (s *Session) enqueue(data []byte, typ string) {
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		s.dropped.Add(1)
		s.log().Warn("send channel full, dropping packet", zap.String("type", typ))
	}
}

// Reply sends typ with payload v, echoing the request's seq and trace ID.
func (s *Session) Reply(req *Packet, typ string, v any) {
	pkt := &Packet{Type: typ}
	if req != nil {
		pkt.Seq = req.Seq
		pkt.TraceID = req.TraceID
	}
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			s.log().Error("encode reply", zap.String("type", typ), zap.Error(err))
			return
		}
		pkt.Payload = raw
	}
	s.Send(pkt)
}

// SendError replies with an "error" packet.
func (s *Session) SendError(req *Packet, code, msg string) {
	p := ErrorPayload{Code: code, Message: msg}
	if req != nil {
		p.Request = req.Type
	}
	s.Reply(req, "error", p)
}

// AcceptSeq enforces strictly increasing request sequence numbers.
// Zero means the client does not number its requests.
func (s *Session) AcceptSeq(seq uint64) bool {
	if seq == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.lastSeq {
		return false
	}
	s.lastSeq = seq
	return true
}

// MatchID returns the match whose packets the session currently receives.
func (s *Session) MatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID
}

// Watch records a new match subscription and ends the previous one.
// cancel is called immediately when the session is already closed.
func (s *Session) Watch(matchID string, cancel func()) {
	s.mu.Lock()
	if s.IsClosed() {
		s.mu.Unlock()
		cancel()
		return
	}
	prev := s.cancel
	s.matchID, s.cancel = matchID, cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Unwatch ends the current match subscription, if any.
func (s *Session) Unwatch() {
	s.mu.Lock()
	prev := s.cancel
	s.matchID, s.cancel = "", nil
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Close ends the match subscription and signals the writePump to shut down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.Done)
		s.mu.Unlock()
		s.Unwatch()
	})
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SetReadDeadline pushes the read deadline out by the keep-alive window.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}

func (s *Session) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}
