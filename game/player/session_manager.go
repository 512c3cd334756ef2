package player

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected Sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // playerID → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a session. A previous session of the same player is closed
// and returned (duplicate login / reconnect).
func (sm *SessionManager) Register(s *Session) *Session {
	sm.mu.Lock()
	old := sm.sessions[s.PlayerID]
	sm.sessions[s.PlayerID] = s
	sm.mu.Unlock()

	if old != nil {
		old.Close()
		sm.logger.Info("duplicate session displaced", zap.String("player_id", s.PlayerID))
	}
	sm.logger.Info("player session registered",
		zap.String("player_id", s.PlayerID),
		zap.String("trace_id", s.TraceID))
	return old
}

// Unregister removes s if it is still the player's current session and
// reports whether it was.
func (sm *SessionManager) Unregister(s *Session) bool {
	sm.mu.Lock()
	cur, ok := sm.sessions[s.PlayerID]
	if ok && cur == s {
		delete(sm.sessions, s.PlayerID)
	}
	sm.mu.Unlock()
	if ok && cur == s {
		sm.logger.Info("player session unregistered", zap.String("player_id", s.PlayerID))
		return true
	}
	return false
}

// Get returns the session for a player, or nil if not connected.
func (sm *SessionManager) Get(playerID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// IsOnline reports whether a player is currently connected.
func (sm *SessionManager) IsOnline(playerID string) bool {
	return sm.Get(playerID) != nil
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// Kick closes the player's session after telling the client why.
func (sm *SessionManager) Kick(playerID, reason string) bool {
	s := sm.Get(playerID)
	if s == nil {
		return false
	}
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	s.Send(&Packet{Type: "kicked", Payload: payload})
	s.Close()
	return true
}

// CloseAll closes every session and waits until they have unregistered
// or ctx is done.
func (sm *SessionManager) CloseAll(ctx context.Context) {
	sessions := sm.All()
	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for sm.Count() > 0 {
		select {
		case <-ctx.Done():
			sm.logger.Warn("sessions still open at shutdown", zap.Int("count", sm.Count()))
			return
		case <-ticker.C:
		}
	}
}
