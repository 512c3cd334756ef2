package player

import "time"

// Info is a point-in-time view of a session for the admin API.
type Info struct {
	PlayerID    string    `json:"player_id"`
	MatchID     string    `json:"match_id,omitempty"`
	TraceID     string    `json:"trace_id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeq     uint64    `json:"last_seq"`
	Queued      int       `json:"queued"`
	Dropped     int64     `json:"dropped"`
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		PlayerID:    s.PlayerID,
		MatchID:     s.matchID,
		TraceID:     s.TraceID,
		ConnectedAt: s.ConnectedAt,
		LastSeq:     s.lastSeq,
		Queued:      len(s.SendChan),
		Dropped:     s.dropped.Load(),
	}
}

// Infos snapshots every registered session.
func (sm *SessionManager) Infos() []Info {
	all := sm.All()
	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, s.Info())
	}
	return out
}
