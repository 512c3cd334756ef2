package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kasuganosora/crayonmonsters/server/game/match"
	"github.com/kasuganosora/crayonmonsters/server/game/player"
	"github.com/kasuganosora/crayonmonsters/server/game/roster"
	"go.uber.org/zap"
)

// Watcher subscribes a session to a match's packets.
type Watcher interface {
	Watch(ctx context.Context, s *player.Session, matchID string) error
}

// BattleHandlers handles the battle WebSocket messages of a connected player.
type BattleHandlers struct {
	matches *match.Manager
	watcher Watcher
	logger  *zap.Logger
}

// NewBattleHandlers creates BattleHandlers.
func NewBattleHandlers(matches *match.Manager, watcher Watcher, logger *zap.Logger) *BattleHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BattleHandlers{matches: matches, watcher: watcher, logger: logger}
}

// RegisterHandlers registers battle WS handlers.
func (h *BattleHandlers) RegisterHandlers(r *Router) {
	r.On("ping", h.HandlePing)
	r.On("submit_team", h.HandleSubmitTeam)
	r.On("select_move", h.HandleSelectMove)
	r.On("switch_creature", h.HandleSwitch)
	r.On("get_battle_state", h.HandleGetState)
	r.On("forfeit", h.HandleForfeit)
}

// errorCodes maps match sentinels to client error codes.
var errorCodes = []struct {
	err  error
	code string
}{
	{match.ErrMatchNotFound, "no_match"},
	{match.ErrNotParticipant, "not_participant"},
	{match.ErrWrongPhase, "wrong_phase"},
	{match.ErrNeedsSwitch, "needs_switch"},
	{match.ErrInvalidMove, "invalid_move"},
	{match.ErrInvalidSwitch, "invalid_switch"},
	{match.ErrTeamAlreadySubmitted, "team_already_submitted"},
}

// matchError turns a match sentinel into a ClientError and leaves anything
// else for the router to report as internal.
func matchError(err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return clientError(e.code, err)
		}
	}
	return err
}

func decode(req *player.Packet, v any) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return clientError("bad_payload", err)
	}
	return nil
}

// current returns the player's match and makes sure the session receives
// its packets before any action can produce them.
func (h *BattleHandlers) current(ctx context.Context, s *player.Session) (*match.Match, error) {
	m, err := h.matches.ForPlayer(s.PlayerID)
	if err != nil {
		return nil, matchError(err)
	}
	if h.watcher != nil {
		if err := h.watcher.Watch(ctx, s, m.ID); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ------------------------------------------------------------------ ping

type pingPayload struct {
	TS int64 `json:"ts"`
}

// HandlePing responds to client heartbeat pings.
func (h *BattleHandlers) HandlePing(_ context.Context, s *player.Session, req *player.Packet) error {
	var p pingPayload
	_ = json.Unmarshal(req.Payload, &p)
	s.Reply(req, "pong", map[string]int64{
		"client_ts": p.TS,
		"server_ts": time.Now().UnixMilli(),
	})
	return nil
}

// ------------------------------------------------------------------ submit_team

type submitTeamPayload struct {
	Creatures []roster.Definition `json:"creatures"`
}

type teamAcceptedPayload struct {
	MatchID   string              `json:"match_id"`
	Creatures []roster.Definition `json:"creatures"`
	Warnings  []string            `json:"warnings"`
	Ready     bool                `json:"ready"`
}

// HandleSubmitTeam validates and stages the player's creature team.
func (h *BattleHandlers) HandleSubmitTeam(ctx context.Context, s *player.Session, req *player.Packet) error {
	var p submitTeamPayload
	if err := decode(req, &p); err != nil {
		return err
	}
	m, err := h.current(ctx, s)
	if err != nil {
		return err
	}
	res, err := m.SubmitTeam(ctx, s.PlayerID, p.Creatures)
	if err != nil {
		return matchError(err)
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	s.Reply(req, "team_accepted", teamAcceptedPayload{
		MatchID:   m.ID,
		Creatures: res.Team,
		Warnings:  warnings,
		Ready:     res.Ready,
	})
	return nil
}

// ------------------------------------------------------------------ select_move

type selectMovePayload struct {
	MoveIndex int `json:"move_index"`
}

// HandleSelectMove records a move. Turn results reach both players through
// the match channel.
func (h *BattleHandlers) HandleSelectMove(ctx context.Context, s *player.Session, req *player.Packet) error {
	var p selectMovePayload
	if err := decode(req, &p); err != nil {
		return err
	}
	m, err := h.current(ctx, s)
	if err != nil {
		return err
	}
	if _, err := m.SelectMove(ctx, s.PlayerID, p.MoveIndex); err != nil {
		return matchError(err)
	}
	return nil
}

// ------------------------------------------------------------------ switch_creature

type switchPayload struct {
	Index int `json:"index"`
}

// HandleSwitch replaces the player's active creature.
func (h *BattleHandlers) HandleSwitch(ctx context.Context, s *player.Session, req *player.Packet) error {
	var p switchPayload
	if err := decode(req, &p); err != nil {
		return err
	}
	m, err := h.current(ctx, s)
	if err != nil {
		return err
	}
	return matchError(m.Switch(ctx, s.PlayerID, p.Index))
}

// ------------------------------------------------------------------ get_battle_state

// HandleGetState replies with the player's view of the battle.
func (h *BattleHandlers) HandleGetState(ctx context.Context, s *player.Session, req *player.Packet) error {
	m, err := h.current(ctx, s)
	if err != nil {
		return err
	}
	st, err := m.State(s.PlayerID)
	if err != nil {
		return matchError(err)
	}
	s.Reply(req, match.PacketBattleState, st)
	return nil
}

// ------------------------------------------------------------------ forfeit

// HandleForfeit abandons the player's match.
func (h *BattleHandlers) HandleForfeit(ctx context.Context, s *player.Session, _ *player.Packet) error {
	m, err := h.current(ctx, s)
	if err != nil {
		return err
	}
	return matchError(m.Abandon(ctx, s.PlayerID, "forfeit"))
}
