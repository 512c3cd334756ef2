package match

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/game/battle"
	"github.com/kasuganosora/crayonmonsters/server/game/roster"
	"go.uber.org/zap"
)

// Phase is the lifecycle stage of a match.
type Phase int

const (
	PhaseDrafting Phase = iota
	PhaseBattle
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseBattle:
		return "battle"
	case PhaseFinished:
		return "finished"
	default:
		return "drafting"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// TurnOutcome describes what a move selection triggered.
type TurnOutcome struct {
	Resolved bool           // false while waiting for the opponent
	Turn     int            // engine turn counter after the call
	Events   []battle.Event // in resolution order
	Winner   string         // player ID once the battle is decided
}

// SubmitResult is returned to the player who submitted a team.
type SubmitResult struct {
	Team     []roster.Definition
	Warnings []string
	Ready    bool // both teams are in and the battle has started
}

// Match serializes all access to one battle engine. Every exported method
// takes the match lock.
type Match struct {
	ID      string
	Players [2]string
	Created time.Time

	mu       sync.Mutex
	phase    Phase
	engine   *battle.Engine
	lastSeen time.Time

	env      *env
	rng      *rand.Rand
	logger   *zap.Logger
	onFinish func(ctx context.Context, m *Match)
}

// env is the dependency set a Manager shares with its matches.
type env struct {
	store    cache.Cache
	notifier Notifier
	rules    *roster.Rules
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func newMatch(id string, players [2]string, e *env, rng *rand.Rand) *Match {
	now := e.now()
	return &Match{
		ID:       id,
		Players:  players,
		Created:  now,
		lastSeen: now,
		env:      e,
		rng:      rng,
		logger:   e.logger.With(zap.String("match_id", id)),
	}
}

func teamKey(matchID, playerID string) string {
	return fmt.Sprintf("match:%s:team:%s", matchID, playerID)
}

// side maps a player ID to its engine slot. Caller holds m.mu.
func (m *Match) side(playerID string) (battle.Player, error) {
	for i, id := range m.Players {
		if id == playerID {
			return battle.Player(i), nil
		}
	}
	return battle.PlayerA, ErrNotParticipant
}

// Phase returns the current lifecycle stage.
func (m *Match) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// LastActive returns the time of the last accepted player action.
func (m *Match) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

// Opponent returns the other participant's ID.
func (m *Match) Opponent(playerID string) (string, error) {
	switch playerID {
	case m.Players[0]:
		return m.Players[1], nil
	case m.Players[1]:
		return m.Players[0], nil
	}
	return "", ErrNotParticipant
}

// Winner returns the winning player's ID, or "" while undecided.
func (m *Match) Winner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return ""
	}
	if w, ok := m.engine.Winner(); ok {
		return m.engine.PlayerID(w)
	}
	return ""
}

// SubmitTeam validates and stages a player's team. Once both teams are
// staged the engine is built and the battle begins.
func (m *Match) SubmitTeam(ctx context.Context, playerID string, defs []roster.Definition) (SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.side(playerID)
	if err != nil {
		return SubmitResult{}, err
	}
	if m.phase != PhaseDrafting {
		return SubmitResult{}, fmt.Errorf("submit team in %s: %w", m.phase, ErrWrongPhase)
	}

	team, warnings := m.env.rules.BuildTeam(defs, m.env.cfg.CreaturesPerPlayer)
	raw, err := json.Marshal(team)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode team: %w", err)
	}
	ok, err := m.env.store.SetNX(ctx, teamKey(m.ID, playerID), string(raw), m.env.cfg.TeamTTL)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("stage team: %w", err)
	}
	if !ok {
		return SubmitResult{}, ErrTeamAlreadySubmitted
	}
	m.touch(ctx)
	m.logger.Info("team submitted",
		zap.String("player_id", playerID),
		zap.Int("warnings", len(warnings)))

	res := SubmitResult{Team: team, Warnings: warnings}
	opp := m.Players[p.Opponent()]
	staged, err := m.env.store.Exists(ctx, teamKey(m.ID, opp))
	if err != nil {
		return res, fmt.Errorf("check opponent team: %w", err)
	}
	if !staged {
		return res, nil
	}
	if err := m.startBattle(ctx); err != nil {
		// Unstage both teams so either player can submit again.
		m.dropStaged(ctx)
		return SubmitResult{}, err
	}
	res.Ready = true
	return res, nil
}

// dropStaged deletes both staged teams. Caller holds m.mu.
func (m *Match) dropStaged(ctx context.Context) {
	keys := make([]string, 0, len(m.Players))
	for _, pid := range m.Players {
		keys = append(keys, teamKey(m.ID, pid))
	}
	if err := m.env.store.Del(ctx, keys...); err != nil {
		m.logger.Warn("drop staged teams", zap.Error(err))
	}
}

// startBattle loads both staged teams and builds the engine. Caller holds m.mu.
func (m *Match) startBattle(ctx context.Context) error {
	var teams [2][]roster.Definition
	keys := make([]string, 0, 2)
	for i, pid := range m.Players {
		key := teamKey(m.ID, pid)
		raw, err := m.env.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("load team of %s: %w", pid, err)
		}
		if err := json.Unmarshal([]byte(raw), &teams[i]); err != nil {
			return fmt.Errorf("decode team of %s: %w", pid, err)
		}
		keys = append(keys, key)
	}

	m.engine = battle.NewEngine(battle.EngineConfig{
		PlayerIDs: m.Players,
		Logger:    m.logger,
		RNG:       m.rng,
	})
	for i := range teams {
		m.engine.SetTeam(battle.Player(i), roster.Configs(teams[i]))
	}
	m.phase = PhaseBattle
	if err := m.env.store.Del(ctx, keys...); err != nil {
		m.logger.Warn("drop staged teams", zap.Error(err))
	}
	m.logger.Info("battle started")

	m.notify(ctx, PacketBattleReady, "", map[string]string{"match_id": m.ID})
	m.broadcastState(ctx)
	return nil
}

// SelectMove records the player's move. When both moves are in, the turn
// resolves and its events are returned and broadcast.
func (m *Match) SelectMove(ctx context.Context, playerID string, moveIndex int) (TurnOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.side(playerID)
	if err != nil {
		return TurnOutcome{}, err
	}
	if m.phase != PhaseBattle {
		return TurnOutcome{}, fmt.Errorf("select move in %s: %w", m.phase, ErrWrongPhase)
	}
	if m.engine.NeedsSwitch(p) {
		return TurnOutcome{}, ErrNeedsSwitch
	}
	if _, ok := m.engine.Active(p).Move(moveIndex); !ok {
		return TurnOutcome{}, fmt.Errorf("move %d: %w", moveIndex, ErrInvalidMove)
	}

	m.touch(ctx)
	m.engine.SelectMove(p, moveIndex)
	if !m.engine.BothMovesSelected() {
		m.notify(ctx, PacketWaitingForOpponent, playerID, nil)
		return TurnOutcome{Turn: m.engine.Turn()}, nil
	}

	events := m.engine.ResolveTurn()
	out := TurnOutcome{Resolved: true, Turn: m.engine.Turn(), Events: events}

	encoded, err := battle.MarshalEvents(events)
	if err != nil {
		m.logger.Error("encode turn events", zap.Error(err))
	} else {
		m.notify(ctx, PacketTurnResult, "", map[string]any{"turn": out.Turn, "events": encoded})
	}

	if w, ok := m.engine.Winner(); ok {
		out.Winner = m.engine.PlayerID(w)
		m.logger.Info("match finished",
			zap.String("winner", out.Winner),
			zap.Int("turn", out.Turn))
		m.notify(ctx, PacketBattleEnded, "", map[string]string{"winner": out.Winner})
		m.finish(ctx)
		return out, nil
	}
	m.broadcastState(ctx)
	return out, nil
}

// Switch replaces the player's active creature.
func (m *Match) Switch(ctx context.Context, playerID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.side(playerID)
	if err != nil {
		return err
	}
	if m.phase != PhaseBattle {
		return fmt.Errorf("switch in %s: %w", m.phase, ErrWrongPhase)
	}
	if !m.engine.SwitchCreature(p, index) {
		return fmt.Errorf("creature %d: %w", index, ErrInvalidSwitch)
	}
	m.touch(ctx)
	m.logger.Debug("creature switched",
		zap.String("player_id", playerID),
		zap.Int("index", index))

	m.notify(ctx, PacketSwitchComplete, playerID, map[string]int{"index": index})
	m.broadcastState(ctx)
	return nil
}

// State returns the player's projection of the battle.
func (m *Match) State(playerID string) (battle.StateProjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.side(playerID)
	if err != nil {
		return battle.StateProjection{}, err
	}
	if m.engine == nil {
		return battle.StateProjection{}, fmt.Errorf("state in %s: %w", m.phase, ErrWrongPhase)
	}
	return m.engine.State(p), nil
}

// Abandon ends an unfinished match on behalf of playerID.
func (m *Match) Abandon(ctx context.Context, playerID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.side(playerID); err != nil {
		return err
	}
	m.abandon(ctx, playerID, reason)
	return nil
}

// Cancel ends an unfinished match on behalf of the server. It reports
// whether the match was still running.
func (m *Match) Cancel(ctx context.Context, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abandon(ctx, "", reason)
}

// Summary is an operator's view of a match.
type Summary struct {
	ID         string    `json:"id"`
	Players    [2]string `json:"players"`
	Phase      Phase     `json:"phase"`
	Turn       int       `json:"turn"`
	Winner     string    `json:"winner,omitempty"`
	Created    time.Time `json:"created"`
	LastActive time.Time `json:"last_active"`
}

// Summary snapshots the match.
func (m *Match) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{
		ID:         m.ID,
		Players:    m.Players,
		Phase:      m.phase,
		Created:    m.Created,
		LastActive: m.lastSeen,
	}
	if m.engine != nil {
		s.Turn = m.engine.Turn()
		if w, ok := m.engine.Winner(); ok {
			s.Winner = m.engine.PlayerID(w)
		}
	}
	return s
}

// abandon is a no-op on finished matches. Caller holds m.mu.
func (m *Match) abandon(ctx context.Context, by, reason string) bool {
	if m.phase == PhaseFinished {
		return false
	}
	m.logger.Info("match abandoned",
		zap.String("by", by),
		zap.String("reason", reason),
		zap.Stringer("phase", m.phase))
	m.notify(ctx, PacketMatchAbandoned, "", map[string]string{"by": by, "reason": reason})
	m.finish(ctx)
	return true
}

// finish marks the match over and hands it back to its manager. Caller holds m.mu.
func (m *Match) finish(ctx context.Context) {
	m.phase = PhaseFinished
	if m.onFinish != nil {
		m.onFinish(ctx, m)
	}
}

// touch records activity and extends the player locks. Caller holds m.mu.
func (m *Match) touch(ctx context.Context) {
	m.lastSeen = m.env.now()
	for _, pid := range m.Players {
		if err := m.env.store.Expire(ctx, playerKey(pid), m.env.cfg.lockTTL()); err != nil && !cache.IsNotFound(err) {
			m.logger.Debug("refresh player lock", zap.String("player_id", pid), zap.Error(err))
		}
	}
}

// broadcastState sends each player its own projection. Caller holds m.mu.
func (m *Match) broadcastState(ctx context.Context) {
	for i, pid := range m.Players {
		m.notify(ctx, PacketBattleState, pid, m.engine.State(battle.Player(i)))
	}
}

func (m *Match) notify(ctx context.Context, typ, to string, v any) {
	pkt, err := newPacket(typ, to, v)
	if err == nil {
		err = m.env.notifier.Notify(ctx, m.ID, pkt)
	}
	if err != nil {
		m.logger.Warn("notify failed", zap.String("type", typ), zap.Error(err))
	}
}
