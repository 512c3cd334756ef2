package match

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/game/roster"
	"go.uber.org/zap"
)

// Config holds match tuning values.
type Config struct {
	CreaturesPerPlayer int
	TeamTTL            time.Duration // lifetime of a staged team
	IdleTimeout        time.Duration // matches without activity are reaped after this
	Seed               int64         // 0 = seeded from time
}

func (c Config) withDefaults() Config {
	if c.CreaturesPerPlayer <= 0 {
		c.CreaturesPerPlayer = 3
	}
	if c.TeamTTL <= 0 {
		c.TeamTTL = 10 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	return c
}

// lockTTL outlives the idle timeout so the reaper releases locks first.
func (c Config) lockTTL() time.Duration { return 2 * c.IdleTimeout }

func playerKey(playerID string) string { return "player:" + playerID + ":match" }

// Manager owns all live matches. A player belongs to at most one unfinished
// match; the claim is held in the cache so it holds across server instances.
type Manager struct {
	mu       sync.RWMutex
	matches  map[string]*Match
	byPlayer map[string]string // playerID → matchID
	seeds    *rand.Rand

	env *env
}

// NewManager creates a Manager. A nil notifier discards packets and nil
// rules fall back to roster.DefaultRules.
func NewManager(store cache.Cache, notifier Notifier, rules *roster.Rules, cfg Config, logger *zap.Logger) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if rules == nil {
		rules = roster.DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		matches:  make(map[string]*Match),
		byPlayer: make(map[string]string),
		seeds:    rand.New(rand.NewSource(seed)),
		env: &env{
			store:    store,
			notifier: notifier,
			rules:    rules,
			cfg:      cfg,
			logger:   logger,
			now:      time.Now,
		},
	}
}

// Create opens a drafting match between two players.
func (mgr *Manager) Create(ctx context.Context, p1, p2 string) (*Match, error) {
	if p1 == "" || p2 == "" || p1 == p2 {
		return nil, ErrInvalidPlayers
	}
	id := uuid.NewString()

	var claimed []string
	for _, pid := range []string{p1, p2} {
		ok, err := mgr.env.store.SetNX(ctx, playerKey(pid), id, mgr.env.cfg.lockTTL())
		if err == nil && !ok {
			err = fmt.Errorf("%s: %w", pid, ErrPlayerBusy)
		}
		if err != nil {
			mgr.unclaim(ctx, id, claimed...)
			return nil, err
		}
		claimed = append(claimed, pid)
	}

	mgr.mu.Lock()
	m := newMatch(id, [2]string{p1, p2}, mgr.env, rand.New(rand.NewSource(mgr.seeds.Int63())))
	m.onFinish = mgr.release
	mgr.matches[id] = m
	mgr.byPlayer[p1] = id
	mgr.byPlayer[p2] = id
	mgr.mu.Unlock()

	mgr.env.logger.Info("match created",
		zap.String("match_id", id),
		zap.String("player1", p1),
		zap.String("player2", p2))
	return m, nil
}

// Get returns the match with the given ID.
func (mgr *Manager) Get(id string) (*Match, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// ForPlayer returns the unfinished match playerID belongs to.
func (mgr *Manager) ForPlayer(playerID string) (*Match, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	id, ok := mgr.byPlayer[playerID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	m, ok := mgr.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// Count returns the number of tracked matches, finished ones included.
func (mgr *Manager) Count() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matches)
}

// List returns summaries of every tracked match, newest first.
func (mgr *Manager) List() []Summary {
	mgr.mu.RLock()
	all := make([]*Match, 0, len(mgr.matches))
	for _, m := range mgr.matches {
		all = append(all, m)
	}
	mgr.mu.RUnlock()

	out := make([]Summary, 0, len(all))
	for _, m := range all {
		out = append(out, m.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out
}

// Abandon ends playerID's current match, if any. Used on disconnect.
func (mgr *Manager) Abandon(ctx context.Context, playerID, reason string) error {
	m, err := mgr.ForPlayer(playerID)
	if err != nil {
		return err
	}
	return m.Abandon(ctx, playerID, reason)
}

// Remove forgets a match and drops everything it holds in the cache.
func (mgr *Manager) Remove(ctx context.Context, id string) {
	mgr.mu.Lock()
	m, ok := mgr.matches[id]
	if ok {
		delete(mgr.matches, id)
	}
	mgr.mu.Unlock()
	if !ok {
		return
	}
	mgr.release(ctx, m)
	keys := make([]string, 0, len(m.Players))
	for _, pid := range m.Players {
		keys = append(keys, teamKey(id, pid))
	}
	if err := mgr.env.store.Del(ctx, keys...); err != nil {
		mgr.env.logger.Warn("drop staged teams", zap.String("match_id", id), zap.Error(err))
	}
}

// ReapIdle abandons matches idle for longer than the configured timeout and
// removes them together with finished ones. It returns the removed IDs.
func (mgr *Manager) ReapIdle(ctx context.Context) []string {
	mgr.mu.RLock()
	all := make([]*Match, 0, len(mgr.matches))
	for _, m := range mgr.matches {
		all = append(all, m)
	}
	mgr.mu.RUnlock()

	now := mgr.env.now()
	var reaped []string
	for _, m := range all {
		m.mu.Lock()
		idle := now.Sub(m.lastSeen) > mgr.env.cfg.IdleTimeout
		done := m.phase == PhaseFinished
		if idle && !done {
			m.abandon(ctx, "", "idle")
			done = true
		}
		m.mu.Unlock()
		if !done {
			continue
		}
		mgr.Remove(ctx, m.ID)
		reaped = append(reaped, m.ID)
	}
	if len(reaped) > 0 {
		mgr.env.logger.Info("matches reaped", zap.Int("count", len(reaped)))
	}
	return reaped
}

// release frees the players of m for new matches. It must not take m.mu:
// matches call it while holding their own lock.
func (mgr *Manager) release(ctx context.Context, m *Match) {
	var owned []string
	mgr.mu.Lock()
	for _, pid := range m.Players {
		if mgr.byPlayer[pid] == m.ID {
			delete(mgr.byPlayer, pid)
			owned = append(owned, pid)
		}
	}
	mgr.mu.Unlock()
	mgr.unclaim(ctx, m.ID, owned...)
}

// unclaim deletes player locks that still point at matchID.
func (mgr *Manager) unclaim(ctx context.Context, matchID string, players ...string) {
	for _, pid := range players {
		key := playerKey(pid)
		holder, err := mgr.env.store.Get(ctx, key)
		if err != nil || holder != matchID {
			continue
		}
		if err := mgr.env.store.Del(ctx, key); err != nil {
			mgr.env.logger.Warn("release player lock", zap.String("player_id", pid), zap.Error(err))
		}
	}
}
