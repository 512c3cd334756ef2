package battle

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Phase is the externally visible state of the turn state machine.
type Phase int

const (
	PhaseAwaitingMoves Phase = iota
	PhaseNeedsSwitch
	PhaseConcluded
)

func (p Phase) String() string {
	switch p {
	case PhaseNeedsSwitch:
		return "needs_switch"
	case PhaseConcluded:
		return "concluded"
	default:
		return "awaiting_moves"
	}
}

const noSelection = -1

// EngineConfig configures an Engine.
type EngineConfig struct {
	PlayerIDs  [2]string // indexed by Player
	Logger     *zap.Logger
	RNG        *rand.Rand       // injectable for testing
	Orderer    TurnOrderer      // nil = DefaultTurnOrderer
	Dispatcher EffectDispatcher // nil = DefaultDispatcher sharing RNG
}

// Engine resolves one two-player match. It is not safe for concurrent use;
// the owner must serialize all calls.
type Engine struct {
	ids     [2]string
	teams   [2][]*Creature
	active  [2]int
	pending [2]int
	turn    int
	winner  *Player

	logger     *zap.Logger
	rng        *rand.Rand
	orderer    TurnOrderer
	dispatcher EffectDispatcher
}

// NewEngine creates an engine with empty teams. Call SetTeam for both
// players before the first turn.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Orderer == nil {
		cfg.Orderer = DefaultTurnOrderer{}
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = &DefaultDispatcher{RNG: cfg.RNG}
	}
	return &Engine{
		ids:        cfg.PlayerIDs,
		pending:    [2]int{noSelection, noSelection},
		logger:     cfg.Logger,
		rng:        cfg.RNG,
		orderer:    cfg.Orderer,
		dispatcher: cfg.Dispatcher,
	}
}

// SetTeam (re)initializes p's roster from the given definitions and makes
// the first creature active.
func (e *Engine) SetTeam(p Player, creatures []CreatureConfig) {
	if !p.valid() {
		return
	}
	team := make([]*Creature, len(creatures))
	for i, cfg := range creatures {
		team[i] = NewCreature(cfg)
	}
	e.teams[p] = team
	e.active[p] = 0
	e.pending[p] = noSelection
}

// PlayerID returns the external identifier of p.
func (e *Engine) PlayerID(p Player) string {
	if !p.valid() {
		return ""
	}
	return e.ids[p]
}

// PlayerOf maps an external identifier to its side.
func (e *Engine) PlayerOf(id string) (Player, bool) {
	for i, pid := range e.ids {
		if pid == id {
			return Player(i), true
		}
	}
	return PlayerA, false
}

// Active returns p's active creature, or nil if p has none.
func (e *Engine) Active(p Player) *Creature {
	if !p.valid() {
		return nil
	}
	idx := e.active[p]
	if idx < 0 || idx >= len(e.teams[p]) {
		return nil
	}
	return e.teams[p][idx]
}

// ActiveIndex returns the roster slot of p's active creature.
func (e *Engine) ActiveIndex(p Player) int {
	if !p.valid() {
		return 0
	}
	return e.active[p]
}

// Team returns p's roster in order. Fainted creatures stay in place.
func (e *Engine) Team(p Player) []*Creature {
	if !p.valid() {
		return nil
	}
	out := make([]*Creature, len(e.teams[p]))
	copy(out, e.teams[p])
	return out
}

// Turn returns the number of resolved turns.
func (e *Engine) Turn() int { return e.turn }

// Winner returns the winning side once the match has concluded.
func (e *Engine) Winner() (Player, bool) {
	if e.winner == nil {
		return PlayerA, false
	}
	return *e.winner, true
}

// Pending returns p's recorded move index for the unresolved turn.
func (e *Engine) Pending(p Player) (int, bool) {
	if !p.valid() || e.pending[p] == noSelection {
		return 0, false
	}
	return e.pending[p], true
}

// Phase reports the current state machine phase.
func (e *Engine) Phase() Phase {
	if e.winner != nil {
		return PhaseConcluded
	}
	if e.NeedsSwitch(PlayerA) || e.NeedsSwitch(PlayerB) {
		return PhaseNeedsSwitch
	}
	return PhaseAwaitingMoves
}

// SelectMove records p's move for the current turn, replacing any earlier
// choice. Invalid input is ignored.
func (e *Engine) SelectMove(p Player, moveIndex int) {
	c := e.Active(p)
	if c == nil {
		return
	}
	if _, ok := c.Move(moveIndex); !ok {
		return
	}
	e.pending[p] = moveIndex
}

// BothMovesSelected reports whether both players have a pending selection.
func (e *Engine) BothMovesSelected() bool {
	return e.pending[PlayerA] != noSelection && e.pending[PlayerB] != noSelection
}

// ResolveTurn executes the pending selections and returns the events of the
// turn in order. A player without a selection passes silently.
func (e *Engine) ResolveTurn() []Event {
	if e.winner != nil {
		e.logger.Debug("resolve after conclusion ignored", zap.Int("turn", e.turn))
		return nil
	}
	e.turn++

	ca, cb := e.Active(PlayerA), e.Active(PlayerB)
	if ca == nil || cb == nil {
		return nil
	}

	order := e.orderer.Order(e.action(PlayerA, ca), e.action(PlayerB, cb), e.rng)

	var events []Event
	for _, act := range order {
		if evt := e.execute(act); evt != nil {
			events = append(events, evt)
		}
	}

	e.pending = [2]int{noSelection, noSelection}

	events = append(events, e.checkKnockouts()...)

	e.logger.Debug("battle turn resolved",
		zap.Int("turn", e.turn),
		zap.Int("events", len(events)),
		zap.Stringer("phase", e.Phase()))
	return events
}

func (e *Engine) action(p Player, c *Creature) Action {
	act := Action{Player: p, Attacker: c}
	if idx := e.pending[p]; idx != noSelection {
		act.Move, act.HasMove = c.Move(idx)
	}
	return act
}

// execute runs one side's action. The defender is not checked for
// aliveness: both sides always act in a simultaneous turn.
func (e *Engine) execute(act Action) Event {
	attacker := act.Attacker
	if !attacker.IsAlive() {
		return nil
	}
	self := Combatant{PlayerID: e.ids[act.Player], Creature: attacker}

	if attacker.SkipNextTurn() {
		attacker.SetSkipNextTurn(false)
		return &EventSkip{
			Actor:   self.actor(),
			Message: attacker.Name() + " is stunned and can't move!",
		}
	}
	if !act.HasMove {
		return nil
	}

	opp := act.Player.Opponent()
	target := Combatant{PlayerID: e.ids[opp], Creature: e.Active(opp)}
	return e.dispatcher.Dispatch(self, target, act.Move)
}

func (e *Engine) checkKnockouts() []Event {
	var events []Event
	for _, p := range [2]Player{PlayerA, PlayerB} {
		c := e.Active(p)
		if c == nil || c.IsAlive() {
			continue
		}
		events = append(events, &EventKnockout{
			Actor:   Actor{Player: e.ids[p], Creature: c.Name()},
			Message: c.Name() + " fainted!",
		})
		if e.anyAlive(p) || e.winner != nil {
			continue
		}
		w := p.Opponent()
		e.winner = &w
		events = append(events, &EventVictory{
			Winner:  e.ids[w],
			Loser:   e.ids[p],
			Message: e.ids[w] + " wins the battle!",
		})
		e.logger.Info("battle concluded",
			zap.String("winner", e.ids[w]),
			zap.Int("turn", e.turn))
	}
	return events
}

func (e *Engine) anyAlive(p Player) bool {
	for _, c := range e.teams[p] {
		if c.IsAlive() {
			return true
		}
	}
	return false
}

// SwitchCreature makes roster slot idx active if it holds a living creature.
// No event is emitted; the caller notifies observers.
func (e *Engine) SwitchCreature(p Player, idx int) bool {
	if !p.valid() || idx < 0 || idx >= len(e.teams[p]) {
		return false
	}
	if !e.teams[p][idx].IsAlive() {
		return false
	}
	e.active[p] = idx
	return true
}

// NeedsSwitch reports whether p's active creature has fainted while a
// teammate is still standing.
func (e *Engine) NeedsSwitch(p Player) bool {
	c := e.Active(p)
	if c == nil || c.IsAlive() {
		return false
	}
	return e.anyAlive(p)
}
