package battle

import (
	"math/rand"
	"testing"
)

// Move indices of makeTestCreature.
const (
	mvStrike = iota
	mvGlare
	mvCharge
	mvDaze
)

func newTestEngine(rng *rand.Rand) *Engine {
	e := NewEngine(EngineConfig{
		PlayerIDs: [2]string{"alice", "bob"},
		RNG:       rng,
	})
	e.SetTeam(PlayerA, []CreatureConfig{
		makeTestCreature("Sketch", 100, 100, 50, 80),
		makeTestCreature("Scribble", 60, 50, 50, 50),
	})
	e.SetTeam(PlayerB, []CreatureConfig{
		makeTestCreature("Doodle", 100, 50, 50, 40),
		makeTestCreature("Crayon", 60, 50, 50, 50),
	})
	return e
}

func eventTypes(events []Event) []string {
	out := make([]string, len(events))
	for i, evt := range events {
		out[i] = evt.EventType()
	}
	return out
}

func countType(events []Event, typ string) int {
	n := 0
	for _, evt := range events {
		if evt.EventType() == typ {
			n++
		}
	}
	return n
}

// countingDispatcher records how often a move reached dispatch.
type countingDispatcher struct {
	inner EffectDispatcher
	calls int
}

func (d *countingDispatcher) Dispatch(a, b Combatant, m Move) Event {
	d.calls++
	return d.inner.Dispatch(a, b, m)
}

func TestSelectMoveRecordsAndOverwrites(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(1)))

	e.SelectMove(PlayerA, mvGlare)
	e.SelectMove(PlayerA, mvStrike)
	if idx, ok := e.Pending(PlayerA); !ok || idx != mvStrike {
		t.Errorf("pending = %d,%v want %d,true", idx, ok, mvStrike)
	}
	if e.BothMovesSelected() {
		t.Error("only A selected")
	}
	e.SelectMove(PlayerB, mvCharge)
	if !e.BothMovesSelected() {
		t.Error("both selected")
	}
}

func TestSelectMoveRejectsOutOfRange(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(1)))
	e.SelectMove(PlayerA, mvCharge)

	for _, idx := range []int{-1, 4, 100} {
		e.SelectMove(PlayerA, idx)
		if got, _ := e.Pending(PlayerA); got != mvCharge {
			t.Errorf("index %d changed pending to %d", idx, got)
		}
	}

	e.SelectMove(PlayerB, 7)
	if _, ok := e.Pending(PlayerB); ok {
		t.Error("invalid first selection must leave slot empty")
	}
	e.SelectMove(Player(5), 0)
}

func TestSelectMoveWithoutTeamIsNoop(t *testing.T) {
	e := NewEngine(EngineConfig{PlayerIDs: [2]string{"a", "b"}, RNG: rand.New(rand.NewSource(1))})
	e.SelectMove(PlayerA, 0)
	if _, ok := e.Pending(PlayerA); ok {
		t.Error("no active creature: selection must be rejected")
	}
	if events := e.ResolveTurn(); len(events) != 0 {
		t.Errorf("events = %v, want none", eventTypes(events))
	}
	if e.Turn() != 1 {
		t.Errorf("turn = %d, want 1", e.Turn())
	}
}

func TestResolveTurnBasicExchange(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(3)))
	e.SelectMove(PlayerA, mvStrike)
	e.SelectMove(PlayerB, mvStrike)

	events := e.ResolveTurn()
	if len(events) != 2 {
		t.Fatalf("events = %v, want 2 damage events", eventTypes(events))
	}
	first, ok := events[0].(*EventDamage)
	if !ok {
		t.Fatalf("first = %T, want *EventDamage", events[0])
	}
	// Sketch (speed 80) outpaces Doodle (speed 40).
	if first.Player != "alice" || first.Damage != 33 {
		t.Errorf("first = %+v, want alice dealing 33", first)
	}
	second := events[1].(*EventDamage)
	if second.Player != "bob" || second.Damage != 16 {
		t.Errorf("second = %+v, want bob dealing 16", second)
	}
	if e.Turn() != 1 {
		t.Errorf("turn = %d, want 1", e.Turn())
	}
	if _, ok := e.Pending(PlayerA); ok {
		t.Error("selections must be cleared after resolution")
	}
	if e.BothMovesSelected() {
		t.Error("selections must be cleared after resolution")
	}
	if e.Phase() != PhaseAwaitingMoves {
		t.Errorf("phase = %s", e.Phase())
	}
}

func TestMissingSelectionPassesSilently(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(3)))
	e.SelectMove(PlayerB, mvStrike)

	events := e.ResolveTurn()
	if len(events) != 1 || events[0].(*EventDamage).Player != "bob" {
		t.Fatalf("events = %v, want a single bob damage event", eventTypes(events))
	}
}

func newCountingEngine(seed int64, a, b []CreatureConfig) (*Engine, *countingDispatcher) {
	rng := rand.New(rand.NewSource(seed))
	cd := &countingDispatcher{inner: &DefaultDispatcher{RNG: rng}}
	e := NewEngine(EngineConfig{PlayerIDs: [2]string{"alice", "bob"}, RNG: rng, Dispatcher: cd})
	e.SetTeam(PlayerA, a)
	e.SetTeam(PlayerB, b)
	return e, cd
}

func TestStunnedCreatureSkipsWithoutRolling(t *testing.T) {
	e, cd := newCountingEngine(8,
		[]CreatureConfig{makeTestCreature("Sketch", 100, 100, 50, 80)},
		[]CreatureConfig{makeTestCreature("Doodle", 100, 50, 50, 40)})

	// Faster A dazes B (chance 100); B loses its action in the same turn.
	e.SelectMove(PlayerA, mvDaze)
	e.SelectMove(PlayerB, mvStrike)
	events := e.ResolveTurn()
	if got := eventTypes(events); len(got) != 2 || got[0] != TypeStun || got[1] != TypeSkip {
		t.Fatalf("events = %v, want [stun skip]", got)
	}
	skip := events[1].(*EventSkip)
	if skip.Player != "bob" || skip.Creature != "Doodle" {
		t.Errorf("skip = %+v", skip)
	}
	if cd.calls != 1 {
		t.Errorf("dispatch calls = %d, want 1 (skip must not roll)", cd.calls)
	}
	if e.Active(PlayerB).SkipNextTurn() {
		t.Error("skip flag must be cleared once consumed")
	}

	// Next turn B acts normally again.
	e.SelectMove(PlayerA, mvCharge)
	e.SelectMove(PlayerB, mvStrike)
	events = e.ResolveTurn()
	if countType(events, TypeSkip) != 0 || countType(events, TypeDamage) != 1 {
		t.Errorf("events = %v, want B to act", eventTypes(events))
	}
}

func TestStunCarriesToNextTurn(t *testing.T) {
	sketch := makeTestCreature("Sketch", 100, 100, 50, 80)
	sketch.Moves[mvDaze].Category = CategoryPassive
	e, _ := newCountingEngine(8,
		[]CreatureConfig{sketch},
		[]CreatureConfig{makeTestCreature("Doodle", 100, 50, 50, 40)})

	// B's active strike goes first; the passive daze lands afterwards.
	e.SelectMove(PlayerA, mvDaze)
	e.SelectMove(PlayerB, mvStrike)
	events := e.ResolveTurn()
	if got := eventTypes(events); len(got) != 2 || got[0] != TypeDamage || got[1] != TypeStun {
		t.Fatalf("events = %v, want [damage stun]", got)
	}
	if !e.Active(PlayerB).SkipNextTurn() {
		t.Fatal("skip flag must carry into the next turn")
	}

	e.SelectMove(PlayerA, mvCharge)
	e.SelectMove(PlayerB, mvStrike)
	events = e.ResolveTurn()
	if got := eventTypes(events); len(got) != 2 || got[0] != TypeSkip || got[1] != TypeBuff {
		t.Errorf("events = %v, want [skip buff]", got)
	}
}

func TestStunnedCreatureWithoutSelectionStillSkips(t *testing.T) {
	e, cd := newCountingEngine(8,
		[]CreatureConfig{makeTestCreature("Sketch", 100, 100, 50, 80)},
		[]CreatureConfig{makeTestCreature("Doodle", 100, 50, 50, 40)})
	e.Active(PlayerB).SetSkipNextTurn(true)

	events := e.ResolveTurn()
	if got := eventTypes(events); len(got) != 1 || got[0] != TypeSkip {
		t.Fatalf("events = %v, want [skip]", got)
	}
	if cd.calls != 0 {
		t.Errorf("dispatch calls = %d, want 0", cd.calls)
	}
}

func TestFaintedAttackerDoesNotAct(t *testing.T) {
	e, cd := newCountingEngine(4,
		[]CreatureConfig{makeTestCreature("Sketch", 100, 100, 50, 80)},
		[]CreatureConfig{makeTestCreature("Glass", 5, 50, 50, 10), makeTestCreature("Crayon", 60, 50, 50, 50)})

	e.SelectMove(PlayerA, mvStrike)
	e.SelectMove(PlayerB, mvCharge)
	events := e.ResolveTurn()

	if got := eventTypes(events); len(got) != 2 || got[0] != TypeDamage || got[1] != TypeKnockout {
		t.Fatalf("events = %v, want [damage knockout]", got)
	}
	if cd.calls != 1 {
		t.Errorf("dispatch calls = %d, want 1", cd.calls)
	}
	if e.Active(PlayerB).Modifier(StatAttack) != 0 {
		t.Error("fainted creature's boost must not apply")
	}
}

// A target knocked out earlier in the same turn is always the second mover,
// and a fainted mover skips. So a fainted target can only be attacked when it
// entered the turn already at 0 HP.
func TestActionAgainstFaintedTargetStillExecutes(t *testing.T) {
	e, cd := newCountingEngine(4,
		[]CreatureConfig{makeTestCreature("Sketch", 100, 100, 50, 80), makeTestCreature("Scribble", 60, 50, 50, 50)},
		[]CreatureConfig{makeTestCreature("Doodle", 100, 50, 50, 40)})
	e.Active(PlayerA).TakeDamage(1000)

	e.SelectMove(PlayerA, mvStrike)
	e.SelectMove(PlayerB, mvStrike)
	events := e.ResolveTurn()

	if got := eventTypes(events); len(got) != 2 || got[0] != TypeDamage || got[1] != TypeKnockout {
		t.Fatalf("events = %v, want [damage knockout]", got)
	}
	dmg := events[0].(*EventDamage)
	if dmg.Player != "bob" || dmg.Target != "Sketch" || dmg.Damage != 16 {
		t.Errorf("damage = %+v", dmg)
	}
	if cd.calls != 1 {
		t.Errorf("dispatch calls = %d, want 1", cd.calls)
	}
	if hp := e.Active(PlayerA).HP(); hp != 0 {
		t.Errorf("hp = %d, want clamped 0", hp)
	}
	if _, ok := e.Winner(); ok {
		t.Error("A still has Scribble: no winner yet")
	}
}

func TestKnockoutForcesSwitch(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(5)))
	e.Active(PlayerB).TakeDamage(90) // 10 HP left

	e.SelectMove(PlayerA, mvStrike)
	e.SelectMove(PlayerB, mvCharge)
	events := e.ResolveTurn()

	if countType(events, TypeKnockout) != 1 || countType(events, TypeVictory) != 0 {
		t.Fatalf("events = %v, want one knockout and no victory", eventTypes(events))
	}
	ko := events[len(events)-1].(*EventKnockout)
	if ko.Player != "bob" || ko.Creature != "Doodle" {
		t.Errorf("knockout = %+v", ko)
	}
	if !e.NeedsSwitch(PlayerB) || e.NeedsSwitch(PlayerA) {
		t.Fatal("B must need a switch, A must not")
	}
	if e.Phase() != PhaseNeedsSwitch {
		t.Errorf("phase = %s, want needs_switch", e.Phase())
	}

	// Still true until a successful switch.
	e.SelectMove(PlayerA, mvStrike)
	if !e.NeedsSwitch(PlayerB) {
		t.Error("needs_switch must persist")
	}
	if e.SwitchCreature(PlayerB, 0) {
		t.Error("switching to the fainted creature must fail")
	}
	if !e.NeedsSwitch(PlayerB) {
		t.Error("needs_switch must persist after a failed switch")
	}
	if !e.SwitchCreature(PlayerB, 1) {
		t.Fatal("switch to living teammate failed")
	}
	if e.NeedsSwitch(PlayerB) || e.Active(PlayerB).Name() != "Crayon" {
		t.Error("switch did not take effect")
	}
	if e.Phase() != PhaseAwaitingMoves {
		t.Errorf("phase = %s", e.Phase())
	}
}

func TestSwitchCreatureRejectsInvalid(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(1)))
	for _, idx := range []int{-1, 2, 10} {
		if e.SwitchCreature(PlayerA, idx) {
			t.Errorf("switch to %d succeeded", idx)
		}
		if e.ActiveIndex(PlayerA) != 0 {
			t.Errorf("active index changed to %d", e.ActiveIndex(PlayerA))
		}
	}
	if e.SwitchCreature(Player(3), 0) {
		t.Error("invalid player must be rejected")
	}
	// Switching to a living bench creature is allowed at any time.
	if !e.SwitchCreature(PlayerA, 1) || e.ActiveIndex(PlayerA) != 1 {
		t.Error("voluntary switch failed")
	}
}

func TestVictoryIsTerminal(t *testing.T) {
	e := NewEngine(EngineConfig{PlayerIDs: [2]string{"alice", "bob"}, RNG: rand.New(rand.NewSource(9))})
	e.SetTeam(PlayerA, []CreatureConfig{makeTestCreature("Sketch", 100, 100, 50, 80)})
	e.SetTeam(PlayerB, []CreatureConfig{makeTestCreature("Doodle", 20, 50, 50, 40)})

	e.SelectMove(PlayerA, mvStrike)
	e.SelectMove(PlayerB, mvStrike)
	events := e.ResolveTurn()

	if countType(events, TypeVictory) != 1 {
		t.Fatalf("events = %v, want exactly one victory", eventTypes(events))
	}
	v := events[len(events)-1].(*EventVictory)
	if v.Winner != "alice" || v.Loser != "bob" {
		t.Errorf("victory = %+v", v)
	}
	w, ok := e.Winner()
	if !ok || w != PlayerA {
		t.Errorf("winner = %v,%v", w, ok)
	}
	if e.NeedsSwitch(PlayerB) {
		t.Error("no teammates left: needs_switch must be false")
	}
	if e.Phase() != PhaseConcluded {
		t.Errorf("phase = %s", e.Phase())
	}

	turn := e.Turn()
	e.SelectMove(PlayerA, mvStrike)
	e.SelectMove(PlayerB, mvStrike)
	if again := e.ResolveTurn(); len(again) != 0 || e.Turn() != turn {
		t.Error("resolution after conclusion must be a no-op")
	}
	if w2, _ := e.Winner(); w2 != PlayerA {
		t.Error("winner must not change")
	}
}

func TestSetTeamResetsRoster(t *testing.T) {
	e := newTestEngine(rand.New(rand.NewSource(1)))
	e.SwitchCreature(PlayerA, 1)
	e.SelectMove(PlayerA, 0)

	e.SetTeam(PlayerA, []CreatureConfig{makeTestCreature("Solo", 70, 50, 50, 50)})
	if len(e.Team(PlayerA)) != 1 || e.ActiveIndex(PlayerA) != 0 {
		t.Error("roster not reinitialized")
	}
	if _, ok := e.Pending(PlayerA); ok {
		t.Error("pending selection must be cleared")
	}
}

func TestPlayerLookup(t *testing.T) {
	e := newTestEngine(nil)
	if p, ok := e.PlayerOf("bob"); !ok || p != PlayerB {
		t.Errorf("PlayerOf(bob) = %v,%v", p, ok)
	}
	if _, ok := e.PlayerOf("mallory"); ok {
		t.Error("unknown id must not resolve")
	}
	if e.PlayerID(PlayerA) != "alice" {
		t.Errorf("PlayerID(A) = %q", e.PlayerID(PlayerA))
	}
}
