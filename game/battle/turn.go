package battle

import "math/rand"

// Action is one side's contribution to a turn. HasMove is false when the
// player recorded no selection; such an action is ordered as active and
// then does nothing.
type Action struct {
	Player   Player
	Attacker *Creature
	Move     Move
	HasMove  bool
}

func (a Action) category() Category {
	if !a.HasMove {
		return CategoryActive
	}
	return a.Move.Category
}

// TurnOrderer decides which of two simultaneous actions resolves first.
type TurnOrderer interface {
	// Order returns the two actions in acting order.
	Order(a, b Action, rng *rand.Rand) [2]Action
}

// DefaultTurnOrderer puts active before passive, then higher effective
// speed first, then breaks ties with a fair coin.
type DefaultTurnOrderer struct{}

func (DefaultTurnOrderer) Order(a, b Action, rng *rand.Rand) [2]Action {
	ca, cb := a.category(), b.category()
	if ca != cb {
		if ca == CategoryActive {
			return [2]Action{a, b}
		}
		return [2]Action{b, a}
	}

	sa := a.Attacker.EffectiveStat(StatSpeed)
	sb := b.Attacker.EffectiveStat(StatSpeed)
	switch {
	case sa > sb:
		return [2]Action{a, b}
	case sb > sa:
		return [2]Action{b, a}
	}
	if rng.Intn(2) == 0 {
		return [2]Action{a, b}
	}
	return [2]Action{b, a}
}
