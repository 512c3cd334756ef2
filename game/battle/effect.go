package battle

import (
	"fmt"
	"math/rand"
)

// Combatant pairs a creature with the identifier of the player who owns it.
type Combatant struct {
	PlayerID string
	Creature *Creature
}

func (c Combatant) actor() Actor {
	return Actor{Player: c.PlayerID, Creature: c.Creature.Name()}
}

// EffectDispatcher applies a move from attacker to defender and describes
// what happened. Exactly one event is returned per dispatched move.
type EffectDispatcher interface {
	Dispatch(attacker, defender Combatant, move Move) Event
}

// DefaultDispatcher implements accuracy rolls and the four effect types.
type DefaultDispatcher struct {
	RNG *rand.Rand
}

// roll returns a uniform integer in [1, 100].
func (d *DefaultDispatcher) roll() int {
	return d.RNG.Intn(100) + 1
}

func (d *DefaultDispatcher) Dispatch(attacker, defender Combatant, move Move) Event {
	a, b := attacker.Creature, defender.Creature

	if d.roll() > move.Accuracy {
		return &EventMiss{
			Actor:   attacker.actor(),
			Move:    move.Name,
			Message: fmt.Sprintf("%s used %s but missed!", a.Name(), move.Name),
		}
	}

	switch move.Effect {
	case EffectStatDebuff:
		stat := move.Data.TargetStat
		b.ApplyStatChange(stat, -move.Data.Percent)
		return &EventDebuff{
			Actor:   attacker.actor(),
			Move:    move.Name,
			Target:  b.Name(),
			Stat:    stat,
			Amount:  -move.Data.Percent,
			Message: fmt.Sprintf("%s used %s! %s's %s fell!", a.Name(), move.Name, b.Name(), stat),
		}

	case EffectSkipTurn:
		if d.roll() <= move.Data.Chance {
			b.SetSkipNextTurn(true)
			return &EventStun{
				Actor:   attacker.actor(),
				Move:    move.Name,
				Target:  b.Name(),
				Message: fmt.Sprintf("%s used %s! %s is stunned!", a.Name(), move.Name, b.Name()),
			}
		}
		return &EventStunFail{
			Actor:   attacker.actor(),
			Move:    move.Name,
			Message: fmt.Sprintf("%s used %s but it had no effect!", a.Name(), move.Name),
		}

	case EffectStatBoost:
		stat := move.Data.TargetStat
		a.ApplyStatChange(stat, move.Data.Percent)
		return &EventBuff{
			Actor:   attacker.actor(),
			Move:    move.Name,
			Stat:    stat,
			Amount:  move.Data.Percent,
			Message: fmt.Sprintf("%s used %s! Its %s rose!", a.Name(), move.Name, stat),
		}

	default:
		dmg := Damage(a.EffectiveStat(StatAttack), b.EffectiveStat(StatDefense), move.Data.Power)
		b.TakeDamage(dmg)
		return &EventDamage{
			Actor:   attacker.actor(),
			Move:    move.Name,
			Target:  b.Name(),
			Damage:  dmg,
			Message: fmt.Sprintf("%s used %s! %s took %d damage!", a.Name(), move.Name, b.Name(), dmg),
		}
	}
}

// Damage computes max(1, floor(attack × power/100 × 100/(100+defense))).
func Damage(attack, defense, power int) int {
	dmg := attack * power / (100 + defense)
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}
