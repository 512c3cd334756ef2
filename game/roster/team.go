package roster

import (
	"fmt"

	"github.com/kasuganosora/crayonmonsters/server/game/battle"
)

// BackupCreature is the stand-in for a creature the player failed to submit.
func BackupCreature() Definition {
	return Definition{
		Name: "Backup Monster",
		Stats: StatsDef{
			HP: 70, Attack: 50, Defense: 50, Speed: 50,
			Nature: battle.DefaultNature,
		},
		Moves: []MoveDef{
			{Name: "Strike", Category: "active", EffectType: "damage",
				EffectData: EffectDataDef{Power: 40}, Accuracy: 100, Description: "Basic attack."},
			{Name: "Guard", Category: "passive", EffectType: "stat_boost",
				EffectData: EffectDataDef{TargetStat: "defense", Percent: 10}, Accuracy: 100, Description: "Defensive stance."},
			{Name: "Haste", Category: "passive", EffectType: "stat_boost",
				EffectData: EffectDataDef{TargetStat: "speed", Percent: 10}, Accuracy: 100, Description: "Speed up."},
			{Name: "Power Up", Category: "passive", EffectType: "stat_boost",
				EffectData: EffectDataDef{TargetStat: "attack", Percent: 10}, Accuracy: 100, Description: "Attack up."},
		},
	}
}

// BuildTeam validates up to size definitions and pads the rest with backup
// creatures. Warnings are prefixed with the creature's slot number.
func (r *Rules) BuildTeam(defs []Definition, size int) ([]Definition, []string) {
	var warnings []string
	if len(defs) > size {
		warnings = append(warnings, fmt.Sprintf("%d creatures given, keeping the first %d", len(defs), size))
		defs = defs[:size]
	}
	team := make([]Definition, 0, size)
	for i, def := range defs {
		fixed, ws := r.Validate(def)
		for _, w := range ws {
			warnings = append(warnings, fmt.Sprintf("creature %d: %s", i+1, w))
		}
		team = append(team, fixed)
	}
	for len(team) < size {
		warnings = append(warnings, fmt.Sprintf("creature %d: missing, using a backup monster", len(team)+1))
		fixed, _ := r.Validate(BackupCreature())
		team = append(team, fixed)
	}
	return team, warnings
}

// Configs converts a validated team into engine input.
func Configs(team []Definition) []battle.CreatureConfig {
	out := make([]battle.CreatureConfig, len(team))
	for i, def := range team {
		out[i] = def.ToConfig()
	}
	return out
}
