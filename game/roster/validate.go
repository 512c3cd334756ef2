package roster

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kasuganosora/crayonmonsters/server/game/battle"
)

const (
	unknownCreatureName = "Unknown Creature"
	fallbackDescription = "A mysterious move."

	basicAttackPower    = 40
	basicAttackAccuracy = 95
)

// Validate returns a copy of def that satisfies r, along with a
// human-readable note for every correction made. Definitions are never
// rejected.
func (r *Rules) Validate(def Definition) (Definition, []string) {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	out := Definition{
		Name:          strings.TrimSpace(def.Name),
		OriginalImage: def.OriginalImage,
	}
	if out.Name == "" {
		out.Name = unknownCreatureName
	}

	stat := func(name string, raw int, rg Range) int {
		if raw < 0 {
			warn("%s was negative, defaulting to %d", name, battle.DefaultStat)
			raw = 0
		}
		if raw == 0 {
			return rg.Clamp(battle.DefaultStat)
		}
		v := rg.Clamp(raw)
		if v != raw {
			warn("%s clamped from %d to %d", name, raw, v)
		}
		return v
	}
	out.Stats.HP = stat("hp", def.Stats.HP, r.Stats.HP)
	out.Stats.Attack = stat("attack", def.Stats.Attack, r.Stats.Attack)
	out.Stats.Defense = stat("defense", def.Stats.Defense, r.Stats.Defense)
	out.Stats.Speed = stat("speed", def.Stats.Speed, r.Stats.Speed)

	nature := def.NatureName()
	if nature == "" {
		nature = r.fallbackNature()
	} else if !r.validNature(nature) {
		warn("Invalid nature '%s', defaulting to '%s'", nature, r.fallbackNature())
		nature = r.fallbackNature()
	}
	out.Stats.Nature = nature

	moves := def.Moves
	if len(moves) > r.Moves.PerCreature {
		warn("%d moves given, keeping the first %d", len(moves), r.Moves.PerCreature)
		moves = moves[:r.Moves.PerCreature]
	}
	for i, md := range moves {
		fixed, ws := r.validateMove(md, i)
		warnings = append(warnings, ws...)
		out.Moves = append(out.Moves, fixed)
	}
	for len(out.Moves) < r.Moves.PerCreature {
		warn("Missing move, adding default active move")
		out.Moves = append(out.Moves, r.basicAttack(len(out.Moves)+1))
	}

	if !slices.ContainsFunc(out.Moves, func(m MoveDef) bool { return m.Category == "active" }) {
		warn("No active moves found, converting first move to active")
		first := out.Moves[0]
		first.Category = "active"
		first.EffectType = "damage"
		first.EffectData = EffectDataDef{Power: battle.DefaultPower}
		out.Moves[0], _ = r.validateMove(first, 0)
	}
	return out, warnings
}

func (r *Rules) validateMove(md MoveDef, index int) (MoveDef, []string) {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf("Move %d: "+format, append([]any{index + 1}, args...)...))
	}

	out := MoveDef{
		Name:        strings.TrimSpace(md.Name),
		Description: strings.TrimSpace(md.Description),
	}
	if out.Name == "" {
		out.Name = fmt.Sprintf("Move %d", index+1)
	}
	if out.Description == "" {
		out.Description = r.defaultDescription()
	}

	cat := fold(md.Category)
	switch {
	case cat == "":
		cat = "active"
	case cat != "active" && cat != "passive":
		warn("Invalid category '%s', defaulting to 'active'", cat)
		cat = "active"
	case len(r.effects(cat)) == 0:
		warn("No %s effects allowed, defaulting to 'active'", cat)
		cat = "active"
	}
	out.Category = cat

	effects := r.effects(cat)
	effect := fold(md.EffectType)
	rule, ok := findEffect(effects, effect)
	if !ok {
		rule = effects[0]
		if effect != "" {
			warn("Invalid effect '%s' for %s, using %s", effect, cat, rule.Type)
		}
	}
	out.EffectType = rule.Type

	data := md.EffectData
	switch et, _ := battle.ParseEffectType(rule.Type); et {
	case battle.EffectDamage:
		out.EffectData.Power = bound(rule.Power, data.Power, battle.DefaultPower)
	case battle.EffectSkipTurn:
		out.EffectData.Chance = bound(rule.Chance, data.Chance, battle.DefaultChance)
	case battle.EffectStatDebuff, battle.EffectStatBoost:
		target := fold(data.TargetStat)
		allowed := rule.Stats
		if len(allowed) == 0 {
			allowed = []string{battle.StatAttack.String(), battle.StatDefense.String(), battle.StatSpeed.String()}
		}
		if !slices.Contains(allowed, target) {
			if target != "" {
				warn("Stat '%s' not allowed for %s, using %s", target, rule.Type, allowed[0])
			}
			target = allowed[0]
		}
		out.EffectData.TargetStat = target
		out.EffectData.Percent = bound(rule.Percent, data.Percent, battle.DefaultPercent)
	}

	out.Accuracy = battle.DefaultAccuracy
	if md.Accuracy != 0 {
		out.Accuracy = Range{Min: 1, Max: 100}.Clamp(md.Accuracy)
	}
	return out, warnings
}

// bound applies def to a missing value and clamps to rg when rg is set.
func bound(rg Range, v, def int) int {
	if v <= 0 {
		v = def
	}
	if rg.Max == 0 {
		return v
	}
	return rg.Clamp(v)
}

func (r *Rules) basicAttack(n int) MoveDef {
	md, _ := r.validateMove(MoveDef{
		Name:        fmt.Sprintf("Basic Attack %d", n),
		Category:    "active",
		EffectType:  "damage",
		EffectData:  EffectDataDef{Power: basicAttackPower},
		Accuracy:    basicAttackAccuracy,
		Description: "A basic attack.",
	}, n-1)
	return md
}

func (r *Rules) fallbackNature() string {
	if r.validNature(battle.DefaultNature) {
		return battle.DefaultNature
	}
	return r.Stats.Natures[0]
}

func (r *Rules) defaultDescription() string {
	if r.Moves.DefaultDescription != "" {
		return r.Moves.DefaultDescription
	}
	return fallbackDescription
}
