package roster

import (
	"strings"

	"github.com/kasuganosora/crayonmonsters/server/game/battle"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Definition is the external JSON shape of a creature as produced by the
// drawing pipeline. Nature may be given at top level or inside stats.
type Definition struct {
	Name          string    `json:"name" yaml:"name"`
	Nature        string    `json:"nature,omitempty" yaml:"nature,omitempty"`
	Stats         StatsDef  `json:"stats" yaml:"stats"`
	Moves         []MoveDef `json:"moves" yaml:"moves"`
	OriginalImage string    `json:"original_image,omitempty" yaml:"original_image,omitempty"`
}

type StatsDef struct {
	HP      int    `json:"hp" yaml:"hp"`
	Attack  int    `json:"attack" yaml:"attack"`
	Defense int    `json:"defense" yaml:"defense"`
	Speed   int    `json:"speed" yaml:"speed"`
	Nature  string `json:"nature,omitempty" yaml:"nature,omitempty"`
}

type MoveDef struct {
	Name        string        `json:"name" yaml:"name"`
	Category    string        `json:"category" yaml:"category"`
	EffectType  string        `json:"effect_type" yaml:"effect_type"`
	EffectData  EffectDataDef `json:"effect_data" yaml:"effect_data"`
	Accuracy    int           `json:"accuracy" yaml:"accuracy"`
	Description string        `json:"description" yaml:"description"`
}

type EffectDataDef struct {
	Power      int    `json:"power,omitempty" yaml:"power,omitempty"`
	TargetStat string `json:"target_stat,omitempty" yaml:"target_stat,omitempty"`
	Percent    int    `json:"percent,omitempty" yaml:"percent,omitempty"`
	Chance     int    `json:"chance,omitempty" yaml:"chance,omitempty"`
}

// fold normalizes an enum-like string for comparison.
// A Caser holds state, so one is built per call.
func fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// NatureName returns the declared nature, preferring the top-level field.
func (d Definition) NatureName() string {
	if n := fold(d.Nature); n != "" {
		return n
	}
	return fold(d.Stats.Nature)
}

// ToConfig converts d into engine input. Unknown enum strings fall back to
// active / damage / attack; missing numbers are left for the engine to default.
func (d Definition) ToConfig() battle.CreatureConfig {
	cfg := battle.CreatureConfig{
		Name:     d.Name,
		Nature:   d.NatureName(),
		HP:       d.Stats.HP,
		Attack:   d.Stats.Attack,
		Defense:  d.Stats.Defense,
		Speed:    d.Stats.Speed,
		Moves:    make([]battle.Move, 0, len(d.Moves)),
		ImageRef: d.OriginalImage,
	}
	for _, md := range d.Moves {
		cfg.Moves = append(cfg.Moves, md.toMove())
	}
	return cfg
}

func (md MoveDef) toMove() battle.Move {
	cat, _ := battle.ParseCategory(fold(md.Category))
	eff, _ := battle.ParseEffectType(fold(md.EffectType))
	stat, _ := battle.ParseStat(fold(md.EffectData.TargetStat))
	return battle.Move{
		Name:     md.Name,
		Category: cat,
		Effect:   eff,
		Data: battle.EffectData{
			Power:      md.EffectData.Power,
			TargetStat: stat,
			Percent:    md.EffectData.Percent,
			Chance:     md.EffectData.Chance,
		},
		Accuracy:    md.Accuracy,
		Description: md.Description,
	}
}
