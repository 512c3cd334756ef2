package roster

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/kasuganosora/crayonmonsters/server/game/battle"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Range is an inclusive integer bound.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Clamp returns v limited to [r.Min, r.Max].
func (r Range) Clamp(v int) int { return max(r.Min, min(r.Max, v)) }

type StatRules struct {
	HP      Range    `yaml:"hp"`
	Attack  Range    `yaml:"attack"`
	Defense Range    `yaml:"defense"`
	Speed   Range    `yaml:"speed"`
	Natures []string `yaml:"natures"`
}

// EffectRule bounds the parameters of one effect type. Only the ranges the
// effect uses are read.
type EffectRule struct {
	Type    string   `yaml:"type"`
	Power   Range    `yaml:"power_range"`
	Percent Range    `yaml:"percent_range"`
	Chance  Range    `yaml:"chance_range"`
	Stats   []string `yaml:"stats"`
}

type MoveRules struct {
	PerCreature        int          `yaml:"per_creature"`
	DefaultDescription string       `yaml:"default_description"`
	Active             []EffectRule `yaml:"active"`
	Passive            []EffectRule `yaml:"passive"`
}

// Rules is the balance table every submitted definition is checked against.
type Rules struct {
	Stats StatRules `yaml:"stats"`
	Moves MoveRules `yaml:"moves"`
}

// DefaultRules returns the built-in rules.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("roster: embedded rules: %v", err))
	}
	return r
}

// LoadRules reads rules from a YAML file. An empty path yields DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and checks a YAML rules document.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster rules: %w", err)
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) check() error {
	for name, rg := range map[string]Range{
		"hp": r.Stats.HP, "attack": r.Stats.Attack, "defense": r.Stats.Defense, "speed": r.Stats.Speed,
	} {
		if rg.Min < 1 || rg.Max < rg.Min {
			return fmt.Errorf("roster rules: bad %s range %d..%d", name, rg.Min, rg.Max)
		}
	}
	if len(r.Stats.Natures) == 0 {
		return fmt.Errorf("roster rules: no natures")
	}
	if r.Moves.PerCreature < 1 {
		return fmt.Errorf("roster rules: per_creature must be positive")
	}
	if len(r.Moves.Active) == 0 {
		return fmt.Errorf("roster rules: active category has no effects")
	}
	for cat, effects := range map[string][]EffectRule{"active": r.Moves.Active, "passive": r.Moves.Passive} {
		for _, er := range effects {
			if _, ok := battle.ParseEffectType(er.Type); !ok {
				return fmt.Errorf("roster rules: unknown %s effect %q", cat, er.Type)
			}
			for _, s := range er.Stats {
				if _, ok := battle.ParseStat(s); !ok {
					return fmt.Errorf("roster rules: unknown stat %q in %s/%s", s, cat, er.Type)
				}
			}
		}
	}
	return nil
}

func (r *Rules) effects(category string) []EffectRule {
	if category == "passive" {
		return r.Moves.Passive
	}
	return r.Moves.Active
}

func findEffect(effects []EffectRule, typ string) (EffectRule, bool) {
	for _, er := range effects {
		if er.Type == typ {
			return er, true
		}
	}
	return EffectRule{}, false
}

func (r *Rules) validNature(n string) bool { return slices.Contains(r.Stats.Natures, n) }
