package battle

import "encoding/json"

// Defaults applied to missing or non-positive definition fields.
const (
	DefaultName     = "Unknown"
	DefaultNature   = "normal"
	DefaultHP       = 100
	DefaultStat     = 50
	DefaultPower    = 50
	DefaultPercent  = 10
	DefaultChance   = 20
	DefaultAccuracy = 100
	DefaultMoveName = "Unknown Move"

	// ModifierCap bounds every temporary stat modifier to ±ModifierCap percent.
	ModifierCap = 50
)

// EffectData holds the effect-specific parameters of a move. Only the fields
// relevant to the move's EffectType are read.
type EffectData struct {
	Power      int  // damage
	TargetStat Stat // stat_debuff, stat_boost
	Percent    int  // stat_debuff, stat_boost
	Chance     int  // skip_turn
}

// Move is an immutable move definition.
type Move struct {
	Name        string
	Category    Category
	Effect      EffectType
	Data        EffectData
	Accuracy    int // 1..100
	Description string
}

// MarshalJSON emits the move in the roster wire shape, with effect_data
// carrying only the keys its effect type uses.
func (m Move) MarshalJSON() ([]byte, error) {
	data := map[string]interface{}{}
	switch m.Effect {
	case EffectDamage:
		data["power"] = m.Data.Power
	case EffectStatDebuff, EffectStatBoost:
		data["target_stat"] = m.Data.TargetStat
		data["percent"] = m.Data.Percent
	case EffectSkipTurn:
		data["chance"] = m.Data.Chance
	}
	return json.Marshal(struct {
		Name        string                 `json:"name"`
		Category    Category               `json:"category"`
		Effect      EffectType             `json:"effect_type"`
		Data        map[string]interface{} `json:"effect_data"`
		Accuracy    int                    `json:"accuracy"`
		Description string                 `json:"description"`
	}{m.Name, m.Category, m.Effect, data, m.Accuracy, m.Description})
}

// CreatureConfig holds the data needed to construct a Creature. Zero values
// are replaced by the package defaults.
type CreatureConfig struct {
	Name     string
	Nature   string
	HP       int
	Attack   int
	Defense  int
	Speed    int
	Moves    []Move
	ImageRef string // opaque, passed through to projections
}

type statSlot struct {
	base int
	mod  int
}

// Creature is a battle-ready monster. It is owned by exactly one team and
// stays in that team's list after fainting.
type Creature struct {
	name     string
	nature   string
	imageRef string
	maxHP    int
	hp       int
	stats    [numStats]statSlot
	moves    []Move
	skipNext bool
}

// NewCreature normalizes cfg and builds a full-HP creature.
func NewCreature(cfg CreatureConfig) *Creature {
	c := &Creature{
		name:     cfg.Name,
		nature:   cfg.Nature,
		imageRef: cfg.ImageRef,
		maxHP:    orDefault(cfg.HP, DefaultHP),
	}
	if c.name == "" {
		c.name = DefaultName
	}
	if c.nature == "" {
		c.nature = DefaultNature
	}
	c.hp = c.maxHP
	c.stats[StatAttack].base = orDefault(cfg.Attack, DefaultStat)
	c.stats[StatDefense].base = orDefault(cfg.Defense, DefaultStat)
	c.stats[StatSpeed].base = orDefault(cfg.Speed, DefaultStat)

	c.moves = make([]Move, len(cfg.Moves))
	for i, m := range cfg.Moves {
		c.moves[i] = normalizeMove(m)
	}
	return c
}

func normalizeMove(m Move) Move {
	if m.Name == "" {
		m.Name = DefaultMoveName
	}
	if m.Accuracy <= 0 {
		m.Accuracy = DefaultAccuracy
	}
	if m.Accuracy > 100 {
		m.Accuracy = 100
	}
	switch m.Effect {
	case EffectDamage:
		m.Data.Power = orDefault(m.Data.Power, DefaultPower)
	case EffectStatDebuff, EffectStatBoost:
		m.Data.Percent = orDefault(m.Data.Percent, DefaultPercent)
		if !m.Data.TargetStat.Valid() {
			m.Data.TargetStat = StatAttack
		}
	case EffectSkipTurn:
		m.Data.Chance = orDefault(m.Data.Chance, DefaultChance)
	}
	return m
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (c *Creature) Name() string   { return c.name }
func (c *Creature) Nature() string { return c.nature }
func (c *Creature) HP() int        { return c.hp }
func (c *Creature) MaxHP() int     { return c.maxHP }
func (c *Creature) IsAlive() bool  { return c.hp > 0 }

// Moves returns a copy of the move list.
func (c *Creature) Moves() []Move {
	out := make([]Move, len(c.moves))
	copy(out, c.moves)
	return out
}

// Move returns the move at idx.
func (c *Creature) Move(idx int) (Move, bool) {
	if idx < 0 || idx >= len(c.moves) {
		return Move{}, false
	}
	return c.moves[idx], true
}

// BaseStat returns the unmodified value of s.
func (c *Creature) BaseStat(s Stat) int {
	if !s.Valid() {
		return 0
	}
	return c.stats[s].base
}

// Modifier returns the current temporary modifier of s, in percent.
func (c *Creature) Modifier(s Stat) int {
	if !s.Valid() {
		return 0
	}
	return c.stats[s].mod
}

// EffectiveStat returns max(1, floor(base × (1 + mod/100))).
func (c *Creature) EffectiveStat(s Stat) int {
	if !s.Valid() {
		return 1
	}
	slot := c.stats[s]
	// base*(100+mod) is non-negative since mod >= -50, so integer division floors.
	v := slot.base * (100 + slot.mod) / 100
	if v < 1 {
		v = 1
	}
	return v
}

// TakeDamage lowers HP, flooring at 0. Non-positive amounts are ignored.
func (c *Creature) TakeDamage(amount int) {
	if amount <= 0 {
		return
	}
	c.hp -= amount
	if c.hp < 0 {
		c.hp = 0
	}
}

// Heal raises HP, capped at MaxHP. Non-positive amounts are ignored.
func (c *Creature) Heal(amount int) {
	if amount <= 0 {
		return
	}
	c.hp += amount
	if c.hp > c.maxHP {
		c.hp = c.maxHP
	}
}

// ApplyStatChange adds percent to the modifier of s and clamps it to ±ModifierCap.
func (c *Creature) ApplyStatChange(s Stat, percent int) {
	if !s.Valid() {
		return
	}
	mod := c.stats[s].mod + percent
	if mod > ModifierCap {
		mod = ModifierCap
	}
	if mod < -ModifierCap {
		mod = -ModifierCap
	}
	c.stats[s].mod = mod
}

func (c *Creature) SkipNextTurn() bool     { return c.skipNext }
func (c *Creature) SetSkipNextTurn(v bool) { c.skipNext = v }

// CreatureProjection is a read-only view of a creature for clients.
type CreatureProjection struct {
	Name      string `json:"name"`
	Nature    string `json:"nature"`
	CurrentHP int    `json:"current_hp"`
	MaxHP     int    `json:"max_hp"`
	Attack    int    `json:"attack"`
	Defense   int    `json:"defense"`
	Speed     int    `json:"speed"`
	Moves     []Move `json:"moves"`
	IsAlive   bool   `json:"is_alive"`
	ImageRef  string `json:"original_image,omitempty"`
}

// Project returns the client-facing summary with effective stats applied.
func (c *Creature) Project() CreatureProjection {
	return CreatureProjection{
		Name:      c.name,
		Nature:    c.nature,
		CurrentHP: c.hp,
		MaxHP:     c.maxHP,
		Attack:    c.EffectiveStat(StatAttack),
		Defense:   c.EffectiveStat(StatDefense),
		Speed:     c.EffectiveStat(StatSpeed),
		Moves:     c.Moves(),
		IsAlive:   c.IsAlive(),
		ImageRef:  c.imageRef,
	}
}
