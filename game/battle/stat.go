package battle

// Stat identifies one of the modifiable creature stats.
type Stat int

const (
	StatAttack Stat = iota
	StatDefense
	StatSpeed

	numStats
)

var statNames = [numStats]string{"attack", "defense", "speed"}

func (s Stat) String() string {
	if s < 0 || s >= numStats {
		return "unknown"
	}
	return statNames[s]
}

// Valid reports whether s names a real stat.
func (s Stat) Valid() bool { return s >= 0 && s < numStats }

// ParseStat maps a lower-case stat name to a Stat.
func ParseStat(name string) (Stat, bool) {
	for i, n := range statNames {
		if n == name {
			return Stat(i), true
		}
	}
	return StatAttack, false
}

// Category is the priority class of a move. Active moves always act first.
type Category int

const (
	CategoryActive Category = iota
	CategoryPassive
)

func (c Category) String() string {
	if c == CategoryPassive {
		return "passive"
	}
	return "active"
}

// ParseCategory maps a lower-case category name to a Category.
func ParseCategory(name string) (Category, bool) {
	switch name {
	case "active":
		return CategoryActive, true
	case "passive":
		return CategoryPassive, true
	}
	return CategoryActive, false
}

// EffectType selects how a move mutates the battle.
type EffectType int

const (
	EffectDamage EffectType = iota
	EffectStatDebuff
	EffectSkipTurn
	EffectStatBoost
)

var effectNames = []string{"damage", "stat_debuff", "skip_turn", "stat_boost"}

func (e EffectType) String() string {
	if e < 0 || int(e) >= len(effectNames) {
		return "unknown"
	}
	return effectNames[e]
}

// ParseEffectType maps a lower-case effect name to an EffectType.
func ParseEffectType(name string) (EffectType, bool) {
	for i, n := range effectNames {
		if n == name {
			return EffectType(i), true
		}
	}
	return EffectDamage, false
}

// Player is one of the two sides of a match.
type Player int

const (
	PlayerA Player = iota
	PlayerB
)

// Opponent returns the other side.
func (p Player) Opponent() Player { return 1 - p }

func (p Player) valid() bool { return p == PlayerA || p == PlayerB }

func (p Player) String() string {
	if p == PlayerB {
		return "B"
	}
	return "A"
}

func (s Stat) MarshalText() ([]byte, error)       { return []byte(s.String()), nil }
func (c Category) MarshalText() ([]byte, error)   { return []byte(c.String()), nil }
func (e EffectType) MarshalText() ([]byte, error) { return []byte(e.String()), nil }
