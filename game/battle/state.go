package battle

// BenchStatus is the only information a player gets about opposing creatures.
type BenchStatus struct {
	Name    string `json:"name"`
	IsAlive bool   `json:"is_alive"`
}

// StateProjection is a player-specific view of a match.
type StateProjection struct {
	Turn               int                  `json:"turn"`
	MyCreature         *CreatureProjection  `json:"my_creature"`
	OpponentCreature   *CreatureProjection  `json:"opponent_creature"`
	MyTeam             []CreatureProjection `json:"my_team"`
	OpponentTeamStatus []BenchStatus        `json:"opponent_team_status"`
	Winner             *string              `json:"winner"`
	NeedsSwitch        bool                 `json:"needs_switch"`
	WaitingForOpponent bool                 `json:"waiting_for_opponent"`
}

// State projects the match for p. Both active creatures are shown in full;
// the opponent's roster only exposes names and alive flags.
func (e *Engine) State(p Player) StateProjection {
	if !p.valid() {
		return StateProjection{}
	}
	opp := p.Opponent()
	st := StateProjection{
		Turn:               e.turn,
		MyCreature:         projectOrNil(e.Active(p)),
		OpponentCreature:   projectOrNil(e.Active(opp)),
		MyTeam:             make([]CreatureProjection, 0, len(e.teams[p])),
		OpponentTeamStatus: make([]BenchStatus, 0, len(e.teams[opp])),
		NeedsSwitch:        e.NeedsSwitch(p),
		WaitingForOpponent: e.pending[p] != noSelection && e.pending[opp] == noSelection,
	}
	for _, c := range e.teams[p] {
		st.MyTeam = append(st.MyTeam, c.Project())
	}
	for _, c := range e.teams[opp] {
		st.OpponentTeamStatus = append(st.OpponentTeamStatus, BenchStatus{Name: c.Name(), IsAlive: c.IsAlive()})
	}
	if w, ok := e.Winner(); ok {
		id := e.ids[w]
		st.Winner = &id
	}
	return st
}

func projectOrNil(c *Creature) *CreatureProjection {
	if c == nil {
		return nil
	}
	pr := c.Project()
	return &pr
}
