package battle

import (
	"encoding/json"
	"fmt"
)

// Event is emitted by Engine.ResolveTurn for the session layer to consume.
type Event interface {
	EventType() string
}

// Event type names as they appear on the wire.
const (
	TypeMiss     = "miss"
	TypeDamage   = "damage"
	TypeDebuff   = "debuff"
	TypeBuff     = "buff"
	TypeStun     = "stun"
	TypeStunFail = "stun_fail"
	TypeSkip     = "skip"
	TypeKnockout = "knockout"
	TypeVictory  = "victory"
)

// Actor identifies who performed an action in event payloads.
type Actor struct {
	Player   string `json:"player"`
	Creature string `json:"creature"`
}

// --- Concrete event types ---

type EventMiss struct {
	Actor
	Move    string `json:"move"`
	Message string `json:"message"`
}

func (EventMiss) EventType() string { return TypeMiss }

type EventDamage struct {
	Actor
	Move    string `json:"move"`
	Target  string `json:"target"`
	Damage  int    `json:"damage"`
	Message string `json:"message"`
}

func (EventDamage) EventType() string { return TypeDamage }

type EventDebuff struct {
	Actor
	Move    string `json:"move"`
	Target  string `json:"target"`
	Stat    Stat   `json:"stat"`
	Amount  int    `json:"amount"` // always negative
	Message string `json:"message"`
}

func (EventDebuff) EventType() string { return TypeDebuff }

type EventBuff struct {
	Actor
	Move    string `json:"move"`
	Stat    Stat   `json:"stat"`
	Amount  int    `json:"amount"`
	Message string `json:"message"`
}

func (EventBuff) EventType() string { return TypeBuff }

type EventStun struct {
	Actor
	Move    string `json:"move"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

func (EventStun) EventType() string { return TypeStun }

type EventStunFail struct {
	Actor
	Move    string `json:"move"`
	Message string `json:"message"`
}

func (EventStunFail) EventType() string { return TypeStunFail }

type EventSkip struct {
	Actor
	Message string `json:"message"`
}

func (EventSkip) EventType() string { return TypeSkip }

type EventKnockout struct {
	Actor
	Message string `json:"message"`
}

func (EventKnockout) EventType() string { return TypeKnockout }

type EventVictory struct {
	Winner  string `json:"winner"`
	Loser   string `json:"loser"`
	Message string `json:"message"`
}

func (EventVictory) EventType() string { return TypeVictory }

// MarshalEvent encodes evt as a flat JSON object with a "type" discriminator.
func MarshalEvent(evt Event) (json.RawMessage, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(evt.EventType())
	fields["type"] = typ
	return json.Marshal(fields)
}

// MarshalEvents encodes a turn's events in order.
func MarshalEvents(events []Event) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(events))
	for _, evt := range events {
		raw, err := MarshalEvent(evt)
		if err != nil {
			return nil, fmt.Errorf("marshal %s event: %w", evt.EventType(), err)
		}
		out = append(out, raw)
	}
	return out, nil
}
