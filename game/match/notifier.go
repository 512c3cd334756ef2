package match

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/crayonmonsters/server/cache"
)

// Packet types pushed to players.
const (
	PacketBattleReady        = "battle_ready"
	PacketTurnResult         = "turn_result"
	PacketBattleState        = "battle_state"
	PacketBattleEnded        = "battle_ended"
	PacketSwitchComplete     = "switch_complete"
	PacketWaitingForOpponent = "waiting_for_opponent"
	PacketMatchAbandoned     = "match_abandoned"
)

// Packet is an outbound notification for the players of a match.
// An empty To addresses both players.
type Packet struct {
	Type    string          `json:"type"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// For reports whether playerID should receive p.
func (p Packet) For(playerID string) bool { return p.To == "" || p.To == playerID }

func newPacket(typ, to string, v any) (Packet, error) {
	p := Packet{Type: typ, To: to}
	if v == nil {
		return p, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Packet{}, fmt.Errorf("encode %s: %w", typ, err)
	}
	p.Payload = raw
	return p, nil
}

// Notifier delivers packets to whoever is watching a match.
type Notifier interface {
	Notify(ctx context.Context, matchID string, p Packet) error
}

// NopNotifier discards all packets.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, Packet) error { return nil }

// Channel is the pub/sub channel carrying a match's packets.
func Channel(matchID string) string { return "match:" + matchID }

// PubSubNotifier publishes packets on the match channel so every server
// holding one of the players' connections can forward them.
type PubSubNotifier struct {
	ps cache.PubSub
}

func NewPubSubNotifier(ps cache.PubSub) *PubSubNotifier {
	return &PubSubNotifier{ps: ps}
}

func (n *PubSubNotifier) Notify(ctx context.Context, matchID string, p Packet) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return n.ps.Publish(ctx, Channel(matchID), string(raw))
}

// DecodePacket parses a payload received on a match channel.
func DecodePacket(payload string) (Packet, error) {
	var p Packet
	err := json.Unmarshal([]byte(payload), &p)
	return p, err
}
