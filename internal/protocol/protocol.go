// Package protocol defines the JSON messages exchanged over the game
// websocket. Every message is an object with a "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrMalformedMessage = errors.New("malformed message")

// Inbound message types.
const (
	TypeJoinGame    = "JOIN_GAME"
	TypeJoinGameB   = "JOIN_GAME_B"
	TypePlayerInput = "PLAYER_INPUT"
	TypeLeaveGame   = "LEAVE_GAME"
	TypeGameEndVote = "GAME_END_VOTE"
	TypeP2PInput    = "P2P_INPUT"
	TypeP2PState    = "P2P_STATE"
)

// Relayed gameplay message types. The server forwards them unread.
const (
	TypePlayerPosition    = "PLAYER_POSITION"
	TypeAsteroidSpawn     = "ASTEROID_SPAWN"
	TypeAsteroidPosition  = "ASTEROID_POSITION"
	TypeBulletFired       = "BULLET_FIRED"
	TypeBulletPosition    = "BULLET_POSITION"
	TypeBulletHitAsteroid = "BULLET_HIT_ASTEROID"
	TypePlayerHit         = "PLAYER_HIT"
	TypePlayerDead        = "PLAYER_DEAD"
	TypeScoreUpdate       = "SCORE_UPDATE"
	TypeAsteroidDestroyed = "ASTEROID_DESTROYED"
	TypeBulletDestroyed   = "BULLET_DESTROYED"
)

// Outbound message types.
const (
	TypeConnected    = "CONNECTED"
	TypeJoined       = "JOINED"
	TypeJoinedB      = "JOINED_B"
	TypePlayerJoined = "PLAYER_JOINED"
	TypePlayerLeft   = "PLAYER_LEFT"
	TypeHostChanged  = "HOST_CHANGED"
	TypeGameState    = "GAME_STATE"
	TypeGameEnded    = "GAME_ENDED"
	TypeError        = "ERROR"
	TypeNotInRoom    = "NOT_IN_ROOM"
)

var gameplayTypes = map[string]bool{
	TypePlayerPosition:    true,
	TypeAsteroidSpawn:     true,
	TypeAsteroidPosition:  true,
	TypeBulletFired:       true,
	TypeBulletPosition:    true,
	TypeBulletHitAsteroid: true,
	TypePlayerHit:         true,
	TypePlayerDead:        true,
	TypeScoreUpdate:       true,
	TypeAsteroidDestroyed: true,
	TypeBulletDestroyed:   true,
	TypeP2PInput:          true,
}

// GameplayTypes lists the relayed gameplay types in sorted order.
func GameplayTypes() []string {
	out := make([]string, 0, len(gameplayTypes))
	for t := range gameplayTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Envelope is a decoded message header plus the raw payload.
type Envelope struct {
	Type string
	Raw  []byte
}

// Decode reads the message type. The payload is kept as-is.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if head.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return Envelope{Type: head.Type, Raw: data}, nil
}

// DecodeBody unmarshals the envelope's payload into T.
func DecodeBody[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Raw, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, env.Type, err)
	}
	return v, nil
}

// Encode marshals an outbound message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MustEncode is Encode for message types that cannot fail to marshal.
func MustEncode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: encode %T: %v", v, err))
	}
	return b
}
