package protocol

import "github.com/rockfall/arena/internal/world"

// JoinRequest is the body of JOIN_GAME and JOIN_GAME_B.
type JoinRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	RoomID   int64  `json:"roomId"`
}

// InputRequest is the body of PLAYER_INPUT.
type InputRequest struct {
	MoveUp    bool `json:"moveUp"`
	MoveDown  bool `json:"moveDown"`
	MoveLeft  bool `json:"moveLeft"`
	MoveRight bool `json:"moveRight"`
	Fire      bool `json:"fire"`
}

// Vote is the body of GAME_END_VOTE: the sender's own view of how the game
// ended and how it fared.
type Vote struct {
	Reason    string `json:"reason"`
	Score     int    `json:"score"`
	HP        int    `json:"hp"`
	Alive     bool   `json:"alive"`
	Timestamp int64  `json:"timestamp"`
}

type Connected struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type Joined struct {
	Type         string `json:"type"`
	RoomID       int64  `json:"roomId"`
	Username     string `json:"username"`
	Architecture string `json:"architecture"`
}

type JoinedB struct {
	Type         string   `json:"type"`
	RoomID       int64    `json:"roomId"`
	Username     string   `json:"username"`
	Host         string   `json:"host,omitempty"`
	IsHost       *bool    `json:"isHost,omitempty"`
	Players      []string `json:"players,omitempty"`
	Architecture string   `json:"architecture"`
}

// Presence is PLAYER_JOINED or PLAYER_LEFT.
type Presence struct {
	Type     string   `json:"type"`
	Username string   `json:"username"`
	Players  []string `json:"players"`
}

type HostChanged struct {
	Type string `json:"type"`
	Host string `json:"host"`
}

type GameEnded struct {
	Type   string          `json:"type"`
	Reason string          `json:"reason"`
	Votes  map[string]Vote `json:"votes"`
}

// Error is ERROR or NOT_IN_ROOM.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) Error     { return Error{Type: TypeError, Message: msg} }
func NewNotInRoom(msg string) Error { return Error{Type: TypeNotInRoom, Message: msg} }

type PlayerState struct {
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	HP       int     `json:"hp"`
	Score    int     `json:"score"`
	Alive    bool    `json:"alive"`
}

type BulletState struct {
	ID    uint32  `json:"id"`
	Owner string  `json:"owner"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type AsteroidState struct {
	ID     uint32  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	HP     int     `json:"hp"`
	IsBig  bool    `json:"isBig"`
}

// GameState is the per-tick snapshot of an authoritative room.
type GameState struct {
	Type        string          `json:"type"`
	RoomID      int64           `json:"roomId"`
	Frame       uint64          `json:"frame"`
	Phase       string          `json:"phase"`
	CountdownMs *int64          `json:"countdownMs,omitempty"`
	ElapsedMs   *int64          `json:"elapsedMs,omitempty"`
	Players     []PlayerState   `json:"players"`
	Bullets     []BulletState   `json:"bullets"`
	Asteroids   []AsteroidState `json:"asteroids"`
}

// Snapshot captures w for broadcast. Countdown rooms report the time left,
// running and finished rooms the time since start.
func Snapshot(w *world.World, remaining, elapsed int64) GameState {
	gs := GameState{
		Type:      TypeGameState,
		RoomID:    w.RoomID(),
		Frame:     w.Frame(),
		Phase:     w.Phase().String(),
		Players:   make([]PlayerState, 0, w.PlayerCount()),
		Bullets:   make([]BulletState, 0, len(w.Bullets)),
		Asteroids: make([]AsteroidState, 0, len(w.Asteroids)),
	}
	switch w.Phase() {
	case world.PhaseCountdown:
		gs.CountdownMs = &remaining
	case world.PhaseInProgress, world.PhaseFinished:
		gs.ElapsedMs = &elapsed
	}
	for _, p := range w.OrderedPlayers() {
		gs.Players = append(gs.Players, PlayerState{
			Username: p.Username, X: p.Pos.X, Y: p.Pos.Y, HP: p.HP, Score: p.Score, Alive: p.Alive,
		})
	}
	for _, b := range w.OrderedBullets() {
		gs.Bullets = append(gs.Bullets, BulletState{ID: b.ID, Owner: b.Owner, X: b.Pos.X, Y: b.Pos.Y})
	}
	for _, a := range w.OrderedAsteroids() {
		gs.Asteroids = append(gs.Asteroids, AsteroidState{
			ID: a.ID, X: a.Pos.X, Y: a.Pos.Y, Radius: a.Radius, HP: a.HP, IsBig: a.IsBig(),
		})
	}
	return gs
}
