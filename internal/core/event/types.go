package event

// Game lifecycle events, emitted by the simulation and consumed a tick later.

type PlayerJoined struct {
	RoomID   int64
	Username string
}

type PlayerLeft struct {
	RoomID   int64
	Username string
}

type GameStarted struct {
	RoomID  int64
	Players []string
}

// GameEnded is emitted exactly once per finished game.
type GameEnded struct {
	RoomID int64
	Scores map[string]int
	Winner string
	Reason string
}

type AsteroidDestroyed struct {
	RoomID   int64
	Username string
	Points   int
}

type PlayerEliminated struct {
	RoomID   int64
	Username string
	By       string // empty when an asteroid did it
}
