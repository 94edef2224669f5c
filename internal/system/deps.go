package system

//go:generate go tool mockgen -destination=./mocks/deps_mock.go -package=mocks . ResultSink,RoomReset

import (
	"errors"
	"time"

	"github.com/rockfall/arena/internal/result"
)

var ErrSimulationFault = errors.New("simulation fault")

// Broadcaster fans a message out to every connection bound to a room.
// Must not block.
type Broadcaster interface {
	BroadcastRoom(roomID int64, data []byte)
}

// ResultSink accepts finished game records for durable storage. Must not
// block; write failures are the sink's to log.
type ResultSink interface {
	Submit(rec result.Record)
}

// RoomReset tells matchmaking a room's game is over.
type RoomReset interface {
	ResetRoomAfterGame(roomID int64)
}

// Clock returns the current time. Injected so tests can drive it.
type Clock func() time.Time
