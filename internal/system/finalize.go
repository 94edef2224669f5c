package system

import (
	"time"

	"github.com/rockfall/arena/internal/core/event"
	"github.com/rockfall/arena/internal/result"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// Finalizer ends authoritative games: FINISHED phase, GameEnded event,
// result record, matchmaking reset and deferred room removal.
type Finalizer struct {
	rooms        *world.Manager
	bus          *event.Bus
	sink         ResultSink
	lobby        RoomReset
	cleanupDelay time.Duration
	log          *zap.Logger
}

func NewFinalizer(rooms *world.Manager, bus *event.Bus, sink ResultSink, lobby RoomReset, cleanupDelay time.Duration, log *zap.Logger) *Finalizer {
	return &Finalizer{
		rooms:        rooms,
		bus:          bus,
		sink:         sink,
		lobby:        lobby,
		cleanupDelay: cleanupDelay,
		log:          log,
	}
}

// Finalize ends the game in w. It runs at most once per World; later calls
// report false and do nothing.
func (f *Finalizer) Finalize(w *world.World, now time.Time, reason EndReason) bool {
	if !w.Finish(now) {
		return false
	}
	roomID := w.RoomID()
	rec := AuthoritativeRecord(w, now)

	event.Emit(f.bus, event.GameEnded{
		RoomID: roomID,
		Scores: result.Scores(rec.Players),
		Winner: rec.Metadata.Winner,
		Reason: string(reason),
	})

	// Storage and matchmaking failures must not stop the room from closing.
	// Removal must be pending before the lobby frees the room.
	f.rooms.ScheduleRemoval(roomID, now.Add(f.cleanupDelay))
	f.guard(roomID, "submit result", func() { f.sink.Submit(rec) })
	f.guard(roomID, "reset room", func() { f.lobby.ResetRoomAfterGame(roomID) })

	f.log.Info("game finished",
		zap.Int64("room", roomID),
		zap.String("reason", string(reason)),
		zap.String("winner", rec.Metadata.Winner),
		zap.Uint64("frames", w.Frame()),
	)
	return true
}

func (f *Finalizer) guard(roomID int64, what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			f.log.Error("finalize step panicked",
				zap.Int64("room", roomID),
				zap.String("step", what),
				zap.Any("panic", rec),
			)
		}
	}()
	fn()
}

// AuthoritativeRecord builds the result record for a finished World.
func AuthoritativeRecord(w *world.World, now time.Time) result.Record {
	elapsed := w.Elapsed(now).Milliseconds()
	players := make([]result.Player, 0, w.PlayerCount())
	for _, p := range w.OrderedPlayers() {
		players = append(players, result.Player{
			Username:      p.Username,
			Score:         p.Score,
			HP:            p.HP,
			Alive:         p.Alive,
			ElapsedMillis: elapsed,
		})
	}
	frames := w.Frame()
	return result.Record{
		RoomID:    w.RoomID(),
		StartedAt: w.StartAt(),
		EndedAt:   now,
		Players:   players,
		Metadata: result.Metadata{
			Winner:       result.Winner(players),
			MapName:      w.MapName(),
			WinMode:      w.WinMode().String(),
			MaxPlayers:   w.MaxPlayers(),
			Architecture: world.ArchAuthoritative.Code(),
			TotalFrames:  &frames,
		},
	}
}
