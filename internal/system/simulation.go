package system

import (
	"fmt"
	"time"

	"github.com/rockfall/arena/internal/core/event"
	coresys "github.com/rockfall/arena/internal/core/system"
	"github.com/rockfall/arena/internal/physics"
	"github.com/rockfall/arena/internal/protocol"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// SimulationSystem advances every room by one step. Phase 2 (Update).
// A fault in one room rolls that room back to its state before the tick
// and does not affect the others.
type SimulationSystem struct {
	rooms     *world.Manager
	engine    *physics.Engine
	finalizer *Finalizer
	bus       *event.Bus
	outbox    *Outbox
	now       Clock
	log       *zap.Logger
}

func NewSimulationSystem(rooms *world.Manager, engine *physics.Engine, finalizer *Finalizer, bus *event.Bus, outbox *Outbox, now Clock, log *zap.Logger) *SimulationSystem {
	return &SimulationSystem{
		rooms:     rooms,
		engine:    engine,
		finalizer: finalizer,
		bus:       bus,
		outbox:    outbox,
		now:       now,
		log:       log,
	}
}

func (s *SimulationSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SimulationSystem) Update(dt time.Duration) {
	now := s.now()
	for _, r := range s.rooms.Rooms() {
		if err := s.safeTick(r, dt, now); err != nil {
			s.log.Error("room tick failed", zap.Int64("room", r.ID()), zap.Error(err))
		}
	}
}

func (s *SimulationSystem) safeTick(r *world.Room, dt time.Duration, now time.Time) (err error) {
	w := r.World
	switch w.Phase() {
	case world.PhaseWaiting:
		return nil
	case world.PhaseFinished:
		if r.FinalSent {
			return nil
		}
	}

	snap := w.Clone()
	mark := s.outbox.Len()
	defer func() {
		if rec := recover(); rec != nil {
			w.Restore(snap)
			s.outbox.Truncate(mark)
			err = fmt.Errorf("%w: room %d: %v", ErrSimulationFault, r.ID(), rec)
		}
	}()
	s.tickRoom(r, dt, now)
	return nil
}

func (s *SimulationSystem) tickRoom(r *world.Room, dt time.Duration, now time.Time) {
	w := r.World
	switch w.Phase() {
	case world.PhaseCountdown:
		if !now.Before(w.StartAt()) {
			_ = w.SetPhase(world.PhaseInProgress)
			event.Emit(s.bus, event.GameStarted{RoomID: w.RoomID(), Players: w.JoinOrder()})
			s.log.Info("game started", zap.Int64("room", w.RoomID()), zap.Int("players", w.PlayerCount()))
		}
		s.snapshot(w, now)

	case world.PhaseInProgress:
		for _, o := range s.engine.Step(w, dt) {
			s.emitOutcome(w.RoomID(), o)
		}
		if reason, ended := CheckWin(w, now); ended {
			s.finalizer.Finalize(w, now, reason)
		}
		s.snapshot(w, now)
		w.IncrementFrame()

	case world.PhaseFinished:
		s.snapshot(w, now)
		r.FinalSent = true
	}
}

func (s *SimulationSystem) snapshot(w *world.World, now time.Time) {
	var remaining int64
	if w.Phase() == world.PhaseCountdown {
		remaining = max(w.StartAt().Sub(now).Milliseconds(), 0)
	}
	elapsed := w.Elapsed(now)
	if w.Finished() {
		elapsed = w.Elapsed(w.EndedAt())
	}
	s.outbox.Add(protocol.Snapshot(w, remaining, elapsed.Milliseconds()))
}

func (s *SimulationSystem) emitOutcome(roomID int64, o physics.Outcome) {
	switch o.Kind {
	case physics.AsteroidDestroyed:
		event.Emit(s.bus, event.AsteroidDestroyed{RoomID: roomID, Username: o.Username, Points: o.Points})
	case physics.PlayerEliminated:
		event.Emit(s.bus, event.PlayerEliminated{RoomID: roomID, Username: o.Username, By: o.By})
	}
}
