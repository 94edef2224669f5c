package system

import (
	"time"

	"github.com/rockfall/arena/internal/core/event"
	coresys "github.com/rockfall/arena/internal/core/system"
	"github.com/rockfall/arena/internal/physics"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// InputSystem drains every room's command queue and applies the commands to
// its World. Phase 0 (Input). This is the only place connection intent
// reaches a World.
type InputSystem struct {
	rooms      *world.Manager
	engine     *physics.Engine
	bus        *event.Bus
	countdown  time.Duration
	maxPerTick int
	now        Clock
	log        *zap.Logger
}

func NewInputSystem(rooms *world.Manager, engine *physics.Engine, bus *event.Bus, countdown time.Duration, maxPerTick int, now Clock, log *zap.Logger) *InputSystem {
	return &InputSystem{
		rooms:      rooms,
		engine:     engine,
		bus:        bus,
		countdown:  countdown,
		maxPerTick: maxPerTick,
		now:        now,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	now := s.now()
	for _, r := range s.rooms.Rooms() {
		s.drainRoom(r, now)
	}
}

func (s *InputSystem) drainRoom(r *world.Room, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("command panic recovered", zap.Int64("room", r.ID()), zap.Any("panic", rec))
		}
	}()
	r.Drain(s.maxPerTick, func(cmd world.Command) {
		s.apply(r.World, cmd, now)
	})
}

func (s *InputSystem) apply(w *world.World, cmd world.Command, now time.Time) {
	switch c := cmd.(type) {
	case world.JoinCommand:
		err := s.join(w, c.Username, now)
		if c.Reply != nil {
			select {
			case c.Reply <- err:
			default:
			}
		}

	case world.InputCommand:
		if w.Phase() != world.PhaseInProgress {
			return
		}
		p, ok := w.Players[c.Username]
		if !ok || !p.Alive {
			return
		}
		s.engine.ApplyInput(p, c.Input)
		if c.Input.Fire && s.engine.Fire(w, p, c.Input.At) == nil {
			s.log.Debug("fire rejected", zap.Int64("room", w.RoomID()), zap.String("player", c.Username))
		}

	case world.LeaveCommand:
		if w.RemovePlayer(c.Username) {
			event.Emit(s.bus, event.PlayerLeft{RoomID: w.RoomID(), Username: c.Username})
			s.log.Info("player left room", zap.Int64("room", w.RoomID()), zap.String("player", c.Username))
		}
	}
}

func (s *InputSystem) join(w *world.World, username string, now time.Time) error {
	before := w.PlayerCount()
	if _, err := w.AddPlayer(username); err != nil {
		s.log.Warn("join rejected", zap.Int64("room", w.RoomID()), zap.String("player", username), zap.Error(err))
		return err
	}
	if w.PlayerCount() == before {
		return nil
	}
	event.Emit(s.bus, event.PlayerJoined{RoomID: w.RoomID(), Username: username})
	if w.Phase() == world.PhaseWaiting {
		if err := w.StartCountdown(now.Add(s.countdown)); err != nil {
			return err
		}
		s.log.Info("countdown started", zap.Int64("room", w.RoomID()), zap.Duration("countdown", s.countdown))
	}
	return nil
}
