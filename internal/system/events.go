package system

import (
	"time"

	"github.com/rockfall/arena/internal/core/event"
	coresys "github.com/rockfall/arena/internal/core/system"
	"go.uber.org/zap"
)

// EventDispatchSystem delivers last tick's events. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// SubscribeGameLog writes one log line per lifecycle event. Score credits
// go out at debug level, everything else at info.
func SubscribeGameLog(bus *event.Bus, log *zap.Logger) {
	event.Subscribe(bus, func(e event.PlayerJoined) {
		log.Info("player joined", zap.Int64("room", e.RoomID), zap.String("player", e.Username))
	})
	event.Subscribe(bus, func(e event.PlayerLeft) {
		log.Info("player left", zap.Int64("room", e.RoomID), zap.String("player", e.Username))
	})
	event.Subscribe(bus, func(e event.GameStarted) {
		log.Info("game underway", zap.Int64("room", e.RoomID), zap.Strings("players", e.Players))
	})
	event.Subscribe(bus, func(e event.AsteroidDestroyed) {
		log.Debug("score credited",
			zap.Int64("room", e.RoomID),
			zap.String("player", e.Username),
			zap.Int("points", e.Points),
		)
	})
	event.Subscribe(bus, func(e event.PlayerEliminated) {
		by := e.By
		if by == "" {
			by = "asteroid"
		}
		log.Info("player eliminated", zap.Int64("room", e.RoomID), zap.String("player", e.Username), zap.String("by", by))
	})
	event.Subscribe(bus, func(e event.GameEnded) {
		log.Info("game ended",
			zap.Int64("room", e.RoomID),
			zap.String("winner", e.Winner),
			zap.String("reason", e.Reason),
			zap.Any("scores", e.Scores),
		)
	})
}
