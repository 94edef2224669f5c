package system

import (
	"time"

	coresys "github.com/rockfall/arena/internal/core/system"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// CleanupSystem removes finished rooms whose grace period has run out.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	rooms *world.Manager
	now   Clock
	log   *zap.Logger
}

func NewCleanupSystem(rooms *world.Manager, now Clock, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{rooms: rooms, now: now, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	for _, id := range s.rooms.RemoveDue(s.now()) {
		s.log.Debug("finished room torn down", zap.Int64("room", id))
	}
}
