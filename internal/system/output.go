package system

import (
	"time"

	coresys "github.com/rockfall/arena/internal/core/system"
	"github.com/rockfall/arena/internal/protocol"
	"go.uber.org/zap"
)

// Outbox collects snapshots produced during a tick. Game loop only.
type Outbox struct {
	pending []protocol.GameState
}

func (o *Outbox) Add(gs protocol.GameState) { o.pending = append(o.pending, gs) }
func (o *Outbox) Len() int                  { return len(o.pending) }

// Truncate drops everything added after the first n snapshots.
func (o *Outbox) Truncate(n int) {
	if n < len(o.pending) {
		o.pending = o.pending[:n]
	}
}

func (o *Outbox) take() []protocol.GameState {
	out := o.pending
	o.pending = nil
	return out
}

// OutputSystem encodes the tick's snapshots and broadcasts each to its
// room. Phase 4 (Output).
type OutputSystem struct {
	outbox *Outbox
	bcast  Broadcaster
	log    *zap.Logger
}

func NewOutputSystem(outbox *Outbox, bcast Broadcaster, log *zap.Logger) *OutputSystem {
	return &OutputSystem{outbox: outbox, bcast: bcast, log: log}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	for _, gs := range s.outbox.take() {
		data, err := protocol.Encode(gs)
		if err != nil {
			s.log.Error("encode snapshot", zap.Int64("room", gs.RoomID), zap.Error(err))
			continue
		}
		s.bcast.BroadcastRoom(gs.RoomID, data)
	}
}
