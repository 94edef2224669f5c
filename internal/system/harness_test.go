package system

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rockfall/arena/internal/core/event"
	coresys "github.com/rockfall/arena/internal/core/system"
	"github.com/rockfall/arena/internal/physics"
	"github.com/rockfall/arena/internal/protocol"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

const tick = 40 * time.Millisecond

type fakeBroadcaster struct {
	mu     sync.Mutex
	states map[int64][]protocol.GameState
}

func (b *fakeBroadcaster) BroadcastRoom(roomID int64, data []byte) {
	var gs protocol.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.states == nil {
		b.states = make(map[int64][]protocol.GameState)
	}
	b.states[roomID] = append(b.states[roomID], gs)
}

func (b *fakeBroadcaster) room(id int64) []protocol.GameState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.GameState(nil), b.states[id]...)
}

type harness struct {
	t      *testing.T
	clock  time.Time
	rooms  *world.Manager
	bus    *event.Bus
	engine *physics.Engine
	runner *coresys.Runner
	bcast  *fakeBroadcaster
	ended  []event.GameEnded
}

func newHarness(t *testing.T, sink ResultSink, reset RoomReset, scorer physics.Scorer) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		t:     t,
		clock: time.Unix(1_700_000_000, 0),
		rooms: world.NewManager(64, log),
		bus:   event.NewBus(),
		bcast: &fakeBroadcaster{},
	}
	event.Subscribe(h.bus, func(e event.GameEnded) { h.ended = append(h.ended, e) })

	now := func() time.Time { return h.clock }
	h.engine = physics.NewEngine(scorer, log)
	outbox := &Outbox{}
	fin := NewFinalizer(h.rooms, h.bus, sink, reset, 5*time.Second, log)

	h.runner = coresys.NewRunner()
	h.runner.Register(NewInputSystem(h.rooms, h.engine, h.bus, 3*time.Second, 0, now, log))
	h.runner.Register(NewEventDispatchSystem(h.bus))
	h.runner.Register(NewSimulationSystem(h.rooms, h.engine, fin, h.bus, outbox, now, log))
	h.runner.Register(NewOutputSystem(outbox, h.bcast, log))
	h.runner.Register(NewCleanupSystem(h.rooms, now, log))
	return h
}

func (h *harness) tick() {
	h.clock = h.clock.Add(tick)
	h.runner.Tick(tick)
}

// startedRoom seats players and lets the countdown expire on the next tick.
func (h *harness) startedRoom(id int64, mode string, maxPlayers int, players ...string) *world.Room {
	h.t.Helper()
	wm, err := world.ParseWinMode(mode)
	if err != nil {
		h.t.Fatalf("win mode: %v", err)
	}
	r, _ := h.rooms.StartRoom(world.Config{RoomID: id, WinMode: wm, MaxPlayers: maxPlayers, Seed: 1}, players, h.clock)
	h.tick()
	if r.World.Phase() != world.PhaseInProgress {
		h.t.Fatalf("room %d phase = %s after countdown", id, r.World.Phase())
	}
	return r
}

// plantKill puts a small asteroid with a bullet from owner right under it,
// far from the players, so the pair collides on the next tick.
func plantKill(w *world.World, owner string, x float64) {
	a := world.NewAsteroid(w.NextID(), x, 0, world.SizeSmall)
	a.Pos.Y = 100
	w.AddAsteroid(a)
	w.AddBullet(&world.Bullet{
		ID:     w.NextID(),
		Owner:  owner,
		Pos:    world.Vec2{X: x, Y: 110},
		Vel:    world.Vec2{Y: -world.BulletSpeed},
		Damage: world.BulletDamage,
	})
}
