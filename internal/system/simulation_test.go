package system

import (
	"testing"
	"time"

	"github.com/rockfall/arena/internal/result"
	"github.com/rockfall/arena/internal/system/mocks"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/mock/gomock"
)

func TestJoinStartsCountdownThenGame(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t, mocks.NewMockResultSink(ctrl), mocks.NewMockRoomReset(ctrl), nil)

	mode, _ := world.ParseWinMode("SCORE_50")
	r, _ := h.rooms.GetOrCreate(world.Config{RoomID: 5, WinMode: mode, MaxPlayers: 2})
	reply := make(chan error, 1)
	if err := r.Enqueue(world.JoinCommand{Username: "ann", Reply: reply}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	h.tick()

	if err := <-reply; err != nil {
		t.Fatalf("join reply: %v", err)
	}
	if r.World.Phase() != world.PhaseCountdown {
		t.Fatalf("phase = %s, want COUNTDOWN", r.World.Phase())
	}
	states := h.bcast.room(5)
	if len(states) != 1 || states[0].CountdownMs == nil || *states[0].CountdownMs != 3000 {
		t.Fatalf("countdown snapshot = %+v", states)
	}

	ticks := 0
	for r.World.Phase() == world.PhaseCountdown && ticks < 200 {
		h.tick()
		ticks++
	}
	if ticks != 75 {
		t.Fatalf("countdown took %d ticks, want 75", ticks)
	}
	last := h.bcast.room(5)
	if got := last[len(last)-1]; got.Phase != "IN_PROGRESS" || got.ElapsedMs == nil {
		t.Fatalf("first running snapshot = %+v", got)
	}
}

func TestJoinFullRoomIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t, mocks.NewMockResultSink(ctrl), mocks.NewMockRoomReset(ctrl), nil)

	r, _ := h.rooms.GetOrCreate(world.Config{RoomID: 1, MaxPlayers: 1})
	first, second := make(chan error, 1), make(chan error, 1)
	_ = r.Enqueue(world.JoinCommand{Username: "ann", Reply: first})
	_ = r.Enqueue(world.JoinCommand{Username: "bob", Reply: second})
	h.tick()

	if err := <-first; err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := <-second; err != world.ErrRoomFull {
		t.Fatalf("second join = %v, want ErrRoomFull", err)
	}
	if r.World.PlayerCount() != 1 {
		t.Fatalf("players = %d", r.World.PlayerCount())
	}
}

func TestScoreThresholdScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockResultSink(ctrl)
	reset := mocks.NewMockRoomReset(ctrl)
	h := newHarness(t, sink, reset, nil)

	var rec result.Record
	sink.EXPECT().Submit(gomock.Any()).Do(func(r result.Record) { rec = r }).Times(1)
	reset.EXPECT().ResetRoomAfterGame(int64(1)).Times(1)

	r := h.startedRoom(1, "SCORE_50", 2, "ann", "bob")
	w := r.World

	for kill := 1; kill <= 10; kill++ {
		plantKill(w, "ann", 60)
		h.tick()
		if got := w.Players["ann"].Score; got != 5*kill {
			t.Fatalf("after kill %d score = %d", kill, got)
		}
		if kill < 10 && w.Phase() != world.PhaseInProgress {
			t.Fatalf("game ended early at score %d", w.Players["ann"].Score)
		}
	}
	if w.Phase() != world.PhaseFinished {
		t.Fatalf("phase = %s, want FINISHED", w.Phase())
	}
	if rec.Metadata.Winner != "ann" || rec.Metadata.Architecture != "A" || rec.Metadata.WinMode != "SCORE_50" {
		t.Fatalf("record metadata = %+v", rec.Metadata)
	}
	if rec.Metadata.TotalFrames == nil || *rec.Metadata.TotalFrames != 9 {
		t.Fatalf("total frames = %v", rec.Metadata.TotalFrames)
	}
	if len(rec.Players) != 2 || rec.Players[0].Username != "ann" || rec.Players[0].Score != 50 {
		t.Fatalf("record players = %+v", rec.Players)
	}

	// Keep ticking through the grace period: no second record, one event,
	// exactly one extra FINISHED snapshot.
	for i := 0; i < 20; i++ {
		h.tick()
	}
	if len(h.ended) != 1 || h.ended[0].Winner != "ann" || h.ended[0].Reason != string(ReasonScoreReached) {
		t.Fatalf("GameEnded events = %+v", h.ended)
	}
	finished := 0
	for _, gs := range h.bcast.room(1) {
		if gs.Phase == "FINISHED" {
			finished++
		}
	}
	if finished != 2 {
		t.Fatalf("FINISHED snapshots = %d, want 2", finished)
	}

	for i := 0; i < 110; i++ {
		h.tick()
	}
	if _, ok := h.rooms.Get(1); ok {
		t.Fatalf("room not torn down after grace period")
	}
}

func TestAllDeadWinsOverScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockResultSink(ctrl)
	reset := mocks.NewMockRoomReset(ctrl)
	sink.EXPECT().Submit(gomock.Any()).Times(1)
	reset.EXPECT().ResetRoomAfterGame(gomock.Any()).Times(1)
	h := newHarness(t, sink, reset, nil)

	r := h.startedRoom(2, "SCORE_50", 2, "ann", "bob")
	w := r.World
	w.Players["ann"].Score = 80
	for _, p := range w.Players {
		p.HP = 1
		a := world.NewAsteroid(w.NextID(), p.Pos.X, 0, world.SizeBig)
		a.Pos.Y = p.Pos.Y
		w.AddAsteroid(a)
	}
	h.tick()
	h.tick()

	if w.Phase() != world.PhaseFinished {
		t.Fatalf("phase = %s", w.Phase())
	}
	if len(h.ended) != 1 || h.ended[0].Reason != string(ReasonAllDead) {
		t.Fatalf("GameEnded = %+v", h.ended)
	}
}

func TestFireRateLimitThroughCommands(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t, mocks.NewMockResultSink(ctrl), mocks.NewMockRoomReset(ctrl), nil)
	r := h.startedRoom(3, "SCORE_500", 2, "ann", "bob")

	t0 := h.clock
	for _, d := range []time.Duration{0, 150 * time.Millisecond, 200 * time.Millisecond} {
		_ = r.Enqueue(world.InputCommand{Username: "ann", Input: world.Input{Fire: true, At: t0.Add(d)}})
	}
	h.tick()
	owned := 0
	for _, b := range r.World.Bullets {
		if b.Owner == "ann" {
			owned++
		}
	}
	if owned != 2 {
		t.Fatalf("bullets = %d, want 2", owned)
	}
}

func TestInputIgnoredOutsideGame(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t, mocks.NewMockResultSink(ctrl), mocks.NewMockRoomReset(ctrl), nil)
	mode, _ := world.ParseWinMode("SCORE_50")
	r, _ := h.rooms.StartRoom(world.Config{RoomID: 4, WinMode: mode, MaxPlayers: 2}, []string{"ann"}, h.clock.Add(time.Hour))

	_ = r.Enqueue(world.InputCommand{Username: "ann", Input: world.Input{Right: true, Fire: true, At: h.clock}})
	h.tick()
	p := r.World.Players["ann"]
	if p.Vel != (world.Vec2{}) || len(r.World.Bullets) != 0 {
		t.Fatalf("countdown input applied: vel=%+v bullets=%d", p.Vel, len(r.World.Bullets))
	}
}

func TestLeaveCommandRemovesPlayer(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t, mocks.NewMockResultSink(ctrl), mocks.NewMockRoomReset(ctrl), nil)
	r := h.startedRoom(6, "SCORE_500", 3, "ann", "bob", "cid")

	_ = r.Enqueue(world.LeaveCommand{Username: "bob"})
	h.tick()
	if _, ok := r.World.Players["bob"]; ok {
		t.Fatalf("bob still in world")
	}
	if r.World.Phase() != world.PhaseInProgress {
		t.Fatalf("phase = %s", r.World.Phase())
	}
}

type panickyScorer struct{}

func (panickyScorer) AsteroidPoints(bool) int { panic("scoring table corrupt") }
func (panickyScorer) KillBonus() int          { return 50 }

func TestFaultInOneRoomDoesNotStopOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newHarness(t, mocks.NewMockResultSink(ctrl), mocks.NewMockRoomReset(ctrl), panickyScorer{})

	bad := h.startedRoom(1, "SCORE_500", 2, "ann", "bob")
	good := h.startedRoom(2, "SCORE_500", 2, "cid", "dee")
	badFrame, goodFrame := bad.World.Frame(), good.World.Frame()
	badStates := len(h.bcast.room(1))

	plantKill(bad.World, "ann", 60)
	h.tick()

	if bad.World.Frame() != badFrame {
		t.Fatalf("faulted room advanced to frame %d", bad.World.Frame())
	}
	if len(bad.World.Asteroids) != 1 || len(bad.World.Bullets) != 1 {
		t.Fatalf("faulted room not rolled back: asteroids=%d bullets=%d", len(bad.World.Asteroids), len(bad.World.Bullets))
	}
	for _, b := range bad.World.Bullets {
		if b.Pos.Y != 110 {
			t.Fatalf("bullet moved to %v during a rolled back tick", b.Pos.Y)
		}
	}
	if len(h.bcast.room(1)) != badStates {
		t.Fatalf("faulted room broadcast a partial snapshot")
	}
	if good.World.Frame() != goodFrame+1 {
		t.Fatalf("healthy room frame = %d, want %d", good.World.Frame(), goodFrame+1)
	}
}
