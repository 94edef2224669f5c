package world

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRoomEnqueueAndDrain(t *testing.T) {
	m := NewManager(2, zap.NewNop())
	r, created := m.GetOrCreate(Config{RoomID: 1, MaxPlayers: 2})
	if !created {
		t.Fatalf("expected a new room")
	}
	if again, created := m.GetOrCreate(Config{RoomID: 1}); created || again != r {
		t.Fatalf("second GetOrCreate should return the same room")
	}

	if err := r.Enqueue(LeaveCommand{Username: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.Enqueue(LeaveCommand{Username: "b"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.Enqueue(LeaveCommand{Username: "c"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	var got []string
	n := r.Drain(0, func(cmd Command) { got = append(got, cmd.(LeaveCommand).Username) })
	if n != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("drained %d: %v", n, got)
	}
}

func TestRoomDrainRespectsLimit(t *testing.T) {
	m := NewManager(8, zap.NewNop())
	r, _ := m.GetOrCreate(Config{RoomID: 1})
	for i := 0; i < 5; i++ {
		_ = r.Enqueue(LeaveCommand{})
	}
	if n := r.Drain(3, func(Command) {}); n != 3 {
		t.Fatalf("drained %d, want 3", n)
	}
	if n := r.Drain(0, func(Command) {}); n != 2 {
		t.Fatalf("drained %d, want 2", n)
	}
}

func TestRemoveAnswersPendingJoins(t *testing.T) {
	m := NewManager(8, zap.NewNop())
	r, _ := m.GetOrCreate(Config{RoomID: 3})
	reply := make(chan error, 1)
	if err := r.Enqueue(JoinCommand{Username: "a", Reply: reply}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !m.Remove(3) {
		t.Fatalf("remove reported missing room")
	}
	if err := <-reply; !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("reply = %v, want ErrRoomClosed", err)
	}
	if err := r.Enqueue(LeaveCommand{}); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("enqueue after remove = %v", err)
	}
	if _, ok := m.Get(3); ok {
		t.Fatalf("room still registered")
	}
}

func TestScheduledRemoval(t *testing.T) {
	m := NewManager(8, zap.NewNop())
	m.GetOrCreate(Config{RoomID: 1})
	m.GetOrCreate(Config{RoomID: 2})
	now := time.Unix(500, 0)
	m.ScheduleRemoval(1, now.Add(5*time.Second))
	m.ScheduleRemoval(2, now.Add(5*time.Second))

	if due := m.RemoveDue(now.Add(4 * time.Second)); len(due) != 0 {
		t.Fatalf("removed early: %v", due)
	}

	// A forced removal cancels the pending one.
	m.Remove(2)
	if m.RemovalPending(2) {
		t.Fatalf("forced removal left a pending deadline")
	}
	r, created := m.GetOrCreate(Config{RoomID: 2})
	if !created || r.World.Phase() != PhaseWaiting {
		t.Fatalf("expected a fresh world for room 2")
	}

	due := m.RemoveDue(now.Add(5 * time.Second))
	if len(due) != 1 || due[0] != 1 {
		t.Fatalf("due = %v, want [1]", due)
	}
	if _, ok := m.Get(2); !ok {
		t.Fatalf("fresh room 2 removed by stale deadline")
	}
	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
}

func TestStartRoomSeatsRoster(t *testing.T) {
	m := NewManager(8, zap.NewNop())
	startAt := time.Unix(100, 0)
	r, created := m.StartRoom(Config{RoomID: 9, MaxPlayers: 2}, []string{"ann", "bob", "cid"}, startAt)
	if !created {
		t.Fatalf("expected a new room")
	}
	w := r.World
	if w.PlayerCount() != 2 || w.Phase() != PhaseCountdown || !w.StartAt().Equal(startAt) {
		t.Fatalf("players=%d phase=%s start=%v", w.PlayerCount(), w.Phase(), w.StartAt())
	}
	if _, created := m.StartRoom(Config{RoomID: 9}, nil, startAt); created {
		t.Fatalf("second StartRoom replaced the active room")
	}
}

func TestStartRoomReplacesFinishedRoom(t *testing.T) {
	m := NewManager(8, zap.NewNop())
	now := time.Unix(100, 0)
	old, _ := m.StartRoom(Config{RoomID: 7, MaxPlayers: 2}, []string{"ann", "bob"}, now)
	old.World.Finish(now)
	m.ScheduleRemoval(7, now.Add(5*time.Second))

	fresh, created := m.StartRoom(Config{RoomID: 7, MaxPlayers: 2}, []string{"ann", "bob"}, now.Add(time.Second))
	if !created || fresh == old {
		t.Fatalf("finished room was not replaced")
	}
	if fresh.World.Phase() != PhaseCountdown || fresh.World.PlayerCount() != 2 {
		t.Fatalf("fresh room phase=%s players=%d", fresh.World.Phase(), fresh.World.PlayerCount())
	}
	if m.RemovalPending(7) {
		t.Fatalf("old deadline carried over to the fresh room")
	}
	if err := old.Enqueue(LeaveCommand{}); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("enqueue on replaced room = %v", err)
	}

	if due := m.RemoveDue(now.Add(time.Hour)); len(due) != 0 {
		t.Fatalf("due = %v, want none", due)
	}
	if r, ok := m.Get(7); !ok || r != fresh {
		t.Fatalf("fresh room lost")
	}
}

func TestStartRoomKeepsLiveRoom(t *testing.T) {
	m := NewManager(8, zap.NewNop())
	live, _ := m.GetOrCreate(Config{RoomID: 4, MaxPlayers: 2})
	if r, created := m.StartRoom(Config{RoomID: 4, MaxPlayers: 2}, []string{"ann"}, time.Unix(1, 0)); created || r != live {
		t.Fatalf("StartRoom replaced a live room")
	}
	if live.World.Phase() != PhaseWaiting {
		t.Fatalf("live room phase = %s", live.World.Phase())
	}
}
