package world

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull  = errors.New("room command queue full")
	ErrRoomClosed = errors.New("room closed")
)

// Room pairs a World with its command queue. Connections only ever write to
// the queue; the game loop is the single reader and the only goroutine that
// touches World.
type Room struct {
	World *World

	// FinalSent is set by the game loop once the FINISHED snapshot went out.
	FinalSent bool

	commands chan Command
	closed   atomic.Bool
}

func (r *Room) ID() int64 { return r.World.roomID }

// Enqueue queues cmd without blocking.
func (r *Room) Enqueue(cmd Command) error {
	if r.closed.Load() {
		return ErrRoomClosed
	}
	select {
	case r.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain hands queued commands to fn, at most max of them (0 means all that
// are queued right now). Returns the number drained.
func (r *Room) Drain(max int, fn func(Command)) int {
	n := 0
	for max <= 0 || n < max {
		select {
		case cmd := <-r.commands:
			fn(cmd)
			n++
		default:
			return n
		}
	}
	return n
}

// Manager is the table of active authoritative rooms plus their pending
// deferred removals.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[int64]*Room
	removals  map[int64]time.Time
	queueSize int
	log       *zap.Logger
}

func NewManager(queueSize int, log *zap.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Manager{
		rooms:     make(map[int64]*Room),
		removals:  make(map[int64]time.Time),
		queueSize: queueSize,
		log:       log,
	}
}

// GetOrCreate returns the room for cfg.RoomID, creating a fresh World if
// none is active. The bool reports whether the room was created.
func (m *Manager) GetOrCreate(cfg Config) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[cfg.RoomID]; ok {
		return r, false
	}
	r := &Room{
		World:    New(cfg),
		commands: make(chan Command, m.queueSize),
	}
	m.rooms[cfg.RoomID] = r
	m.log.Info("room created",
		zap.Int64("room", cfg.RoomID),
		zap.String("map", cfg.MapName),
		zap.Stringer("win_mode", cfg.WinMode),
		zap.Int("max_players", cfg.MaxPlayers),
	)
	return r, true
}

// StartRoom creates a room with players already seated and the countdown
// running until startAt. A room that is only waiting out its removal grace
// period is replaced. A live room is returned unchanged and the bool is
// false.
func (m *Manager) StartRoom(cfg Config, players []string, startAt time.Time) (*Room, bool) {
	m.mu.Lock()
	var retired *Room
	if r, ok := m.rooms[cfg.RoomID]; ok {
		if _, pending := m.removals[cfg.RoomID]; !pending {
			m.mu.Unlock()
			return r, false
		}
		retired = r
		delete(m.rooms, cfg.RoomID)
		delete(m.removals, cfg.RoomID)
	}
	w := New(cfg)
	for _, u := range players {
		if _, err := w.AddPlayer(u); err != nil {
			m.log.Warn("roster player not seated", zap.Int64("room", cfg.RoomID), zap.String("player", u), zap.Error(err))
		}
	}
	if w.PlayerCount() > 0 {
		_ = w.StartCountdown(startAt)
	}
	r := &Room{World: w, commands: make(chan Command, m.queueSize)}
	m.rooms[cfg.RoomID] = r
	m.mu.Unlock()

	if retired != nil {
		retired.close()
		m.log.Info("finished room replaced", zap.Int64("room", cfg.RoomID))
	}
	m.log.Info("room started",
		zap.Int64("room", cfg.RoomID),
		zap.Int("players", w.PlayerCount()),
		zap.Time("start_at", startAt),
	)
	return r, true
}

func (m *Manager) Get(roomID int64) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Rooms returns a snapshot of active rooms ordered by id. The game loop
// iterates the snapshot without holding the lock.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove deletes a room immediately and cancels any pending removal.
// Queued joins are answered with ErrRoomClosed.
func (m *Manager) Remove(roomID int64) bool {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	delete(m.removals, roomID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	r.close()
	m.log.Info("room removed", zap.Int64("room", roomID))
	return true
}

func (r *Room) close() {
	r.closed.Store(true)
	r.Drain(0, func(cmd Command) {
		if j, ok := cmd.(JoinCommand); ok && j.Reply != nil {
			select {
			case j.Reply <- ErrRoomClosed:
			default:
			}
		}
	})
}

// ScheduleRemoval arranges for the room to be removed at or after at.
// A later call replaces the deadline.
func (m *Manager) ScheduleRemoval(roomID int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return
	}
	m.removals[roomID] = at
}

// RemovalPending reports whether a deferred removal is scheduled.
func (m *Manager) RemovalPending(roomID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.removals[roomID]
	return ok
}

// RemoveDue removes every room whose deferred removal deadline has passed.
// Due rooms are detached under one lock so a room replaced in the meantime
// is never taken down by its predecessor's deadline.
func (m *Manager) RemoveDue(now time.Time) []int64 {
	m.mu.Lock()
	var due []int64
	for id, at := range m.removals {
		if !now.Before(at) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	detached := make([]*Room, 0, len(due))
	for _, id := range due {
		if r, ok := m.rooms[id]; ok {
			detached = append(detached, r)
		}
		delete(m.rooms, id)
		delete(m.removals, id)
	}
	m.mu.Unlock()

	for _, r := range detached {
		r.close()
		m.log.Info("room removed", zap.Int64("room", r.ID()))
	}
	return due
}
