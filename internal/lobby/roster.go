// Package lobby is the in-memory matchmaking roster: which players belong
// to which room and how the room is configured.
package lobby

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rockfall/arena/internal/auth"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// MaxPlayers is the seat limit of any room.
const MaxPlayers = world.MaxSeats

var (
	ErrNotInRoom      = errors.New("not in room")
	ErrUnknownRoom    = errors.New("unknown room")
	ErrInvalidRoom    = errors.New("invalid room")
	ErrAlreadyStarted = errors.New("room already started")
)

// RoomSpec is a room as matchmaking sees it.
type RoomSpec struct {
	RoomID       int64              `json:"roomId"`
	MapName      string             `json:"mapName"`
	WinMode      string             `json:"winMode"`
	MaxPlayers   int                `json:"maxPlayers"`
	Architecture world.Architecture `json:"-"`
	Players      []string           `json:"players"`
	Started      bool               `json:"started"`
}

// ArchCode is the architecture tag reported over HTTP.
func (s RoomSpec) ArchCode() string { return s.Architecture.Code() }

type Roster struct {
	mu    sync.RWMutex
	rooms map[int64]*RoomSpec
	log   *zap.Logger
}

func NewRoster(log *zap.Logger) *Roster {
	return &Roster{rooms: make(map[int64]*RoomSpec), log: log}
}

// Register creates or replaces a room that has not started.
func (r *Roster) Register(spec RoomSpec) error {
	if spec.RoomID <= 0 {
		return fmt.Errorf("%w: room id %d", ErrInvalidRoom, spec.RoomID)
	}
	if _, err := world.ParseWinMode(spec.WinMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	if spec.MaxPlayers < 1 || spec.MaxPlayers > MaxPlayers {
		return fmt.Errorf("%w: max players %d", ErrInvalidRoom, spec.MaxPlayers)
	}
	players := make([]string, 0, len(spec.Players))
	for _, p := range spec.Players {
		c := auth.Canonical(p)
		if c == "" || slices.Contains(players, c) {
			return fmt.Errorf("%w: player %q", ErrInvalidRoom, p)
		}
		players = append(players, c)
	}
	if len(players) > spec.MaxPlayers {
		return fmt.Errorf("%w: %d players for %d seats", ErrInvalidRoom, len(players), spec.MaxPlayers)
	}
	spec.Players = players
	spec.Started = false
	if spec.Architecture == 0 {
		spec.Architecture = world.ArchAuthoritative
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.rooms[spec.RoomID]; ok && old.Started {
		return fmt.Errorf("%w: %d", ErrAlreadyStarted, spec.RoomID)
	}
	r.rooms[spec.RoomID] = &spec
	r.log.Info("room registered",
		zap.Int64("room", spec.RoomID),
		zap.String("arch", spec.Architecture.Code()),
		zap.Strings("players", players),
	)
	return nil
}

// Spec returns a copy of the room's configuration.
func (r *Roster) Spec(roomID int64) (RoomSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[roomID]
	if !ok {
		return RoomSpec{}, false
	}
	out := *s
	out.Players = slices.Clone(s.Players)
	return out, true
}

func (r *Roster) Rooms() []RoomSpec {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]RoomSpec, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.Spec(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// Member returns the roster's spelling of username if they belong to the
// room.
func (r *Roster) Member(roomID int64, username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	i := slices.IndexFunc(s.Players, func(p string) bool { return auth.SameUser(p, username) })
	if i < 0 {
		return "", false
	}
	return s.Players[i], true
}

// MarkStarted flags the room as in a game and returns its spec.
func (r *Roster) MarkStarted(roomID int64) (RoomSpec, error) {
	r.mu.Lock()
	s, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return RoomSpec{}, fmt.Errorf("%w: %d", ErrUnknownRoom, roomID)
	}
	if s.Started {
		r.mu.Unlock()
		return RoomSpec{}, fmt.Errorf("%w: %d", ErrAlreadyStarted, roomID)
	}
	s.Started = true
	r.mu.Unlock()
	spec, _ := r.Spec(roomID)
	return spec, nil
}

// ResetRoomAfterGame makes the room startable again.
func (r *Roster) ResetRoomAfterGame(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rooms[roomID]; ok {
		s.Started = false
		r.log.Info("room reset after game", zap.Int64("room", roomID))
	}
}
