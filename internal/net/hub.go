package net

import (
	"sort"
	"sync"

	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// Peer is the hub's view of a live connection.
type Peer interface {
	ID() string
	Send(data []byte) error
	Close(code int, reason string)
}

// Binding ties a connection to a player in a room.
type Binding struct {
	RoomID   int64
	Username string
	Arch     world.Architecture
}

// Hub holds the three connection tables: id -> peer, id -> binding and
// room -> connection ids. Safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	peers    map[string]Peer
	bindings map[string]Binding
	rooms    map[int64]map[string]struct{}
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		peers:    make(map[string]Peer),
		bindings: make(map[string]Binding),
		rooms:    make(map[int64]map[string]struct{}),
		log:      log,
	}
}

func (h *Hub) Add(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	h.mu.Unlock()
}

// Bind attaches a registered connection to a room, moving it out of any
// room it was bound to before.
func (h *Hub) Bind(id string, b Binding) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[id]; !ok {
		return false
	}
	h.unbindLocked(id)
	h.bindings[id] = b
	set, ok := h.rooms[b.RoomID]
	if !ok {
		set = make(map[string]struct{})
		h.rooms[b.RoomID] = set
	}
	set[id] = struct{}{}
	return true
}

// Unbind detaches a connection from its room but keeps it registered.
func (h *Hub) Unbind(id string) (Binding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unbindLocked(id)
}

// Remove forgets a connection entirely and returns its last binding.
func (h *Hub) Remove(id string) (Binding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
	return h.unbindLocked(id)
}

func (h *Hub) unbindLocked(id string) (Binding, bool) {
	b, ok := h.bindings[id]
	if !ok {
		return Binding{}, false
	}
	delete(h.bindings, id)
	if set, ok := h.rooms[b.RoomID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(h.rooms, b.RoomID)
		}
	}
	return b, true
}

func (h *Hub) Binding(id string) (Binding, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.bindings[id]
	return b, ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// RoomSize is the number of connections bound to a room.
func (h *Hub) RoomSize(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomPeers returns the room's connections ordered by id.
func (h *Hub) RoomPeers(roomID int64) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.rooms[roomID]
	out := make([]Peer, 0, len(set))
	for id := range set {
		if p, ok := h.peers[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (h *Hub) BroadcastRoom(roomID int64, data []byte) {
	h.BroadcastRoomExcept(roomID, data, "")
}

// BroadcastRoomExcept sends to every connection in the room but one. A
// failed send is logged and the rest still receive the message.
func (h *Hub) BroadcastRoomExcept(roomID int64, data []byte, exceptID string) {
	for _, p := range h.RoomPeers(roomID) {
		if p.ID() == exceptID {
			continue
		}
		h.send(p, data)
	}
}

func (h *Hub) send(p Peer, data []byte) {
	if err := p.Send(data); err != nil {
		h.log.Warn("send failed", zap.String("conn", p.ID()), zap.Error(err))
	}
}
