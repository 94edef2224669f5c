package net

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rockfall/arena/internal/lobby"
	"github.com/rockfall/arena/internal/protocol"
	"github.com/rockfall/arena/internal/result"
	"github.com/rockfall/arena/internal/system"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// RelayVariant selects how relay rooms are organised.
type RelayVariant int

const (
	// VariantHost: the first joiner simulates and streams P2P_STATE.
	VariantHost RelayVariant = iota
	// VariantGossip: every peer simulates its own objects, no host.
	VariantGossip
)

func ParseRelayVariant(s string) (RelayVariant, error) {
	switch s {
	case "host", "":
		return VariantHost, nil
	case "gossip":
		return VariantGossip, nil
	}
	return 0, fmt.Errorf("unknown relay variant %q", s)
}

func (v RelayVariant) archTag() string {
	if v == VariantGossip {
		return "B-Gossip"
	}
	return world.ArchRelay.Code()
}

// UnknownField fills result metadata a relay room has no roster entry for.
const UnknownField = "Unknown"

type relayMember struct {
	connID   string
	username string
}

type relayRoom struct {
	id        int64
	members   []relayMember // join order
	host      string
	votes     map[string]protocol.Vote
	startedAt time.Time
}

func (r *relayRoom) usernames() []string {
	out := make([]string, len(r.members))
	for i, m := range r.members {
		out[i] = m.username
	}
	return out
}

func (r *relayRoom) memberIndex(connID string) int {
	return slices.IndexFunc(r.members, func(m relayMember) bool { return m.connID == connID })
}

// allVoted reports whether every connected member has voted.
func (r *relayRoom) allVoted() bool {
	if len(r.members) == 0 || len(r.votes) == 0 {
		return false
	}
	for _, m := range r.members {
		if _, ok := r.votes[m.username]; !ok {
			return false
		}
	}
	return true
}

// Relay runs peer-to-peer rooms. The server never reads gameplay payloads:
// it forwards them, tracks membership and the host, and collects the end of
// game votes.
type Relay struct {
	mu      sync.Mutex
	rooms   map[int64]*relayRoom
	variant RelayVariant
	hub     *Hub
	roster  *lobby.Roster
	sink    system.ResultSink
	now     func() time.Time
	log     *zap.Logger
}

func NewRelay(variant RelayVariant, hub *Hub, roster *lobby.Roster, sink system.ResultSink, log *zap.Logger) *Relay {
	return &Relay{
		rooms:   make(map[int64]*relayRoom),
		variant: variant,
		hub:     hub,
		roster:  roster,
		sink:    sink,
		now:     time.Now,
		log:     log,
	}
}

// Count is the number of relay rooms with at least one member.
func (rl *Relay) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.rooms)
}

// Join adds the session to the room. A player joining again from a new
// connection takes over their old seat.
func (rl *Relay) Join(s *Session, roomID int64, username string) {
	rl.mu.Lock()
	room, ok := rl.rooms[roomID]
	if !ok {
		room = &relayRoom{id: roomID, votes: make(map[string]protocol.Vote), startedAt: rl.now()}
		rl.rooms[roomID] = room
	}
	if i := slices.IndexFunc(room.members, func(m relayMember) bool { return m.username == username }); i >= 0 {
		room.members[i].connID = s.ID()
	} else {
		room.members = append(room.members, relayMember{connID: s.ID(), username: username})
	}
	if rl.variant == VariantHost && room.host == "" {
		room.host = username
	}
	host, players := room.host, room.usernames()
	rl.mu.Unlock()

	b := Binding{RoomID: roomID, Username: username, Arch: world.ArchRelay}
	rl.hub.Bind(s.ID(), b)
	s.joined(StateRelay, rl, b)
	s.log.Info("player joined relay room", zap.String("host", host), zap.Int("members", len(players)))

	joined := protocol.JoinedB{
		Type:         protocol.TypeJoinedB,
		RoomID:       roomID,
		Username:     username,
		Architecture: rl.variant.archTag(),
	}
	if rl.variant == VariantHost {
		isHost := host == username
		joined.Host, joined.IsHost = host, &isHost
	} else {
		joined.Players = players
	}
	s.reply(joined)

	rl.hub.BroadcastRoomExcept(roomID, protocol.MustEncode(protocol.Presence{
		Type:     protocol.TypePlayerJoined,
		Username: username,
		Players:  players,
	}), s.ID())
}

// Forward relays a gameplay message, byte for byte, to the rest of the room.
func (rl *Relay) Forward(s *Session, env protocol.Envelope) error {
	s.log.Debug("relay", zap.String("type", env.Type), zap.Int("bytes", len(env.Raw)))
	rl.hub.BroadcastRoomExcept(s.bind.RoomID, env.Raw, s.ID())
	return nil
}

// State relays the host's P2P_STATE. Anyone else sending it is ignored.
func (rl *Relay) State(s *Session, env protocol.Envelope) error {
	rl.mu.Lock()
	room, ok := rl.rooms[s.bind.RoomID]
	isHost := ok && room.host != "" && room.host == s.bind.Username
	rl.mu.Unlock()
	if !isHost {
		s.log.Warn("P2P_STATE from non-host ignored")
		return nil
	}
	return rl.Forward(s, env)
}

// Vote records a GAME_END_VOTE. Votes are taken at face value.
func (rl *Relay) Vote(s *Session, env protocol.Envelope) error {
	v, err := protocol.DecodeBody[protocol.Vote](env)
	if err != nil {
		return err
	}
	if v.Timestamp == 0 {
		v.Timestamp = rl.now().UnixMilli()
	}
	s.log.Info("end of game vote",
		zap.String("reason", v.Reason),
		zap.Int("score", v.Score),
		zap.Int("hp", v.HP),
		zap.Bool("alive", v.Alive),
	)

	rl.mu.Lock()
	room, ok := rl.rooms[s.bind.RoomID]
	if !ok {
		rl.mu.Unlock()
		return nil
	}
	room.votes[s.bind.Username] = v
	end := rl.takeVotesLocked(room)
	rl.mu.Unlock()

	if end != nil {
		rl.finish(end)
	}
	return nil
}

func (rl *Relay) Leave(s *Session) {
	rl.detach(s)
	rl.hub.Unbind(s.ID())
	s.left()
}

func (rl *Relay) Disconnect(s *Session) {
	rl.detach(s)
}

// detach drops the session from its room, hands the host role on if needed
// and re-checks the vote now that one fewer member has to vote.
func (rl *Relay) detach(s *Session) {
	roomID, username := s.bind.RoomID, s.bind.Username

	rl.mu.Lock()
	room, ok := rl.rooms[roomID]
	if !ok {
		rl.mu.Unlock()
		return
	}
	i := room.memberIndex(s.ID())
	if i < 0 {
		rl.mu.Unlock()
		return
	}
	room.members = slices.Delete(room.members, i, i+1)
	if len(room.members) == 0 {
		delete(rl.rooms, roomID)
		rl.mu.Unlock()
		rl.log.Info("relay room emptied", zap.Int64("room", roomID))
		return
	}
	newHost := ""
	if room.host == username {
		room.host = room.members[0].username
		newHost = room.host
	}
	players := room.usernames()
	end := rl.takeVotesLocked(room)
	rl.mu.Unlock()

	rl.hub.BroadcastRoomExcept(roomID, protocol.MustEncode(protocol.Presence{
		Type:     protocol.TypePlayerLeft,
		Username: username,
		Players:  players,
	}), s.ID())
	if newHost != "" {
		rl.log.Info("relay host changed", zap.Int64("room", roomID), zap.String("host", newHost))
		rl.hub.BroadcastRoomExcept(roomID, protocol.MustEncode(protocol.HostChanged{
			Type: protocol.TypeHostChanged,
			Host: newHost,
		}), s.ID())
	}
	if end != nil {
		rl.finish(end)
	}
}

// gameEnd is a completed vote, detached from the room.
type gameEnd struct {
	roomID    int64
	votes     map[string]protocol.Vote
	startedAt time.Time
	endedAt   time.Time
}

// takeVotesLocked returns the finished vote and resets the room for the
// next game, or nil if someone still has to vote.
func (rl *Relay) takeVotesLocked(room *relayRoom) *gameEnd {
	if !room.allVoted() {
		return nil
	}
	now := rl.now()
	end := &gameEnd{roomID: room.id, votes: room.votes, startedAt: room.startedAt, endedAt: now}
	room.votes = make(map[string]protocol.Vote)
	room.startedAt = now
	return end
}

func (rl *Relay) finish(end *gameEnd) {
	reason := MajorityReason(end.votes)
	spec, known := rl.roster.Spec(end.roomID)
	rec := RelayRecord(end.roomID, end.votes, reason, spec, known, end.startedAt, end.endedAt)

	rl.log.Info("relay game finished",
		zap.Int64("room", end.roomID),
		zap.String("reason", reason),
		zap.String("winner", rec.Metadata.Winner),
		zap.Int("votes", len(end.votes)),
	)

	rl.guard(end.roomID, "submit result", func() { rl.sink.Submit(rec) })
	rl.guard(end.roomID, "reset room", func() { rl.roster.ResetRoomAfterGame(end.roomID) })
	rl.hub.BroadcastRoom(end.roomID, protocol.MustEncode(protocol.GameEnded{
		Type:   protocol.TypeGameEnded,
		Reason: reason,
		Votes:  end.votes,
	}))
}

func (rl *Relay) guard(roomID int64, what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			rl.log.Error("relay finish step panicked",
				zap.Int64("room", roomID),
				zap.String("step", what),
				zap.Any("panic", rec),
			)
		}
	}()
	fn()
}

// MajorityReason is the most voted reason. Ties go to the reason that
// sorts first.
func MajorityReason(votes map[string]protocol.Vote) string {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.Reason]++
	}
	best, bestN := "", 0
	for reason, n := range counts {
		if n > bestN || (n == bestN && reason < best) {
			best, bestN = reason, n
		}
	}
	if best == "" {
		return "UNKNOWN"
	}
	return best
}

// RelayRecord builds the result record of a relay game from the votes.
// Player state is whatever each peer reported.
func RelayRecord(roomID int64, votes map[string]protocol.Vote, reason string, spec lobby.RoomSpec, known bool, startedAt, endedAt time.Time) result.Record {
	names := make([]string, 0, len(votes))
	for u := range votes {
		names = append(names, u)
	}
	sort.Strings(names)

	elapsed := endedAt.Sub(startedAt).Milliseconds()
	players := make([]result.Player, 0, len(names))
	events := make(map[string]string, len(names))
	for _, u := range names {
		v := votes[u]
		players = append(players, result.Player{
			Username:      u,
			Score:         v.Score,
			HP:            v.HP,
			Alive:         v.Alive,
			ElapsedMillis: elapsed,
		})
		events[u] = v.Reason
	}

	meta := result.Metadata{
		Winner:       result.Winner(players),
		MapName:      UnknownField,
		WinMode:      UnknownField,
		MaxPlayers:   len(votes),
		Architecture: world.ArchRelay.Code(),
		FinalReason:  reason,
		Events:       events,
	}
	if known {
		if spec.MapName != "" {
			meta.MapName = spec.MapName
		}
		meta.WinMode = spec.WinMode
		meta.MaxPlayers = spec.MaxPlayers
	}
	return result.Record{
		RoomID:    roomID,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Players:   players,
		Metadata:  meta,
	}
}
