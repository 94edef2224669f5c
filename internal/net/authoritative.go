package net

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rockfall/arena/internal/data"
	"github.com/rockfall/arena/internal/lobby"
	"github.com/rockfall/arena/internal/protocol"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// ErrRoomActive reports a start request for a room whose game is still live.
var ErrRoomActive = errors.New("room has a live game")

// Authoritative connects sessions to server simulated rooms. It never
// touches a World directly: joins, inputs and leaves become commands on the
// room's queue, applied by the game loop.
type Authoritative struct {
	rooms       *world.Manager
	hub         *Hub
	maps        *data.MapTable
	joinTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

func NewAuthoritative(rooms *world.Manager, hub *Hub, maps *data.MapTable, joinTimeout time.Duration, log *zap.Logger) *Authoritative {
	if joinTimeout <= 0 {
		joinTimeout = 2 * time.Second
	}
	return &Authoritative{
		rooms:       rooms,
		hub:         hub,
		maps:        maps,
		joinTimeout: joinTimeout,
		now:         time.Now,
		log:         log,
	}
}

// RoomConfig turns a roster entry into a World configuration.
func RoomConfig(spec lobby.RoomSpec, maps *data.MapTable) (world.Config, error) {
	mode, err := world.ParseWinMode(spec.WinMode)
	if err != nil {
		return world.Config{}, err
	}
	return world.Config{
		RoomID:     spec.RoomID,
		MapName:    spec.MapName,
		WinMode:    mode,
		MaxPlayers: spec.MaxPlayers,
		Arena:      maps.Arena(spec.MapName),
	}, nil
}

// Start creates the room with the roster already seated, counting down to
// startAt. A room still playing a game yields ErrRoomActive.
func (a *Authoritative) Start(spec lobby.RoomSpec, startAt time.Time) error {
	cfg, err := RoomConfig(spec, a.maps)
	if err != nil {
		return err
	}
	if _, created := a.rooms.StartRoom(cfg, spec.Players, startAt); !created {
		return fmt.Errorf("%w: %d", ErrRoomActive, spec.RoomID)
	}
	return nil
}

// Join seats the session's player in the room, creating the room if this
// is the first joiner, and waits for the game loop to confirm.
func (a *Authoritative) Join(ctx context.Context, s *Session, spec lobby.RoomSpec, username string) {
	cfg, err := RoomConfig(spec, a.maps)
	if err != nil {
		s.log.Error("room has unusable config", zap.Int64("room", spec.RoomID), zap.Error(err))
		s.reply(protocol.NewError("room misconfigured"))
		return
	}

	r, created := a.rooms.GetOrCreate(cfg)
	if created {
		s.log.Debug("room created by first joiner", zap.Int64("room", cfg.RoomID))
	}

	reply := make(chan error, 1)
	if err := r.Enqueue(world.JoinCommand{Username: username, Reply: reply}); err != nil {
		s.log.Warn("join not queued", zap.Int64("room", cfg.RoomID), zap.Error(err))
		s.reply(protocol.NewError("room busy, try again"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.joinTimeout)
	defer cancel()
	select {
	case err = <-reply:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.log.Warn("join rejected", zap.Int64("room", cfg.RoomID), zap.String("player", username), zap.Error(err))
		s.reply(protocol.NewError(joinErrorText(err)))
		return
	}

	b := Binding{RoomID: cfg.RoomID, Username: username, Arch: world.ArchAuthoritative}
	a.hub.Bind(s.ID(), b)
	s.joined(StateAuthoritative, a, b)
	s.log.Info("player joined")
	s.reply(protocol.Joined{
		Type:         protocol.TypeJoined,
		RoomID:       cfg.RoomID,
		Username:     username,
		Architecture: world.ArchAuthoritative.Code(),
	})
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, world.ErrRoomFull):
		return "room full"
	case errors.Is(err, world.ErrGameFinished):
		return "game already finished"
	case errors.Is(err, world.ErrRoomClosed):
		return "room closed"
	case errors.Is(err, context.DeadlineExceeded):
		return "join timed out"
	}
	return "join failed"
}

// Input turns PLAYER_INPUT into a command. The fire time is taken on
// arrival; client clocks are not trusted.
func (a *Authoritative) Input(s *Session, env protocol.Envelope) error {
	req, err := protocol.DecodeBody[protocol.InputRequest](env)
	if err != nil {
		return err
	}
	r, ok := a.rooms.Get(s.bind.RoomID)
	if !ok {
		return nil
	}
	cmd := world.InputCommand{
		Username: s.bind.Username,
		Input: world.Input{
			Up:    req.MoveUp,
			Down:  req.MoveDown,
			Left:  req.MoveLeft,
			Right: req.MoveRight,
			Fire:  req.Fire,
			At:    a.now(),
		},
	}
	if err := r.Enqueue(cmd); err != nil {
		s.log.Warn("input dropped", zap.Error(err))
	}
	return nil
}

// Leave removes the player from the World and the connection from the room.
func (a *Authoritative) Leave(s *Session) {
	b := s.bind
	if r, ok := a.rooms.Get(b.RoomID); ok {
		if err := r.Enqueue(world.LeaveCommand{Username: b.Username}); err != nil {
			s.log.Warn("leave dropped", zap.Error(err))
		}
	}
	a.hub.Unbind(s.ID())
	s.left()
	s.log.Info("player left", zap.Int64("room", b.RoomID), zap.String("player", b.Username))
	a.releaseIfEmpty(b.RoomID)
}

// Disconnect forgets the connection. The player stays in the World and may
// join again from a new connection.
func (a *Authoritative) Disconnect(s *Session) {
	a.releaseIfEmpty(s.bind.RoomID)
}

// releaseIfEmpty tears a room down once nobody is connected to it.
func (a *Authoritative) releaseIfEmpty(roomID int64) {
	if a.hub.RoomSize(roomID) > 0 {
		return
	}
	if a.rooms.Remove(roomID) {
		a.log.Info("room released, no connections left", zap.Int64("room", roomID))
	}
}
