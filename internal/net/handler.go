package net

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rockfall/arena/internal/auth"
	"github.com/rockfall/arena/internal/lobby"
	"github.com/rockfall/arena/internal/protocol"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// Handler is the websocket endpoint. It registers connections, checks
// identity and room membership on join, and routes every later message to
// the architecture the session joined with.
type Handler struct {
	hub           *Hub
	registry      *Registry
	validator     auth.Validator
	roster        *lobby.Roster
	authoritative *Authoritative
	relay         *Relay
	upgrader      websocket.Upgrader
	connOpts      ConnOptions
	log           *zap.Logger
}

func NewHandler(hub *Hub, validator auth.Validator, roster *lobby.Roster, a *Authoritative, relay *Relay, opts ConnOptions, log *zap.Logger) *Handler {
	h := &Handler{
		hub:           hub,
		registry:      NewRegistry(log),
		validator:     validator,
		roster:        roster,
		authoritative: a,
		relay:         relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		connOpts: opts,
		log:      log,
	}
	h.registerHandlers()
	return h
}

func (h *Handler) registerHandlers() {
	reg := h.registry
	open := []SessionState{StateConnected}
	inA := []SessionState{StateAuthoritative}
	inB := []SessionState{StateRelay}
	inRoom := []SessionState{StateAuthoritative, StateRelay}

	reg.Register(protocol.TypeJoinGame, open, h.join)
	reg.Register(protocol.TypeJoinGameB, open, h.join)

	reg.Register(protocol.TypePlayerInput, inA, h.authoritative.Input)
	reg.Register(protocol.TypeLeaveGame, inRoom, func(s *Session, _ protocol.Envelope) error {
		s.mode.Leave(s)
		return nil
	})
	reg.Register(protocol.TypeGameEndVote, inB, h.relay.Vote)
	reg.Register(protocol.TypeP2PState, inB, h.relay.State)
	for _, t := range protocol.GameplayTypes() {
		reg.Register(t, inB, h.relay.Forward)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn := NewConn(ws, h.connOpts, h.log)
	h.Serve(r.Context(), conn)
}

// Serve runs one connection until it closes.
func (h *Handler) Serve(ctx context.Context, conn *Conn) {
	s := newSession(ctx, conn, h.log)
	h.hub.Add(conn)
	h.log.Info("connection opened", zap.String("conn", conn.ID()), zap.String("remote", conn.RemoteAddr()))
	s.reply(protocol.Connected{Type: protocol.TypeConnected, SessionID: conn.ID()})

	if err := conn.Serve(ctx, func(data []byte) { h.onMessage(s, data) }); err != nil {
		h.log.Debug("connection ended with error", zap.String("conn", conn.ID()), zap.Error(err))
	}
	h.onClose(s)
}

func (h *Handler) onMessage(s *Session, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		s.log.Warn("malformed message", zap.Error(err))
		s.reply(protocol.NewError("malformed message"))
		return
	}

	err = h.registry.Dispatch(s, env)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrMalformedMessage):
		s.log.Warn("malformed message", zap.String("type", env.Type), zap.Error(err))
		s.reply(protocol.NewError("malformed message"))
	case errors.Is(err, ErrNotAllowed):
		s.log.Warn("message rejected", zap.Error(err))
	default:
		s.log.Error("message handling failed", zap.String("type", env.Type), zap.Error(err))
	}
}

func (h *Handler) join(s *Session, env protocol.Envelope) error {
	req, err := protocol.DecodeBody[protocol.JoinRequest](env)
	if err != nil {
		return err
	}
	arch := world.ArchAuthoritative
	if env.Type == protocol.TypeJoinGameB {
		arch = world.ArchRelay
	}

	username, err := h.validator.Validate(req.Username, req.Token)
	if err != nil {
		s.log.Warn("join with invalid identity", zap.String("username", req.Username), zap.Error(err))
		s.reject(protocol.NewError("Invalid token"))
		return nil
	}
	member, ok := h.roster.Member(req.RoomID, username)
	if !ok {
		s.log.Warn("join by non-member", zap.Int64("room", req.RoomID), zap.String("username", username), zap.Error(lobby.ErrNotInRoom))
		s.reject(protocol.NewNotInRoom("Not in room"))
		return nil
	}
	spec, _ := h.roster.Spec(req.RoomID)
	if spec.Architecture != arch {
		s.log.Warn("join with wrong architecture",
			zap.Int64("room", req.RoomID),
			zap.String("want", spec.Architecture.Code()),
			zap.String("got", arch.Code()),
		)
		s.reply(protocol.NewError("room runs architecture " + spec.Architecture.Code()))
		return nil
	}

	switch arch {
	case world.ArchAuthoritative:
		h.authoritative.Join(s.ctx, s, spec, member)
	case world.ArchRelay:
		h.relay.Join(s, req.RoomID, member)
	}
	return nil
}

func (h *Handler) onClose(s *Session) {
	h.hub.Remove(s.ID())
	if s.mode != nil {
		s.mode.Disconnect(s)
	}
	h.log.Info("connection closed", zap.String("conn", s.ID()), zap.String("state", s.State().String()))
}
