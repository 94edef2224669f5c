package net

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rockfall/arena/internal/protocol"
	"go.uber.org/zap"
)

// SessionState is where a connection is in the join handshake.
type SessionState int

const (
	StateConnected     SessionState = iota // open, not in a room
	StateAuthoritative                     // joined a server simulated room
	StateRelay                             // joined a relay room
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAuthoritative:
		return "Authoritative"
	case StateRelay:
		return "Relay"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// roomMode is the architecture a session joined with. It is set once by a
// successful join and answers the messages whose meaning differs between
// architectures.
type roomMode interface {
	Leave(s *Session)
	Disconnect(s *Session)
}

// Session is the per-connection protocol state. Only the connection's read
// goroutine touches it.
type Session struct {
	ctx   context.Context
	conn  Peer
	state SessionState
	mode  roomMode
	bind  Binding
	log   *zap.Logger
}

func newSession(ctx context.Context, conn Peer, log *zap.Logger) *Session {
	return &Session{ctx: ctx, conn: conn, log: log.With(zap.String("conn", conn.ID()))}
}

func (s *Session) ID() string          { return s.conn.ID() }
func (s *Session) State() SessionState { return s.state }
func (s *Session) Binding() Binding    { return s.bind }

func (s *Session) joined(state SessionState, mode roomMode, b Binding) {
	s.state, s.mode, s.bind = state, mode, b
	s.log = s.log.With(zap.Int64("room", b.RoomID), zap.String("player", b.Username))
}

func (s *Session) left() {
	s.state, s.mode, s.bind = StateConnected, nil, Binding{}
}

// reply sends msg to this connection only.
func (s *Session) reply(msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode reply", zap.Error(err))
		return
	}
	if err := s.conn.Send(data); err != nil {
		s.log.Debug("reply dropped", zap.Error(err))
	}
}

// reject replies and then closes the connection.
func (s *Session) reject(msg any) {
	s.reply(msg)
	s.conn.Close(websocket.ClosePolicyViolation, "")
}
