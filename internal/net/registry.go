package net

import (
	"errors"
	"fmt"

	"github.com/rockfall/arena/internal/protocol"
	"go.uber.org/zap"
)

var ErrNotAllowed = errors.New("message not allowed in this state")

// HandlerFunc handles one decoded message for a session.
type HandlerFunc func(s *Session, env protocol.Envelope) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given states.
func (reg *Registry) Register(msgType string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[msgType] = &handlerEntry{fn: fn, allowedStates: allowed}
}

// Dispatch runs the handler for env.Type. Unknown types are malformed
// messages; known types sent in the wrong state return ErrNotAllowed.
func (reg *Registry) Dispatch(s *Session, env protocol.Envelope) error {
	entry, ok := reg.handlers[env.Type]
	if !ok {
		return fmt.Errorf("%w: unknown type %q", protocol.ErrMalformedMessage, env.Type)
	}
	if !entry.allowedStates[s.State()] {
		return fmt.Errorf("%w: %s in %s", ErrNotAllowed, env.Type, s.State())
	}
	return reg.safeCall(entry.fn, s, env)
}

// safeCall keeps a handler panic from taking the connection down.
func (reg *Registry) safeCall(fn HandlerFunc, s *Session, env protocol.Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", env.Type),
				zap.String("conn", s.ID()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", env.Type, rec)
		}
	}()
	return fn(s, env)
}
