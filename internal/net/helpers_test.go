package net

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rockfall/arena/internal/auth"
	"go.uber.org/zap"
)

type fakePeer struct {
	id     string
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	fail   error
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, data)
	return nil
}

func (p *fakePeer) Close(int, string) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) messages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.sent...)
}

// types lists the "type" field of everything sent so far.
func (p *fakePeer) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range p.messages() {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(m, &head); err != nil {
			t.Fatalf("peer %s got non-JSON %q", p.id, m)
		}
		out = append(out, head.Type)
	}
	return out
}

func (p *fakePeer) last(t *testing.T, v any) {
	t.Helper()
	msgs := p.messages()
	if len(msgs) == 0 {
		t.Fatalf("peer %s received nothing", p.id)
	}
	if err := json.Unmarshal(msgs[len(msgs)-1], v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.sent = nil
	p.mu.Unlock()
}

// tokens accepts "<username>-token" for any username in the set.
type tokens map[string]bool

func (v tokens) Validate(username, token string) (string, error) {
	if !v[username] || token != username+"-token" {
		return "", auth.ErrInvalidIdentity
	}
	return auth.Canonical(username), nil
}

func testSession(t *testing.T, hub *Hub, id string) (*Session, *fakePeer) {
	t.Helper()
	p := newFakePeer(id)
	hub.Add(p)
	return newSession(context.Background(), p, zap.NewNop()), p
}
