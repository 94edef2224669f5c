package net

import (
	"bytes"
	"testing"
	"time"

	"github.com/rockfall/arena/internal/lobby"
	"github.com/rockfall/arena/internal/protocol"
	"github.com/rockfall/arena/internal/result"
	"github.com/rockfall/arena/internal/system/mocks"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type relayFixture struct {
	hub    *Hub
	roster *lobby.Roster
	relay  *Relay
	sink   *mocks.MockResultSink
}

func newRelayFixture(t *testing.T, variant RelayVariant) *relayFixture {
	t.Helper()
	log := zap.NewNop()
	roster := lobby.NewRoster(log)
	if err := roster.Register(lobby.RoomSpec{
		RoomID: 1, MapName: "classic", WinMode: "SCORE_100", MaxPlayers: 3,
		Architecture: world.ArchRelay, Players: []string{"ann", "bob", "cid"},
	}); err != nil {
		t.Fatal(err)
	}
	hub := NewHub(log)
	sink := mocks.NewMockResultSink(gomock.NewController(t))
	rl := NewRelay(variant, hub, roster, sink, log)
	base := time.Unix(1_700_000_000, 0)
	step := 0
	rl.now = func() time.Time { step++; return base.Add(time.Duration(step) * time.Second) }
	return &relayFixture{hub: hub, roster: roster, relay: rl, sink: sink}
}

func mustDecode(t *testing.T, raw string) protocol.Envelope {
	t.Helper()
	env, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestRelayHostJoinAndForward(t *testing.T) {
	f := newRelayFixture(t, VariantHost)
	ann, annPeer := testSession(t, f.hub, "c-ann")
	bob, bobPeer := testSession(t, f.hub, "c-bob")

	f.relay.Join(ann, 1, "ann")
	var joined protocol.JoinedB
	annPeer.last(t, &joined)
	if joined.Host != "ann" || joined.IsHost == nil || !*joined.IsHost || joined.Architecture != "B" {
		t.Fatalf("ann JOINED_B = %+v", joined)
	}

	f.relay.Join(bob, 1, "bob")
	bobPeer.last(t, &joined)
	if joined.Host != "ann" || *joined.IsHost {
		t.Fatalf("bob JOINED_B = %+v", joined)
	}
	var presence protocol.Presence
	annPeer.last(t, &presence)
	if presence.Type != protocol.TypePlayerJoined || presence.Username != "bob" || len(presence.Players) != 2 {
		t.Fatalf("ann saw %+v", presence)
	}
	if ann.State() != StateRelay || f.hub.RoomSize(1) != 2 {
		t.Fatalf("sessions not bound")
	}

	annPeer.reset()
	bobPeer.reset()
	raw := `{"type":"PLAYER_POSITION","x":12.5,"y":400,"extra":{"keep":"me"}}`
	if err := f.relay.Forward(bob, mustDecode(t, raw)); err != nil {
		t.Fatal(err)
	}
	if got := annPeer.messages(); len(got) != 1 || !bytes.Equal(got[0], []byte(raw)) {
		t.Fatalf("ann got %q, want verbatim %q", got, raw)
	}
	if len(bobPeer.messages()) != 0 {
		t.Fatalf("sender received its own message")
	}

	state := `{"type":"P2P_STATE","frame":3}`
	_ = f.relay.State(bob, mustDecode(t, state))
	if len(annPeer.messages()) != 1 {
		t.Fatalf("non-host state was relayed")
	}
	_ = f.relay.State(ann, mustDecode(t, state))
	if got := bobPeer.messages(); len(got) != 1 || string(got[0]) != state {
		t.Fatalf("host state not relayed verbatim: %q", got)
	}
}

func TestRelayHostHandover(t *testing.T) {
	f := newRelayFixture(t, VariantHost)
	ann, _ := testSession(t, f.hub, "c-ann")
	bob, bobPeer := testSession(t, f.hub, "c-bob")
	cid, cidPeer := testSession(t, f.hub, "c-cid")
	f.relay.Join(ann, 1, "ann")
	f.relay.Join(bob, 1, "bob")
	f.relay.Join(cid, 1, "cid")
	bobPeer.reset()
	cidPeer.reset()

	f.relay.Leave(ann)

	want := []string{protocol.TypePlayerLeft, protocol.TypeHostChanged}
	for _, p := range []*fakePeer{bobPeer, cidPeer} {
		got := p.types(t)
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("%s got %v, want %v", p.ID(), got, want)
		}
	}
	var hc protocol.HostChanged
	cidPeer.last(t, &hc)
	if hc.Host != "bob" {
		t.Fatalf("new host = %q, want earliest remaining joiner bob", hc.Host)
	}
	if ann.State() != StateConnected || f.hub.RoomSize(1) != 2 {
		t.Fatalf("leaver still bound")
	}

	// only the new host may stream state now
	bobPeer.reset()
	cidPeer.reset()
	_ = f.relay.State(bob, mustDecode(t, `{"type":"P2P_STATE"}`))
	if len(cidPeer.messages()) != 1 {
		t.Fatalf("new host state not relayed")
	}
}

func TestRelayVotesEndGame(t *testing.T) {
	f := newRelayFixture(t, VariantGossip)
	if _, err := f.roster.MarkStarted(1); err != nil {
		t.Fatal(err)
	}
	ann, annPeer := testSession(t, f.hub, "c-ann")
	bob, bobPeer := testSession(t, f.hub, "c-bob")
	f.relay.Join(ann, 1, "ann")
	f.relay.Join(bob, 1, "bob")

	var joined protocol.JoinedB
	bobPeer.last(t, &joined)
	if joined.Architecture != "B-Gossip" || joined.IsHost != nil || len(joined.Players) != 2 {
		t.Fatalf("gossip JOINED_B = %+v", joined)
	}

	var rec result.Record
	f.sink.EXPECT().Submit(gomock.Any()).Do(func(r result.Record) { rec = r }).Times(1)

	_ = f.relay.Vote(ann, mustDecode(t, `{"type":"GAME_END_VOTE","reason":"ALL_DEAD","score":30,"hp":0,"alive":false,"timestamp":1}`))
	if rec.RoomID != 0 {
		t.Fatalf("game ended before every member voted")
	}
	_ = f.relay.Vote(bob, mustDecode(t, `{"type":"GAME_END_VOTE","reason":"ALL_DEAD","score":50,"hp":0,"alive":false,"timestamp":2}`))

	if rec.Metadata.Winner != "bob" || rec.Metadata.FinalReason != "ALL_DEAD" || rec.Metadata.Architecture != "B" {
		t.Fatalf("metadata = %+v", rec.Metadata)
	}
	if rec.Metadata.MapName != "classic" || rec.Metadata.WinMode != "SCORE_100" || rec.Metadata.MaxPlayers != 3 {
		t.Fatalf("roster fields = %+v", rec.Metadata)
	}
	if rec.Metadata.TotalFrames != nil || rec.Metadata.Events["ann"] != "ALL_DEAD" {
		t.Fatalf("relay record shape = %+v", rec.Metadata)
	}
	if len(rec.Players) != 2 || rec.Players[1].Username != "bob" || rec.Players[1].Score != 50 {
		t.Fatalf("players = %+v", rec.Players)
	}

	for _, p := range []*fakePeer{annPeer, bobPeer} {
		var ended protocol.GameEnded
		p.last(t, &ended)
		if ended.Type != protocol.TypeGameEnded || ended.Reason != "ALL_DEAD" || len(ended.Votes) != 2 {
			t.Fatalf("%s GAME_ENDED = %+v", p.ID(), ended)
		}
	}
	if s, _ := f.roster.Spec(1); s.Started {
		t.Fatalf("roster not reset")
	}
}

func TestRelayLeaveCompletesVote(t *testing.T) {
	f := newRelayFixture(t, VariantGossip)
	ann, annPeer := testSession(t, f.hub, "c-ann")
	bob, _ := testSession(t, f.hub, "c-bob")
	f.relay.Join(ann, 1, "ann")
	f.relay.Join(bob, 1, "bob")

	f.sink.EXPECT().Submit(gomock.Any()).Times(1)
	_ = f.relay.Vote(ann, mustDecode(t, `{"type":"GAME_END_VOTE","reason":"SCORE_REACHED","score":100,"hp":2,"alive":true}`))
	f.relay.Disconnect(bob)

	var ended protocol.GameEnded
	annPeer.last(t, &ended)
	if ended.Reason != "SCORE_REACHED" {
		t.Fatalf("GAME_ENDED = %+v", ended)
	}
}

func TestMajorityReason(t *testing.T) {
	tests := []struct {
		name    string
		reasons []string
		want    string
	}{
		{"none", nil, "UNKNOWN"},
		{"single", []string{"TIME_UP"}, "TIME_UP"},
		{"majority", []string{"ALL_DEAD", "TIME_UP", "ALL_DEAD"}, "ALL_DEAD"},
		{"tie sorts first", []string{"TIME_UP", "ALL_DEAD"}, "ALL_DEAD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes := make(map[string]protocol.Vote)
			for i, r := range tt.reasons {
				votes[string(rune('a'+i))] = protocol.Vote{Reason: r}
			}
			if got := MajorityReason(votes); got != tt.want {
				t.Fatalf("MajorityReason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelayRecordWithoutRoster(t *testing.T) {
	start := time.Unix(100, 0)
	votes := map[string]protocol.Vote{
		"zed": {Reason: "ALL_DEAD", Score: 20},
		"amy": {Reason: "ALL_DEAD", Score: 20},
	}
	rec := RelayRecord(9, votes, "ALL_DEAD", lobby.RoomSpec{}, false, start, start.Add(90*time.Second))
	if rec.Metadata.MapName != UnknownField || rec.Metadata.WinMode != UnknownField || rec.Metadata.MaxPlayers != 2 {
		t.Fatalf("metadata = %+v", rec.Metadata)
	}
	if rec.Metadata.Winner != "amy" {
		t.Fatalf("tie winner = %q", rec.Metadata.Winner)
	}
	if rec.Players[0].ElapsedMillis != 90_000 {
		t.Fatalf("elapsed = %d", rec.Players[0].ElapsedMillis)
	}
}
