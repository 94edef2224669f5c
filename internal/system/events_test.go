package system

import (
	"testing"

	"github.com/rockfall/arena/internal/core/event"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGameLogCoversLifecycle(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus := event.NewBus()
	SubscribeGameLog(bus, zap.New(core))
	dispatch := NewEventDispatchSystem(bus)

	event.Emit(bus, event.PlayerJoined{RoomID: 1, Username: "ann"})
	event.Emit(bus, event.GameStarted{RoomID: 1, Players: []string{"ann", "bob"}})
	event.Emit(bus, event.AsteroidDestroyed{RoomID: 1, Username: "ann", Points: 5})
	event.Emit(bus, event.PlayerEliminated{RoomID: 1, Username: "bob"})
	event.Emit(bus, event.PlayerLeft{RoomID: 1, Username: "bob"})
	event.Emit(bus, event.GameEnded{RoomID: 1, Winner: "ann", Reason: "LAST_SURVIVOR"})
	dispatch.Update(0)

	for _, msg := range []string{"player joined", "game underway", "score credited", "player eliminated", "player left", "game ended"} {
		if logs.FilterMessage(msg).Len() != 1 {
			t.Errorf("missing %q log line", msg)
		}
	}
	elim := logs.FilterMessage("player eliminated").All()
	if len(elim) == 1 && elim[0].ContextMap()["by"] != "asteroid" {
		t.Errorf("elimination by = %v, want asteroid", elim[0].ContextMap()["by"])
	}
	if credit := logs.FilterMessage("score credited").All(); len(credit) == 1 && credit[0].Level != zapcore.DebugLevel {
		t.Errorf("score line level = %s", credit[0].Level)
	}
}
