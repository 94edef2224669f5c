package persist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rockfall/arena/internal/result"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]result.Record
	fail    int
	calls   int
}

func (f *fakeStore) InsertBatch(_ context.Context, recs []result.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return errors.New("connection reset")
	}
	f.batches = append(f.batches, append([]result.Record(nil), recs...))
	return nil
}

func (f *fakeStore) rooms() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for _, b := range f.batches {
		for _, r := range b {
			out = append(out, r.RoomID)
		}
	}
	return out
}

func record(room int64) result.Record {
	return result.Record{RoomID: room, Metadata: result.Metadata{Winner: "ann", Architecture: "A"}}
}

func TestWriterDrainsOnShutdown(t *testing.T) {
	store := &fakeStore{}
	w := NewResultWriter(store, WriterOptions{FlushEvery: time.Hour}, zap.NewNop())
	for i := int64(1); i <= 3; i++ {
		w.Submit(record(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := store.rooms()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("written rooms = %v", got)
	}
}

func TestWriterFlushesFullBatch(t *testing.T) {
	store := &fakeStore{}
	w := NewResultWriter(store, WriterOptions{BatchSize: 2, FlushEvery: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	w.Submit(record(1))
	w.Submit(record(2))
	deadline := time.Now().Add(2 * time.Second)
	for len(store.rooms()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(store.rooms()) != 2 {
		t.Fatalf("batch not flushed before shutdown")
	}
	cancel()
	<-done
}

func TestWriterRetriesThenSucceeds(t *testing.T) {
	store := &fakeStore{fail: 2}
	w := NewResultWriter(store, WriterOptions{Attempts: 3}, zap.NewNop())
	w.flush(context.Background(), []result.Record{record(7)})
	if store.calls != 3 || len(store.rooms()) != 1 {
		t.Fatalf("calls=%d written=%v", store.calls, store.rooms())
	}
}

func TestWriterLogsLostRecords(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := &fakeStore{fail: 10}
	w := NewResultWriter(store, WriterOptions{Attempts: 2}, zap.New(core))
	w.flush(context.Background(), []result.Record{record(4), record(5)})

	lost := logs.FilterMessage("game log lost").All()
	if len(lost) != 2 {
		t.Fatalf("lost entries = %d, want 2", len(lost))
	}
	if room := lost[0].ContextMap()["room"]; room != int64(4) {
		t.Fatalf("first lost room = %v", room)
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	w := NewResultWriter(&fakeStore{}, WriterOptions{QueueSize: 1}, zap.New(core))

	done := make(chan struct{})
	go func() {
		w.Submit(record(1))
		w.Submit(record(2))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	if n := logs.FilterMessage("result queue full, dropping record").Len(); n != 1 {
		t.Fatalf("drop logs = %d", n)
	}
}

func TestEncodeResultKeepsEmptyPlayers(t *testing.T) {
	data, err := encodeResult(result.Record{RoomID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if want := `"players":[]`; !strings.Contains(string(data), want) {
		t.Fatalf("payload %s missing %s", data, want)
	}
}
