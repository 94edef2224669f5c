package persist

import (
	"context"
	"time"

	"github.com/rockfall/arena/internal/result"
	"go.uber.org/zap"
)

type batchInserter interface {
	InsertBatch(ctx context.Context, recs []result.Record) error
}

// WriterOptions tunes the result writer. Zero values take defaults.
type WriterOptions struct {
	QueueSize  int
	BatchSize  int
	FlushEvery time.Duration
	Attempts   int
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	return o
}

// ResultWriter persists game records off the game loop. Submit never
// blocks; a record that cannot be queued or written is logged and dropped.
type ResultWriter struct {
	store batchInserter
	queue chan result.Record
	opts  WriterOptions
	log   *zap.Logger
}

func NewResultWriter(store batchInserter, opts WriterOptions, log *zap.Logger) *ResultWriter {
	opts = opts.withDefaults()
	return &ResultWriter{
		store: store,
		queue: make(chan result.Record, opts.QueueSize),
		opts:  opts,
		log:   log,
	}
}

func (w *ResultWriter) Submit(rec result.Record) {
	select {
	case w.queue <- rec:
	default:
		w.log.Error("result queue full, dropping record",
			zap.Int64("room", rec.RoomID),
			zap.String("winner", rec.Metadata.Winner),
		)
	}
}

// Run writes queued records until ctx is done, then drains what is left.
func (w *ResultWriter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.FlushEvery)
	defer ticker.Stop()

	var buf []result.Record
	for {
		select {
		case rec := <-w.queue:
			buf = append(buf, rec)
			if len(buf) >= w.opts.BatchSize {
				w.flush(ctx, buf)
				buf = nil
			}
		case <-ticker.C:
			if len(buf) > 0 {
				w.flush(ctx, buf)
				buf = nil
			}
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case rec := <-w.queue:
					buf = append(buf, rec)
				default:
					drained = true
				}
			}
			if len(buf) > 0 {
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				w.flush(final, buf)
				cancel()
			}
			return nil
		}
	}
}

func (w *ResultWriter) flush(ctx context.Context, recs []result.Record) {
	var err error
	for attempt := 1; attempt <= w.opts.Attempts; attempt++ {
		if err = w.store.InsertBatch(ctx, recs); err == nil {
			w.log.Debug("game logs written", zap.Int("count", len(recs)))
			return
		}
		w.log.Warn("write game logs failed",
			zap.Int("attempt", attempt),
			zap.Int("count", len(recs)),
			zap.Error(err),
		)
		if attempt == w.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			attempt = w.opts.Attempts
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	for _, rec := range recs {
		w.log.Error("game log lost",
			zap.Int64("room", rec.RoomID),
			zap.String("winner", rec.Metadata.Winner),
			zap.String("architecture", rec.Metadata.Architecture),
			zap.Error(err),
		)
	}
}

// LogSink stands in for the writer when no database is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Submit(rec result.Record) {
	s.log.Info("game finished",
		zap.Int64("room", rec.RoomID),
		zap.String("winner", rec.Metadata.Winner),
		zap.String("win_mode", rec.Metadata.WinMode),
		zap.String("architecture", rec.Metadata.Architecture),
		zap.Int("players", len(rec.Players)),
	)
}
