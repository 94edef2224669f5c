package net

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("outbound queue full")
)

// ConnOptions tunes a websocket connection.
type ConnOptions struct {
	OutQueueSize   int
	ReadTimeout    time.Duration // also the idle limit: pongs extend it
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	CloseGrace     time.Duration
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.OutQueueSize <= 0 {
		o.OutQueueSize = 256
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.ReadTimeout {
		o.PingInterval = o.ReadTimeout * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = time.Second
	}
	return o
}

// Conn is one client websocket. Reads and writes each run in their own
// goroutine; Send never blocks the caller.
type Conn struct {
	id   string
	ws   *websocket.Conn
	opts ConnOptions

	out chan []byte

	closeCh    chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	closeFrame []byte

	log *zap.Logger
}

func NewConn(ws *websocket.Conn, opts ConnOptions, log *zap.Logger) *Conn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &Conn{
		id:      id,
		ws:      ws,
		opts:    opts,
		out:     make(chan []byte, opts.OutQueueSize),
		closeCh: make(chan struct{}),
		log:     log.With(zap.String("conn", id)),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Send queues a text message. A full queue closes the connection.
func (c *Conn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.log.Warn("outbound queue full, closing slow connection")
		c.Close(websocket.ClosePolicyViolation, "too slow")
		return ErrBackpressure
	}
}

// Close flushes queued messages, then sends a close frame with code and
// reason. Safe to call more than once.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeFrame = websocket.FormatCloseMessage(code, reason)
		close(c.closeCh)
	})
}

func (c *Conn) IsClosed() bool { return c.closed.Load() }

// Serve runs the read and write loops until the connection ends or ctx is
// cancelled. onMessage is called from the read goroutine, one message at a
// time.
func (c *Conn) Serve(ctx context.Context, onMessage func([]byte)) error {
	defer c.ws.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer c.Close(websocket.CloseNormalClosure, "")
		return c.readLoop(onMessage)
	})
	g.Go(c.writeLoop)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			c.Close(websocket.CloseGoingAway, "server shutting down")
		case <-c.closeCh:
		}
		return nil
	})
	return g.Wait()
}

func (c *Conn) readLoop(onMessage func([]byte)) error {
	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("read error", zap.Error(err))
			}
			return nil
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		if kind != websocket.TextMessage {
			c.log.Debug("ignoring non-text frame", zap.Int("kind", kind))
			continue
		}
		onMessage(data)
	}
}

func (c *Conn) writeLoop() error {
	ping := time.NewTicker(c.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case data := <-c.out:
			if err := c.write(data); err != nil {
				c.abort()
				return nil
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				c.abort()
				return nil
			}
		case <-c.closeCh:
			c.flush()
			return nil
		}
	}
}

// abort drops the transport without a close handshake, which also ends the
// read loop.
func (c *Conn) abort() {
	c.Close(websocket.CloseAbnormalClosure, "")
	_ = c.ws.Close()
}

// flush drains what is already queued and says goodbye.
func (c *Conn) flush() {
	for drained := false; !drained; {
		select {
		case data := <-c.out:
			if err := c.write(data); err != nil {
				_ = c.ws.Close()
				return
			}
		default:
			drained = true
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage, c.closeFrame, time.Now().Add(c.opts.WriteTimeout))
	// Give the peer a moment to answer the close before the read loop gives up.
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.CloseGrace))
}

func (c *Conn) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		if !c.closed.Load() {
			c.log.Debug("write error", zap.Error(err))
		}
		return err
	}
	return nil
}
