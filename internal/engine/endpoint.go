package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config configures an Endpoint.
type Config struct {
	HandshakeTimeout time.Duration // Opening handshake deadline per dial
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound message size in bytes (0 = unlimited)
	QueueSize        int           // Initial event queue capacity
	SendQueue        int           // Max outbound messages pending per connection
	Header           http.Header   // Extra handshake headers
}

// DefaultSendQueue bounds per-connection outbound messages.
const DefaultSendQueue = 64

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		QueueSize:        4096,
		SendQueue:        DefaultSendQueue,
	}
}

// Endpoint is an Engine backed by gorilla/websocket.
type Endpoint struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	events   *Queue[func()]
	messages sync.Pool
	running  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conns   map[uuid.UUID]*conn
	stopped bool
}

var _ Engine = (*Endpoint)(nil)

// NewEndpoint creates an Endpoint. Connections may be requested before Run;
// their callbacks are delivered once the loop starts.
func NewEndpoint(cfg Config, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultSendQueue
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Endpoint{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		events: NewQueue[func()](cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[uuid.UUID]*conn),
	}
	e.messages.New = func() any { return new(Message) }
	return e
}

// Connect starts an asynchronous dial to uri bound to h.
func (e *Endpoint) Connect(uri string, h Handler) (Conn, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, ErrEngineStopped
	}
	c := newConn(e, uri, h)
	e.conns[c.id] = c
	e.mu.Unlock()

	go e.dial(c)

	return c, nil
}

// Run drains the event queue on the calling goroutine until Stop.
func (e *Endpoint) Run() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	e.logger.Debug("event loop started")

	for {
		ev, ok := e.events.Next()
		if !ok {
			e.logger.Debug("event loop stopped", "events", e.events.Stats().Taken)
			return nil
		}
		ev()
	}
}

// Stop aborts pending timers, closes open connections and ends Run once
// the loop has processed the shutdown. The loop must be running.
func (e *Endpoint) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.logger.Info("stopping engine", "connections", e.Len())

	// Abort in-flight dials.
	e.cancel()

	done := make(chan struct{})
	if !e.events.Post(func() {
		e.shutdown()
		close(done)
	}) {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.events.Close()
		return ctx.Err()
	}
}

// Len returns the number of connections that are dialing or open.
func (e *Endpoint) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// QueueStats exposes event queue statistics.
func (e *Endpoint) QueueStats() QueueStats {
	return e.events.Stats()
}

// shutdown runs on the loop.
func (e *Endpoint) shutdown() {
	e.mu.Lock()
	conns := make([]*conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	e.mu.Unlock()

	for _, c := range conns {
		c.abortTimers(ErrEngineStopped)
	}
	for _, c := range conns {
		c.terminate(nil)
	}

	e.events.Close()
}

// post queues fn for c. fn is skipped if c has terminated by the time the
// loop reaches it.
func (e *Endpoint) post(c *conn, fn func()) bool {
	return e.events.Post(func() {
		if c.state == stateClosed {
			return
		}
		fn()
	})
}

func (e *Endpoint) forget(c *conn) {
	e.mu.Lock()
	delete(e.conns, c.id)
	e.mu.Unlock()
}

func (e *Endpoint) dial(c *conn) {
	ws, _, err := e.dialer.DialContext(e.ctx, c.uri, e.cfg.Header)
	if err != nil {
		c.logger.Debug("dial failed", "error", err)
		e.post(c, func() { c.fail(err) })
		return
	}

	if e.cfg.ReadLimit > 0 {
		ws.SetReadLimit(e.cfg.ReadLimit)
	}
	if !c.attach(ws) {
		ws.Close()
		return
	}

	if !e.post(c, c.open) {
		ws.Close()
		return
	}

	go e.readLoop(c, ws)
	go e.writeLoop(c, ws)
}

// readLoop reads messages from ws and posts them to the loop.
func (e *Endpoint) readLoop(c *conn, ws *websocket.Conn) {
	for {
		mt, r, err := ws.NextReader()
		if err != nil {
			e.post(c, func() { c.terminate(err) })
			return
		}

		msg := e.messages.Get().(*Message)
		if _, err := msg.buf.ReadFrom(r); err != nil {
			e.recycle(msg)
			e.post(c, func() { c.terminate(err) })
			return
		}
		msg.Payload = msg.buf.Bytes()
		msg.Binary = mt == websocket.BinaryMessage
		msg.ReceivedAt = time.Now()

		if !e.post(c, func() { c.handler.OnMessage(c, msg) }) {
			return
		}
	}
}

// writeLoop drains c's outbound queue onto ws. The first write error ends
// the connection.
func (e *Endpoint) writeLoop(c *conn, ws *websocket.Conn) {
	for {
		out, ok := c.out.Next()
		if !ok {
			return
		}

		if e.cfg.WriteTimeout > 0 {
			ws.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
		}
		if err := ws.WriteMessage(out.mt, out.data); err != nil {
			c.logger.Debug("write failed", "error", err)
			c.out.Close()
			e.post(c, func() { c.terminate(err) })
			return
		}
	}
}

// maxPooledMessage bounds the buffer size kept in the message pool.
const maxPooledMessage = 1 << 20

func (e *Endpoint) recycle(msg *Message) {
	if msg == nil {
		return
	}
	if msg.buf.Cap() > maxPooledMessage {
		return
	}
	msg.reset()
	e.messages.Put(msg)
}
