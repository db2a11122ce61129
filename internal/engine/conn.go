package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

// conn implements Conn. state is only touched on the event loop.
type conn struct {
	id       uuid.UUID
	uri      string
	endpoint *Endpoint
	handler  Handler
	logger   *slog.Logger

	state connState

	mu     sync.RWMutex
	ws     *websocket.Conn
	dead   bool // set once terminated; a late dial result is discarded
	timers map[*timer]struct{}

	// Drained by the connection's writer goroutine
	out *Queue[outbound]
}

// outbound is a data message waiting for the writer.
type outbound struct {
	mt   int
	data []byte
}

var _ Conn = (*conn)(nil)

func newConn(e *Endpoint, uri string, h Handler) *conn {
	id := uuid.New()
	return &conn{
		id:       id,
		uri:      uri,
		endpoint: e,
		handler:  h,
		logger:   e.logger.With("conn_id", id),
		timers:   make(map[*timer]struct{}),
		out:      NewQueue[outbound](e.cfg.SendQueue),
	}
}

func (c *conn) ID() uuid.UUID { return c.id }

func (c *conn) URI() string { return c.uri }

// Send queues one message for the writer goroutine and returns without
// touching the socket.
func (c *conn) Send(payload []byte, binary bool) error {
	c.mu.RLock()
	ws, dead := c.ws, c.dead
	c.mu.RUnlock()
	if ws == nil || dead {
		return ErrNotConnected
	}

	mt := websocket.TextMessage
	if binary {
		mt = websocket.BinaryMessage
	}

	limit := c.endpoint.cfg.SendQueue
	err := c.out.TryPost(outbound{mt: mt, data: append([]byte(nil), payload...)}, limit)
	switch {
	case errors.Is(err, ErrQueueFull):
		return fmt.Errorf("%w: %d messages pending", ErrSendQueueFull, limit)
	case err != nil:
		return ErrNotConnected
	}
	return nil
}

func (c *conn) Recycle(msg *Message) {
	c.endpoint.recycle(msg)
}

// Close sends a close frame and closes the socket. The read loop observes
// the closed socket and delivers OnClose.
func (c *conn) Close() error {
	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws == nil {
		return ErrNotConnected
	}

	// WriteControl may run concurrently with the writer goroutine.
	ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return ws.Close()
}

func (c *conn) AfterFunc(d time.Duration, fn func(err error)) Timer {
	t := &timer{conn: c, fn: fn}

	c.mu.Lock()
	c.timers[t] = struct{}{}
	c.mu.Unlock()

	t.t = time.AfterFunc(d, func() {
		c.endpoint.post(c, t.fire)
	})
	return t
}

// attach stores the dialed socket. It reports false if the connection was
// terminated while dialing.
func (c *conn) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return false
	}
	c.ws = ws
	return true
}

// markDead flags the connection terminated, stops the writer and returns
// the socket, if any.
func (c *conn) markDead() *websocket.Conn {
	c.out.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
	return c.ws
}

// open runs on the loop once the handshake succeeded.
func (c *conn) open() {
	c.state = stateOpen
	c.logger.Debug("connection open", "uri", c.uri)
	c.handler.OnOpen(c)
}

// fail runs on the loop when the dial did not succeed.
func (c *conn) fail(err error) {
	c.state = stateClosed
	c.markDead()
	c.endpoint.forget(c)
	c.handler.OnFail(c, err)
}

// terminate runs on the loop. err is the read error that ended the
// connection, nil for engine shutdown.
func (c *conn) terminate(err error) {
	if c.state == stateClosed {
		return
	}
	wasOpen := c.state == stateOpen
	c.state = stateClosed

	c.abortTimers(nil)
	c.endpoint.forget(c)

	if ws := c.markDead(); ws != nil {
		ws.Close()
	}

	if !wasOpen {
		c.handler.OnFail(c, ErrEngineStopped)
		return
	}

	if err != nil && !isNormalClose(err) {
		c.logger.Debug("connection closed", "error", err)
	} else {
		c.logger.Debug("connection closed")
	}
	c.handler.OnClose(c)
}

// abortTimers cancels every pending timer. With a non-nil err the callbacks
// run immediately with that error; with nil they are dropped.
func (c *conn) abortTimers(err error) {
	c.mu.Lock()
	pending := make([]*timer, 0, len(c.timers))
	for t := range c.timers {
		pending = append(pending, t)
	}
	c.mu.Unlock()

	for _, t := range pending {
		if !t.Stop() {
			continue
		}
		if err != nil {
			t.fn(err)
		}
	}
}

func (c *conn) untrack(t *timer) {
	c.mu.Lock()
	delete(c.timers, t)
	c.mu.Unlock()
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
