package engine

import (
	"bytes"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrInvalidURI     = errors.New("invalid websocket uri")
	ErrEngineStopped  = errors.New("engine stopped")
	ErrNotConnected   = errors.New("not connected")
	ErrNilHandler     = errors.New("nil handler")
	ErrAlreadyRunning = errors.New("event loop already running")
	ErrSendQueueFull  = errors.New("send queue full")
)

// Engine establishes client connections and runs the event loop that drives them.
type Engine interface {
	// Connect starts connecting to uri and binds h to the new connection.
	// Only a malformed uri or a stopped engine fail synchronously; dial
	// errors are reported to h.OnFail from the event loop.
	Connect(uri string, h Handler) (Conn, error)

	// Run enters the event loop and blocks until the engine is stopped.
	Run() error
}

// Conn is a handle to a single client connection owned by the engine.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() uuid.UUID

	// URI returns the address the connection was opened against.
	URI() string

	// Send queues one text (binary=false) or binary message and returns
	// without waiting for the socket. It fails with ErrSendQueueFull when
	// the peer is not keeping up. A write error later ends the connection
	// through OnClose.
	Send(payload []byte, binary bool) error

	// Recycle hands a received message back to the engine.
	// The message must not be used afterwards.
	Recycle(msg *Message)

	// AfterFunc schedules fn on the event loop after d. fn receives a
	// non-nil error when the timer is aborted by the engine.
	AfterFunc(d time.Duration, fn func(err error)) Timer

	// Close starts a normal closure; OnClose follows from the event loop.
	Close() error
}

// Timer is a one-shot timer created by Conn.AfterFunc.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// timer was still pending.
	Stop() bool
}

// Handler receives lifecycle and message callbacks for one connection.
// All methods run on the engine's event loop goroutine.
type Handler interface {
	OnOpen(c Conn)
	OnMessage(c Conn, msg *Message)
	OnFail(c Conn, err error)
	OnClose(c Conn)
}

// Message is a received WebSocket data message.
type Message struct {
	Payload    []byte    // Valid until the message is recycled
	Binary     bool      // True for binary frames, false for text
	ReceivedAt time.Time // Local timestamp when the read completed

	buf bytes.Buffer
}

func (m *Message) reset() {
	m.buf.Reset()
	m.Payload = nil
	m.Binary = false
	m.ReceivedAt = time.Time{}
}
