package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/wsstress/internal/stats"
)

// server echoes data messages, emits a rotating set of payloads on a ticker
// and consumes ack reports from stress clients.
type server struct {
	upgrader     websocket.Upgrader
	emitInterval time.Duration
	distinct     int
	logger       *slog.Logger

	conns    atomic.Int64
	reports  atomic.Uint64
	acked    atomic.Uint64 // Sum of acked message counts
	messages atomic.Uint64
}

func newServer(emitInterval time.Duration, distinct int, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	if distinct < 1 {
		distinct = 1
	}
	return &server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		emitInterval: emitInterval,
		distinct:     distinct,
		logger:       logger,
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	n := s.conns.Add(1)
	s.logger.Debug("connection opened", "remote", r.RemoteAddr, "active", n)

	var writeMu sync.Mutex
	write := func(mt int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteMessage(mt, data)
	}

	done := make(chan struct{})
	if s.emitInterval > 0 {
		go s.emit(write, done)
	}

	defer func() {
		close(done)
		ws.Close()
		n := s.conns.Add(-1)
		s.logger.Debug("connection closed", "remote", r.RemoteAddr, "active", n)
	}()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				s.logger.Debug("read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		if mt == websocket.TextMessage {
			if acks, err := stats.DecodeReport(data); err == nil {
				s.record(r.RemoteAddr, acks)
				continue
			}
		}

		if err := write(mt, data); err != nil {
			s.logger.Debug("echo failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

func (s *server) emit(write func(int, []byte) error, done <-chan struct{}) {
	ticker := time.NewTicker(s.emitInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			payload := fmt.Appendf(nil, "message %d", i%s.distinct)
			if err := write(websocket.TextMessage, payload); err != nil {
				return
			}
			s.messages.Add(1)
		}
	}
}

func (s *server) record(remote string, acks []stats.Ack) {
	var total uint64
	for _, a := range acks {
		total += a.Count
	}
	s.reports.Add(1)
	s.acked.Add(total)
	s.logger.Debug("acks received", "remote", remote, "digests", len(acks), "messages", total)
}
