package engine

import (
	"sync/atomic"
	"time"
)

// timer implements Timer on top of time.AfterFunc. The callback is posted
// to the event loop; done ensures it runs at most once and never after Stop.
type timer struct {
	conn *conn
	fn   func(err error)
	t    *time.Timer
	done atomic.Bool
}

var _ Timer = (*timer)(nil)

func (t *timer) Stop() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	if t.t != nil {
		t.t.Stop()
	}
	t.conn.untrack(t)
	return true
}

// fire runs on the loop.
func (t *timer) fire() {
	if !t.done.CompareAndSwap(false, true) {
		return
	}
	t.conn.untrack(t)
	t.fn(nil)
}
