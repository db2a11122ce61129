package engine

import (
	"errors"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int](10)

	for i := 0; i < 5; i++ {
		if !q.Post(i) {
			t.Fatalf("Post(%d) returned false", i)
		}
	}

	if got := q.Stats().Pending; got != 5 {
		t.Errorf("Pending = %d, want 5", got)
	}

	for i := 0; i < 5; i++ {
		val, ok := q.Next()
		if !ok {
			t.Fatalf("Next() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("got %d, want %d", val, i)
		}
	}

	if got := q.Stats().Pending; got != 0 {
		t.Errorf("Pending = %d after draining, want 0", got)
	}
}

func TestQueue_GrowsOnlyWhenFull(t *testing.T) {
	q := NewQueue[int](4)

	for i := 0; i < 4; i++ {
		q.Post(i)
	}
	if got := q.Stats().Grows; got != 0 {
		t.Errorf("Grows = %d after filling to capacity, want 0", got)
	}

	q.Post(4)
	stats := q.Stats()
	if stats.Grows != 1 {
		t.Errorf("Grows = %d, want 1", stats.Grows)
	}
	if stats.Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", stats.Capacity)
	}
}

func TestQueue_GrowPreservesOrderWhenWrapped(t *testing.T) {
	q := NewQueue[int](4)

	// Advance head so the ring wraps before growing.
	for i := 0; i < 3; i++ {
		q.Post(-1)
		q.Next()
	}

	for i := 0; i < 100; i++ {
		if !q.Post(i) {
			t.Fatalf("Post(%d) returned false", i)
		}
	}

	stats := q.Stats()
	if stats.Pending != 100 {
		t.Errorf("Pending = %d, want 100", stats.Pending)
	}
	if stats.HighWater != 100 {
		t.Errorf("HighWater = %d, want 100", stats.HighWater)
	}
	if stats.Grows < 3 {
		t.Errorf("Grows = %d, expected at least 3", stats.Grows)
	}

	for i := 0; i < 100; i++ {
		val, ok := q.Next()
		if !ok {
			t.Fatalf("Next() returned false for item %d", i)
		}
		if val != i {
			t.Fatalf("got %d, want %d", val, i)
		}
	}
}

func TestQueue_BlockingNext(t *testing.T) {
	q := NewQueue[int](1)
	received := make(chan int, 1)

	go func() {
		if val, ok := q.Next(); ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Post(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("got %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked Next")
	}
}

func TestQueue_CloseDrainsPending(t *testing.T) {
	q := NewQueue[int](4)
	q.Post(1)
	q.Post(2)
	q.Close()

	if q.Post(3) {
		t.Error("Post should return false after Close")
	}

	for _, want := range []int{1, 2} {
		val, ok := q.Next()
		if !ok || val != want {
			t.Errorf("Next() = %d, %v; want %d, true", val, ok, want)
		}
	}

	if _, ok := q.Next(); ok {
		t.Error("Next should return false when closed and empty")
	}

	stats := q.Stats()
	if stats.Posted != 2 || stats.Taken != 2 {
		t.Errorf("Posted/Taken = %d/%d, want 2/2", stats.Posted, stats.Taken)
	}
}

func TestQueue_CloseUnblocksNext(t *testing.T) {
	q := NewQueue[int](4)
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Next()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Next should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Next")
	}
}

func TestQueue_TryPost(t *testing.T) {
	q := NewQueue[int](2)

	for i := 0; i < 3; i++ {
		if err := q.TryPost(i, 3); err != nil {
			t.Fatalf("TryPost(%d) = %v, want nil", i, err)
		}
	}
	if err := q.TryPost(3, 3); !errors.Is(err, ErrQueueFull) {
		t.Errorf("TryPost on full queue = %v, want ErrQueueFull", err)
	}

	// Room frees up as items are taken.
	q.Next()
	if err := q.TryPost(3, 3); err != nil {
		t.Errorf("TryPost after Next = %v, want nil", err)
	}

	stats := q.Stats()
	if stats.Pending != 3 || stats.HighWater != 3 {
		t.Errorf("Pending/HighWater = %d/%d, want 3/3", stats.Pending, stats.HighWater)
	}

	q.Close()
	if err := q.TryPost(4, 10); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("TryPost after Close = %v, want ErrQueueClosed", err)
	}
}
