package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// --- Queue tests ---

func TestQueue_PopPreservesPushOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	for want := 0; want < 5; want++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop #%d returned empty", want)
		}
		if got != want {
			t.Errorf("Pop #%d = %d, want %d", want, got, want)
		}
	}
}

func TestQueue_PopEmpty(t *testing.T) {
	q := New[string]()

	item, ok := q.Pop()
	if ok {
		t.Fatalf("expected empty pop, got %q", item)
	}
	if item != "" {
		t.Errorf("expected zero value, got %q", item)
	}
}

func TestQueue_NilInterfaceItemRoundTrip(t *testing.T) {
	q := New[error]()
	q.Push(nil)

	item, ok := q.Pop()
	if !ok {
		t.Fatal("Pop reported empty after pushing nil")
	}
	if item != nil {
		t.Errorf("Pop = %v, want nil", item)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueue_PopNStopsAtEmpty(t *testing.T) {
	q := New[int]()
	for i := 0; i < 3; i++ {
		q.Push(i)
	}

	batch := q.PopN(10)
	if len(batch) != 3 {
		t.Fatalf("expected 3 items, got %d", len(batch))
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got Len=%d", q.Len())
	}
	if batch := q.PopN(10); len(batch) != 0 {
		t.Errorf("expected empty batch, got %v", batch)
	}
}

func TestQueue_PopNBounded(t *testing.T) {
	q := New[int]()
	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	batch := q.PopN(5)
	if len(batch) != 5 {
		t.Fatalf("expected 5 items, got %d", len(batch))
	}
	if batch[0] != 0 || batch[4] != 4 {
		t.Errorf("unexpected batch order: %v", batch)
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 remaining, got %d", q.Len())
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	if q.Len() != producers*perProducer {
		t.Fatalf("expected %d items, got %d", producers*perProducer, q.Len())
	}

	// Per-producer order must survive interleaving.
	last := make(map[int]int)
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		p := v / perProducer
		if prev, seen := last[p]; seen && v <= prev {
			t.Fatalf("producer %d out of order: %d after %d", p, v, prev)
		}
		last[p] = v
	}
}

// --- FlushSignal tests ---

func TestFlushSignal_WaitReturnsImmediatelyWhenSet(t *testing.T) {
	s := NewFlushSignal(clock.NewMock())
	s.Signal()

	if !s.Wait(time.Hour) {
		t.Fatal("expected Wait to report signaled")
	}
	if !s.IsSet() {
		t.Error("Wait must not clear a manual-reset signal")
	}
}

func TestFlushSignal_SignalIsIdempotent(t *testing.T) {
	s := NewFlushSignal(nil)
	s.Signal()
	s.Signal()

	if !s.IsSet() {
		t.Fatal("expected signal to be set")
	}
}

func TestFlushSignal_Clear(t *testing.T) {
	s := NewFlushSignal(nil)
	s.Signal()
	s.Clear()

	if s.IsSet() {
		t.Fatal("expected signal to be cleared")
	}
	if s.Wait(0) {
		t.Error("expected Wait(0) on cleared signal to return false")
	}

	// Clearing an unset signal is harmless.
	s.Clear()
}

func TestFlushSignal_SignalWakesWaiter(t *testing.T) {
	s := NewFlushSignal(nil)

	result := make(chan bool, 1)
	go func() {
		result <- s.Wait(10 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Signal()

	select {
	case got := <-result:
		if !got {
			t.Error("expected Wait to report signaled")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait was not woken by Signal")
	}
}

func TestFlushSignal_WaitTimesOut(t *testing.T) {
	mock := clock.NewMock()
	s := NewFlushSignal(mock)

	result := make(chan bool, 1)
	go func() {
		result <- s.Wait(time.Second)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-result:
			if got {
				t.Error("expected Wait to time out")
			}
			return
		case <-deadline:
			t.Fatal("Wait did not time out on mock clock")
		default:
			mock.Add(time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}
