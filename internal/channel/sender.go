// Package channel implements the background batching sender that drains the telemetry queue.
//
// A BatchSender owns at most one worker goroutine at a time. Start lazily launches the worker;
// the worker drains the queue into batches of at most SendBatchSize items, hands each batch
// to a Transmitter, then waits on the queue's flush notification for one poll interval. When
// no batch has been sent for SendTime the worker retires itself, and the next Start brings up
// a fresh one.
package channel

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/queue"
)

const (
	// MinSendInterval is the floor applied to the poll interval.
	MinSendInterval = 100 * time.Millisecond

	// DefaultSendInterval is how long an idle worker waits for a flush before polling again.
	DefaultSendInterval = 1 * time.Second
	// DefaultSendTime is how long a worker stays alive without sending anything.
	DefaultSendTime = 3 * time.Second
	// DefaultSendBatchSize caps the number of items per transmitted batch.
	DefaultSendBatchSize = 100
)

// Transmitter delivers one batch. Implementations own their retry and failure policy;
// the sender logs a returned error and never re-enqueues the batch.
type Transmitter[T any] interface {
	Send(ctx context.Context, batch []T) error
}

// TransmitFunc adapts a function to Transmitter.
type TransmitFunc[T any] func(ctx context.Context, batch []T) error

// Send calls f.
func (f TransmitFunc[T]) Send(ctx context.Context, batch []T) error {
	return f(ctx, batch)
}

// Settings configures a BatchSender.
type Settings struct {
	SendInterval  time.Duration
	SendTime      time.Duration
	SendBatchSize int
}

// DefaultSettings returns the default poll interval, idle time and batch size.
func DefaultSettings() Settings {
	return Settings{
		SendInterval:  DefaultSendInterval,
		SendTime:      DefaultSendTime,
		SendBatchSize: DefaultSendBatchSize,
	}
}

// BatchSender drains a queue in bounded batches on a self-retiring worker goroutine.
type BatchSender[T any] struct {
	queue       *queue.Queue[T]
	transmitter Transmitter[T]

	sendInterval  atomic.Int64
	sendTime      atomic.Int64
	sendBatchSize atomic.Int64

	startPending atomic.Bool

	mu     sync.Mutex // guards worker creation
	worker atomic.Pointer[workerState]

	// sendMu is held across pop and transmit so the worker and Drain never
	// send concurrently and batches leave in queue order.
	sendMu sync.Mutex
}

// workerState is the ownership token of the running worker. Apart from done,
// its fields are only touched by the worker goroutine after launch.
type workerState struct {
	interval  time.Duration
	sendTime  time.Duration
	remaining time.Duration
	done      chan struct{}
}

// NewBatchSender creates a sender draining q into t. A nil q is allowed; a worker started
// without a queue exits immediately.
func NewBatchSender[T any](q *queue.Queue[T], t Transmitter[T], s Settings) *BatchSender[T] {
	b := &BatchSender[T]{
		queue:       q,
		transmitter: t,
	}
	b.SetSendInterval(s.SendInterval)
	b.SetSendTime(s.SendTime)
	b.SetSendBatchSize(s.SendBatchSize)
	return b
}

// Queue returns the queue this sender drains.
func (b *BatchSender[T]) Queue() *queue.Queue[T] {
	return b.queue
}

// SendInterval returns the configured poll interval.
func (b *BatchSender[T]) SendInterval() time.Duration {
	return time.Duration(b.sendInterval.Load())
}

// SetSendInterval sets the poll interval. It applies to the next worker launched.
func (b *BatchSender[T]) SetSendInterval(d time.Duration) {
	b.sendInterval.Store(int64(d))
}

// EffectiveInterval returns the poll interval with MinSendInterval applied.
func (b *BatchSender[T]) EffectiveInterval() time.Duration {
	d := b.SendInterval()
	if d < MinSendInterval {
		return MinSendInterval
	}
	return d
}

// SendTime returns the idle duration after which the worker retires.
func (b *BatchSender[T]) SendTime() time.Duration {
	return time.Duration(b.sendTime.Load())
}

// SetSendTime sets the idle duration. It applies to the next worker launched.
func (b *BatchSender[T]) SetSendTime(d time.Duration) {
	b.sendTime.Store(int64(d))
}

// SendBatchSize returns the maximum number of items per transmitted batch.
func (b *BatchSender[T]) SendBatchSize() int {
	return int(b.sendBatchSize.Load())
}

// SetSendBatchSize sets the maximum batch size. Values below 1 are raised to 1.
func (b *BatchSender[T]) SetSendBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	b.sendBatchSize.Store(int64(n))
}

// Running reports whether a worker currently holds the handle.
func (b *BatchSender[T]) Running() bool {
	return b.worker.Load() != nil
}

// Start ensures a worker is running. It never blocks on a send and never reports worker
// failures; calling it when a worker exists only records that new work may be waiting.
func (b *BatchSender[T]) Start() {
	// Record the request first so a worker deciding to retire sees it.
	b.startPending.Store(true)
	if b.worker.Load() != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.worker.Load() != nil {
		return
	}

	interval := b.EffectiveInterval()
	remaining := b.SendTime()
	if remaining < interval {
		remaining = interval
	}

	w := &workerState{
		interval:  interval,
		sendTime:  b.SendTime(),
		remaining: remaining,
		done:      make(chan struct{}),
	}
	b.worker.Store(w)
	go b.run(w)
}

// Wait blocks until the current worker, if any, has exited or ctx is done.
func (b *BatchSender[T]) Wait(ctx context.Context) error {
	w := b.worker.Load()
	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BatchSender[T]) run(w *workerState) {
	log := logger.WithComponent("batch-sender")

	defer close(w.done)
	// The handle is released on every exit path, including a panic below.
	defer b.worker.CompareAndSwap(w, nil)
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Batch sender worker crashed")
		}
	}()

	q := b.queue
	if q == nil {
		log.Warn().Msg("No queue attached, worker exiting")
		return
	}
	flush := q.FlushNotification()

	log.Debug().
		Dur("interval", w.interval).
		Dur("send_time", w.sendTime).
		Msg("Worker started")

	for {
		b.startPending.Store(false)

		for b.sendNext(context.Background(), q, w) {
		}

		if flush.Wait(w.interval) {
			flush.Clear()
			continue
		}

		// A Start landing between this check and the deferred release finds the handle
		// still held and returns; its items stay queued until the next Start.
		w.remaining -= w.interval
		if w.remaining <= 0 && !b.startPending.Load() {
			log.Debug().Msg("Worker idle, retiring")
			return
		}
	}
}

// sendNext transmits one batch and reports whether there was anything to send.
func (b *BatchSender[T]) sendNext(ctx context.Context, q *queue.Queue[T], w *workerState) bool {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	batch := q.PopN(b.SendBatchSize())
	if len(batch) == 0 {
		return false
	}

	w.remaining = w.sendTime
	if err := b.transmitter.Send(ctx, batch); err != nil {
		log := logger.WithComponent("batch-sender")
		log.Error().
			Err(err).
			Int("batch_size", len(batch)).
			Msg("Failed to transmit batch")
	}
	return true
}

// Drain synchronously transmits everything currently queued, on the caller's goroutine.
// A batch the worker has in flight finishes first. Drain stops early when ctx is done and
// returns the transmit errors it saw.
func (b *BatchSender[T]) Drain(ctx context.Context) error {
	if b.queue == nil {
		return nil
	}

	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		sent, err := b.drainOne(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if !sent {
			break
		}
	}
	return errors.Join(errs...)
}

// drainOne transmits a single batch under sendMu and reports whether one was taken.
func (b *BatchSender[T]) drainOne(ctx context.Context) (bool, error) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	batch := b.queue.PopN(b.SendBatchSize())
	if len(batch) == 0 {
		return false, nil
	}
	return true, b.transmitter.Send(ctx, batch)
}
