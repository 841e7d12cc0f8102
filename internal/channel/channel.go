package channel

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/queue"
)

// Mode selects who transmits queued items.
type Mode string

const (
	// ModeAsync hands items to the background worker.
	ModeAsync Mode = "async"
	// ModeSync transmits on the producer's goroutine when the queue fills or on Flush.
	ModeSync Mode = "sync"
)

// DefaultMaxQueueLength is the queue length that triggers an automatic flush.
const DefaultMaxQueueLength = 500

// ParseMode parses a mode name; the empty string selects ModeAsync.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeAsync:
		return ModeAsync, nil
	case ModeSync:
		return ModeSync, nil
	default:
		return "", fmt.Errorf("unknown channel mode: %s (supported: async, sync)", s)
	}
}

// Config configures a Channel.
type Config struct {
	Settings
	MaxQueueLength int
	Mode           Mode
	Clock          clock.Clock // nil means the wall clock
}

// DefaultConfig returns an asynchronous channel configuration with default tunables.
func DefaultConfig() Config {
	return Config{
		Settings:       DefaultSettings(),
		MaxQueueLength: DefaultMaxQueueLength,
		Mode:           ModeAsync,
	}
}

// Channel is what producers write telemetry into. It owns the queue and the batch sender.
type Channel[T any] struct {
	queue          *queue.Queue[T]
	sender         *BatchSender[T]
	mode           Mode
	maxQueueLength atomic.Int64
}

// New creates a channel transmitting through t.
func New[T any](t Transmitter[T], cfg Config) *Channel[T] {
	if cfg.Mode == "" {
		cfg.Mode = ModeAsync
	}

	q := queue.NewWithClock[T](cfg.Clock)
	c := &Channel[T]{
		queue:  q,
		sender: NewBatchSender(q, t, cfg.Settings),
		mode:   cfg.Mode,
	}
	c.SetMaxQueueLength(cfg.MaxQueueLength)
	return c
}

// Queue returns the underlying queue.
func (c *Channel[T]) Queue() *queue.Queue[T] {
	return c.queue
}

// Sender returns the underlying batch sender.
func (c *Channel[T]) Sender() *BatchSender[T] {
	return c.sender
}

// Mode returns the channel mode.
func (c *Channel[T]) Mode() Mode {
	return c.mode
}

// MaxQueueLength returns the queue length that triggers a flush.
func (c *Channel[T]) MaxQueueLength() int {
	return int(c.maxQueueLength.Load())
}

// SetMaxQueueLength sets the flush threshold. Values below 1 are raised to 1.
func (c *Channel[T]) SetMaxQueueLength(n int) {
	if n < 1 {
		n = 1
	}
	c.maxQueueLength.Store(int64(n))
}

// Apply updates the tunables of a running channel. Interval and idle time changes
// take effect when the next worker starts.
func (c *Channel[T]) Apply(cfg Config) {
	c.sender.SetSendInterval(cfg.SendInterval)
	c.sender.SetSendTime(cfg.SendTime)
	c.sender.SetSendBatchSize(cfg.SendBatchSize)
	c.SetMaxQueueLength(cfg.MaxQueueLength)
}

// Write enqueues item. A full queue triggers a flush; in async mode the worker is
// (re)started so the item is picked up within one poll interval.
func (c *Channel[T]) Write(item T) {
	c.queue.Push(item)

	if c.queue.Len() >= c.MaxQueueLength() {
		if err := c.Flush(context.Background()); err != nil {
			log := logger.WithComponent("channel")
			log.Error().Err(err).Msg("Flush on full queue failed")
		}
		return
	}

	if c.mode == ModeAsync {
		c.sender.Start()
	}
}

// Flush asks for queued items to be transmitted now. In async mode it wakes the worker and
// returns immediately; in sync mode it transmits on the caller's goroutine.
func (c *Channel[T]) Flush(ctx context.Context) error {
	if c.mode == ModeSync {
		return c.sender.Drain(ctx)
	}

	c.queue.FlushNotification().Signal()
	c.sender.Start()
	return nil
}

// Shutdown transmits whatever is still queued before the process exits.
func (c *Channel[T]) Shutdown(ctx context.Context) error {
	log := logger.WithComponent("channel")
	log.Info().Int("queued", c.queue.Len()).Msg("Draining channel")

	if err := c.sender.Drain(ctx); err != nil {
		return fmt.Errorf("failed to drain channel: %w", err)
	}
	return nil
}
