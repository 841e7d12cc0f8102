// Package sender provides the transports that deliver telemetry batches.
package sender

import (
	"context"
	"errors"

	"telemetrychannel/internal/telemetry"
)

var (
	// ErrSenderClosed is returned by Send after Close.
	ErrSenderClosed = errors.New("sender is closed")

	// ErrPermanent marks a batch the destination rejected as malformed. Retrying it
	// cannot succeed, so it is dropped.
	ErrPermanent = errors.New("batch rejected by destination")
)

// Sender delivers batches of envelopes to a destination.
type Sender interface {
	// Send transmits one batch. It applies the transport's own retry policy and
	// returns the final outcome.
	Send(ctx context.Context, batch []*telemetry.Envelope) error

	// Close releases any resources held by the sender.
	Close() error
}
