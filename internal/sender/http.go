package sender

import (
	"context"
	"fmt"
	"sync"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/network"
	"telemetrychannel/internal/telemetry"
)

const httpContentType = "application/json; charset=utf-8"

// HTTPSender posts batches as a JSON array to an ingestion endpoint.
type HTTPSender struct {
	poster   *poster
	endpoint string
	mu       sync.RWMutex
	closed   bool
}

// NewHTTPSender creates a sender posting to endpoint.
func NewHTTPSender(endpoint string, httpCfg config.HTTPConfig, socksCfg config.SOCKSConfig) (*HTTPSender, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint URI is required")
	}

	client, err := network.NewHTTPClient(httpCfg.Timeout, socksCfg.Host, socksCfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &HTTPSender{
		poster: &poster{
			client:      client,
			contentType: httpContentType,
			maxRetries:  httpCfg.MaxRetries,
			retryDelay:  httpCfg.RetryDelay,
			component:   "http-sender",
		},
		endpoint: ensureHTTPScheme(endpoint),
	}, nil
}

// Send posts batch to the endpoint.
func (s *HTTPSender) Send(ctx context.Context, batch []*telemetry.Envelope) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSenderClosed
	}
	if len(batch) == 0 {
		return nil
	}

	body, err := EncodeBatch(batch)
	if err != nil {
		return err
	}
	return s.poster.post(ctx, s.endpoint, body)
}

// Close releases idle connections.
func (s *HTTPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.poster.client.CloseIdleConnections()
	return nil
}
