package sender

import (
	"context"
	"fmt"
	"sync"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/network"
	"telemetrychannel/internal/telemetry"
)

const kafkaRestContentType = "application/vnd.kafka.json.v2+json"

// KafkaRestSender produces batches to Kafka through the KafkaRest HTTP proxy.
type KafkaRestSender struct {
	poster *poster
	url    string
	mu     sync.RWMutex
	closed bool
}

// NewKafkaRestSender creates a new KafkaRest HTTP sender.
func NewKafkaRestSender(restCfg config.KafkaRestConfig, httpCfg config.HTTPConfig,
	socksCfg config.SOCKSConfig) (*KafkaRestSender, error) {

	if restCfg.Address == "" || restCfg.Topic == "" {
		return nil, fmt.Errorf("KafkaRest address and topic are required")
	}

	client, err := network.NewHTTPClient(httpCfg.Timeout, socksCfg.Host, socksCfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client for KafkaRest: %w", err)
	}

	return &KafkaRestSender{
		poster: &poster{
			client:      client,
			contentType: kafkaRestContentType,
			maxRetries:  httpCfg.MaxRetries,
			retryDelay:  httpCfg.RetryDelay,
			component:   "kafkarest-sender",
		},
		url: fmt.Sprintf("%s/topics/%s", ensureHTTPScheme(restCfg.Address), restCfg.Topic),
	}, nil
}

// Send produces batch as one records request.
func (s *KafkaRestSender) Send(ctx context.Context, batch []*telemetry.Envelope) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSenderClosed
	}
	if len(batch) == 0 {
		return nil
	}

	body, err := WrapRecords(batch)
	if err != nil {
		return err
	}
	return s.poster.post(ctx, s.url, body)
}

// Close releases resources.
func (s *KafkaRestSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.poster.client.CloseIdleConnections()
	return nil
}
