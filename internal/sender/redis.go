package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/network"
	"telemetrychannel/internal/telemetry"
)

// RedisSender appends envelopes to a Redis list, one pipeline per batch.
type RedisSender struct {
	client    *redis.Client
	key       string
	maxLength int64
	mu        sync.RWMutex
	closed    bool
}

// NewRedisSender creates a Redis list sender.
func NewRedisSender(cfg config.RedisConfig, socksCfg config.SOCKSConfig) (*RedisSender, error) {
	if cfg.Addr == "" || cfg.Key == "" {
		return nil, fmt.Errorf("Redis address and key are required")
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	dial, err := network.DialerFunc(socksCfg.Host, socksCfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for Redis: %w", err)
	}
	if dial != nil {
		opts.Dialer = dial
	}

	return &RedisSender{
		client:    redis.NewClient(opts),
		key:       cfg.Key,
		maxLength: cfg.MaxLength,
	}, nil
}

// Send RPUSHes every envelope of batch and, when a cap is configured, trims the list to
// its newest MaxLength entries.
func (s *RedisSender) Send(ctx context.Context, batch []*telemetry.Envelope) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSenderClosed
	}
	if len(batch) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(batch))
	for _, env := range batch {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key, values...)
	if s.maxLength > 0 {
		pipe.LTrim(ctx, s.key, -s.maxLength, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Redis RPUSH %s failed: %w", s.key, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
