package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"telemetrychannel/internal/logger"
)

// poster POSTs a body with a bounded number of retries.
type poster struct {
	client      *http.Client
	contentType string
	maxRetries  int
	retryDelay  time.Duration
	component   string
}

// post delivers body to url. A 400 response is permanent and returned at once; other
// failures are retried maxRetries times, waiting retryDelay between attempts.
func (p *poster) post(ctx context.Context, url string, body []byte) error {
	log := logger.WithComponent(p.component)

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
		}

		lastErr = p.doPost(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			log.Error().
				Err(lastErr).
				Int("bytes", len(body)).
				Msg("Batch rejected, dropping")
			return lastErr
		}

		log.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Msg("Send failed")
	}

	return fmt.Errorf("send failed after %d retries: %w", p.maxRetries, lastErr)
}

func (p *poster) doPost(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", p.contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: HTTP %d", ErrPermanent, resp.StatusCode)
	default:
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
}

func ensureHTTPScheme(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}
