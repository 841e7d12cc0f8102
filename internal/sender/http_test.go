package sender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/telemetry"
)

func newTestHTTPSender(t *testing.T, handler http.HandlerFunc) *HTTPSender {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewHTTPSender(server.URL, fastHTTPConfig(), config.SOCKSConfig{})
	if err != nil {
		t.Fatalf("failed to create HTTPSender: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHTTPSender_Send_Success(t *testing.T) {
	var body []byte
	var contentType, accept string

	s := newTestHTTPSender(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		accept = r.Header.Get("Accept")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	if err := s.Send(context.Background(), newBatch(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if contentType != "application/json; charset=utf-8" {
		t.Errorf("unexpected Content-Type %q", contentType)
	}
	if accept != "application/json" {
		t.Errorf("unexpected Accept %q", accept)
	}

	var got []telemetry.Envelope
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("body is not a JSON array of envelopes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(got))
	}
	if got[0].IKey != testIKey {
		t.Errorf("expected iKey=%s, got %s", testIKey, got[0].IKey)
	}
}

func TestHTTPSender_Send_RetriesThenSucceeds(t *testing.T) {
	var attempts int32

	s := newTestHTTPSender(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := s.Send(context.Background(), newBatch(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestHTTPSender_Send_GivesUpAfterRetries(t *testing.T) {
	var attempts int32

	s := newTestHTTPSender(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := s.Send(context.Background(), newBatch(1))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if errors.Is(err, ErrPermanent) {
		t.Error("server errors must not be reported as permanent")
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", n)
	}
}

func TestHTTPSender_Send_BadRequestIsPermanent(t *testing.T) {
	var attempts int32

	s := newTestHTTPSender(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	err := s.Send(context.Background(), newBatch(1))
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("400 must not be retried, got %d attempts", n)
	}
}

func TestHTTPSender_Send_ContextCancelledDuringRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	httpCfg := fastHTTPConfig()
	httpCfg.RetryDelay = time.Hour
	s, err := NewHTTPSender(server.URL, httpCfg, config.SOCKSConfig{})
	if err != nil {
		t.Fatalf("failed to create HTTPSender: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Send(ctx, newBatch(1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestHTTPSender_Send_EmptyBatch(t *testing.T) {
	var called int32
	s := newTestHTTPSender(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&called, 1)
	})

	if err := s.Send(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&called) != 0 {
		t.Error("empty batch must not reach the endpoint")
	}
}

func TestHTTPSender_Closed(t *testing.T) {
	s := newTestHTTPSender(t, func(w http.ResponseWriter, r *http.Request) {})
	s.Close()

	if err := s.Send(context.Background(), newBatch(1)); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("expected ErrSenderClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestNewHTTPSender_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPSender("", fastHTTPConfig(), config.SOCKSConfig{}); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestEnsureHTTPScheme(t *testing.T) {
	tests := map[string]string{
		"collector:8080":         "http://collector:8080",
		"http://collector:8080":  "http://collector:8080",
		"https://collector:8443": "https://collector:8443",
	}
	for in, want := range tests {
		if got := ensureHTTPScheme(in); got != want {
			t.Errorf("ensureHTTPScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
