package network

import (
	"net/http"
	"testing"
	"time"
)

func TestNewSOCKS5Dialer_CreatesDialer(t *testing.T) {
	dialer, err := NewSOCKS5Dialer("127.0.0.1", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dialer == nil {
		t.Fatal("expected non-nil dialer")
	}
}

func TestDialerFunc_EmptyHost_ReturnsNil(t *testing.T) {
	fn, err := DialerFunc("", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn != nil {
		t.Fatal("expected nil function for empty host")
	}
}

func TestDialerFunc_NonEmptyHost_ReturnsFunction(t *testing.T) {
	fn, err := DialerFunc("127.0.0.1", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn == nil {
		t.Fatal("expected non-nil function for non-empty host")
	}
}

// --- NewHTTPClient ---

func TestNewHTTPClient_Direct(t *testing.T) {
	client, err := NewHTTPClient(3*time.Second, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Timeout != 3*time.Second {
		t.Errorf("expected Timeout=3s, got %v", client.Timeout)
	}
	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if tr.DialContext != nil {
		t.Error("expected default dialer without proxy")
	}
}

func TestNewHTTPClient_ViaProxy(t *testing.T) {
	client, err := NewHTTPClient(time.Second, "127.0.0.1", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := client.Transport.(*http.Transport)
	if tr.DialContext == nil {
		t.Error("expected proxy dialer to be installed")
	}
}
