// Package network holds egress and host-identity helpers shared by the transports.
package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewSOCKS5Dialer creates a SOCKS5 proxy dialer.
func NewSOCKS5Dialer(host string, port int) (proxy.Dialer, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", addr, err)
	}
	return dialer, nil
}

// DialContextFunc is the dial signature used by net/http and go-redis.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialerFunc returns a context-aware dial function through the SOCKS5 proxy at host:port.
// If host is empty it returns nil, meaning dial directly.
func DialerFunc(host string, port int) (DialContextFunc, error) {
	if host == "" || port <= 0 {
		return nil, nil
	}

	dialer, err := NewSOCKS5Dialer(host, port)
	if err != nil {
		return nil, err
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// NewHTTPClient builds the HTTP client used by the HTTP transports, routed through the
// SOCKS5 proxy when proxyHost is set.
func NewHTTPClient(timeout time.Duration, proxyHost string, proxyPort int) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	dial, err := DialerFunc(proxyHost, proxyPort)
	if err != nil {
		return nil, err
	}
	if dial != nil {
		transport.DialContext = dial
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
