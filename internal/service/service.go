// Package service runs the telemetry agent as a long-lived process.
package service

import (
	"context"
	"errors"
)

// ErrForcedExit is returned by Run when a second signal arrives before shutdown completes.
var ErrForcedExit = errors.New("forced exit on second signal")

// Service defines the interface for process lifecycle management.
type Service interface {
	// Run starts the service. It blocks until the service is stopped.
	Run(ctx context.Context) error

	// Stop requests the service to stop.
	Stop() error

	// IsService returns true if running detached from a terminal.
	IsService() bool
}

// RunFunc is the main function that runs the agent logic.
type RunFunc func(ctx context.Context) error
