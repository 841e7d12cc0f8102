package service

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"telemetrychannel/internal/logger"
)

// SignalService runs a RunFunc until SIGINT or SIGTERM.
type SignalService struct {
	runFunc RunFunc
	signals []os.Signal
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewService creates a service that stops on SIGINT or SIGTERM.
func NewService(runFunc RunFunc) *SignalService {
	return &SignalService{
		runFunc: runFunc,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Run starts runFunc and cancels its context on the first signal. A second
// signal returns ErrForcedExit without waiting for runFunc.
func (s *SignalService) Run(ctx context.Context) error {
	log := logger.WithComponent("service")

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, s.signals...)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx)
	}()

	log.Info().Msg("Service started")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		s.Stop()

		select {
		case err := <-done:
			return err
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
			return ErrForcedExit
		}

	case err := <-done:
		return err
	}
}

// Stop requests the service to stop.
func (s *SignalService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && !s.stopped {
		s.stopped = true
		s.cancel()
	}
	return nil
}

// IsService reports whether stdin is not a terminal, as under systemd.
func (s *SignalService) IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}
