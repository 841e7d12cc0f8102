package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/telemetry"
)

// FileSender writes envelopes as JSON lines to a rotating file and optionally to stdout.
type FileSender struct {
	writer      *lumberjack.Logger
	prettyPrint bool
	console     bool
	mu          sync.Mutex
	closed      bool
}

// NewFileSender creates a new FileSender with the given configuration.
func NewFileSender(cfg config.FileConfig) (*FileSender, error) {
	log := logger.WithComponent("file-sender")

	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	log.Info().
		Str("file_path", cfg.FilePath).
		Bool("console", cfg.Console).
		Bool("pretty", cfg.Pretty).
		Msg("FileSender initialized")

	return &FileSender{
		writer:      writer,
		prettyPrint: cfg.Pretty,
		console:     cfg.Console,
	}, nil
}

// Send writes each envelope of batch on its own line.
func (s *FileSender) Send(_ context.Context, batch []*telemetry.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}

	for _, env := range batch {
		var data []byte
		var err error
		if s.prettyPrint {
			data, err = json.MarshalIndent(env, "", "  ")
		} else {
			data, err = json.Marshal(env)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}

		if _, err := s.writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		if s.console {
			fmt.Println(string(data))
		}
	}
	return nil
}

// Close releases resources held by the FileSender.
func (s *FileSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// SetConsole toggles echoing envelopes to stdout.
func (s *FileSender) SetConsole(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.console = enabled
}
