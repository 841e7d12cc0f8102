// Package logger provides the process-wide zerolog logger with rotating file output.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats for the file writer.
const (
	FormatJSON  = "json"
	FormatFixed = "fixed"
)

// asyncWriter decouples callers from a slow writer such as a blocked terminal.
// Messages are queued for a background goroutine; when the queue is full they are dropped.
type asyncWriter struct {
	ch     chan []byte
	w      io.Writer
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:   make(chan []byte, bufSize),
		w:    w,
		done: make(chan struct{}),
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()

	if aw.closed {
		return len(p), nil
	}

	// zerolog reuses p after Write returns.
	cp := make([]byte, len(p))
	copy(cp, p)

	select {
	case aw.ch <- cp:
	default:
	}
	return len(p), nil
}

func (aw *asyncWriter) drain() {
	defer close(aw.done)
	for p := range aw.ch {
		_, _ = aw.w.Write(p)
	}
}

// Close stops accepting writes and waits until queued messages are written.
func (aw *asyncWriter) Close() {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		aw.mu.Unlock()
		close(aw.ch)
		<-aw.done
	})
}

// Config holds the logger configuration.
type Config struct {
	Level      string `json:"Level" toml:"level"`
	FilePath   string `json:"FilePath" toml:"file_path"`
	Format     string `json:"Format" toml:"format"` // "json" (default) or "fixed"
	MaxSizeMB  int    `json:"MaxSizeMB" toml:"max_size_mb"`
	MaxBackups int    `json:"MaxBackups" toml:"max_backups"`
	MaxAgeDays int    `json:"MaxAgeDays" toml:"max_age_days"`
	Compress   bool   `json:"Compress" toml:"compress"`
	Console    bool   `json:"Console" toml:"console"`
}

// DefaultConfig returns the logging defaults used when no Logging file is present.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "log/telemetrychannel/channel.log",
		Format:     FormatJSON,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    true,
	}
}

var (
	mu           sync.Mutex
	globalLogger = zerolog.Nop()
	serviceMode  bool
	fileWriter   io.Closer
	consoleAsync *asyncWriter
)

// SetServiceMode suppresses console output when the process has no usable stdout.
func SetServiceMode(enabled bool) {
	mu.Lock()
	serviceMode = enabled
	mu.Unlock()
}

// Init (re)builds the global logger. Writers from a previous Init are closed, so Init is
// safe to call again on configuration reload.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	if consoleAsync != nil {
		consoleAsync.Close()
		consoleAsync = nil
	}

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return err
		}

		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		fileWriter = rotator

		if cfg.Format == FormatFixed {
			writers = append(writers, NewFixedFormatWriter(rotator))
		} else {
			writers = append(writers, rotator)
		}
	}

	if cfg.Console && !serviceMode {
		consoleAsync = newAsyncWriter(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}, 1000)
		writers = append(writers, consoleAsync)
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	globalLogger = zerolog.New(output).With().Timestamp().Logger()
	return nil
}

// Logger returns the global logger instance.
func Logger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := globalLogger
	return &l
}

// Info logs an info message on the global logger.
func Info() *zerolog.Event {
	return Logger().Info()
}

// Warn logs a warning on the global logger.
func Warn() *zerolog.Event {
	return Logger().Warn()
}

// Error logs an error on the global logger.
func Error() *zerolog.Event {
	return Logger().Error()
}

// WithComponent returns a child of the current global logger tagged with component.
// Callers should fetch it where they log so a reload is picked up.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
