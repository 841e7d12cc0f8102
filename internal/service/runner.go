package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"telemetrychannel/internal/channel"
	"telemetrychannel/internal/collector"
	"telemetrychannel/internal/config"
	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/network"
	"telemetrychannel/internal/scheduler"
	"telemetrychannel/internal/sender"
	"telemetrychannel/internal/telemetry"
)

// DefaultShutdownTimeout bounds the final drain of the queue.
const DefaultShutdownTimeout = 10 * time.Second

// Envelope tag keys stamped on every item.
const (
	TagRoleInstance = "ai.cloud.roleInstance"
	TagLocationIP   = "ai.location.ip"
	TagAgentVersion = "ai.internal.sdkVersion"
)

// consoleSetter is implemented by transports that can echo to stdout.
type consoleSetter interface {
	SetConsole(enabled bool)
}

// Options controls how a Runner is wired.
type Options struct {
	ConfigPath  string // watched for hot reload when non-empty
	LoggingPath string // watched for hot reload when non-empty
	Version     string

	// Override is applied to every loaded config, including reloads, so that
	// command line values keep precedence over file values.
	Override func(*config.Config)

	ShutdownTimeout time.Duration

	// NewSender and Registry replace the defaults when set.
	NewSender func(*config.Config) (sender.Sender, error)
	Registry  *collector.Registry
}

// Runner wires the transport, channel, collectors and scheduler together and
// runs them until its context is cancelled.
type Runner struct {
	opts Options

	mu     sync.Mutex
	cfg    *config.Config
	logCfg *logger.Config
	host   *network.HostInfo
	snd    sender.Sender
	ch     *channel.Channel[*telemetry.Envelope]
	sched  *scheduler.Scheduler
	reg    *collector.Registry
}

// NewRunner creates a runner for cfg and lc.
func NewRunner(cfg *config.Config, lc *logger.Config, opts Options) *Runner {
	if opts.NewSender == nil {
		opts.NewSender = sender.NewSender
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if lc == nil {
		def := logger.DefaultConfig()
		lc = &def
	}
	return &Runner{opts: opts, cfg: cfg, logCfg: lc}
}

// ChannelConfig converts the file representation of the channel settings.
func ChannelConfig(cc config.ChannelConfig) (channel.Config, error) {
	mode, err := channel.ParseMode(cc.Mode)
	if err != nil {
		return channel.Config{}, err
	}
	return channel.Config{
		Settings: channel.Settings{
			SendInterval:  cc.SendInterval,
			SendTime:      cc.SendTime,
			SendBatchSize: cc.SendBatchSize,
		},
		MaxQueueLength: cc.MaxQueueLength,
		Mode:           mode,
	}, nil
}

// Run blocks until ctx is cancelled, then drains the channel and closes the transport.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.WithComponent("runner")

	r.mu.Lock()
	cfg := r.cfg
	r.mu.Unlock()

	host, err := network.DetectHost(cfg.Host.Name, cfg.Host.IPPattern)
	if err != nil {
		return fmt.Errorf("failed to detect host: %w", err)
	}
	log.Info().
		Str("hostname", host.Hostname).
		Str("ip", host.IP).
		Strs("all_ips", host.AllIPs).
		Msg("Host detected")

	chCfg, err := ChannelConfig(cfg.Channel)
	if err != nil {
		return fmt.Errorf("failed to configure channel: %w", err)
	}

	// Logging config is the master switch for console echo.
	cfg.File.Console = r.logCfg.Console

	snd, err := r.opts.NewSender(cfg)
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}
	log.Info().Str("sender_type", senderType(cfg)).Msg("Sender created")
	defer func() {
		log.Info().Msg("Closing sender")
		if err := snd.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing sender")
		}
	}()

	ch := channel.New[*telemetry.Envelope](snd, chCfg)

	registry := r.opts.Registry
	if registry == nil {
		registry = collector.DefaultRegistry()
	}
	if err := registry.Configure(cfg.Collectors); err != nil {
		return fmt.Errorf("failed to configure collectors: %w", err)
	}

	tags := r.hostTags(host)
	sched := scheduler.New(registry, ch, cfg.InstrumentationKey, tags)

	r.mu.Lock()
	r.host = host
	r.snd = snd
	r.ch = ch
	r.sched = sched
	r.reg = registry
	r.mu.Unlock()

	ch.Write(r.event(cfg.InstrumentationKey, tags, "AgentStarted"))

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	cleanupWatchers := r.startWatchers()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	cleanupWatchers()
	sched.Stop()

	r.mu.Lock()
	iKey := r.cfg.InstrumentationKey
	r.mu.Unlock()
	ch.Write(r.event(iKey, tags, "AgentStopping"))

	drainCtx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
	defer cancel()
	if err := ch.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Int("dropped", ch.Queue().Len()).Msg("Shutdown drain incomplete")
	}

	return nil
}

// Channel returns the running channel, or nil before Run has wired it.
func (r *Runner) Channel() *channel.Channel[*telemetry.Envelope] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch
}

// Config returns the configuration currently in effect.
func (r *Runner) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// ApplyConfig applies a reloaded configuration to the running agent. Channel
// tunables, collectors and identity change in place; transport and channel mode
// changes need a restart.
func (r *Runner) ApplyConfig(newCfg *config.Config) error {
	log := logger.WithComponent("runner")

	if r.opts.Override != nil {
		r.opts.Override(newCfg)
	}

	chCfg, err := ChannelConfig(newCfg.Channel)
	if err != nil {
		return fmt.Errorf("failed to configure channel: %w", err)
	}

	r.mu.Lock()
	old := r.cfg
	ch, sched, reg, host := r.ch, r.sched, r.reg, r.host
	r.cfg = newCfg
	r.mu.Unlock()

	if ch == nil {
		return nil
	}

	if senderType(newCfg) != senderType(old) || newCfg.EndpointURI != old.EndpointURI {
		log.Warn().
			Str("sender_type", senderType(newCfg)).
			Msg("Transport settings changed, restart required to apply")
	}
	if chCfg.Mode != ch.Mode() {
		log.Warn().Str("mode", string(chCfg.Mode)).Msg("Channel mode changed, restart required to apply")
	}

	ch.Apply(chCfg)
	log.Info().
		Dur("send_interval", chCfg.SendInterval).
		Dur("send_time", chCfg.SendTime).
		Int("batch_size", chCfg.SendBatchSize).
		Int("max_queue_length", chCfg.MaxQueueLength).
		Msg("Channel settings updated")

	sched.SetIdentity(newCfg.InstrumentationKey, r.hostTags(host))
	return sched.Reconfigure(func() error {
		return reg.Configure(newCfg.Collectors)
	})
}

// ApplyLogging re-initializes logging from a reloaded logging configuration.
func (r *Runner) ApplyLogging(lc *logger.Config) error {
	if err := logger.Init(*lc); err != nil {
		return fmt.Errorf("failed to update logging configuration: %w", err)
	}
	r.mu.Lock()
	r.logCfg = lc
	snd := r.snd
	r.mu.Unlock()

	if cs, ok := snd.(consoleSetter); ok {
		cs.SetConsole(lc.Console)
		log := logger.WithComponent("runner")
		log.Info().Bool("console", lc.Console).Msg("Sender console echo updated")
	}
	return nil
}

func (r *Runner) hostTags(host *network.HostInfo) map[string]string {
	tags := map[string]string{}
	if host == nil {
		return tags
	}
	if host.Hostname != "" {
		tags[TagRoleInstance] = host.Hostname
	}
	if host.IP != "" {
		tags[TagLocationIP] = host.IP
	}
	if r.opts.Version != "" {
		tags[TagAgentVersion] = "telemetrychannel:" + r.opts.Version
	}
	return tags
}

func (r *Runner) event(iKey string, tags map[string]string, name string) *telemetry.Envelope {
	env := telemetry.NewEvent(iKey, name, nil)
	for k, v := range tags {
		env.Tags[k] = v
	}
	return env
}

// startWatchers creates hot-reload watchers for the config and logging files.
// It returns a function that stops all started watchers.
func (r *Runner) startWatchers() func() {
	log := logger.WithComponent("runner")
	var watcherMu sync.Mutex
	var cleanups []func()

	start := func(name string, w *config.FileWatcher, err error) {
		if err != nil {
			log.Warn().Err(err).Str("watcher", name).Msg("Failed to create watcher, hot reload disabled")
			return
		}
		if err := w.Start(); err != nil {
			log.Warn().Err(err).Str("watcher", name).Msg("Failed to start watcher")
			return
		}
		cleanups = append(cleanups, func() {
			if err := w.Stop(); err != nil {
				log.Error().Err(err).Str("watcher", name).Msg("Error stopping watcher")
			}
		})
	}

	if r.opts.ConfigPath != "" {
		w, err := config.NewWatcher(r.opts.ConfigPath, func(newCfg *config.Config) {
			watcherMu.Lock()
			defer watcherMu.Unlock()

			log.Info().Msg("Applying configuration changes")
			if err := r.ApplyConfig(newCfg); err != nil {
				log.Error().Err(err).Msg("Failed to apply configuration")
				return
			}
			log.Info().Msg("Configuration updated")
		})
		start("config", w, err)
	}

	if r.opts.LoggingPath != "" {
		w, err := config.NewLoggingWatcher(r.opts.LoggingPath, func(lc *logger.Config) {
			watcherMu.Lock()
			defer watcherMu.Unlock()

			if err := r.ApplyLogging(lc); err != nil {
				log.Error().Err(err).Msg("Failed to apply logging configuration")
				return
			}
			log.Info().Msg("Logging configuration updated")
		})
		start("logging", w, err)
	}

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

func senderType(cfg *config.Config) string {
	if cfg.SenderType == "" {
		return config.SenderHTTP
	}
	return strings.ToLower(cfg.SenderType)
}
