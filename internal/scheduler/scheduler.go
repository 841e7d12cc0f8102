// Package scheduler runs collectors on their intervals and writes their samples to the channel.
package scheduler

import (
	"context"
	"sync"
	"time"

	"telemetrychannel/internal/collector"
	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/telemetry"
)

const collectTimeout = 30 * time.Second

// CollectorSource supplies the collectors to run.
type CollectorSource interface {
	EnabledCollectors() []collector.Collector
}

// Writer accepts enveloped samples. *channel.Channel[*telemetry.Envelope] satisfies it.
type Writer interface {
	Write(env *telemetry.Envelope)
}

// Scheduler manages the periodic collection of metrics.
type Scheduler struct {
	source CollectorSource
	out    Writer

	idMu sync.RWMutex
	iKey string
	tags map[string]string

	// reconfigMu serializes Reconfigure calls.
	reconfigMu sync.Mutex

	mu      sync.Mutex
	running bool
	parent  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler that stamps every envelope with iKey and tags.
func New(source CollectorSource, out Writer, iKey string, tags map[string]string) *Scheduler {
	return &Scheduler{
		source: source,
		out:    out,
		iKey:   iKey,
		tags:   tags,
	}
}

// SetIdentity replaces the instrumentation key and tags used for new envelopes.
func (s *Scheduler) SetIdentity(iKey string, tags map[string]string) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.iKey = iKey
	s.tags = tags
}

// Start begins the metric collection schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.parent = ctx

	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	log := logger.WithComponent("scheduler")
	log.Info().Msg("Starting scheduler")

	collectors := s.source.EnabledCollectors()
	log.Info().Int("enabled_count", len(collectors)).Msg("Enabled collectors count")
	for _, c := range collectors {
		s.wg.Add(1)
		go s.runCollector(ctx, c)
	}

	return nil
}

// Stop stops the scheduler and waits for all collectors to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	log := logger.WithComponent("scheduler")
	log.Info().Msg("Stopping scheduler, waiting for collectors to finish")

	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reconfigure stops every collector goroutine, runs update if given, and
// restarts collection under the original parent context when the scheduler
// was running. Changed intervals and enablement take effect on restart.
func (s *Scheduler) Reconfigure(update func() error) error {
	s.reconfigMu.Lock()
	defer s.reconfigMu.Unlock()

	s.mu.Lock()
	wasRunning := s.running
	parent := s.parent
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}

	var err error
	if update != nil {
		err = update()
		if err != nil {
			log := logger.WithComponent("scheduler")
			log.Error().Err(err).Msg("Collector reconfiguration failed")
		}
	}

	if wasRunning {
		if startErr := s.Start(parent); startErr != nil && err == nil {
			err = startErr
		}
	}
	return err
}

func (s *Scheduler) runCollector(ctx context.Context, c collector.Collector) {
	defer s.wg.Done()

	log := logger.WithComponent("scheduler")
	name := c.Name()
	interval := c.Interval()

	log.Info().
		Str("collector", name).
		Dur("interval", interval).
		Msg("Starting collector")

	s.collect(ctx, c)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("collector", name).Msg("Collector stopped")
			return
		case <-ticker.C:
			s.collect(ctx, c)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context, c collector.Collector) {
	log := logger.WithComponent("scheduler")
	name := c.Name()

	collectCtx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	startTime := time.Now()
	metrics, err := c.Collect(collectCtx)
	duration := time.Since(startTime)

	if err != nil {
		log.Error().
			Err(err).
			Str("collector", name).
			Dur("duration", duration).
			Msg("Collection failed")
		return
	}

	if len(metrics) == 0 {
		log.Debug().Str("collector", name).Msg("Collector returned no metrics")
		return
	}

	s.idMu.RLock()
	iKey, tags := s.iKey, s.tags
	s.idMu.RUnlock()

	for _, m := range metrics {
		env := telemetry.NewMetric(iKey, m.Name, m.Value, m.Properties)
		for k, v := range tags {
			env.Tags[k] = v
		}
		s.out.Write(env)
	}

	log.Debug().
		Str("collector", name).
		Int("metrics", len(metrics)).
		Dur("duration", duration).
		Msg("Collection completed")
}
