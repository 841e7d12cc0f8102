package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telemetrychannel/internal/channel"
	"telemetrychannel/internal/collector"
	"telemetrychannel/internal/config"
	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/telemetry"
)

// mockCollector implements collector.Collector for testing.
type mockCollector struct {
	name     string
	mu       sync.Mutex
	interval time.Duration
	enabled  bool
	fail     bool
	calls    int32
}

func newMockCollector(name string, interval time.Duration, enabled bool) *mockCollector {
	return &mockCollector{
		name:     name,
		interval: interval,
		enabled:  enabled,
	}
}

func (m *mockCollector) Name() string { return m.name }

func (m *mockCollector) Collect(_ context.Context) ([]telemetry.Metric, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	fail := m.fail
	m.mu.Unlock()
	if fail {
		return nil, errors.New("sensor unavailable")
	}
	return []telemetry.Metric{
		{Name: m.name + "_value", Value: 1.0, Properties: map[string]string{"unit": "count"}},
	}, nil
}

func (m *mockCollector) Configure(cfg config.CollectorConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = cfg.Enabled
	m.interval = cfg.Interval
	return nil
}

func (m *mockCollector) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

func (m *mockCollector) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *mockCollector) collectCount() int32 {
	return atomic.LoadInt32(&m.calls)
}

func (m *mockCollector) resetCount() {
	atomic.StoreInt32(&m.calls, 0)
}

// mockCollectorSource implements CollectorSource, returning only enabled mock collectors.
type mockCollectorSource struct {
	mu         sync.Mutex
	collectors []*mockCollector
}

func (s *mockCollectorSource) EnabledCollectors() []collector.Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []collector.Collector
	for _, mc := range s.collectors {
		if mc.Enabled() {
			result = append(result, mc)
		}
	}
	return result
}

// recordingWriter implements Writer and keeps every envelope.
type recordingWriter struct {
	mu   sync.Mutex
	envs []*telemetry.Envelope
}

func (w *recordingWriter) Write(env *telemetry.Envelope) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.envs = append(w.envs, env)
}

func (w *recordingWriter) snapshot() []*telemetry.Envelope {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*telemetry.Envelope(nil), w.envs...)
}

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- Collection ---

func TestStart_WritesEnvelopesWithIdentity(t *testing.T) {
	mc := newMockCollector("test_cpu", time.Hour, true)
	w := &recordingWriter{}
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	tags := map[string]string{"ai.cloud.roleInstance": "host1"}
	sched := New(source, w, "ikey-1", tags)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	waitFor(t, time.Second, func() bool { return len(w.snapshot()) == 1 }, "initial collection")

	env := w.snapshot()[0]
	if env.IKey != "ikey-1" {
		t.Errorf("IKey = %q", env.IKey)
	}
	if env.Tags["ai.cloud.roleInstance"] != "host1" {
		t.Errorf("Tags = %v", env.Tags)
	}
	md, ok := env.Data.BaseData.(*telemetry.MetricData)
	if !ok {
		t.Fatalf("BaseData type = %T", env.Data.BaseData)
	}
	if md.Metrics[0].Name != "test_cpu_value" || md.Metrics[0].Value != 1.0 {
		t.Errorf("metric = %+v", md.Metrics[0])
	}
	if md.Properties["unit"] != "count" {
		t.Errorf("properties = %v", md.Properties)
	}
}

func TestStart_EnvelopeTagsAreNotShared(t *testing.T) {
	mc := newMockCollector("test_mem", 20*time.Millisecond, true)
	w := &recordingWriter{}
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	tags := map[string]string{"ai.location.ip": "10.0.0.1"}
	sched := New(source, w, "", tags)
	_ = sched.Start(context.Background())
	waitFor(t, time.Second, func() bool { return len(w.snapshot()) >= 2 }, "two collections")
	sched.Stop()

	envs := w.snapshot()
	envs[0].Tags["extra"] = "x"
	if _, ok := envs[1].Tags["extra"]; ok {
		t.Error("envelopes share the tag map")
	}
	if _, ok := tags["extra"]; ok {
		t.Error("scheduler tag map mutated through envelope")
	}
}

func TestStart_CollectionErrorWritesNothing(t *testing.T) {
	mc := newMockCollector("test_fail", 20*time.Millisecond, true)
	mc.fail = true
	w := &recordingWriter{}
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, w, "", nil)
	_ = sched.Start(context.Background())
	waitFor(t, time.Second, func() bool { return mc.collectCount() >= 2 }, "collector to keep running after error")
	sched.Stop()

	if n := len(w.snapshot()); n != 0 {
		t.Errorf("expected no envelopes from failing collector, got %d", n)
	}
}

func TestStart_Idempotent(t *testing.T) {
	mc := newMockCollector("test_once", time.Hour, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}
	sched := New(source, &recordingWriter{}, "", nil)

	_ = sched.Start(context.Background())
	_ = sched.Start(context.Background())
	waitFor(t, time.Second, func() bool { return mc.collectCount() >= 1 }, "initial collection")
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if got := mc.collectCount(); got != 1 {
		t.Errorf("expected a single collector goroutine, got %d collections", got)
	}
}

func TestStop_HaltsCollection(t *testing.T) {
	mc := newMockCollector("test_stop", 20*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}
	sched := New(source, &recordingWriter{}, "", nil)

	_ = sched.Start(context.Background())
	waitFor(t, time.Second, func() bool { return mc.collectCount() >= 1 }, "collection")
	sched.Stop()

	if sched.IsRunning() {
		t.Fatal("scheduler still running after Stop")
	}
	mc.resetCount()
	time.Sleep(80 * time.Millisecond)
	if got := mc.collectCount(); got != 0 {
		t.Errorf("expected no collections after Stop, got %d", got)
	}
}

func TestSetIdentity(t *testing.T) {
	mc := newMockCollector("test_id", 20*time.Millisecond, true)
	w := &recordingWriter{}
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}
	sched := New(source, w, "old", nil)

	sched.SetIdentity("new", map[string]string{"k": "v"})
	_ = sched.Start(context.Background())
	waitFor(t, time.Second, func() bool { return len(w.snapshot()) >= 1 }, "collection")
	sched.Stop()

	env := w.snapshot()[0]
	if env.IKey != "new" || env.Tags["k"] != "v" {
		t.Errorf("identity not applied: ikey=%q tags=%v", env.IKey, env.Tags)
	}
}

// --- Reconfigure ---

func TestReconfigure_IntervalChange(t *testing.T) {
	mc := newMockCollector("test_cpu", 50*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, &recordingWriter{}, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = sched.Start(ctx)

	time.Sleep(180 * time.Millisecond)
	countBefore := mc.collectCount()

	err := sched.Reconfigure(func() error {
		mc.resetCount()
		return mc.Configure(config.CollectorConfig{Enabled: true, Interval: 200 * time.Millisecond})
	})
	if err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}

	// Over 500ms at 200ms: the initial collection plus about two ticks.
	time.Sleep(500 * time.Millisecond)
	countAfter := mc.collectCount()

	if countBefore < 2 {
		t.Errorf("before reconfigure: expected at least 2 collections at 50ms, got %d", countBefore)
	}
	if countAfter < 2 || countAfter > 5 {
		t.Errorf("after reconfigure: expected 2-5 collections at 200ms interval over 500ms, got %d", countAfter)
	}

	sched.Stop()
}

func TestReconfigure_DisableCollector(t *testing.T) {
	mc := newMockCollector("test_mem", 50*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, &recordingWriter{}, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = sched.Start(ctx)
	time.Sleep(120 * time.Millisecond)

	if mc.collectCount() < 1 {
		t.Fatal("expected at least 1 collection before disable")
	}

	_ = sched.Reconfigure(func() error {
		return mc.Configure(config.CollectorConfig{Enabled: false, Interval: 50 * time.Millisecond})
	})
	mc.resetCount()

	time.Sleep(200 * time.Millisecond)

	if mc.collectCount() != 0 {
		t.Errorf("after disable: expected 0 collections, got %d", mc.collectCount())
	}

	sched.Stop()
}

func TestReconfigure_EnableCollector(t *testing.T) {
	mc := newMockCollector("test_disk", 50*time.Millisecond, false)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, &recordingWriter{}, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = sched.Start(ctx)
	time.Sleep(120 * time.Millisecond)

	if mc.collectCount() != 0 {
		t.Errorf("expected 0 collections while disabled, got %d", mc.collectCount())
	}

	_ = sched.Reconfigure(func() error {
		return mc.Configure(config.CollectorConfig{Enabled: true, Interval: 50 * time.Millisecond})
	})

	time.Sleep(150 * time.Millisecond)

	if mc.collectCount() < 1 {
		t.Error("expected at least 1 collection after enable")
	}

	sched.Stop()
}

func TestReconfigure_WhileNotRunning(t *testing.T) {
	mc := newMockCollector("test_net", 50*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, &recordingWriter{}, "", nil)

	called := false
	if err := sched.Reconfigure(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}

	if !called {
		t.Error("update not applied while stopped")
	}
	if sched.IsRunning() {
		t.Error("scheduler should not be running after Reconfigure on non-started scheduler")
	}
}

func TestReconfigure_UpdateErrorStillRestarts(t *testing.T) {
	mc := newMockCollector("test_err", 50*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}
	sched := New(source, &recordingWriter{}, "", nil)

	_ = sched.Start(context.Background())
	defer sched.Stop()

	wantErr := errors.New("bad collector config")
	if err := sched.Reconfigure(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Reconfigure error = %v, want %v", err, wantErr)
	}
	if !sched.IsRunning() {
		t.Fatal("scheduler should keep running with the previous configuration")
	}
}

func TestReconfigure_ConcurrentSafety(t *testing.T) {
	mc := newMockCollector("test_concurrent", 50*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, &recordingWriter{}, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = sched.Start(ctx)
	time.Sleep(80 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_ = sched.Reconfigure(nil)
		}()
	}
	wg.Wait()

	if !sched.IsRunning() {
		t.Fatal("scheduler should still be running after concurrent Reconfigure")
	}

	mc.resetCount()
	time.Sleep(150 * time.Millisecond)

	if mc.collectCount() < 1 {
		t.Error("expected at least 1 collection after concurrent Reconfigure")
	}

	sched.Stop()
}

func TestReconfigure_PreservesParentContext(t *testing.T) {
	mc := newMockCollector("test_temp", 50*time.Millisecond, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}

	sched := New(source, &recordingWriter{}, "", nil)

	ctx, cancel := context.WithCancel(context.Background())

	_ = sched.Start(ctx)
	_ = sched.Reconfigure(nil)

	time.Sleep(80 * time.Millisecond)
	if mc.collectCount() < 1 {
		t.Fatal("expected collections after Reconfigure")
	}

	// Cancelling the parent stops the restarted goroutines.
	cancel()
	time.Sleep(30 * time.Millisecond)
	mc.resetCount()
	time.Sleep(150 * time.Millisecond)

	if got := mc.collectCount(); got != 0 {
		t.Errorf("expected 0 collections after parent cancel, got %d", got)
	}

	sched.Stop()
}

// --- Channel integration ---

func TestScheduler_FeedsChannel(t *testing.T) {
	var mu sync.Mutex
	var sent []*telemetry.Envelope
	tx := channel.TransmitFunc[*telemetry.Envelope](func(_ context.Context, batch []*telemetry.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, batch...)
		return nil
	})

	cfg := channel.DefaultConfig()
	cfg.SendInterval = channel.MinSendInterval
	cfg.SendTime = 500 * time.Millisecond
	ch := channel.New[*telemetry.Envelope](tx, cfg)

	mc := newMockCollector("test_chan", time.Hour, true)
	source := &mockCollectorSource{collectors: []*mockCollector{mc}}
	sched := New(source, ch, "ikey", nil)

	_ = sched.Start(context.Background())
	defer sched.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) == 1
	}, "envelope to reach transmitter")
}
