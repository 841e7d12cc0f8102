package sender

import (
	"fmt"
	"time"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/telemetry"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

const testIKey = "11111111-2222-3333-4444-555555555555"

func newBatch(n int) []*telemetry.Envelope {
	batch := make([]*telemetry.Envelope, n)
	for i := range batch {
		batch[i] = telemetry.NewMetric(testIKey, fmt.Sprintf("metric_%d", i), float64(i), nil)
	}
	return batch
}

func fastHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}
}
