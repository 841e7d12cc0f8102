package sender

import (
	"encoding/json"
	"fmt"

	"telemetrychannel/internal/telemetry"
)

// RestRecord is a single record of a KafkaRest produce request.
type RestRecord struct {
	Key   string              `json:"key,omitempty"`
	Value *telemetry.Envelope `json:"value"`
}

// RestRecords is the body of a KafkaRest produce request.
type RestRecords struct {
	Records []RestRecord `json:"records"`
}

// EncodeBatch serializes a batch as a JSON array of envelopes.
func EncodeBatch(batch []*telemetry.Envelope) ([]byte, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return data, nil
}

// WrapRecords serializes a batch as a KafkaRest records body, keyed by instrumentation key.
func WrapRecords(batch []*telemetry.Envelope) ([]byte, error) {
	body := RestRecords{Records: make([]RestRecord, 0, len(batch))}
	for _, env := range batch {
		body.Records = append(body.Records, RestRecord{Key: env.IKey, Value: env})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return data, nil
}
