// Package telemetry defines the envelope records carried through the channel.
package telemetry

import (
	"strings"
	"time"
)

// Base data type names.
const (
	MetricDataType = "MetricData"
	EventDataType  = "EventData"
)

// Envelope is a single telemetry record as it is put on the wire.
type Envelope struct {
	Name string            `json:"name"`
	Time string            `json:"time"`
	IKey string            `json:"iKey"`
	Tags map[string]string `json:"tags,omitempty"`
	Data Data              `json:"data"`
}

// Data wraps the typed payload of an envelope.
type Data struct {
	BaseType string      `json:"baseType"`
	BaseData interface{} `json:"baseData"`
}

// DataPoint is a single measured value.
type DataPoint struct {
	Name  string  `json:"name"`
	Kind  int     `json:"kind"`
	Value float64 `json:"value"`
	Count int     `json:"count,omitempty"`
}

// MetricData is the payload of a metric envelope.
type MetricData struct {
	Ver        int               `json:"ver"`
	Metrics    []DataPoint       `json:"metrics"`
	Properties map[string]string `json:"properties,omitempty"`
}

// EventData is the payload of a custom event envelope.
type EventData struct {
	Ver        int               `json:"ver"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Metric is a measurement produced by a collector before it is enveloped.
type Metric struct {
	Name       string
	Value      float64
	Properties map[string]string
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

// NewMetric envelopes a single measurement.
func NewMetric(iKey, name string, value float64, props map[string]string) *Envelope {
	return newEnvelope(iKey, "Metric", MetricDataType, &MetricData{
		Ver:        2,
		Metrics:    []DataPoint{{Name: name, Value: value, Count: 1}},
		Properties: props,
	})
}

// NewEvent envelopes a named custom event.
func NewEvent(iKey, name string, props map[string]string) *Envelope {
	return newEnvelope(iKey, "Event", EventDataType, &EventData{
		Ver:        2,
		Name:       name,
		Properties: props,
	})
}

func newEnvelope(iKey, kind, baseType string, baseData interface{}) *Envelope {
	return &Envelope{
		Name: EnvelopeName(iKey, kind),
		Time: nowFunc().UTC().Format(time.RFC3339Nano),
		IKey: iKey,
		Tags: map[string]string{},
		Data: Data{BaseType: baseType, BaseData: baseData},
	}
}

// EnvelopeName returns the fully qualified envelope name for kind.
// The instrumentation key is included without dashes; an empty key is omitted.
func EnvelopeName(iKey, kind string) string {
	key := strings.ReplaceAll(iKey, "-", "")
	if key == "" {
		return "Microsoft.ApplicationInsights." + kind
	}
	return "Microsoft.ApplicationInsights." + key + "." + kind
}
