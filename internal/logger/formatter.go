package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FixedFormatWriter turns zerolog JSON lines into fixed-width columns:
//
//	2026-10-19 12:00:00.000 [INF] [batch-sender    ] Batch transmitted batch_size=100
//	2026-10-19 12:00:01.200 [ERR] [http-sender     ] Failed to transmit batch error="HTTP 503"
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter wraps w.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

const (
	componentWidth = 16
	timestampWidth = 23
)

var levelAbbrev = map[string]string{
	zerolog.TraceLevel.String(): "TRC",
	zerolog.DebugLevel.String(): "DBG",
	zerolog.InfoLevel.String():  "INF",
	zerolog.WarnLevel.String():  "WRN",
	zerolog.ErrorLevel.String(): "ERR",
	zerolog.FatalLevel.String(): "FTL",
	zerolog.PanicLevel.String(): "PNC",
}

func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return f.w.Write(p)
	}

	ts := formatTimestamp(takeString(fields, zerolog.TimestampFieldName))
	level := takeString(fields, zerolog.LevelFieldName)
	component := takeString(fields, "component")
	message := takeString(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.CallerFieldName)

	lvl, ok := levelAbbrev[level]
	if !ok {
		lvl = "???"
	}
	if len(component) > componentWidth {
		component = component[:componentWidth]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%-*s] %s", ts, lvl, componentWidth, component, message)
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(f.w, b.String())
	// zerolog checks the count against the JSON it handed us.
	return len(p), err
}

// takeString removes key from fields and returns its value rendered as a string.
func takeString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// formatTimestamp renders an RFC3339 timestamp as "2006-01-02 15:04:05.000".
func formatTimestamp(ts string) string {
	if len(ts) < 19 {
		return ts + strings.Repeat(" ", timestampWidth-len(ts))
	}

	result := strings.Replace(ts, "T", " ", 1)
	if idx := strings.IndexAny(result[19:], "Z+-"); idx >= 0 {
		result = result[:19+idx]
	}

	dot := strings.LastIndex(result, ".")
	switch {
	case dot == -1:
		result += ".000"
	case len(result)-dot-1 > 3:
		result = result[:dot+4]
	default:
		result += strings.Repeat("0", 3-(len(result)-dot-1))
	}

	if len(result) > timestampWidth {
		return result[:timestampWidth]
	}
	return result
}

// formatExtra renders the remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := fmt.Sprintf("%v", fields[k])
		if strings.ContainsAny(s, " \t\n\"") {
			parts = append(parts, fmt.Sprintf("%s=%q", k, s))
		} else {
			parts = append(parts, k+"="+s)
		}
	}
	return strings.Join(parts, " ")
}
