package obs

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// MetricsEvent is a single named, timestamped measurement with free-form
// tags and fields. stream.Processor records one for each published
// final or partial transcription.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// MetricsObserver receives metrics events. Callers hold no reference to
// a concrete implementation; NoopMetricsObserver is the zero-cost default.
type MetricsObserver interface {
	RecordEvent(ev MetricsEvent)
}

// NoopMetricsObserver discards every event.
type NoopMetricsObserver struct{}

// RecordEvent implements MetricsObserver.
func (NoopMetricsObserver) RecordEvent(MetricsEvent) {}

// JSONLMetricsObserver renders each event as a structured log line.
type JSONLMetricsObserver struct {
	logger *slog.Logger
}

// NewJSONLMetricsObserver builds an observer writing JSON lines to w. A
// nil w discards output while keeping the observer callable.
func NewJSONLMetricsObserver(w io.Writer) *JSONLMetricsObserver {
	if w == nil {
		return &JSONLMetricsObserver{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	}
	return &JSONLMetricsObserver{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// RecordEvent implements MetricsObserver.
func (o *JSONLMetricsObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "metrics", attrs...)
}

var (
	_ MetricsObserver = NoopMetricsObserver{}
	_ MetricsObserver = (*JSONLMetricsObserver)(nil)
)
