package obs

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLMetricsObserverWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLMetricsObserver(&buf)

	o.RecordEvent(MetricsEvent{
		Name:  "dropped_frames",
		Time:  time.Unix(0, 0),
		Value: 3,
		Tags:  map[string]string{"session_id": "s1"},
	})

	require.Contains(t, buf.String(), `"name":"dropped_frames"`)
	assert.Contains(t, buf.String(), `"session_id":"s1"`)
}

func TestJSONLMetricsObserverNilWriterDiscards(t *testing.T) {
	o := NewJSONLMetricsObserver(nil)
	assert.NotPanics(t, func() {
		o.RecordEvent(MetricsEvent{Name: "x"})
	})
}

func TestNoopMetricsObserverDiscardsEverything(t *testing.T) {
	var o MetricsObserver = NoopMetricsObserver{}
	assert.NotPanics(t, func() {
		o.RecordEvent(MetricsEvent{Name: "x", Value: 1})
	})
}
