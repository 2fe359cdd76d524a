// Package stream turns a recognizer driver's per-chunk JSON stream into a
// deduplicated, time-bounded sequence of transcription events.
package stream

import (
	"log/slog"
	"time"

	"github.com/jwongso/vstream/pkg/eval"
	"github.com/jwongso/vstream/pkg/obs"
	"github.com/jwongso/vstream/pkg/recognizer"
)

// Kind distinguishes partial from final transcription events.
type Kind string

const (
	KindPartial Kind = "partial"
	KindFinal   Kind = "final"
)

// Event is a transcription event ready for delivery to a subscriber.
type Event struct {
	Text       string
	Kind       Kind
	SessionID  string
	Confidence float64
	EmittedAt  time.Time
}

// Sink is the broadcast interface transcription events leave the core
// through. transport.Hub implements this.
type Sink interface {
	Broadcast(Event)
}

// EvalRecorder is the optional evaluation-engine write hook; eval.Engine
// implements this.
type EvalRecorder interface {
	AddTranscription(text string, kind string, confidence float64, audioSamples uint64, latencyMs float64)
}

// EvalSnapshotter is the optional read path into a live evaluation
// report. It is kept separate from EvalRecorder so an EvalRecorder that
// only writes (as in tests) is not forced to implement it; eval.Engine
// satisfies both.
type EvalSnapshotter interface {
	Snapshot() eval.Report
}

// Config parameterizes a Processor.
type Config struct {
	SessionID          string
	FinalizeIntervalMs int
	BufferMs           int
	ShowPartial        bool
	Eval               EvalRecorder
	Metrics            obs.MetricsObserver
}

// Processor consumes PCM buffers, drives a recognizer.Driver, and emits
// deduplicated transcription events. Not thread-safe: it is owned by a
// single consumer worker.
type Processor struct {
	driver  *recognizer.Driver
	sink    Sink
	eval    EvalRecorder
	metrics obs.MetricsObserver
	log     *slog.Logger

	sessionID        string
	finalizeInterval time.Duration
	bufferMs         int
	showPartial      bool

	lastFinalText      string
	lastPartialText    string
	lastFinalizeTime   time.Time
	accumulatedSamples uint64

	partials chan Event
}

// NewProcessor constructs a Processor bound to driver and sink.
func NewProcessor(driver *recognizer.Driver, sink Sink, cfg Config) *Processor {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = obs.NoopMetricsObserver{}
	}
	return &Processor{
		driver:           driver,
		sink:             sink,
		eval:             cfg.Eval,
		metrics:          metrics,
		log:              slog.Default(),
		sessionID:        cfg.SessionID,
		finalizeInterval: time.Duration(cfg.FinalizeIntervalMs) * time.Millisecond,
		bufferMs:         cfg.BufferMs,
		showPartial:      cfg.ShowPartial,
		lastFinalizeTime: time.Now(),
		partials:         make(chan Event, 16),
	}
}

// BenchmarkReport returns a live snapshot from the bound evaluation
// engine, if one was configured and it supports the read path. Used by
// the transport's "benchmark_results" command.
func (p *Processor) BenchmarkReport() (eval.Report, bool) {
	snap, ok := p.eval.(EvalSnapshotter)
	if !ok {
		return eval.Report{}, false
	}
	return snap.Snapshot(), true
}

// Partials returns the local-observer channel partial events are
// delivered on. Partial events are never broadcast.
func (p *Processor) Partials() <-chan Event {
	return p.partials
}

// ProcessAudio runs the per-chunk protocol for locally captured audio,
// where confidence on final events is fixed at 1.0.
func (p *Processor) ProcessAudio(pcm []int16) {
	p.processChunk(pcm, func(recognizer.Result) float64 { return 1.0 })
}

// ProcessRemoteAudio runs the per-chunk protocol for audio delivered over
// the transport, extracting confidence from the first alternative when
// present.
func (p *Processor) ProcessRemoteAudio(pcm []int16) {
	p.processChunk(pcm, func(r recognizer.Result) float64 {
		if len(r.Alternatives) > 0 {
			return r.Alternatives[0].Confidence
		}
		return 1.0
	})
}

func (p *Processor) processChunk(pcm []int16, confidenceOf func(recognizer.Result) float64) {
	if len(pcm) == 0 {
		return
	}
	p.accumulatedSamples += uint64(len(pcm))

	raw := p.driver.Process(pcm, false)
	res, err := recognizer.ParseResult(raw)
	if err != nil {
		p.log.Warn("stream: malformed recognizer result", "error", err)
	} else {
		switch {
		case res.Text != "":
			p.recordFinal(res.Text, confidenceOf(res))
		case res.Partial != "" && p.showPartial:
			p.recordPartial(res.Partial)
		}
	}

	if time.Since(p.lastFinalizeTime) >= p.finalizeInterval {
		p.ForceFinalize()
	}
}

// ForceFinalize requests a forced final from the driver, publishes it if
// distinct, then resets the driver and clears partial/finalize-time state.
// Same thread as ProcessAudio.
func (p *Processor) ForceFinalize() {
	raw := p.driver.Process(nil, true)
	res, err := recognizer.ParseResult(raw)
	if err == nil && res.Text != "" {
		p.recordFinal(res.Text, 1.0)
	}
	p.driver.Reset()
	p.lastPartialText = ""
	p.lastFinalizeTime = time.Now()
}

// recordFinal applies the §4.4.1 final path: exact-match dedup, broadcast,
// optional evaluation-engine recording, and the finalize-time update. It
// reports whether the event was published.
func (p *Processor) recordFinal(text string, confidence float64) bool {
	if text == p.lastFinalText {
		return false
	}
	p.lastFinalText = text

	now := time.Now()
	latencyMs := float64(now.Sub(p.lastFinalizeTime).Milliseconds())

	p.sink.Broadcast(Event{
		Text:       text,
		Kind:       KindFinal,
		SessionID:  p.sessionID,
		Confidence: confidence,
		EmittedAt:  now,
	})

	p.metrics.RecordEvent(obs.MetricsEvent{
		Name:  "recognizer.chunk.final",
		Time:  now,
		Value: confidence,
		Tags:  map[string]string{"session_id": p.sessionID},
		Fields: map[string]any{
			"latency_ms":    latencyMs,
			"audio_samples": p.accumulatedSamples,
		},
	})

	if p.eval != nil {
		p.eval.AddTranscription(text, string(KindFinal), confidence, p.accumulatedSamples, latencyMs)
	}
	p.accumulatedSamples = 0

	p.lastFinalizeTime = now
	return true
}

// recordPartial applies the §4.4.2 partial path: exact-match dedup and
// delivery to the local observer channel only. Never broadcast.
func (p *Processor) recordPartial(text string) {
	if text == p.lastPartialText {
		return
	}
	p.lastPartialText = text

	now := time.Now()
	evt := Event{
		Text:      text,
		Kind:      KindPartial,
		SessionID: p.sessionID,
		EmittedAt: now,
	}
	select {
	case p.partials <- evt:
	default:
	}

	p.metrics.RecordEvent(obs.MetricsEvent{
		Name: "recognizer.chunk.partial",
		Time: now,
		Tags: map[string]string{"session_id": p.sessionID},
	})
}

// LastFinalText returns the most recently published final text, for tests
// and diagnostics.
func (p *Processor) LastFinalText() string {
	return p.lastFinalText
}

// Reset clears the driver's recognizer state and this processor's dedup
// caches. Used by the transport's "reset" command.
func (p *Processor) Reset() {
	p.driver.Reset()
	p.lastFinalText = ""
	p.lastPartialText = ""
	p.lastFinalizeTime = time.Now()
}

// SetGrammar forwards to the driver. Used by the transport's
// "set_grammar" command.
func (p *Processor) SetGrammar(grammarJSON string) {
	p.driver.SetGrammar(grammarJSON)
}

// Stats is a snapshot of processor/driver counters for the transport's
// "stats" command.
type Stats struct {
	TotalSamples  uint64
	HasPartial    bool
	LastFinalText string
	ErrorCount    uint64
}

// Stats reports current driver/processor counters.
func (p *Processor) Stats() Stats {
	return Stats{
		TotalSamples:  p.driver.TotalSamples(),
		HasPartial:    p.driver.HasPartialResult(),
		LastFinalText: p.lastFinalText,
		ErrorCount:    p.driver.ErrorCount(),
	}
}
