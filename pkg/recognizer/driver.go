package recognizer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jwongso/vstream/pkg/obs"
)

// Driver presents a thread-safe, chunked interface over a single-
// threaded Adapter. All recognizer interactions occur under a single
// exclusive lock; total_samples is tracked with an atomic counter
// outside that lock since it does not depend on recognizer state.
type Driver struct {
	mu           sync.Mutex
	adapter      Adapter
	chunkSamples int
	sessionID    string

	totalSamples atomic.Uint64
	errorCount   atomic.Uint64

	justFinalized  bool
	lastPartial    string
	log            *slog.Logger
}

// NewDriver wraps adapter with chunking sized to 100ms at sampleRate.
func NewDriver(adapter Adapter, sampleRate int) *Driver {
	return &Driver{
		adapter:      adapter,
		chunkSamples: sampleRate / 10,
		log:          slog.Default(),
	}
}

// SetSessionID tags the tracing spans started by Process. Optional;
// spans are emitted with an empty session.id attribute when unset.
func (d *Driver) SetSessionID(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = sessionID
}

// Process accepts a PCM buffer (possibly empty) and a force-final flag,
// returning an opaque result JSON string. Wrapped in a tracing span
// covering the whole chunk, including every sub-chunk fed to the
// adapter.
func (d *Driver) Process(pcm []int16, forceFinal bool) string {
	d.totalSamples.Add(uint64(len(pcm)))

	_, span := obs.InstrumentRecognizerChunk(context.Background(), d.sessionID, len(pcm), forceFinal)
	defer span.End()

	result, outcome := d.process(pcm, forceFinal)
	obs.InstrumentRecognizerOutcome(span, outcome, len(result))
	return result
}

func (d *Driver) process(pcm []int16, forceFinal bool) (result string, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pcm) == 0 {
		if forceFinal {
			res := d.adapter.FinalResult()
			d.justFinalized = true
			d.lastPartial = ""
			return emptyIfBlank(res), "final"
		}
		return "{}", "empty"
	}

	if d.justFinalized {
		d.adapter.Reset()
		d.justFinalized = false
	}

	chunk := d.chunkSamples
	if chunk <= 0 {
		chunk = len(pcm)
	}

	lastPartial := "{}"
	for i := 0; i < len(pcm); {
		end := i + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		slice := pcm[i:end]
		i = end

		acceptOutcome, err := d.adapter.AcceptWaveform(slice)
		if err != nil {
			d.errorCount.Add(1)
			d.log.Warn("recognizer chunk error", "error", err)
			continue
		}

		switch acceptOutcome {
		case OutcomeComplete:
			res := d.adapter.Result()
			d.justFinalized = true
			d.lastPartial = ""
			return emptyIfBlank(res), "complete"
		case OutcomeAccumulating:
			lastPartial = emptyIfBlank(d.adapter.PartialResult())
			d.lastPartial = lastPartial
		case OutcomeError:
			d.errorCount.Add(1)
			d.log.Warn("recognizer reported error outcome")
		}
	}

	return lastPartial, "partial"
}

// Reset clears recognizer state; subsequent Process calls begin a new
// utterance.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapter.Reset()
	d.justFinalized = false
	d.lastPartial = ""
}

// SetGrammar forwards to the adapter; an empty string clears constraints.
func (d *Driver) SetGrammar(grammarJSON string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapter.SetGrammar(grammarJSON)
}

// SetMaxAlternatives forwards to the adapter.
func (d *Driver) SetMaxAlternatives(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapter.SetMaxAlternatives(n)
}

// SetNlsmlOutput forwards to the adapter.
func (d *Driver) SetNlsmlOutput(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapter.SetNlsmlOutput(enabled)
}

// HasPartialResult reports whether a non-empty partial is pending.
func (d *Driver) HasPartialResult() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastPartial == "" {
		return false
	}
	r, err := ParseResult(d.lastPartial)
	if err != nil {
		return false
	}
	return r.Partial != ""
}

// TotalSamples returns the monotonic sample counter, never reset by Reset.
func (d *Driver) TotalSamples() uint64 {
	return d.totalSamples.Load()
}

// ErrorCount returns the count of recoverable recognizer errors observed.
func (d *Driver) ErrorCount() uint64 {
	return d.errorCount.Load()
}

// Close releases the underlying adapter's resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adapter.Close()
}

func emptyIfBlank(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
