// Package recognizer wraps a single-threaded external speech-recognition
// handle behind a thread-safe, chunked driver with well-defined
// finalization semantics.
package recognizer

import (
	"encoding/json"
	"fmt"
)

// Outcome is the tri-state return of a single AcceptWaveform call.
type Outcome int

const (
	OutcomeError        Outcome = -1
	OutcomeAccumulating Outcome = 0
	OutcomeComplete     Outcome = 1
)

// Config mirrors the recognizer config entity: sample rate, optional
// speaker model, and the toggles that apply to subsequent chunks.
type Config struct {
	SampleRate      int
	SpeakerModelPath string
	WordTimes       bool
	PartialWords    bool
	MaxAlternatives int
	NlsmlOutput     bool
	Grammar         string
}

// Validate checks the recognizer config invariants.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("recognizer: sample_rate must be > 0")
	}
	if c.MaxAlternatives < 0 || c.MaxAlternatives > 10 {
		return fmt.Errorf("recognizer: max_alternatives must be in [0,10], got %d", c.MaxAlternatives)
	}
	return nil
}

// Adapter is the external recognizer contract: an opaque, single-
// threaded handle exposing waveform ingestion, result retrieval, and
// the mutation operations the driver exposes to callers.
type Adapter interface {
	AcceptWaveform(pcm []int16) (Outcome, error)
	Result() string
	PartialResult() string
	FinalResult() string
	Reset()
	SetGrammar(grammar string)
	SetMaxAlternatives(n int)
	SetNlsmlOutput(enabled bool)
	Close() error
}

// WordTiming is a single word's timing entry in a result's "result" array.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Alternative is one entry of a result's n-best "alternatives" array.
type Alternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result is the structured shape of the JSON the driver emits, per the
// recognizer adapter contract's field set.
type Result struct {
	Text          string        `json:"text,omitempty"`
	Partial       string        `json:"partial,omitempty"`
	Words         []WordTiming  `json:"result,omitempty"`
	Alternatives  []Alternative `json:"alternatives,omitempty"`
	SpeakerVector []float64     `json:"spk,omitempty"`
	SpeakerFrames int           `json:"spk_frames,omitempty"`
}

// ParseResult decodes a driver result string. An empty string parses to
// a zero Result with no error.
func ParseResult(raw string) (Result, error) {
	var r Result
	if raw == "" {
		return r, nil
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, fmt.Errorf("recognizer: malformed result json: %w", err)
	}
	return r, nil
}
