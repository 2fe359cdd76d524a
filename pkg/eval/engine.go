// Package eval computes offline transcription quality metrics — WER,
// CER, latency, real-time factor, and optional VAD accuracy — from a
// session's segment log and reference text.
package eval

import (
	"strings"
	"sync"
	"time"
)

// Segment is one recorded transcription event, with timing derived at
// record time rather than supplied by the caller: end is the moment of
// recording and start is end minus the reported latency, which keeps
// end >= start without requiring add_transcription's signature to carry
// explicit timestamps.
type Segment struct {
	Text         string
	Kind         string
	Start        time.Time
	End          time.Time
	Confidence   float64
	AudioSamples uint64
	LatencyMs    float64
}

// VADDecision is one recorded voice-activity decision.
type VADDecision struct {
	IsSpeech            bool
	SilenceFramesBefore int
}

// Engine is a self-contained evaluation session: it holds its own
// segment log and is otherwise stateless with respect to the rest of
// the system.
type Engine struct {
	mu sync.Mutex

	sampleRate int
	running    bool
	startTime  time.Time
	stopTime   time.Time

	reference      string
	vadGroundTruth []bool
	vadFrameMs     int

	segments     []Segment
	vadDecisions []VADDecision
	totalSamples uint64
}

// NewEngine constructs an Engine for audio at sampleRate.
func NewEngine(sampleRate int) *Engine {
	return &Engine{sampleRate: sampleRate}
}

// Start begins a new session, clearing any prior segment log.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	e.startTime = time.Now()
	e.stopTime = time.Time{}
	e.segments = nil
	e.vadDecisions = nil
	e.totalSamples = 0
}

// Stop ends the session and returns the final report. Outstanding
// add_* calls after Stop are no-ops.
func (e *Engine) Stop() Report {
	e.mu.Lock()
	e.running = false
	e.stopTime = time.Now()
	report := e.buildReport()
	e.mu.Unlock()
	return report
}

// SetReference sets the reference transcript WER/CER are computed
// against.
func (e *Engine) SetReference(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reference = text
}

// SetVADGroundTruth supplies optional ground-truth voice-activity labels
// at the given frame duration.
func (e *Engine) SetVADGroundTruth(labels []bool, frameMs int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vadGroundTruth = labels
	e.vadFrameMs = frameMs
}

// AddTranscription records a segment. A no-op once the session has
// stopped.
func (e *Engine) AddTranscription(text string, kind string, confidence float64, audioSamples uint64, latencyMs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	end := time.Now()
	start := end.Add(-time.Duration(latencyMs) * time.Millisecond)
	e.segments = append(e.segments, Segment{
		Text:         text,
		Kind:         kind,
		Start:        start,
		End:          end,
		Confidence:   confidence,
		AudioSamples: audioSamples,
		LatencyMs:    latencyMs,
	})
	e.totalSamples += audioSamples
}

// AddVADDecision records an optional voice-activity decision. A no-op
// once the session has stopped.
func (e *Engine) AddVADDecision(isSpeech bool, silenceFramesBefore int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.vadDecisions = append(e.vadDecisions, VADDecision{IsSpeech: isSpeech, SilenceFramesBefore: silenceFramesBefore})
}

// Snapshot returns a live report; safe to call during an active session.
func (e *Engine) Snapshot() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildReport()
}

func (e *Engine) buildReport() Report {
	finalTexts := make([]string, 0, len(e.segments))
	partialCount, finalCount := 0, 0
	var confidences []float64
	var latencies []float64

	for _, seg := range e.segments {
		confidences = append(confidences, seg.Confidence)
		if seg.LatencyMs > 0 {
			latencies = append(latencies, seg.LatencyMs)
		}
		switch seg.Kind {
		case "final":
			finalCount++
			finalTexts = append(finalTexts, seg.Text)
		case "partial":
			partialCount++
		}
	}
	hypothesis := strings.Join(finalTexts, " ")

	refNorm := normalize(e.reference)
	hypNorm := normalize(hypothesis)
	refTokens := tokenize(refNorm)
	hypTokens := tokenize(hypNorm)

	wordEdits := levenshtein(refTokens, hypTokens)
	wer := wordErrorPercent(len(refTokens), len(hypTokens), wordEdits.Distance)

	refChars := charSequence(refNorm)
	hypChars := charSequence(hypNorm)
	charEdits := levenshtein(refChars, hypChars)
	cer := wordErrorPercent(len(refChars), len(hypChars), charEdits.Distance)

	latAvg, latMin, latMax := stats(latencies)
	confAvg, confMin, confMax := stats(confidences)

	elapsed := e.elapsed()
	audioDuration := 0.0
	if e.sampleRate > 0 {
		audioDuration = float64(e.totalSamples) / float64(e.sampleRate)
	}
	rtf := 0.0
	if audioDuration > 0 {
		rtf = elapsed / audioDuration
	}
	samplesPerSecond := 0.0
	if elapsed > 0 {
		samplesPerSecond = float64(e.totalSamples) / elapsed
	}

	report := Report{
		Accuracy: Accuracy{
			WER:                 wer,
			CER:                 cer,
			WordEdits:           wordEdits,
			CharEdits:           charEdits,
			ReferenceWordCount:  len(refTokens),
			HypothesisWordCount: len(hypTokens),
		},
		Timing: Timing{
			AudioDurationSeconds:      audioDuration,
			ProcessingDurationSeconds: elapsed,
			RealTimeFactor:            rtf,
			LatencyAvgMs:              latAvg,
			LatencyMinMs:              latMin,
			LatencyMaxMs:              latMax,
		},
		Quality: Quality{
			ConfidenceAvg: confAvg,
			ConfidenceMin: confMin,
			ConfidenceMax: confMax,
		},
		EngineMetrics: EngineMetrics{
			PartialCount:        partialCount,
			FinalCount:          finalCount,
			PartialToFinalRatio: float64(partialCount) / float64(maxInt(1, finalCount)),
		},
		Text: TextPair{
			Reference:  e.reference,
			Hypothesis: hypothesis,
		},
		Throughput: Throughput{
			SamplesPerSecond: samplesPerSecond,
			TotalSegments:    len(e.segments),
		},
		Segments: e.segmentSummaries(),
	}

	if len(e.vadGroundTruth) > 0 {
		report.VAD = e.vadReport()
	}

	return report
}

// segmentSummaries projects the segment log into the report's
// per-segment summary, with offsets relative to the session start.
func (e *Engine) segmentSummaries() []SegmentSummary {
	out := make([]SegmentSummary, 0, len(e.segments))
	for _, seg := range e.segments {
		offset := 0.0
		if !e.startTime.IsZero() {
			offset = seg.End.Sub(e.startTime).Seconds()
		}
		out = append(out, SegmentSummary{
			OffsetSeconds: offset,
			Kind:          seg.Kind,
			Text:          seg.Text,
			Confidence:    seg.Confidence,
			LatencyMs:     seg.LatencyMs,
		})
	}
	return out
}

func (e *Engine) elapsed() float64 {
	if e.startTime.IsZero() {
		return 0
	}
	if e.running {
		return time.Since(e.startTime).Seconds()
	}
	return e.stopTime.Sub(e.startTime).Seconds()
}

func (e *Engine) vadReport() *VADMetrics {
	minLen := len(e.vadGroundTruth)
	if len(e.vadDecisions) < minLen {
		minLen = len(e.vadDecisions)
	}
	if minLen == 0 {
		return &VADMetrics{}
	}

	correct, fp, fn := 0, 0, 0
	var silenceSum float64
	silenceCount := 0
	for i := 0; i < minLen; i++ {
		gt := e.vadGroundTruth[i]
		dec := e.vadDecisions[i]
		if gt == dec.IsSpeech {
			correct++
		}
		if !gt && dec.IsSpeech {
			fp++
		}
		if gt && !dec.IsSpeech {
			fn++
		}
		if dec.IsSpeech && dec.SilenceFramesBefore > 0 {
			silenceSum += float64(dec.SilenceFramesBefore * e.vadFrameMs)
			silenceCount++
		}
	}

	meanSilence := 0.0
	if silenceCount > 0 {
		meanSilence = silenceSum / float64(silenceCount)
	}

	return &VADMetrics{
		AccuracyPercent:           100 * float64(correct) / float64(minLen),
		FalsePositives:            fp,
		FalseNegatives:            fn,
		MeanSilenceBeforeSpeechMs: meanSilence,
	}
}

// wordErrorPercent implements the |R|=0 special case: 0 when hypothesis
// is also empty, else 100; otherwise 100*distance/|R|.
func wordErrorPercent(refLen, hypLen, distance int) float64 {
	if refLen == 0 {
		if hypLen == 0 {
			return 0
		}
		return 100
	}
	return 100 * float64(distance) / float64(refLen)
}

func stats(values []float64) (avg, min, max float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	min, max = values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return sum / float64(len(values)), min, max
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
