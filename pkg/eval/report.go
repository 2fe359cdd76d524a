package eval

import "time"

// Metadata carries model/run identification. The engine leaves these
// zero since it has no notion of a model file, and neither command in
// this module fills them in, so exported reports carry zero metadata.
type Metadata struct {
	ModelPath      string    `json:"model_path"`
	ModelSizeBytes int64     `json:"model_size_bytes"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Accuracy holds WER/CER and their operation-typed breakdowns.
type Accuracy struct {
	WER                  float64    `json:"wer"`
	CER                  float64    `json:"cer"`
	WordEdits            EditResult `json:"word_edits"`
	CharEdits            EditResult `json:"char_edits"`
	ReferenceWordCount   int        `json:"reference_word_count"`
	HypothesisWordCount  int        `json:"hypothesis_word_count"`
}

// Timing holds audio/processing duration and latency statistics.
type Timing struct {
	AudioDurationSeconds      float64 `json:"audio_duration_seconds"`
	ProcessingDurationSeconds float64 `json:"processing_duration_seconds"`
	RealTimeFactor            float64 `json:"real_time_factor"`
	LatencyAvgMs              float64 `json:"latency_avg_ms"`
	LatencyMinMs              float64 `json:"latency_min_ms"`
	LatencyMaxMs              float64 `json:"latency_max_ms"`
}

// Quality holds confidence statistics over all recorded segments.
type Quality struct {
	ConfidenceAvg float64 `json:"confidence_avg"`
	ConfidenceMin float64 `json:"confidence_min"`
	ConfidenceMax float64 `json:"confidence_max"`
}

// EngineMetrics holds recognizer-output-shape counters.
type EngineMetrics struct {
	PartialCount        int     `json:"partial_count"`
	FinalCount          int     `json:"final_count"`
	PartialToFinalRatio float64 `json:"partial_to_final_ratio"`
}

// VADMetrics holds voice-activity-detection accuracy, present only when
// ground truth was supplied.
type VADMetrics struct {
	AccuracyPercent           float64 `json:"accuracy_percent"`
	FalsePositives           int     `json:"false_positives"`
	FalseNegatives           int     `json:"false_negatives"`
	MeanSilenceBeforeSpeechMs float64 `json:"mean_silence_before_speech_ms"`
}

// TextPair holds the reference and concatenated hypothesis text.
type TextPair struct {
	Reference  string `json:"reference"`
	Hypothesis string `json:"hypothesis"`
}

// Throughput holds sample-rate-relative throughput figures.
type Throughput struct {
	SamplesPerSecond float64 `json:"samples_per_second"`
	TotalSegments    int     `json:"total_segments"`
}

// SegmentSummary is one recorded transcription event, surfaced in the
// report's per-segment summary.
type SegmentSummary struct {
	OffsetSeconds float64 `json:"offset_seconds"`
	Kind          string  `json:"kind"`
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	LatencyMs     float64 `json:"latency_ms"`
}

// Report is the aggregate benchmark report: everything derived purely
// from the segment log and reference text.
type Report struct {
	Metadata      Metadata         `json:"metadata"`
	Accuracy      Accuracy         `json:"accuracy"`
	Timing        Timing           `json:"timing"`
	Quality       Quality          `json:"quality"`
	EngineMetrics EngineMetrics    `json:"engine_metrics"`
	VAD           *VADMetrics      `json:"vad,omitempty"`
	Text          TextPair         `json:"text"`
	Throughput    Throughput       `json:"throughput"`
	Segments      []SegmentSummary `json:"segments"`
}
