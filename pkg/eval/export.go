package eval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Format selects a benchmark report's export representation.
type Format string

const (
	FormatText       Format = "text"
	FormatStructured Format = "structured"
	FormatTabular    Format = "tabular"
)

// Export writes report to path in the given format.
func Export(report Report, path string, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eval: create report file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatStructured:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("eval: encode structured report: %w", err)
		}
		return nil
	case FormatTabular:
		return writeTabular(f, report)
	case FormatText:
		return writeText(f, report)
	default:
		return fmt.Errorf("eval: unknown report format %q", format)
	}
}

func writeTabular(f *os.File, r Report) error {
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"metric", "value", "unit"}); err != nil {
		return err
	}

	rows := [][]string{
		{"wer", fmtFloat(r.Accuracy.WER), "percent"},
		{"cer", fmtFloat(r.Accuracy.CER), "percent"},
		{"word_distance", strconv.Itoa(r.Accuracy.WordEdits.Distance), "count"},
		{"char_distance", strconv.Itoa(r.Accuracy.CharEdits.Distance), "count"},
		{"audio_duration", fmtFloat(r.Timing.AudioDurationSeconds * 1000), "milliseconds"},
		{"processing_duration", fmtFloat(r.Timing.ProcessingDurationSeconds * 1000), "milliseconds"},
		{"real_time_factor", fmtFloat(r.Timing.RealTimeFactor), "ratio"},
		{"latency_avg", fmtFloat(r.Timing.LatencyAvgMs), "milliseconds"},
		{"latency_min", fmtFloat(r.Timing.LatencyMinMs), "milliseconds"},
		{"latency_max", fmtFloat(r.Timing.LatencyMaxMs), "milliseconds"},
		{"confidence_avg", fmtFloat(r.Quality.ConfidenceAvg), "score"},
		{"confidence_min", fmtFloat(r.Quality.ConfidenceMin), "score"},
		{"confidence_max", fmtFloat(r.Quality.ConfidenceMax), "score"},
		{"partial_count", strconv.Itoa(r.EngineMetrics.PartialCount), "count"},
		{"final_count", strconv.Itoa(r.EngineMetrics.FinalCount), "count"},
		{"partial_to_final_ratio", fmtFloat(r.EngineMetrics.PartialToFinalRatio), "ratio"},
		{"samples_per_second", fmtFloat(r.Throughput.SamplesPerSecond), "rate"},
		{"total_segments", strconv.Itoa(r.Throughput.TotalSegments), "count"},
	}
	if r.VAD != nil {
		rows = append(rows,
			[]string{"vad_accuracy", fmtFloat(r.VAD.AccuracyPercent), "percent"},
			[]string{"vad_false_positives", strconv.Itoa(r.VAD.FalsePositives), "count"},
			[]string{"vad_false_negatives", strconv.Itoa(r.VAD.FalseNegatives), "count"},
			[]string{"vad_mean_silence_before_speech", fmtFloat(r.VAD.MeanSilenceBeforeSpeechMs), "milliseconds"},
		)
	}

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeText(f *os.File, r Report) error {
	sections := []struct {
		title string
		lines []string
	}{
		{
			title: "Model",
			lines: []string{
				fmt.Sprintf("path:        %s", r.Metadata.ModelPath),
				fmt.Sprintf("size_bytes:  %d", r.Metadata.ModelSizeBytes),
				fmt.Sprintf("generated:   %s", r.Metadata.GeneratedAt.Format("2006-01-02T15:04:05Z07:00")),
			},
		},
		{
			title: "Accuracy",
			lines: []string{
				fmt.Sprintf("WER: %.2f%% (distance=%d subs=%d dels=%d ins=%d, ref_words=%d, hyp_words=%d)",
					r.Accuracy.WER, r.Accuracy.WordEdits.Distance, r.Accuracy.WordEdits.Substitutions,
					r.Accuracy.WordEdits.Deletions, r.Accuracy.WordEdits.Insertions,
					r.Accuracy.ReferenceWordCount, r.Accuracy.HypothesisWordCount),
				fmt.Sprintf("CER: %.2f%% (distance=%d subs=%d dels=%d ins=%d)",
					r.Accuracy.CER, r.Accuracy.CharEdits.Distance, r.Accuracy.CharEdits.Substitutions,
					r.Accuracy.CharEdits.Deletions, r.Accuracy.CharEdits.Insertions),
			},
		},
		{
			title: "Timing",
			lines: []string{
				fmt.Sprintf("audio_duration:      %.3fs", r.Timing.AudioDurationSeconds),
				fmt.Sprintf("processing_duration: %.3fs", r.Timing.ProcessingDurationSeconds),
				fmt.Sprintf("real_time_factor:    %.3f", r.Timing.RealTimeFactor),
				fmt.Sprintf("latency avg/min/max: %.1f/%.1f/%.1f ms", r.Timing.LatencyAvgMs, r.Timing.LatencyMinMs, r.Timing.LatencyMaxMs),
			},
		},
		{
			title: "Quality",
			lines: []string{
				fmt.Sprintf("confidence avg/min/max: %.3f/%.3f/%.3f", r.Quality.ConfidenceAvg, r.Quality.ConfidenceMin, r.Quality.ConfidenceMax),
			},
		},
		{
			title: "Recognizer",
			lines: []string{
				fmt.Sprintf("partial=%d final=%d ratio=%.2f", r.EngineMetrics.PartialCount, r.EngineMetrics.FinalCount, r.EngineMetrics.PartialToFinalRatio),
			},
		},
	}

	if r.VAD != nil {
		sections = append(sections, struct {
			title string
			lines []string
		}{
			title: "VAD",
			lines: []string{
				fmt.Sprintf("accuracy: %.2f%% fp=%d fn=%d mean_silence_before_speech=%.1fms",
					r.VAD.AccuracyPercent, r.VAD.FalsePositives, r.VAD.FalseNegatives, r.VAD.MeanSilenceBeforeSpeechMs),
			},
		})
	}

	sections = append(sections,
		struct {
			title string
			lines []string
		}{title: "Reference", lines: []string{r.Text.Reference}},
		struct {
			title string
			lines []string
		}{title: "Hypothesis", lines: []string{r.Text.Hypothesis}},
		struct {
			title string
			lines []string
		}{title: "Throughput", lines: []string{
			fmt.Sprintf("samples_per_second: %.1f, total_segments: %d", r.Throughput.SamplesPerSecond, r.Throughput.TotalSegments),
		}},
		struct {
			title string
			lines []string
		}{title: "Segments", lines: segmentLines(r.Segments)},
	)

	for _, section := range sections {
		if _, err := fmt.Fprintf(f, "== %s ==\n", section.title); err != nil {
			return err
		}
		for _, line := range section.lines {
			if _, err := fmt.Fprintln(f, line); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(f); err != nil {
			return err
		}
	}
	return nil
}

func segmentLines(segments []SegmentSummary) []string {
	if len(segments) == 0 {
		return []string{"(no segments recorded)"}
	}
	lines := make([]string, 0, len(segments))
	for i, seg := range segments {
		lines = append(lines, fmt.Sprintf("%3d. [%7.2fs] %-7s conf=%.3f latency=%6.1fms  %s",
			i+1, seg.OffsetSeconds, seg.Kind, seg.Confidence, seg.LatencyMs, seg.Text))
	}
	return lines
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
