package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineWERScenarioFive(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.SetReference("the quick brown fox")
	e.AddTranscription("the quik brown fox jumps", "final", 0.9, 1600, 10)
	report := e.Stop()

	assert.InDelta(t, 50.0, report.Accuracy.WER, 0.01)
	assert.Equal(t, 1, report.Accuracy.WordEdits.Substitutions)
	assert.Equal(t, 0, report.Accuracy.WordEdits.Deletions)
	assert.Equal(t, 1, report.Accuracy.WordEdits.Insertions)
	assert.Equal(t, 2, report.Accuracy.WordEdits.Distance)
}

func TestEngineWERScenarioSix(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.SetReference("a b c")
	e.AddTranscription("a c", "final", 1.0, 1600, 10)
	report := e.Stop()

	assert.InDelta(t, 33.33, report.Accuracy.WER, 0.01)
	assert.Equal(t, 0, report.Accuracy.WordEdits.Substitutions)
	assert.Equal(t, 1, report.Accuracy.WordEdits.Deletions)
	assert.Equal(t, 0, report.Accuracy.WordEdits.Insertions)
	assert.Equal(t, 1, report.Accuracy.WordEdits.Distance)
}

func TestEngineWERReferenceEmptyHypothesisNonEmptyIsHundred(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.SetReference("")
	e.AddTranscription("hello", "final", 1.0, 1600, 5)
	report := e.Stop()

	assert.Equal(t, 100.0, report.Accuracy.WER)
}

func TestEngineWERBothEmptyIsZero(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.SetReference("")
	report := e.Stop()

	assert.Equal(t, 0.0, report.Accuracy.WER)
	assert.Equal(t, 0.0, report.Accuracy.CER)
}

func TestEnginePartialFinalCountsSumToTotalSegments(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.AddTranscription("hel", "partial", 0.5, 0, 0)
	e.AddTranscription("hello", "final", 0.9, 1600, 5)
	report := e.Stop()

	assert.Equal(t, 1, report.EngineMetrics.PartialCount)
	assert.Equal(t, 1, report.EngineMetrics.FinalCount)
	assert.Equal(t, 2, report.Throughput.TotalSegments)
}

func TestEngineAddTranscriptionAfterStopIsNoop(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.Stop()
	e.AddTranscription("ignored", "final", 1.0, 1600, 5)

	report := e.Snapshot()
	assert.Equal(t, 0, report.Throughput.TotalSegments)
}

func TestEngineVADAccuracy(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.SetVADGroundTruth([]bool{true, true, false, false}, 20)
	e.AddVADDecision(true, 0)
	e.AddVADDecision(false, 0) // false negative
	e.AddVADDecision(false, 0)
	e.AddVADDecision(true, 3) // false positive, with prior silence

	report := e.Stop()
	require.NotNil(t, report.VAD)
	assert.InDelta(t, 50.0, report.VAD.AccuracyPercent, 0.01)
	assert.Equal(t, 1, report.VAD.FalsePositives)
	assert.Equal(t, 1, report.VAD.FalseNegatives)
	assert.InDelta(t, 60.0, report.VAD.MeanSilenceBeforeSpeechMs, 0.01)
}

func TestEngineReportSurfacesSegmentSummaries(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.AddTranscription("hel", "partial", 0.5, 0, 0)
	e.AddTranscription("hello", "final", 0.9, 1600, 5)
	report := e.Stop()

	require.Len(t, report.Segments, 2)
	assert.Equal(t, "partial", report.Segments[0].Kind)
	assert.Equal(t, "hel", report.Segments[0].Text)
	assert.Equal(t, "final", report.Segments[1].Kind)
	assert.Equal(t, "hello", report.Segments[1].Text)
	assert.InDelta(t, 0.9, report.Segments[1].Confidence, 1e-9)
	assert.InDelta(t, 5.0, report.Segments[1].LatencyMs, 1e-9)
	assert.GreaterOrEqual(t, report.Segments[1].OffsetSeconds, 0.0)
}

func TestEngineStartResetsPriorSegments(t *testing.T) {
	e := NewEngine(16000)
	e.Start()
	e.AddTranscription("stale", "final", 1.0, 1600, 5)
	e.Start()

	report := e.Snapshot()
	assert.Equal(t, 0, report.Throughput.TotalSegments)
}
