// Command vstream-bench runs the recognizer against a WAV file and a
// reference transcript, offline and without a server, and exports the
// resulting evaluation report.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/pflag"

	"github.com/jwongso/vstream/pkg/eval"
	"github.com/jwongso/vstream/pkg/obs"
	"github.com/jwongso/vstream/pkg/recognizer"
)

func main() {
	fs := pflag.NewFlagSet("vstream-bench", pflag.ContinueOnError)
	modelPath := fs.String("model", "", "path to the recognizer model (required)")
	audioPath := fs.String("audio", "", "path to a 16-bit PCM WAV file (required)")
	referencePath := fs.String("reference", "", "path to the reference transcript text file")
	outputPath := fs.String("output", "", "report output path (required)")
	format := fs.String("format", "text", "report format: text, structured, tabular")
	chunkMs := fs.Int("chunk-ms", 100, "milliseconds of audio passed to each recognizer driver call")
	live := fs.Bool("live", false, "print partial progress while running")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vstream-bench:", err)
		os.Exit(1)
	}

	if err := run(*modelPath, *audioPath, *referencePath, *outputPath, *format, *chunkMs, *live); err != nil {
		fmt.Fprintln(os.Stderr, "vstream-bench:", err)
		os.Exit(1)
	}
}

func run(modelPath, audioPath, referencePath, outputPath, format string, chunkMs int, live bool) error {
	if modelPath == "" || audioPath == "" || outputPath == "" {
		return fmt.Errorf("--model, --audio, and --output are required")
	}

	ctx := context.Background()
	traceCfg := obs.DefaultTraceConfig()
	if err := obs.InitTracing(ctx, traceCfg); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer obs.ShutdownTracing(context.Background())

	pcm, sampleRate, err := readWav(audioPath)
	if err != nil {
		return fmt.Errorf("read wav: %w", err)
	}

	var reference string
	if referencePath != "" {
		data, err := os.ReadFile(referencePath)
		if err != nil {
			return fmt.Errorf("read reference: %w", err)
		}
		reference = string(data)
	}

	adapter, err := recognizer.NewVoskAdapter(modelPath, recognizer.Config{
		SampleRate:   sampleRate,
		PartialWords: live,
		WordTimes:    true,
	})
	if err != nil {
		return fmt.Errorf("create recognizer adapter: %w", err)
	}
	defer adapter.Close()

	driver := recognizer.NewDriver(adapter, sampleRate)
	driver.SetSessionID("bench")
	engine := eval.NewEngine(sampleRate)
	engine.SetReference(reference)
	engine.Start()

	chunkSamples := sampleRate * chunkMs / 1000
	if chunkSamples <= 0 {
		chunkSamples = sampleRate / 10
	}

	for offset := 0; offset < len(pcm); offset += chunkSamples {
		end := offset + chunkSamples
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[offset:end]

		start := time.Now()
		raw := driver.Process(chunk, false)
		res, err := recognizer.ParseResult(raw)
		if err != nil {
			continue
		}
		latencyMs := float64(time.Since(start).Milliseconds())

		switch {
		case res.Text != "":
			engine.AddTranscription(res.Text, "final", confidenceOf(res), uint64(len(chunk)), latencyMs)
			if live {
				fmt.Println("final:", res.Text)
			}
		case res.Partial != "" && live:
			fmt.Println("partial:", res.Partial)
		}
	}

	raw := driver.Process(nil, true)
	if res, err := recognizer.ParseResult(raw); err == nil && res.Text != "" {
		engine.AddTranscription(res.Text, "final", confidenceOf(res), 0, 0)
	}

	report := engine.Stop()

	_, reportSpan := obs.StartSpan(ctx, "benchmark.report")
	err = eval.Export(report, outputPath, eval.Format(format))
	reportSpan.End()
	return err
}

func confidenceOf(r recognizer.Result) float64 {
	if len(r.Alternatives) > 0 {
		return r.Alternatives[0].Confidence
	}
	return 1.0
}

func readWav(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode pcm buffer: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, int(decoder.SampleRate), nil
}
