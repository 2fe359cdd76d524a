// Command vstreamd runs the streaming recognition server: it optionally
// captures from a local microphone, always accepts remote audio and
// commands over WebSocket, drives a recognizer through the stream
// processor, and broadcasts transcription events to connected clients.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimiro1/banner"

	"github.com/jwongso/vstream/internal/config"
	"github.com/jwongso/vstream/pkg/audio"
	"github.com/jwongso/vstream/pkg/eval"
	"github.com/jwongso/vstream/pkg/obs"
	"github.com/jwongso/vstream/pkg/recognizer"
	"github.com/jwongso/vstream/pkg/stream"
	"github.com/jwongso/vstream/pkg/transport"
)

const bannerTemplate = "{{ .Title \"VSTREAM\" \"\" 0 }}\nStreaming speech recognition server\n"

func printBanner() {
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(bannerTemplate))
}

func main() {
	cfg, err := config.Load(os.Args[1:], "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "vstreamd:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	printBanner()

	if err := run(cfg, logger); err != nil {
		logger.Error("vstreamd: fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceCfg := obs.DefaultTraceConfig()
	if err := obs.InitTracing(ctx, traceCfg); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer obs.ShutdownTracing(context.Background())

	engine := eval.NewEngine(cfg.SampleRate)
	if cfg.BenchReference != "" {
		data, err := os.ReadFile(cfg.BenchReference)
		if err != nil {
			return fmt.Errorf("read bench reference: %w", err)
		}
		engine.SetReference(string(data))
	}
	engine.Start()

	metricsObserver := obs.NewJSONLMetricsObserver(os.Stdout)

	var hub *transport.Hub
	factory := func(sessionID string) (*stream.Processor, error) {
		adapter, err := recognizer.NewVoskAdapter(cfg.ModelPath, recognizer.Config{
			SampleRate:       cfg.SampleRate,
			SpeakerModelPath: cfg.SpeakerModel,
			WordTimes:        true,
			PartialWords:     cfg.PartialResults,
			MaxAlternatives:  cfg.MaxAlternative,
		})
		if err != nil {
			return nil, fmt.Errorf("create recognizer adapter: %w", err)
		}

		driver := recognizer.NewDriver(adapter, cfg.SampleRate)
		driver.SetSessionID(sessionID)
		if cfg.Grammar != "" {
			driver.SetGrammar(cfg.Grammar)
		}

		return stream.NewProcessor(driver, hub, stream.Config{
			SessionID:          sessionID,
			FinalizeIntervalMs: cfg.FinalizeMs,
			BufferMs:           cfg.BufferMs,
			ShowPartial:        cfg.PartialResults,
			Eval:               engine,
			Metrics:            metricsObserver,
		}), nil
	}

	hub = transport.NewHub(factory)
	go hub.Run(ctx)

	if cfg.Mic {
		if err := startMicCapture(ctx, cfg, hub, logger, metricsObserver); err != nil {
			return fmt.Errorf("start mic capture: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("vstreamd: listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}

	report := engine.Stop()
	if cfg.BenchOutput != "" {
		_, reportSpan := obs.StartSpan(context.Background(), "benchmark.report")
		err := eval.Export(report, cfg.BenchOutput, eval.Format(cfg.BenchFormat))
		reportSpan.End()
		if err != nil {
			logger.Error("vstreamd: export benchmark report failed", "error", err)
		}
	}
	return nil
}

func startMicCapture(ctx context.Context, cfg config.Config, sink stream.Sink, logger *slog.Logger, metrics obs.MetricsObserver) error {
	adapter, err := recognizer.NewVoskAdapter(cfg.ModelPath, recognizer.Config{
		SampleRate:      cfg.SampleRate,
		SpeakerModelPath: cfg.SpeakerModel,
		PartialWords:    cfg.PartialResults,
		MaxAlternatives: cfg.MaxAlternative,
	})
	if err != nil {
		return fmt.Errorf("create mic recognizer adapter: %w", err)
	}
	driver := recognizer.NewDriver(adapter, cfg.SampleRate)
	driver.SetSessionID("local-mic")
	processor := stream.NewProcessor(driver, sink, stream.Config{
		SessionID:          "local-mic",
		FinalizeIntervalMs: cfg.FinalizeMs,
		BufferMs:           cfg.BufferMs,
		ShowPartial:        cfg.PartialResults,
		Metrics:            metrics,
	})

	deviceID := ""
	if cfg.MicDevice >= 0 {
		devices, err := audio.ListDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		if cfg.MicDevice >= len(devices) {
			return fmt.Errorf("mic-device index %d out of range (%d devices)", cfg.MicDevice, len(devices))
		}
		deviceID = devices[cfg.MicDevice].ID
	}

	source, err := audio.NewCaptureSource(audio.CaptureConfig{
		SampleRate:      cfg.SampleRate,
		Channels:        1,
		FramesPerBuffer: cfg.SampleRate / 100,
		DeviceID:        deviceID,
		QueueCapacity:   64,
		AccumulateMs:    cfg.BufferMs,
	})
	if err != nil {
		return fmt.Errorf("create capture source: %w", err)
	}

	source.SetAudioCallback(func(buf audio.Buffer) {
		processor.ProcessAudio(buf.Samples)
	})

	if err := source.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	go func() {
		<-ctx.Done()
		source.Stop()
		driver.Close()
	}()

	logger.Info("vstreamd: mic capture started")
	return nil
}
