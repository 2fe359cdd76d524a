// Package config loads vstreamd's configuration from flags, environment
// variables, and an optional config file, in that precedence order.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// allowedSampleRates mirrors the capture config invariant in
// pkg/audio: only these rates are accepted.
var allowedSampleRates = map[int]bool{
	8000:  true,
	16000: true,
	32000: true,
	48000: true,
}

// Config is the fully resolved vstreamd configuration.
type Config struct {
	ModelPath      string `mapstructure:"model"`
	SpeakerModel   string `mapstructure:"speaker_model"`
	Addr           string `mapstructure:"addr"`
	SampleRate     int    `mapstructure:"sample_rate"`
	MaxAlternative int    `mapstructure:"max_alternatives"`
	PartialResults bool   `mapstructure:"partial_results"`
	Grammar        string `mapstructure:"grammar"`
	BufferMs       int    `mapstructure:"buffer_ms"`
	FinalizeMs     int    `mapstructure:"finalize_ms"`
	Mic            bool   `mapstructure:"mic"`
	MicDevice      int    `mapstructure:"mic_device"`
	LogLevel       string `mapstructure:"log_level"`

	BenchReference string `mapstructure:"bench_reference"`
	BenchOutput    string `mapstructure:"bench_output"`
	BenchFormat    string `mapstructure:"bench_format"`
	BenchLive      bool   `mapstructure:"bench_live"`
}

// Load parses args against the flag set defined by spec.md §6.1,
// layers environment variables (VSTREAM_ prefix) and an optional config
// file beneath them, and returns the resolved, validated Config.
func Load(args []string, configFile string) (Config, error) {
	fs := pflag.NewFlagSet("vstreamd", pflag.ContinueOnError)

	fs.String("model", "", "path to the recognizer model (required)")
	fs.String("speaker-model", "", "path to the speaker identification model")
	fs.String("addr", ":8080", "websocket listen address")
	fs.Int("sample-rate", 16000, "audio sample rate in Hz")
	fs.Int("max-alternatives", 0, "maximum recognition alternatives to request")
	fs.Bool("partial-results", true, "emit partial transcription events")
	fs.String("grammar", "", "constraining grammar, as a JSON array literal")
	fs.Int("buffer-ms", 100, "capture accumulation buffer duration in milliseconds")
	fs.Int("finalize-ms", 10000, "forced finalization interval in milliseconds")
	fs.Bool("mic", false, "capture from the local microphone instead of the transport only")
	fs.Int("mic-device", -1, "capture device index, -1 for system default")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("bench-reference", "", "reference transcript path for benchmarking")
	fs.String("bench-output", "", "benchmark report output path")
	fs.String("bench-format", "text", "benchmark report format: text, structured, tabular")
	fs.Bool("bench-live", false, "benchmark live-progress toggle (parsed only; vstreamd does not act on it)")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("vstream")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ModelPath = v.GetString("model")
	cfg.SpeakerModel = v.GetString("speaker-model")
	cfg.Addr = v.GetString("addr")
	cfg.SampleRate = v.GetInt("sample-rate")
	cfg.MaxAlternative = v.GetInt("max-alternatives")
	cfg.PartialResults = v.GetBool("partial-results")
	cfg.Grammar = v.GetString("grammar")
	cfg.BufferMs = v.GetInt("buffer-ms")
	cfg.FinalizeMs = v.GetInt("finalize-ms")
	cfg.Mic = v.GetBool("mic")
	cfg.MicDevice = v.GetInt("mic-device")
	cfg.LogLevel = v.GetString("log-level")
	cfg.BenchReference = v.GetString("bench-reference")
	cfg.BenchOutput = v.GetString("bench-output")
	cfg.BenchFormat = v.GetString("bench-format")
	cfg.BenchLive = v.GetBool("bench-live")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the initialization-time checks spec.md §7 classifies
// as fatal: model path presence, sample rate membership, and
// non-negative numeric parameters.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if !allowedSampleRates[c.SampleRate] {
		return fmt.Errorf("sample rate %d is not in the allowed set", c.SampleRate)
	}
	if c.MaxAlternative < 0 {
		return fmt.Errorf("max-alternatives must be non-negative")
	}
	if c.BufferMs <= 0 {
		return fmt.Errorf("buffer-ms must be positive")
	}
	if c.FinalizeMs <= 0 {
		return fmt.Errorf("finalize-ms must be positive")
	}
	switch c.BenchFormat {
	case "text", "structured", "tabular":
	default:
		return fmt.Errorf("bench-format must be one of text, structured, tabular")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be one of debug, info, warn, error")
	}
	return nil
}
