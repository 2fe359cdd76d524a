//go:build vosk

package recognizer

import (
	"encoding/binary"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"
)

// VoskAdapter binds Adapter to the real Vosk C API, the engine the
// original vstream_engine wraps.
type VoskAdapter struct {
	model    *vosk.VoskModel
	spkModel *vosk.VoskSpkModel
	rec      *vosk.VoskRecognizer
}

// NewVoskAdapter loads modelPath (and, if set, cfg.SpeakerModelPath) and
// constructs a recognizer configured per cfg.
func NewVoskAdapter(modelPath string, cfg Config) (*VoskAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("recognizer: load model %q: %w", modelPath, err)
	}

	var spkModel *vosk.VoskSpkModel
	var rec *vosk.VoskRecognizer
	if cfg.SpeakerModelPath != "" {
		spkModel, err = vosk.NewSpkModel(cfg.SpeakerModelPath)
		if err != nil {
			model.Free()
			return nil, fmt.Errorf("recognizer: load speaker model %q: %w", cfg.SpeakerModelPath, err)
		}
		rec, err = vosk.NewRecognizerWithSpeaker(model, float64(cfg.SampleRate), spkModel)
	} else {
		rec, err = vosk.NewRecognizer(model, float64(cfg.SampleRate))
	}
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("recognizer: create recognizer: %w", err)
	}

	rec.SetWords(boolToInt(cfg.WordTimes))
	rec.SetPartialWords(boolToInt(cfg.PartialWords))
	rec.SetMaxAlternatives(cfg.MaxAlternatives)
	rec.SetNLSML(boolToInt(cfg.NlsmlOutput))
	if cfg.Grammar != "" {
		rec.SetGrammar(cfg.Grammar)
	}

	return &VoskAdapter{model: model, spkModel: spkModel, rec: rec}, nil
}

// AcceptWaveform implements Adapter.
func (a *VoskAdapter) AcceptWaveform(pcm []int16) (Outcome, error) {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	switch a.rec.AcceptWaveform(buf) {
	case 1:
		return OutcomeComplete, nil
	case 0:
		return OutcomeAccumulating, nil
	default:
		return OutcomeError, fmt.Errorf("recognizer: accept_waveform failed")
	}
}

func (a *VoskAdapter) Result() string        { return a.rec.Result() }
func (a *VoskAdapter) PartialResult() string  { return a.rec.PartialResult() }
func (a *VoskAdapter) FinalResult() string    { return a.rec.FinalResult() }
func (a *VoskAdapter) Reset()                 { a.rec.Reset() }
func (a *VoskAdapter) SetGrammar(g string)    { a.rec.SetGrammar(g) }
func (a *VoskAdapter) SetMaxAlternatives(n int) { a.rec.SetMaxAlternatives(n) }
func (a *VoskAdapter) SetNlsmlOutput(enabled bool) { a.rec.SetNLSML(boolToInt(enabled)) }

// Close releases the recognizer, speaker model, and model in that order.
func (a *VoskAdapter) Close() error {
	a.rec.Free()
	if a.spkModel != nil {
		a.spkModel.Free()
	}
	a.model.Free()
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Adapter = (*VoskAdapter)(nil)
