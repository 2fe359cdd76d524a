package recognizer

import "sync"

// MockAdapter is a test double for Adapter, in the style of the vad
// package's MockDetector: behavior is customized via *Func fields, and
// every call is recorded for later assertion.
type MockAdapter struct {
	AcceptWaveformFunc func(pcm []int16) (Outcome, error)
	ResultFunc         func() string
	PartialResultFunc  func() string
	FinalResultFunc    func() string

	AcceptWaveformCalls  [][]int16
	ResetCalls           int
	GrammarCalls         []string
	MaxAlternativesCalls []int
	NlsmlOutputCalls     []bool
	ClosedCalls          int

	mu sync.Mutex
}

// NewMockAdapter creates a MockAdapter with default (accumulating, empty
// result) behavior.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		AcceptWaveformCalls: make([][]int16, 0),
	}
}

// AcceptWaveform implements Adapter.
func (m *MockAdapter) AcceptWaveform(pcm []int16) (Outcome, error) {
	m.mu.Lock()
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	m.AcceptWaveformCalls = append(m.AcceptWaveformCalls, cp)
	m.mu.Unlock()

	if m.AcceptWaveformFunc != nil {
		return m.AcceptWaveformFunc(pcm)
	}
	return OutcomeAccumulating, nil
}

// Result implements Adapter.
func (m *MockAdapter) Result() string {
	if m.ResultFunc != nil {
		return m.ResultFunc()
	}
	return "{}"
}

// PartialResult implements Adapter.
func (m *MockAdapter) PartialResult() string {
	if m.PartialResultFunc != nil {
		return m.PartialResultFunc()
	}
	return "{}"
}

// FinalResult implements Adapter.
func (m *MockAdapter) FinalResult() string {
	if m.FinalResultFunc != nil {
		return m.FinalResultFunc()
	}
	return "{}"
}

// Reset implements Adapter.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalls++
}

// SetGrammar implements Adapter.
func (m *MockAdapter) SetGrammar(grammar string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GrammarCalls = append(m.GrammarCalls, grammar)
}

// SetMaxAlternatives implements Adapter.
func (m *MockAdapter) SetMaxAlternatives(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MaxAlternativesCalls = append(m.MaxAlternativesCalls, n)
}

// SetNlsmlOutput implements Adapter.
func (m *MockAdapter) SetNlsmlOutput(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NlsmlOutputCalls = append(m.NlsmlOutputCalls, enabled)
}

// Close implements Adapter.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClosedCalls++
	return nil
}

// ResetCallCount returns the number of times Reset was called.
func (m *MockAdapter) ResetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ResetCalls
}

var _ Adapter = (*MockAdapter)(nil)
