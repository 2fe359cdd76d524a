// Package transport implements the WebSocket session server that
// accepts remote audio/command messages and broadcasts transcription
// events to subscribers.
package transport

// InboundMessage is the decoded shape of a message received from a
// client: either an "audio" message carrying PCM samples or a
// "command" message carrying a named command and optional parameters.
type InboundMessage struct {
	Type       string                 `json:"type"`
	Samples    []int16                `json:"samples,omitempty"`
	SampleRate int                    `json:"sample_rate,omitempty"`
	Channels   int                    `json:"channels,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	Timestamp  int64                  `json:"timestamp,omitempty"`
	Command    string                 `json:"command,omitempty"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

const (
	MsgTypeAudio   = "audio"
	MsgTypeCommand = "command"
)

const (
	CmdReset             = "reset"
	CmdSetGrammar        = "set_grammar"
	CmdStats             = "stats"
	CmdBenchmarkResults  = "benchmark_results"
	CmdStop              = "stop"
)

// OutboundMessage is the encoded shape of a message sent to a client:
// either a transcription event or a command reply.
type OutboundMessage struct {
	Type       string                 `json:"type"`
	Content    string                 `json:"content,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	Confidence *float64               `json:"confidence,omitempty"`
	IsFinal    *bool                  `json:"is_final,omitempty"`
	Command    string                 `json:"command,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

const (
	MsgTypeTranscription   = "transcription"
	MsgTypeCommandResponse = "command_response"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
