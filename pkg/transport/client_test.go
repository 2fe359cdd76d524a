package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwongso/vstream/pkg/eval"
	"github.com/jwongso/vstream/pkg/recognizer"
	"github.com/jwongso/vstream/pkg/stream"
)

func newEchoHubServer(t *testing.T, driver *recognizer.Driver) (*httptest.Server, *Hub) {
	t.Helper()
	var hub *Hub
	hub = NewHub(func(sessionID string) (*stream.Processor, error) {
		return stream.NewProcessor(driver, hub, stream.Config{
			SessionID:          sessionID,
			FinalizeIntervalMs: 60000,
			ShowPartial:        true,
		}), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket)), hub
}

func TestClientAudioMessageDrivesProcessor(t *testing.T) {
	adapter := recognizer.NewMockAdapter()
	adapter.AcceptWaveformFunc = func(pcm []int16) (recognizer.Outcome, error) {
		return recognizer.OutcomeComplete, nil
	}
	adapter.ResultFunc = func() string { return `{"text":"hello"}` }

	driver := recognizer.NewDriver(adapter, 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	msg := InboundMessage{Type: MsgTypeAudio, Samples: make([]int16, 1600)}
	require.NoError(t, conn.WriteJSON(msg))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, MsgTypeTranscription, out.Type)
	assert.Equal(t, "hello", out.Content)
}

func TestClientResetCommandReplies(t *testing.T) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: CmdReset}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, MsgTypeCommandResponse, out.Type)
	assert.Equal(t, CmdReset, out.Command)
	assert.Equal(t, "ok", out.Status)
}

func TestClientStatsCommandReportsCounters(t *testing.T) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: CmdStats}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, CmdStats, out.Command)
	assert.Contains(t, out.Params, "total_samples")
	assert.Contains(t, out.Params, "error_count")
}

func TestClientUnknownCommandReportsStatus(t *testing.T) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: "does_not_exist"}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "unknown_command", out.Status)
}

func TestClientStopCommandClosesConnection(t *testing.T) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: CmdStop}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, CmdStop, out.Command)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); ok || strings.Contains(err.Error(), "close") {
				return
			}
			return
		}
	}
}

func TestClientBenchmarkResultsUnavailableWithoutEvalEngine(t *testing.T) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: CmdBenchmarkResults}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "unavailable", out.Status)
}

func TestClientBenchmarkResultsReturnsLiveReport(t *testing.T) {
	adapter := recognizer.NewMockAdapter()
	adapter.AcceptWaveformFunc = func(pcm []int16) (recognizer.Outcome, error) {
		return recognizer.OutcomeComplete, nil
	}
	adapter.ResultFunc = func() string { return `{"text":"hello"}` }

	driver := recognizer.NewDriver(adapter, 16000)
	engine := eval.NewEngine(16000)
	engine.Start()

	var hub *Hub
	hub = NewHub(func(sessionID string) (*stream.Processor, error) {
		return stream.NewProcessor(driver, hub, stream.Config{
			SessionID:          sessionID,
			FinalizeIntervalMs: 60000,
			Eval:               engine,
		}), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeAudio, Samples: make([]int16, 1600)}))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: CmdBenchmarkResults}))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "ok", out.Status)
	assert.Contains(t, out.Params, "wer")
	assert.EqualValues(t, 1, out.Params["total_segments"])
}

func TestClientMalformedMessageIsIgnored(t *testing.T) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	srv, _ := newEchoHubServer(t, driver)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: MsgTypeCommand, Command: CmdStats}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, CmdStats, out.Command)
}
