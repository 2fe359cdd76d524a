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

	"github.com/jwongso/vstream/pkg/recognizer"
	"github.com/jwongso/vstream/pkg/stream"
)

func newTestProcessor(sessionID string) (*stream.Processor, error) {
	driver := recognizer.NewDriver(recognizer.NewMockAdapter(), 16000)
	return stream.NewProcessor(driver, &Hub{broadcast: make(chan OutboundMessage, 1)}, stream.Config{
		SessionID:          sessionID,
		FinalizeIntervalMs: 60000,
		ShowPartial:        true,
	}), nil
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubRegistersAndUnregistersClients(t *testing.T) {
	hub := NewHub(newTestProcessor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastReachesConnectedClient(t *testing.T) {
	hub := NewHub(newTestProcessor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(stream.Event{Text: "hello world", Kind: stream.KindFinal, SessionID: "s1", Confidence: 0.9})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out OutboundMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, MsgTypeTranscription, out.Type)
	assert.Equal(t, "hello world", out.Content)
	require.NotNil(t, out.IsFinal)
	assert.True(t, *out.IsFinal)
}

func TestHubFactoryErrorClosesConnection(t *testing.T) {
	hub := NewHub(func(sessionID string) (*stream.Processor, error) {
		return nil, assertErr
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

var assertErr = errString("factory failed")

type errString string

func (e errString) Error() string { return string(e) }
