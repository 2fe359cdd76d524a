package transport

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jwongso/vstream/pkg/stream"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Client is one WebSocket session: a connection, its dedicated stream
// processor, and the buffered channel writePump drains.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	processor *stream.Processor
	sessionID string
	send      chan OutboundMessage
	log       *slog.Logger
}

// readPump decodes inbound messages and dispatches them until the
// connection closes, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().Warn("transport: unexpected close", "error", err)
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger().Warn("transport: malformed inbound message", "error", err)
			continue
		}

		if c.dispatch(msg) {
			return
		}
	}
}

// dispatch handles one decoded inbound message. It returns true if the
// connection should be closed (the "stop" command).
func (c *Client) dispatch(msg InboundMessage) bool {
	switch msg.Type {
	case MsgTypeAudio:
		c.processor.ProcessRemoteAudio(msg.Samples)
		return false

	case MsgTypeCommand:
		return c.dispatchCommand(msg)

	default:
		c.logger().Warn("transport: unknown message type", "type", msg.Type)
		return false
	}
}

func (c *Client) dispatchCommand(msg InboundMessage) bool {
	reply := OutboundMessage{
		Type:      MsgTypeCommandResponse,
		Command:   msg.Command,
		SessionID: c.sessionID,
		Status:    "ok",
	}

	switch msg.Command {
	case CmdReset:
		c.processor.Reset()

	case CmdSetGrammar:
		grammar, _ := msg.Params["grammar"].(string)
		c.processor.SetGrammar(grammar)

	case CmdStats:
		stats := c.processor.Stats()
		reply.Params = map[string]interface{}{
			"total_samples":   stats.TotalSamples,
			"has_partial":     stats.HasPartial,
			"last_final_text": stats.LastFinalText,
			"error_count":     stats.ErrorCount,
		}

	case CmdBenchmarkResults:
		report, ok := c.processor.BenchmarkReport()
		if !ok {
			reply.Status = "unavailable"
			break
		}
		reply.Params = map[string]interface{}{
			"wer":              report.Accuracy.WER,
			"cer":              report.Accuracy.CER,
			"real_time_factor": report.Timing.RealTimeFactor,
			"latency_avg_ms":   report.Timing.LatencyAvgMs,
			"confidence_avg":   report.Quality.ConfidenceAvg,
			"partial_count":    report.EngineMetrics.PartialCount,
			"final_count":      report.EngineMetrics.FinalCount,
			"total_segments":   report.Throughput.TotalSegments,
		}

	case CmdStop:
		c.trySend(reply)
		return true

	default:
		reply.Status = "unknown_command"
	}

	c.trySend(reply)
	return false
}

func (c *Client) trySend(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger().Warn("transport: send buffer full, dropping command reply")
	}
}

// writePump drains the send channel to the socket and sends periodic
// pings, until the channel is closed by the hub.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}
