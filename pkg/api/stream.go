package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agent-protocol/a2a-inspector/pkg/inspector"
)

const (
	FrameEvent = "event"
	FrameDone  = "done"
	FrameError = "error"

	maxFrameSize = 64 << 10
	writeTimeout = 10 * time.Second
)

// StreamFrame is one server to client websocket message.
type StreamFrame struct {
	Type      string              `json:"type"`
	Data      json.RawMessage     `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
	Kind      inspector.ErrorKind `json:"kind,omitempty"`
	LatencyMS *int64              `json:"latency_ms,omitempty"`
}

// handleStream upgrades to a websocket and relays one chat message per
// incoming ChatRequest frame. Each request yields zero or more event frames
// followed by exactly one done or error frame.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade WebSocket connection", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel for incoming requests
	requests := make(chan []byte)

	go func() {
		defer cancel()
		defer close(requests)
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn("WebSocket read failed", "error", err)
				}
				return
			}
			select {
			case requests <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for frame := range requests {
		if err := s.relay(ctx, conn, frame); err != nil {
			s.logger.Warn("WebSocket write failed", "error", err)
			return
		}
	}
}

// relay handles one request frame. Only write failures are returned.
func (s *Server) relay(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	var req ChatRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return writeFrame(conn, StreamFrame{Type: FrameError, Error: "Invalid JSON frame", Kind: inspector.KindValidation})
	}

	start := time.Now()
	var writeErr error
	err := s.inspector.StreamChatMessage(ctx, req.URL, req.Message, func(event json.RawMessage) error {
		if err := writeFrame(conn, StreamFrame{Type: FrameEvent, Data: event}); err != nil {
			writeErr = err
			return err
		}
		return nil
	})
	if writeErr != nil {
		return writeErr
	}

	latency := time.Since(start).Milliseconds()
	if err != nil {
		return writeFrame(conn, StreamFrame{Type: FrameError, Error: err.Error(), Kind: inspector.KindOf(err), LatencyMS: &latency})
	}
	return writeFrame(conn, StreamFrame{Type: FrameDone, LatencyMS: &latency})
}

func writeFrame(conn *websocket.Conn, f StreamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}
