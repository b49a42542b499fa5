package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/pipeline"
)

const (
	configReadTimeout = 30 * time.Second
	eventWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Message types sent on the stream
const (
	MessageStage  = "stage"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage is one server message on the briefing stream
type StreamMessage struct {
	Type   string                   `json:"type"`
	Event  *pipeline.StageEvent     `json:"event,omitempty"`
	Result *briefing.PipelineResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// StreamBriefing upgrades to a websocket, reads the briefing config as the
// first client message, streams stage events while the run progresses and
// finishes with the result. Closing the socket cancels the run.
func (h *Handler) StreamBriefing(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(configReadTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		h.logger.Warn().Err(err).Msg("No briefing config received")
		return
	}
	conn.SetReadDeadline(time.Time{})

	cfg, err := h.decodeConfig(bytes.NewReader(payload))
	if err != nil {
		h.send(conn, StreamMessage{Type: MessageError, Error: err.Error()})
		h.close(conn, websocket.CloseUnsupportedData, "invalid config")
		return
	}

	ctx, cancel := h.runContext(c.Request.Context())
	defer cancel()

	// The only reader; a client close or error cancels the run
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	result, err := h.runner.RunObserved(ctx, cfg, func(ev pipeline.StageEvent) {
		h.send(conn, StreamMessage{Type: MessageStage, Event: &ev})
	})
	if err != nil {
		h.send(conn, StreamMessage{Type: MessageError, Error: err.Error()})
		h.close(conn, websocket.CloseUnsupportedData, "invalid config")
		return
	}

	h.send(conn, StreamMessage{Type: MessageResult, Result: result})
	h.close(conn, websocket.CloseNormalClosure, string(result.Status))
}

// send writes one message. Events are sent from the pipeline goroutine only,
// so writes never overlap.
func (h *Handler) send(conn *websocket.Conn, msg StreamMessage) {
	conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write stream message")
	}
}

func (h *Handler) close(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(eventWriteTimeout))
}
