package http

import (
	"encoding/json"
	"net/http"

	"form-builder-service/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams graded submissions of a form to websocket clients.
type WSHandler struct {
	service  *app.ResponseService
	upgrader websocket.Upgrader
	resp     responder
}

func newWSHandler(service *app.ResponseService, resp responder) *WSHandler {
	return &WSHandler{
		service: service,
		resp:    resp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type subscribedPayload struct {
	FormID string `json:"formId"`
}

// ServeSubmissions subscribes before upgrading so that unknown forms are
// reported as regular HTTP errors.
func (h *WSHandler) ServeSubmissions(c *gin.Context) {
	formID := c.Param("id")
	updates, cancel, err := h.service.Watch(c.Request.Context(), formID)
	if err != nil {
		h.resp.fail(c, err, "Server error while opening submission feed")
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.resp.logger.Warn("ws upgrade failed", zap.String("formId", formID), zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.resp.logger.Debug("ws write failed", zap.String("formId", formID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "submission", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{FormID: formID}}

	// The feed is read-only; inbound frames are only used to detect disconnects
	// and answer pings.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid message"}}
			continue
		}
		switch inbound.Type {
		case "ping":
			send <- outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
