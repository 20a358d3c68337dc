package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Windows are served from app:// or file:// origins; access is
		// gated by the API key middleware instead.
		return true
	},
}

// WebSocketHandler speaks the host protocol to connected windows
type WebSocketHandler struct {
	hub     *services.WebSocketHub
	library *services.LibraryService
	ctx     context.Context
	logger  *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. Commands run under
// ctx, so cancelling it aborts in-flight work on shutdown.
func NewWebSocketHandler(ctx context.Context, hub *services.WebSocketHub, library *services.LibraryService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		library: library,
		ctx:     ctx,
		logger:  observability.GetLogger().WithField("component", "websocket"),
	}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)

	go client.WritePump()

	// Blocks until the connection closes
	client.ReadPump(h.handleMessage)
}

func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg contract.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.WithField("client_id", client.ID).WithError(err).Warn("invalid websocket message")
		client.Send(contract.Message{Type: contract.MsgError, Error: "invalid message: " + err.Error()})
		return
	}

	switch msg.Type {
	case contract.MsgInvoke:
		// Commands may take a while; keep reading so other calls and
		// subscriptions on this connection are not held up.
		go h.invoke(client, msg)

	case contract.MsgSubscribe:
		if !contract.HasEvent(msg.Name) {
			client.Send(contract.Message{Type: contract.MsgError, ID: msg.ID, Error: "unknown event: " + msg.Name})
			return
		}
		h.hub.Subscribe(client, msg.Name)
		client.Send(contract.Message{Type: contract.MsgSubscribed, ID: msg.ID, Name: msg.Name})
		if msg.Name == contract.Presence.Name() {
			h.sendPresence(client)
		}

	case contract.MsgUnsubscribe:
		h.hub.Unsubscribe(client, msg.Name)

	case contract.MsgEmit:
		h.emit(client, msg)

	case contract.MsgHello:
		var hello contract.Hello
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &hello); err != nil {
				client.Send(contract.Message{Type: contract.MsgError, ID: msg.ID, Error: "invalid hello: " + err.Error()})
				return
			}
		}
		h.hub.SetHello(client, hello)

	case contract.MsgPing:
		client.Send(contract.Message{Type: contract.MsgPong, ID: msg.ID})

	case contract.MsgPong:

	default:
		h.logger.WithField("type", msg.Type).Debug("unknown websocket message type")
	}
}

func (h *WebSocketHandler) invoke(client *services.WSClient, msg contract.Message) {
	result, err := h.library.Invoke(h.ctx, msg.Name, msg.Payload)
	if err != nil {
		client.Send(contract.Message{Type: contract.MsgError, ID: msg.ID, Name: msg.Name, Error: err.Error()})
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		client.Send(contract.Message{Type: contract.MsgError, ID: msg.ID, Name: msg.Name, Error: err.Error()})
		return
	}
	client.Send(contract.Message{Type: contract.MsgResult, ID: msg.ID, Name: msg.Name, Payload: payload})
}

// emit relays a client event to every subscriber, the sender included
func (h *WebSocketHandler) emit(client *services.WSClient, msg contract.Message) {
	if !contract.HasEvent(msg.Name) {
		client.Send(contract.Message{Type: contract.MsgError, ID: msg.ID, Error: "unknown event: " + msg.Name})
		return
	}
	payload := msg.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if err := contract.LookupEvent(msg.Name).ValidatePayload(payload); err != nil {
		client.Send(contract.Message{Type: contract.MsgError, ID: msg.ID, Error: err.Error()})
		return
	}
	if err := h.hub.BroadcastEvent(msg.Name, payload); err != nil {
		h.logger.WithField("event", msg.Name).WithError(err).Error("failed to relay event")
	}
}

func (h *WebSocketHandler) sendPresence(client *services.WSClient) {
	payload, err := json.Marshal(h.hub.Presence(client))
	if err != nil {
		h.logger.WithError(err).Error("failed to encode presence")
		return
	}
	client.Send(contract.Message{Type: contract.MsgEvent, Name: contract.Presence.Name(), Payload: payload})
}
