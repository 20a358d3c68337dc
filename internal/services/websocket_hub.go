package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 20
	sendBuffer     = 256
)

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID     string
	hello  *contract.Hello
	topics map[string]bool
	conn   *websocket.Conn
	send   chan []byte
	hub    *WebSocketHub

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// PeerKey identifies the client in presence payloads. Clients that never said
// hello are known by their connection id.
func (c *WSClient) PeerKey() string {
	if c.hello != nil && c.hello.PeerKey != "" {
		return c.hello.PeerKey
	}
	return c.ID
}

// WebSocketHub manages WebSocket connections and their event subscriptions
type WebSocketHub struct {
	local contract.PeerInfo

	clients    map[*WSClient]bool
	topics     map[string]map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *broadcastMsg
	done       chan struct{}
	mu         sync.RWMutex

	logger *observability.Logger
}

type broadcastMsg struct {
	topic   string
	message []byte
	// presence messages are built per recipient
	presence bool
}

// NewWebSocketHub creates a hub that presents itself as local in presence payloads
func NewWebSocketHub(local contract.PeerInfo) *WebSocketHub {
	return &WebSocketHub{
		local:      local,
		clients:    make(map[*WSClient]bool),
		topics:     make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *broadcastMsg, sendBuffer),
		done:       make(chan struct{}),
		logger:     observability.GetLogger().WithField("component", "hub"),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing every
// client.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.topics = make(map[string]map[*WSClient]bool)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.WithField("client_id", client.ID).Info("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			hadHello := client.hello != nil
			if ok {
				delete(h.clients, client)
				for topic := range client.topics {
					if topicClients, ok := h.topics[topic]; ok {
						delete(topicClients, client)
						if len(topicClients) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			if ok {
				h.logger.WithField("client_id", client.ID).Info("client disconnected")
				if hadHello {
					h.deliver(&broadcastMsg{topic: contract.Presence.Name(), presence: true})
				}
			}

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *WebSocketHub) deliver(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if msg.topic != "" {
		targets = h.topics[msg.topic]
	}
	for client := range targets {
		data := msg.message
		if msg.presence {
			var err error
			if data, err = h.presenceFrameLocked(client); err != nil {
				h.logger.WithError(err).Error("failed to encode presence")
				return
			}
		}
		select {
		case client.send <- data:
		default:
			h.logger.WithField("client_id", client.ID).Warn("client buffer full, dropping connection")
			go client.Close()
		}
	}
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe adds a client to an event's topic
func (h *WebSocketHub) Subscribe(client *WSClient, event string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.topics[event] = true
	if h.topics[event] == nil {
		h.topics[event] = make(map[*WSClient]bool)
	}
	h.topics[event][client] = true
	h.logger.WithFields(map[string]interface{}{"client_id": client.ID, "event": event}).Debug("client subscribed")
}

// Unsubscribe removes a client from an event's topic
func (h *WebSocketHub) Unsubscribe(client *WSClient, event string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.topics, event)
	if topicClients, ok := h.topics[event]; ok {
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.topics, event)
		}
	}
}

// SetHello records who the client is and pushes fresh presence to everyone
// listening for it.
func (h *WebSocketHub) SetHello(client *WSClient, hello contract.Hello) {
	h.mu.Lock()
	client.hello = &hello
	h.mu.Unlock()
	h.BroadcastPresence()
}

// BroadcastEvent pushes payload to every subscriber of event
func (h *WebSocketHub) BroadcastEvent(event string, payload any) error {
	data, err := eventFrame(event, payload)
	if err != nil {
		return err
	}
	h.enqueue(&broadcastMsg{topic: event, message: data})
	return nil
}

// BroadcastPresence pushes each presence subscriber its own view of the peers
func (h *WebSocketHub) BroadcastPresence() {
	h.enqueue(&broadcastMsg{topic: contract.Presence.Name(), presence: true})
}

func (h *WebSocketHub) enqueue(msg *broadcastMsg) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Presence describes the host and every other client that said hello
func (h *WebSocketHub) Presence(viewer *WSClient) contract.PresencePayload {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presenceLocked(viewer)
}

func (h *WebSocketHub) presenceLocked(viewer *WSClient) contract.PresencePayload {
	payload := contract.PresencePayload{
		LocalPeer:   h.local,
		RemotePeers: []contract.PeerInfo{},
	}
	for client := range h.clients {
		if client == viewer || client.hello == nil {
			continue
		}
		payload.RemotePeers = append(payload.RemotePeers, contract.PeerInfo{
			PeerKey:    client.PeerKey(),
			DeviceName: client.hello.DeviceName,
			Metadata:   client.hello.Metadata,
		})
	}
	return payload
}

func (h *WebSocketHub) presenceFrameLocked(viewer *WSClient) ([]byte, error) {
	return eventFrame(contract.Presence.Name(), h.presenceLocked(viewer))
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of subscribers of an event
func (h *WebSocketHub) SubscriberCount(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[event])
}

// NewClient creates a client for conn
func (h *WebSocketHub) NewClient(id string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		topics: make(map[string]bool),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}
}

func eventFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contract.Message{Type: contract.MsgEvent, Name: event, Payload: raw})
}

// Close unregisters the client and closes its connection
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		c.conn.Close()
	})
}

// Send queues a frame for the client. It reports false when the client is
// gone or too slow.
func (c *WSClient) Send(msg contract.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.WithError(err).Error("failed to encode message")
		return false
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// WritePump pumps queued frames to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.writeMu.Lock()
			err := c.conn.WriteMessage(websocket.TextMessage, message)
			c.writeMu.Unlock()

			if err != nil {
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

// ReadPump reads frames until the connection closes
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithField("client_id", c.ID).WithError(err).Warn("websocket error")
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}
