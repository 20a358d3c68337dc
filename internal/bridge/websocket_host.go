package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 20
	eventQueueSize = 256
)

// DialOptions configures a WebSocketHost connection.
type DialOptions struct {
	URL          string
	APIKey       string
	APIKeyHeader string
	Hello        contract.Hello
	Logger       *observability.Logger
}

type inboundEvent struct {
	name    string
	payload []byte
}

// hostSubscription is the single host-side subscription behind every local
// subscriber of one event. ready closes once the host answered; err holds
// the answer.
type hostSubscription struct {
	ready chan struct{}
	err   error
	local map[string]func([]byte)
}

// WebSocketHost speaks the host protocol over one websocket connection.
// Results are matched to calls by message id. Events are dispatched on a
// dedicated goroutine so subscribers may invoke commands from a callback.
type WebSocketHost struct {
	conn   *websocket.Conn
	logger *observability.Logger

	send   chan []byte
	events chan inboundEvent
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]chan contract.Message
	subs    map[string]*hostSubscription

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the host and announces the client with a hello message.
func Dial(ctx context.Context, opts DialOptions) (*WebSocketHost, error) {
	header := http.Header{}
	if opts.APIKey != "" {
		name := opts.APIKeyHeader
		if name == "" {
			name = "X-API-Key"
		}
		header.Set(name, opts.APIKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", opts.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.GetLogger()
	}

	h := &WebSocketHost{
		conn:    conn,
		logger:  logger.WithField("component", "websocket_host"),
		send:    make(chan []byte, 64),
		events:  make(chan inboundEvent, eventQueueSize),
		done:    make(chan struct{}),
		pending: make(map[string]chan contract.Message),
		subs:    make(map[string]*hostSubscription),
	}

	go h.writePump()
	go h.readPump()
	go h.dispatchEvents()

	hello, err := json.Marshal(opts.Hello)
	if err != nil {
		h.Close()
		return nil, err
	}
	if err := h.write(ctx, contract.Message{Type: contract.MsgHello, Payload: hello}); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Done is closed once the connection is gone.
func (h *WebSocketHost) Done() <-chan struct{} {
	return h.done
}

// Call sends an invoke message and waits for the matching result.
func (h *WebSocketHost) Call(ctx context.Context, command string, args []byte) ([]byte, error) {
	reply, err := h.request(ctx, contract.Message{
		Type:    contract.MsgInvoke,
		ID:      uuid.NewString(),
		Name:    command,
		Payload: args,
	})
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

// Subscribe registers deliver for event. The host is asked to subscribe only
// for the first local subscriber of an event; subscribers that arrive while
// that request is in flight wait for it and share its outcome.
func (h *WebSocketHost) Subscribe(ctx context.Context, event string, deliver func([]byte)) (Unsubscribe, error) {
	id := uuid.NewString()

	h.mu.Lock()
	sub, ok := h.subs[event]
	if !ok {
		sub = &hostSubscription{ready: make(chan struct{}), local: make(map[string]func([]byte))}
		h.subs[event] = sub
	}
	sub.local[id] = deliver
	h.mu.Unlock()

	if !ok {
		_, err := h.request(ctx, contract.Message{Type: contract.MsgSubscribe, ID: id, Name: event})
		h.mu.Lock()
		sub.err = err
		if err != nil && h.subs[event] == sub {
			delete(h.subs, event)
		}
		close(sub.ready)
		h.mu.Unlock()
		if err != nil {
			return nil, err
		}
	} else {
		select {
		case <-sub.ready:
		case <-ctx.Done():
			h.removeSub(event, sub, id)
			return nil, ctx.Err()
		case <-h.done:
			return nil, ErrClosed
		}
		h.mu.Lock()
		err := sub.err
		h.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	return func() error {
		if !h.removeSub(event, sub, id) {
			return nil
		}
		select {
		case <-h.done:
			return nil
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return h.write(ctx, contract.Message{Type: contract.MsgUnsubscribe, ID: id, Name: event})
	}, nil
}

// removeSub drops one local subscriber of sub and reports whether the
// host-side subscription should be released: it was the last subscriber and
// the host had confirmed it.
func (h *WebSocketHost) removeSub(event string, sub *hostSubscription, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := sub.local[id]; !ok {
		return false
	}
	delete(sub.local, id)
	if len(sub.local) > 0 || h.subs[event] != sub {
		return false
	}
	delete(h.subs, event)
	select {
	case <-sub.ready:
		return sub.err == nil
	default:
		return false
	}
}

// Emit publishes payload to every subscriber of event on the host.
func (h *WebSocketHost) Emit(ctx context.Context, event string, payload []byte) error {
	return h.write(ctx, contract.Message{Type: contract.MsgEmit, Name: event, Payload: payload})
}

// Close shuts the connection down and fails pending calls with ErrClosed.
func (h *WebSocketHost) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		_ = h.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		h.closeErr = h.conn.Close()

		h.mu.Lock()
		for id, ch := range h.pending {
			close(ch)
			delete(h.pending, id)
		}
		h.mu.Unlock()
	})
	return h.closeErr
}

func (h *WebSocketHost) request(ctx context.Context, msg contract.Message) (contract.Message, error) {
	reply := make(chan contract.Message, 1)
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return contract.Message{}, ErrClosed
	default:
	}
	h.pending[msg.ID] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, msg.ID)
		h.mu.Unlock()
	}()

	if err := h.write(ctx, msg); err != nil {
		return contract.Message{}, err
	}

	select {
	case r, ok := <-reply:
		if !ok {
			return contract.Message{}, ErrClosed
		}
		if r.Type == contract.MsgError || r.Error != "" {
			return contract.Message{}, &HostError{Message: r.Error}
		}
		return r, nil
	case <-ctx.Done():
		return contract.Message{}, ctx.Err()
	case <-h.done:
		return contract.Message{}, ErrClosed
	}
}

func (h *WebSocketHost) write(ctx context.Context, msg contract.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.send <- data:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WebSocketHost) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.Close()
	}()

	for {
		select {
		case data := <-h.send:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.WithError(err).Warn("write failed")
				return
			}
		case <-ticker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.done:
			return
		}
	}
}

func (h *WebSocketHost) readPump() {
	defer h.Close()

	h.conn.SetReadLimit(maxMessageSize)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				h.logger.WithError(err).Warn("connection lost")
			}
			return
		}
		h.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg contract.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.WithError(err).Warn("ignoring undecodable frame")
			continue
		}

		switch msg.Type {
		case contract.MsgResult, contract.MsgSubscribed, contract.MsgError:
			h.mu.Lock()
			ch, ok := h.pending[msg.ID]
			if ok {
				select {
				case ch <- msg:
				default:
				}
			}
			h.mu.Unlock()
			if !ok && msg.Type == contract.MsgError {
				h.logger.WithField("error", msg.Error).Warn("host reported an error")
			}
		case contract.MsgEvent:
			select {
			case h.events <- inboundEvent{name: msg.Name, payload: msg.Payload}:
			case <-h.done:
				return
			}
		case contract.MsgPing:
			_ = h.write(context.Background(), contract.Message{Type: contract.MsgPong, ID: msg.ID})
		case contract.MsgPong:
		default:
			h.logger.WithField("type", msg.Type).Debug("ignoring unknown message type")
		}
	}
}

func (h *WebSocketHost) dispatchEvents() {
	for {
		select {
		case ev := <-h.events:
			h.mu.Lock()
			var subs []func([]byte)
			if sub, ok := h.subs[ev.name]; ok {
				subs = make([]func([]byte), 0, len(sub.local))
				for _, deliver := range sub.local {
					subs = append(subs, deliver)
				}
			}
			h.mu.Unlock()

			for _, deliver := range subs {
				deliver(ev.payload)
			}
		case <-h.done:
			return
		}
	}
}
