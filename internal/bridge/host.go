package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/picksy/desktop/internal/observability"
)

// Host is the native side of the bridge. Implementations deliver payloads for
// one event in emission order and may call deliver from their own goroutine.
type Host interface {
	Call(ctx context.Context, command string, args []byte) ([]byte, error)
	Subscribe(ctx context.Context, event string, deliver func(payload []byte)) (Unsubscribe, error)
	Emit(ctx context.Context, event string, payload []byte) error
}

// Unsubscribe releases a host-side subscription.
type Unsubscribe func() error

// DefaultTimeout bounds every command when no other timeout is configured.
const DefaultTimeout = 30 * time.Second

// Conn decorates a Host with a command timeout, logging and metrics. Invoke,
// Listen and Emit accept any Host; passing a Conn selects its settings.
type Conn struct {
	host    Host
	timeout time.Duration
	logger  *observability.Logger
	metrics *observability.BridgeMetrics
}

// Option configures a Conn.
type Option func(*Conn)

// WithTimeout bounds each command call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *observability.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *observability.BridgeMetrics) Option {
	return func(c *Conn) {
		c.metrics = m
	}
}

// New wraps host. Wrapping a Conn again applies opts on top of its settings.
func New(host Host, opts ...Option) *Conn {
	c := &Conn{
		host:    host,
		timeout: DefaultTimeout,
		logger:  observability.GetLogger().WithField("component", "bridge"),
		metrics: defaultMetrics(),
	}
	if inner, ok := host.(*Conn); ok {
		copied := *inner
		c = &copied
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-command bound.
func (c *Conn) Timeout() time.Duration {
	return c.timeout
}

// Logger returns the bridge logger.
func (c *Conn) Logger() *observability.Logger {
	return c.logger
}

// Call runs the command under the configured timeout. A host that ignores
// its context is abandoned when the deadline passes.
func (c *Conn) Call(ctx context.Context, command string, args []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type callResult struct {
		data []byte
		err  error
	}
	done := make(chan callResult, 1)
	go func() {
		data, err := c.host.Call(ctx, command, args)
		done <- callResult{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe bounds the subscribe handshake by the command timeout. A
// subscription the host confirms after the deadline is released again.
func (c *Conn) Subscribe(ctx context.Context, event string, deliver func([]byte)) (Unsubscribe, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type subscribeResult struct {
		unsubscribe Unsubscribe
		err         error
	}
	done := make(chan subscribeResult, 1)
	go func() {
		unsubscribe, err := c.host.Subscribe(ctx, event, deliver)
		done <- subscribeResult{unsubscribe: unsubscribe, err: err}
	}()

	select {
	case r := <-done:
		return r.unsubscribe, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil && r.unsubscribe != nil {
				_ = r.unsubscribe()
			}
		}()
		c.logger.WithField("event", event).Warn("host did not confirm the subscription in time")
		return nil, ctx.Err()
	}
}

func (c *Conn) Emit(ctx context.Context, event string, payload []byte) error {
	return c.host.Emit(ctx, event, payload)
}

func asConn(h Host) *Conn {
	if c, ok := h.(*Conn); ok {
		return c
	}
	return New(h)
}

var (
	metricsOnce   sync.Once
	sharedMetrics *observability.BridgeMetrics
)

func defaultMetrics() *observability.BridgeMetrics {
	metricsOnce.Do(func() {
		m, err := observability.NewBridgeMetrics()
		if err != nil {
			observability.GetLogger().WithError(err).Warn("bridge metrics unavailable")
			return
		}
		sharedMetrics = m
	})
	return sharedMetrics
}
