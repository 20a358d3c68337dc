package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/picksy/desktop/internal/contract"
)

type listenOptions struct {
	onValidationError func(error)
}

// ListenOption configures Listen.
type ListenOption func(*listenOptions)

// OnValidationError receives every payload that failed to decode. The payload
// is dropped either way.
func OnValidationError(fn func(error)) ListenOption {
	return func(o *listenOptions) {
		o.onValidationError = fn
	}
}

// Subscription is a host-side subscription tied to a Scope.
type Subscription struct {
	event       string
	closed      atomic.Bool
	once        sync.Once
	unsubscribe Unsubscribe
	err         error
}

// Event returns the subscribed channel name.
func (s *Subscription) Event() string {
	return s.event
}

// Active reports whether Release has not started.
func (s *Subscription) Active() bool {
	return !s.closed.Load()
}

// Release stops deliveries and performs the host-side unsubscribe exactly
// once, however many goroutines call it. A callback already running is not
// waited for.
func (s *Subscription) Release() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.unsubscribe != nil {
			s.err = s.unsubscribe()
		}
	})
	return s.err
}

// Listen subscribes to ev for the lifetime of scope. Each payload is decoded
// and handed to onPayload in emission order; payloads that fail validation
// are logged, counted and dropped.
func Listen[P any](scope *Scope, h Host, ev contract.Event[P], onPayload func(P), opts ...ListenOption) (*Subscription, error) {
	var o listenOptions
	for _, opt := range opts {
		opt(&o)
	}
	name := ev.Name()
	contract.LookupEvent(name)

	if scope.Closed() {
		return nil, ErrScopeClosed
	}

	c := asConn(h)
	sub := &Subscription{event: name}
	logger := c.logger.WithField("event", name)

	deliver := func(raw []byte) {
		if sub.closed.Load() {
			return
		}
		payload, err := ev.DecodePayload(raw)
		if err != nil {
			c.metrics.RecordDropped(context.Background(), name)
			logger.WithError(err).Warn("dropping malformed event payload")
			if o.onValidationError != nil {
				o.onValidationError(err)
			}
			return
		}
		if sub.closed.Load() {
			return
		}
		onPayload(payload)
	}

	unsubscribe, err := c.Subscribe(scope.Context(), name, deliver)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	sub.unsubscribe = unsubscribe

	if err := scope.Defer(sub.Release); err != nil {
		return nil, err
	}
	logger.Debug("subscribed")
	return sub, nil
}

// Emit publishes payload on a cross-window channel.
func Emit[P any](ctx context.Context, h Host, ev contract.Event[P], payload P) error {
	name := ev.Name()
	contract.LookupEvent(name)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	if err := h.Emit(ctx, name, data); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}
