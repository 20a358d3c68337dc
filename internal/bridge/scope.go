package bridge

import (
	"context"
	"errors"
	"sync"
)

// Scope owns resources acquired on behalf of one consumer, such as a screen
// or a CLI command. Close cancels the scope context and releases everything
// acquired into it, last acquired first, exactly once.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	finalizers []func() error
	closed     bool

	closeOnce sync.Once
	closeErr  error
}

// NewScope derives a scope from parent. Cancelling parent cancels the scope
// context but does not release its resources; call Close for that.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Done is closed when the scope context is cancelled.
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Defer registers fn to run on Close. If the scope is already closed, fn runs
// immediately and ErrScopeClosed is returned joined with fn's error.
func (s *Scope) Defer(fn func() error) error {
	s.mu.Lock()
	if !s.closed {
		s.finalizers = append(s.finalizers, fn)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return errors.Join(ErrScopeClosed, fn())
}

// Closed reports whether Close has started.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels the context and runs finalizers in reverse order. Later calls
// return the first call's result.
func (s *Scope) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.closed = true
		finalizers := s.finalizers
		s.finalizers = nil
		s.mu.Unlock()

		var errs []error
		for i := len(finalizers) - 1; i >= 0; i-- {
			errs = append(errs, finalizers[i]())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
