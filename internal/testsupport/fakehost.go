// Package testsupport provides an in-memory bridge.Host for tests.
package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
)

// Handler answers one command.
type Handler func(ctx context.Context, args []byte) ([]byte, error)

// Call is one recorded command invocation.
type Call struct {
	Command string
	Args    []byte
}

// FakeHost records calls, answers them from scripted handlers and delivers
// pushed payloads synchronously to current subscribers.
type FakeHost struct {
	mu           sync.Mutex
	handlers     map[string]Handler
	calls        []Call
	subs         map[string]map[int]func([]byte)
	nextSub      int
	unsubscribes map[string]int
	emitted      []Call
	holds        map[string]<-chan struct{}
}

func NewFakeHost() *FakeHost {
	return &FakeHost{
		handlers:     make(map[string]Handler),
		subs:         make(map[string]map[int]func([]byte)),
		unsubscribes: make(map[string]int),
		holds:        make(map[string]<-chan struct{}),
	}
}

var _ bridge.Host = (*FakeHost)(nil)

// Handle installs h for command, replacing any previous handler.
func (f *FakeHost) Handle(command string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[command] = h
}

// Reply makes command answer with v encoded as JSON.
func (f *FakeHost) Reply(command string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.ReplyRaw(command, data)
}

// ReplyRaw makes command answer with data verbatim.
func (f *FakeHost) ReplyRaw(command string, data []byte) {
	f.Handle(command, func(context.Context, []byte) ([]byte, error) {
		return data, nil
	})
}

// Fail makes command return err.
func (f *FakeHost) Fail(command string, err error) {
	f.Handle(command, func(context.Context, []byte) ([]byte, error) {
		return nil, err
	})
}

// Block makes command wait until release is closed or the call's context
// ends, then answer with v.
func (f *FakeHost) Block(command string, release <-chan struct{}, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.Handle(command, func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-release:
			return data, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func (f *FakeHost) Call(ctx context.Context, command string, args []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Command: command, Args: append([]byte(nil), args...)})
	h, ok := f.handlers[command]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("fake host: no handler for %s", command)
	}
	return h(ctx, args)
}

// HoldSubscribe makes subscriptions to event wait for release, like a host
// that is slow to acknowledge them. The subscribe fails if its context ends
// first.
func (f *FakeHost) HoldSubscribe(event string, release <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds[event] = release
}

func (f *FakeHost) Subscribe(ctx context.Context, event string, deliver func([]byte)) (bridge.Unsubscribe, error) {
	f.mu.Lock()
	release := f.holds[event]
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[event] == nil {
		f.subs[event] = make(map[int]func([]byte))
	}
	id := f.nextSub
	f.nextSub++
	f.subs[event][id] = deliver

	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[event][id]; ok {
			delete(f.subs[event], id)
			f.unsubscribes[event]++
		}
		return nil
	}, nil
}

// Emit records the payload and delivers it like the host would.
func (f *FakeHost) Emit(_ context.Context, event string, payload []byte) error {
	f.mu.Lock()
	f.emitted = append(f.emitted, Call{Command: event, Args: append([]byte(nil), payload...)})
	f.mu.Unlock()
	f.PushRaw(event, payload)
	return nil
}

// Push encodes v and delivers it to every subscriber of event.
func (f *FakeHost) Push(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.PushRaw(event, data)
}

// PushRaw delivers data verbatim to every subscriber of event.
func (f *FakeHost) PushRaw(event string, data []byte) {
	f.mu.Lock()
	targets := make([]func([]byte), 0, len(f.subs[event]))
	for _, deliver := range f.subs[event] {
		targets = append(targets, deliver)
	}
	f.mu.Unlock()

	for _, deliver := range targets {
		deliver(data)
	}
}

// Calls returns the recorded calls of command, or all calls when command is
// empty.
func (f *FakeHost) Calls(command string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if command == "" || c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

// CallCount is len(Calls(command)).
func (f *FakeHost) CallCount(command string) int {
	return len(f.Calls(command))
}

// Emitted returns payloads published through Emit on event.
func (f *FakeHost) Emitted(event string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, e := range f.emitted {
		if e.Command == event {
			out = append(out, e.Args)
		}
	}
	return out
}

// Subscribers counts live subscriptions to event.
func (f *FakeHost) Subscribers(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[event])
}

// Unsubscribes counts host-side unsubscribes performed for event.
func (f *FakeHost) Unsubscribes(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes[event]
}

// Photo builds a minimal valid photo.
func Photo(id, filename string) contract.Photo {
	return contract.Photo{
		ID:         id,
		Base64:     "data:image/jpeg;base64,",
		Filename:   filename,
		ImagePath:  "/photos/" + filename,
		SyncStatus: contract.SyncStatusSynced,
	}
}

// Stacked returns p assigned to stackID.
func Stacked(p contract.Photo, stackID string, primary bool) contract.Photo {
	p.StackID = contract.StringPtr(stackID)
	p.IsStackPrimary = primary
	return p
}

// Snapshot builds a SetLibrary payload.
func Snapshot(photos ...contract.Photo) contract.LibrarySnapshot {
	return contract.LibrarySnapshot{Photos: photos}
}
