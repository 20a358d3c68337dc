package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// CommandSchema is the untyped view of a registered command, used by code
// that only knows the command name (the host dispatcher, tooling).
type CommandSchema struct {
	Name           string
	ValidateArgs   func(data []byte) error
	ValidateResult func(data []byte) error
}

// EventSchema is the untyped view of a registered event.
type EventSchema struct {
	Name            string
	ValidatePayload func(data []byte) error
}

var (
	registryMu sync.RWMutex
	commands   = make(map[string]CommandSchema)
	events     = make(map[string]EventSchema)
)

// Command is a typed handle to a registered host command with argument type A
// and result type R.
type Command[A any, R any] struct {
	name         string
	decodeArgs   func([]byte) (A, error)
	decodeResult func([]byte) (R, error)
}

func (c Command[A, R]) Name() string {
	return c.name
}

// DecodeArgs validates raw arguments against the command's schema.
func (c Command[A, R]) DecodeArgs(data []byte) (A, error) {
	LookupCommand(c.name)
	return c.decodeArgs(data)
}

// DecodeResult validates a raw result against the command's schema.
func (c Command[A, R]) DecodeResult(data []byte) (R, error) {
	LookupCommand(c.name)
	return c.decodeResult(data)
}

// Event is a typed handle to a registered push channel.
type Event[P any] struct {
	name   string
	decode func([]byte) (P, error)
}

func (e Event[P]) Name() string {
	return e.name
}

// DecodePayload validates a raw payload against the event's schema.
func (e Event[P]) DecodePayload(data []byte) (P, error) {
	LookupEvent(e.name)
	return e.decode(data)
}

// DefineCommand registers a command schema and returns its typed handle.
// Registering the same name twice panics.
func DefineCommand[A any, PA decoderPtr[A], R any, PR decoderPtr[R]](name string) Command[A, R] {
	cmd := Command[A, R]{
		name:         name,
		decodeArgs:   Decode[A, PA],
		decodeResult: Decode[R, PR],
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := commands[name]; exists {
		panic(fmt.Sprintf("contract: command %q registered twice", name))
	}
	commands[name] = CommandSchema{
		Name: name,
		ValidateArgs: func(data []byte) error {
			_, err := Decode[A, PA](data)
			return err
		},
		ValidateResult: func(data []byte) error {
			_, err := Decode[R, PR](data)
			return err
		},
	}
	return cmd
}

// DefineEvent registers an event schema and returns its typed handle.
func DefineEvent[P any, PP decoderPtr[P]](name string) Event[P] {
	ev := Event[P]{name: name, decode: Decode[P, PP]}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := events[name]; exists {
		panic(fmt.Sprintf("contract: event %q registered twice", name))
	}
	events[name] = EventSchema{
		Name: name,
		ValidatePayload: func(data []byte) error {
			_, err := Decode[P, PP](data)
			return err
		},
	}
	return ev
}

// LookupCommand returns the schema of a registered command. An unregistered
// name is a programming error and panics.
func LookupCommand(name string) CommandSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	schema, ok := commands[name]
	if !ok {
		panic(fmt.Sprintf("contract: no schema registered for command %q", name))
	}
	return schema
}

// LookupEvent returns the schema of a registered event. An unregistered name
// is a programming error and panics.
func LookupEvent(name string) EventSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	schema, ok := events[name]
	if !ok {
		panic(fmt.Sprintf("contract: no schema registered for event %q", name))
	}
	return schema
}

// HasCommand reports whether name is registered, for code that receives names
// from the wire and must not panic on them.
func HasCommand(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := commands[name]
	return ok
}

// HasEvent reports whether name is a registered event.
func HasEvent(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := events[name]
	return ok
}

// CommandNames lists registered commands in sorted order.
func CommandNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventNames lists registered events in sorted order.
func EventNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
