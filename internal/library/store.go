// Package library holds the client's authoritative photo collection and
// reconciles it across command results, host snapshots and optimistic edits.
package library

import (
	"errors"
	"sync"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

// State is the store lifecycle.
type State int

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyStarted = errors.New("library: store already started")
	ErrNoPhotos       = errors.New("library: no photo ids given")
	ErrEmptyStackID   = errors.New("library: empty stack id")
)

// Snapshot is an immutable copy of the store state. Version increases with
// every change, so a listener can discard notifications that arrive late.
type Snapshot struct {
	Photos   contract.Photos
	Loading  bool
	State    State
	Presence *contract.PresencePayload
	Version  uint64
}

// Store is the single photo collection of a library session. Construct one
// per session and pass it to every consumer.
type Store struct {
	host             bridge.Host
	logger           *observability.Logger
	rollbackFavorite bool

	mu       sync.Mutex
	photos   contract.Photos
	loading  int
	ready    bool
	started  bool
	presence *contract.PresencePayload
	version  uint64
	// replacements counts wholesale replacements (snapshot, initial fetch,
	// transport hand-off). A mutation that sees it change while in flight
	// knows a newer authoritative state landed.
	replacements uint64

	listeners    map[int]func(Snapshot)
	nextListener int
}

// Option configures a Store.
type Option func(*Store)

// WithFavoriteRollback restores the previous favorite flag when the
// confirming command fails and no snapshot has landed since the edit.
func WithFavoriteRollback() Option {
	return func(s *Store) {
		s.rollbackFavorite = true
	}
}

func WithLogger(l *observability.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an idle store talking to host.
func New(host bridge.Host, opts ...Option) *Store {
	s := &Store{
		host:      host,
		logger:    observability.GetLogger().WithField("component", "library"),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Photos returns a copy of the current photo list.
func (s *Store) Photos() contract.Photos {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photos.Clone()
}

// Photo looks up one photo by id.
func (s *Store) Photo(id string) (contract.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return contract.Photo{}, false
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) stateLocked() State {
	switch {
	case s.loading > 0:
		return Loading
	case s.ready:
		return Ready
	default:
		return Idle
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Photos:  s.photos.Clone(),
		Loading: s.loading > 0,
		State:   s.stateLocked(),
		Version: s.version,
	}
	if s.presence != nil {
		p := *s.presence
		p.RemotePeers = append([]contract.PeerInfo(nil), s.presence.RemotePeers...)
		snap.Presence = &p
	}
	return snap
}

// update applies fn under the lock, bumps the version and notifies
// listeners outside the lock.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// beginLoading marks a loading-visible operation. The returned function
// must be deferred; the flag clears when the last operation settles.
func (s *Store) beginLoading() func() {
	s.update(func() { s.loading++ })
	var once sync.Once
	return func() {
		once.Do(func() {
			s.update(func() {
				s.loading--
				s.ready = true
			})
		})
	}
}

// replace installs an authoritative photo set.
func (s *Store) replace(photos contract.Photos) {
	s.update(func() {
		s.photos = photos.Clone()
		if s.photos == nil {
			s.photos = contract.Photos{}
		}
		s.replacements++
	})
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replacements
}

// patch rewrites the photo list in place of the current one.
func (s *Store) patch(fn func(contract.Photos) contract.Photos) {
	s.update(func() {
		s.photos = fn(s.photos)
	})
}

// ApplySnapshot replaces the photo set as a SetLibrary push would. Applying
// the same snapshot twice leaves the same state as applying it once.
func (s *Store) ApplySnapshot(snap contract.LibrarySnapshot) {
	s.replace(snap.Photos)
}
