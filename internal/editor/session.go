// Package editor holds the photos open in the editor window: edits stay local
// until saved, and original-resolution data is fetched lazily and cached.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

var (
	ErrNotEditing = errors.New("editor: photo is not open")
	ErrNoPhotos   = errors.New("editor: nothing to edit")
)

// Session is one editor window.
type Session struct {
	host   bridge.Host
	logger *observability.Logger

	mu      sync.Mutex
	photos  contract.Photos
	active  int
	fullRes map[string]string
}

type Option func(*Session)

func WithLogger(l *observability.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(host bridge.Host, opts ...Option) *Session {
	s := &Session{
		host:    host,
		logger:  observability.GetLogger().WithField("component", "editor"),
		fullRes: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen replaces the open photos with every edit-images payload until scope
// closes. Unsaved edits of the previous set are dropped.
func (s *Session) Listen(scope *bridge.Scope) error {
	_, err := bridge.Listen(scope, s.host, contract.EditImages, func(photos contract.Photos) {
		s.mu.Lock()
		s.photos = photos.Clone()
		s.active = 0
		s.mu.Unlock()
		s.logger.WithField("photos", len(photos)).Debug("editor received photos")
	})
	return err
}

// Open hands photos to the editor window.
func Open(ctx context.Context, host bridge.Host, photos contract.Photos) error {
	if len(photos) == 0 {
		return ErrNoPhotos
	}
	return bridge.Emit(ctx, host, contract.EditImages, photos)
}

func (s *Session) Photos() contract.Photos {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photos.Clone()
}

// Active returns the photo currently shown in the sidebar.
func (s *Session) Active() (contract.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= len(s.photos) {
		return contract.Photo{}, false
	}
	return s.photos[s.active].Clone(), true
}

func (s *Session) SetActive(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.photos) {
		return fmt.Errorf("editor: index %d out of range [0,%d)", i, len(s.photos))
	}
	s.active = i
	return nil
}

// UpdateConfig replaces the config of an open photo. Nothing is sent to the
// host until Save.
func (s *Session) UpdateConfig(id string, cfg contract.PhotoConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotEditing, id)
	}
	c := cfg.Clone()
	s.photos[i].Config = &c
	return nil
}

// SetFilter sets one filter of an open photo, keeping the rest of its chain.
func (s *Session) SetFilter(id string, kind contract.FilterKind, value float64) error {
	if !kind.Valid() {
		return fmt.Errorf("editor: unknown filter %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotEditing, id)
	}
	var current contract.PhotoConfig
	if s.photos[i].Config != nil {
		current = *s.photos[i].Config
	}
	next := current.WithFilter(kind, value)
	s.photos[i].Config = &next
	return nil
}

// Save writes the config of an open photo back to the host.
func (s *Session) Save(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotEditing, id)
	}
	var cfg contract.PhotoConfig
	if s.photos[i].Config != nil {
		cfg = s.photos[i].Config.Clone()
	}
	s.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "editor", "save")
	defer span.End()

	if _, err := bridge.Invoke(ctx, s.host, contract.SavePhotoConfig, contract.SaveConfigArgs{ID: id, Config: cfg}); err != nil {
		observability.RecordError(span, err)
		s.logger.WithContext(ctx).WithField("photo_id", id).WithError(err).Error("failed to save photo config")
		return err
	}
	observability.SetSuccess(span)
	return nil
}

// SaveAll saves every open photo and joins the failures.
func (s *Session) SaveAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.Photos().IDs() {
		errs = append(errs, s.Save(ctx, id))
	}
	return errors.Join(errs...)
}

// FullRes returns the original-resolution data URI of an open photo,
// fetching it once. ok is false when the photo has no attachment or the
// host has no data for it.
func (s *Session) FullRes(ctx context.Context, id string) (data string, ok bool, err error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return "", false, fmt.Errorf("%w: %s", ErrNotEditing, id)
	}
	if cached, hit := s.fullRes[id]; hit {
		s.mu.Unlock()
		return cached, true, nil
	}
	hasAttachment := s.photos[i].FullResAttachment != nil
	s.mu.Unlock()

	if !hasAttachment {
		return "", false, nil
	}

	res, err := bridge.Invoke(ctx, s.host, contract.GetFullResAttachment, contract.PhotoIDArgs{ID: id})
	if err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, nil
	}

	s.mu.Lock()
	s.fullRes[id] = res.Data
	s.mu.Unlock()
	return res.Data, true, nil
}

// Prefetch fetches every missing full-resolution image of the open photos.
// Failures are logged and the photo keeps its thumbnail. It returns how many
// images are cached afterwards.
func (s *Session) Prefetch(ctx context.Context) int {
	cached := 0
	for _, id := range s.Photos().IDs() {
		if ctx.Err() != nil {
			break
		}
		_, ok, err := s.FullRes(ctx, id)
		if err != nil {
			s.logger.WithField("photo_id", id).WithError(err).Warn("full-resolution fetch failed")
			continue
		}
		if ok {
			cached++
		}
	}
	return cached
}

// Style renders the CSS filter and transform of an open photo.
func (s *Session) Style(id string) (filter, transform string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return "", "", fmt.Errorf("%w: %s", ErrNotEditing, id)
	}
	cfg := s.photos[i].Config
	if cfg == nil {
		return "", "", nil
	}
	if filter, err = cfg.CSSFilter(); err != nil {
		return "", "", err
	}
	if cfg.Transform != nil {
		transform = cfg.Transform.CSS()
	}
	return filter, transform, nil
}

func (s *Session) indexLocked(id string) int {
	for i, p := range s.photos {
		if p.ID == id {
			return i
		}
	}
	return -1
}
