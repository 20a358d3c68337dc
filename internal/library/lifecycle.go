package library

import (
	"context"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
)

// Start subscribes to library snapshots and then fetches the current
// library, once per store. Whichever of the two lands last wins. A failed
// fetch is logged and leaves the store ready with what it has. Closing scope
// ends the subscription and cancels a fetch still in flight.
func (s *Store) Start(scope *bridge.Scope) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	done := s.beginLoading()
	defer done()

	_, err := bridge.Listen(scope, s.host, contract.SetLibrary, s.ApplySnapshot)
	if err != nil {
		s.logger.WithError(err).Error("failed to subscribe to library snapshots")
		return err
	}

	ctx := scope.Context()
	photos, err := bridge.Invoke(ctx, s.host, contract.GetPhotosFromLibrary, contract.Empty{})
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("initial library fetch cancelled")
		} else {
			s.logger.WithContext(ctx).WithError(err).Error("initial library fetch failed")
		}
		return nil
	}
	s.replace(photos)
	s.logger.WithField("photos", len(photos)).Info("library loaded")
	return nil
}

// ListenPresence keeps the presence state current for the life of scope.
// Every payload replaces the previous one.
func (s *Store) ListenPresence(scope *bridge.Scope) error {
	_, err := bridge.Listen(scope, s.host, contract.Presence, func(p contract.PresencePayload) {
		s.update(func() { s.presence = &p })
	})
	return err
}

// Presence returns the last presence payload, if any.
func (s *Store) Presence() (contract.PresencePayload, bool) {
	snap := s.Snapshot()
	if snap.Presence == nil {
		return contract.PresencePayload{}, false
	}
	return *snap.Presence, true
}

// SendToGallery hands a selection to the gallery window.
func (s *Store) SendToGallery(ctx context.Context, photos contract.Photos) error {
	if err := bridge.Emit(ctx, s.host, contract.TransportImages, photos); err != nil {
		s.logger.WithError(err).Error("failed to send selection to gallery")
		return err
	}
	return nil
}

// FollowTransport makes this store mirror each selection handed over on the
// transport-images channel. Used by the gallery window's store.
func (s *Store) FollowTransport(scope *bridge.Scope) error {
	_, err := bridge.Listen(scope, s.host, contract.TransportImages, func(photos contract.Photos) {
		s.replace(photos)
	})
	return err
}
