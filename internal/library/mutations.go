package library

import (
	"context"
	"errors"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/stacking"
)

func (s *Store) fail(ctx context.Context, op string, err error) error {
	s.logger.WithContext(ctx).WithField("op", op).WithError(err).Error("library mutation failed")
	return err
}

// AddPhotosFromFolder imports a folder. An empty path lets the host choose.
func (s *Store) AddPhotosFromFolder(ctx context.Context, path string) (contract.ImportResult, error) {
	return s.importPhotos(ctx, "add_photos_from_folder", func(ctx context.Context) (contract.ImportResult, error) {
		return bridge.Invoke(ctx, s.host, contract.AddPhotosFromFolder, contract.ImportArgs{Path: path})
	})
}

// AddPhotosToLibrary imports individual files. No paths lets the host choose.
func (s *Store) AddPhotosToLibrary(ctx context.Context, paths ...string) (contract.ImportResult, error) {
	return s.importPhotos(ctx, "add_photos_to_library", func(ctx context.Context) (contract.ImportResult, error) {
		return bridge.Invoke(ctx, s.host, contract.AddPhotosToLibrary, contract.AddFilesArgs{Paths: paths})
	})
}

// importPhotos merges the imported photos by id, unless a snapshot landed
// while the call was in flight: the snapshot already reflects the import.
func (s *Store) importPhotos(ctx context.Context, op string, call func(context.Context) (contract.ImportResult, error)) (contract.ImportResult, error) {
	done := s.beginLoading()
	defer done()

	ctx, span := observability.StartServiceSpan(ctx, "library", op)
	defer span.End()

	gen := s.generation()
	result, err := call(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return result, s.fail(ctx, op, err)
	}
	if result.Cancelled {
		s.logger.WithField("op", op).Debug("import cancelled")
		return result, nil
	}

	s.update(func() {
		if s.replacements != gen {
			return
		}
		s.photos = mergeByID(s.photos, result.Photos)
	})
	observability.SetSuccess(span)
	return result, nil
}

func mergeByID(current, incoming contract.Photos) contract.Photos {
	index := make(map[string]int, len(current))
	out := current.Clone()
	if out == nil {
		out = contract.Photos{}
	}
	for i, p := range out {
		index[p.ID] = i
	}
	for _, p := range incoming {
		if i, ok := index[p.ID]; ok {
			out[i] = p.Clone()
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p.Clone())
	}
	return out
}

// RemovePhotoFromLibrary deletes one photo. On success the id is dropped
// locally; it may already be gone if a snapshot beat the result.
func (s *Store) RemovePhotoFromLibrary(ctx context.Context, photo contract.Photo) error {
	done := s.beginLoading()
	defer done()

	if _, err := bridge.Invoke(ctx, s.host, contract.RemovePhotoFromLibrary, contract.PhotoIDArgs{ID: photo.ID}); err != nil {
		return s.fail(ctx, "remove_photo_from_library", err)
	}
	s.patch(func(photos contract.Photos) contract.Photos {
		out := make(contract.Photos, 0, len(photos))
		for _, p := range photos {
			if p.ID != photo.ID {
				out = append(out, p)
			}
		}
		return out
	})
	return nil
}

// RemovePhotosFromLibrary deletes each photo independently and joins the
// failures. Photos whose removal succeeded are dropped locally.
func (s *Store) RemovePhotosFromLibrary(ctx context.Context, photos contract.Photos) error {
	var errs []error
	for _, p := range photos {
		errs = append(errs, s.RemovePhotoFromLibrary(ctx, p))
	}
	return errors.Join(errs...)
}

// ClearLibrary empties the library.
func (s *Store) ClearLibrary(ctx context.Context) error {
	done := s.beginLoading()
	defer done()

	if _, err := bridge.Invoke(ctx, s.host, contract.ClearLibrary, contract.Empty{}); err != nil {
		return s.fail(ctx, "clear_library", err)
	}
	s.patch(func(contract.Photos) contract.Photos { return contract.Photos{} })
	return nil
}

// SetPhotoFavorite flags a photo immediately and then confirms with the
// host. A failed confirmation leaves the optimistic value in place unless
// the store was built WithFavoriteRollback.
func (s *Store) SetPhotoFavorite(ctx context.Context, id string, favorite bool) error {
	var previous, found bool
	var gen uint64
	s.patch(func(photos contract.Photos) contract.Photos {
		gen = s.replacements
		for i := range photos {
			if photos[i].ID == id {
				previous, found = photos[i].Favorite, true
				photos[i].Favorite = favorite
			}
		}
		return photos
	})

	_, err := bridge.Invoke(ctx, s.host, contract.SetPhotoFavorite, contract.FavoriteArgs{ID: id, Favorite: favorite})
	if err == nil {
		return nil
	}

	if s.rollbackFavorite && found {
		s.update(func() {
			if s.replacements != gen {
				return
			}
			for i := range s.photos {
				if s.photos[i].ID == id && s.photos[i].Favorite == favorite {
					s.photos[i].Favorite = previous
				}
			}
		})
	}
	return s.fail(ctx, "set_photo_favorite", err)
}

// SetPhotosFavorite applies SetPhotoFavorite to every id and joins the
// failures.
func (s *Store) SetPhotosFavorite(ctx context.Context, ids []string, favorite bool) error {
	var errs []error
	for _, id := range ids {
		errs = append(errs, s.SetPhotoFavorite(ctx, id, favorite))
	}
	return errors.Join(errs...)
}

// SaveImageConfig persists editor state. The store does not patch its own
// copy; the editor holds the edited config until the next snapshot.
func (s *Store) SaveImageConfig(ctx context.Context, id string, cfg contract.PhotoConfig) error {
	if _, err := bridge.Invoke(ctx, s.host, contract.SavePhotoConfig, contract.SaveConfigArgs{ID: id, Config: cfg}); err != nil {
		return s.fail(ctx, "save_photo_config", err)
	}
	return nil
}

// SetPhotoStack puts ids into stackID with primaryID as representative,
// locally first and then on the host.
func (s *Store) SetPhotoStack(ctx context.Context, ids []string, stackID, primaryID string) error {
	if len(ids) == 0 {
		return ErrNoPhotos
	}
	if stackID == "" {
		return ErrEmptyStackID
	}
	s.patch(func(photos contract.Photos) contract.Photos {
		return stacking.Assign(photos, ids, stackID, primaryID)
	})

	args := contract.StackArgs{PhotoIDs: ids, StackID: stackID, PrimaryID: primaryID}
	if _, err := bridge.Invoke(ctx, s.host, contract.SetPhotoStack, args); err != nil {
		return s.fail(ctx, "set_photo_stack", err)
	}
	return nil
}

// unstackLocal undoes a local stack assignment the host never accepted. Only
// photos still in stackID are touched, so a snapshot that landed meanwhile wins.
func (s *Store) unstackLocal(stackID string, ids []string) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	s.patch(func(photos contract.Photos) contract.Photos {
		var stale []string
		for _, p := range photos {
			if wanted[p.ID] && p.StackKey() == stackID {
				stale = append(stale, p.ID)
			}
		}
		if len(stale) == 0 {
			return photos
		}
		return stacking.Clear(photos, stale)
	})
}

// ClearPhotoStack takes ids out of their stacks, locally first.
func (s *Store) ClearPhotoStack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrNoPhotos
	}
	s.patch(func(photos contract.Photos) contract.Photos {
		return stacking.Clear(photos, ids)
	})

	if _, err := bridge.Invoke(ctx, s.host, contract.ClearPhotoStack, contract.UnstackArgs{PhotoIDs: ids}); err != nil {
		return s.fail(ctx, "clear_photo_stack", err)
	}
	return nil
}

// SetStackPrimary re-picks the representative of a stack, locally first.
func (s *Store) SetStackPrimary(ctx context.Context, stackID, primaryID string) error {
	if stackID == "" {
		return ErrEmptyStackID
	}
	s.patch(func(photos contract.Photos) contract.Photos {
		return stacking.SetPrimary(photos, stackID, primaryID)
	})

	args := contract.StackPrimaryArgs{StackID: stackID, PrimaryID: primaryID}
	if _, err := bridge.Invoke(ctx, s.host, contract.SetStackPrimary, args); err != nil {
		return s.fail(ctx, "set_stack_primary", err)
	}
	return nil
}

// FullResAttachment fetches the original-resolution data URI of a photo.
func (s *Store) FullResAttachment(ctx context.Context, id string) (contract.FullRes, error) {
	res, err := bridge.Invoke(ctx, s.host, contract.GetFullResAttachment, contract.PhotoIDArgs{ID: id})
	if err != nil {
		return res, s.fail(ctx, "get_full_res_attachment", err)
	}
	return res, nil
}

// AnalyzeImageMetadata asks the host for the EXIF summary of a file.
func (s *Store) AnalyzeImageMetadata(ctx context.Context, path string) (contract.ImageMetadata, error) {
	md, err := bridge.Invoke(ctx, s.host, contract.AnalyzeImageMetadata, contract.PathArgs{Path: path})
	if err != nil {
		return md, s.fail(ctx, "analyze_image_metadata", err)
	}
	return md, nil
}
