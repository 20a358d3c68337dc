package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/picksy/desktop/internal/models"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/repository"
)

const importBatchSize = 25

// Importer turns image files into library photos
type Importer struct {
	photoRepo repository.PhotoRepo
	hasher    *HashService
	thumbs    *ThumbnailService
	exif      *EXIFService
	allowed   map[string]bool
	logger    *observability.Logger
}

// NewImporter creates an Importer accepting files with the given extensions
func NewImporter(
	photoRepo repository.PhotoRepo,
	hasher *HashService,
	thumbs *ThumbnailService,
	exif *EXIFService,
	allowedExtensions []string,
) *Importer {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &Importer{
		photoRepo: photoRepo,
		hasher:    hasher,
		thumbs:    thumbs,
		exif:      exif,
		allowed:   allowed,
		logger:    observability.GetLogger().WithField("component", "importer"),
	}
}

// Accepts reports whether path has an importable extension
func (i *Importer) Accepts(path string) bool {
	return i.allowed[strings.ToLower(filepath.Ext(path))]
}

// ImportFolder imports every accepted image below dir. Hidden files and
// directories are skipped.
func (i *Importer) ImportFolder(ctx context.Context, dir string) (*models.ImportSummary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", models.ErrNotADirectory, dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			i.logger.WithField("path", path).WithError(err).Warn("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		hidden := strings.HasPrefix(d.Name(), ".") && path != dir
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && i.Accepts(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return i.ImportFiles(ctx, paths)
}

// ImportFiles imports the given files. Files that cannot be read or decoded
// are reported in Skipped; the rest are upserted in batches.
func (i *Importer) ImportFiles(ctx context.Context, paths []string) (*models.ImportSummary, error) {
	ctx, span := observability.StartServiceSpan(ctx, "importer", "import_files")
	defer span.End()
	start := time.Now()

	summary := &models.ImportSummary{Imported: []*models.Photo{}, Skipped: []string{}}
	seen := make(map[string]bool)
	batch := make([]*models.Photo, 0, importBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.photoRepo.Upsert(ctx, batch...); err != nil {
			return fmt.Errorf("failed to store photos: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		if !i.Accepts(path) {
			summary.Skipped = append(summary.Skipped, path)
			continue
		}
		photo, err := i.prepare(path)
		if err != nil {
			i.logger.WithField("path", path).WithError(err).Warn("skipping file")
			summary.Skipped = append(summary.Skipped, path)
			continue
		}
		if seen[photo.ID] {
			continue
		}
		seen[photo.ID] = true
		batch = append(batch, photo)
		if len(batch) == importBatchSize {
			if err := flush(); err != nil {
				observability.RecordError(span, err)
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	// Re-read so re-imported photos come back with their favorite, config and
	// stack intact.
	stored, err := i.photoRepo.List(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	for _, p := range stored {
		if seen[p.ID] {
			summary.Imported = append(summary.Imported, p)
		}
	}

	i.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"imported": len(summary.Imported),
		"skipped":  len(summary.Skipped),
		"duration": time.Since(start).String(),
	}).Info("import finished")
	observability.SetSuccess(span)
	return summary, nil
}

func (i *Importer) prepare(path string) (*models.Photo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	img, err := i.thumbs.Decode(data, abs)
	if err != nil {
		return nil, err
	}
	meta := i.exif.ExtractFromBytes(data)

	thumb, err := i.thumbs.DataURI(img, meta.Orientation)
	if err != nil {
		return nil, err
	}

	taken := info.ModTime().UTC()
	if meta.DateTaken != nil {
		taken = meta.DateTaken.UTC()
	}

	return models.NewPhoto(i.hasher.ContentID(img), abs, thumb, info.Size(), taken)
}
