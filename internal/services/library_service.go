package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/models"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/repository"
)

// CommandFunc answers one invoke with a value that is encoded as its result
type CommandFunc func(ctx context.Context, args []byte) (any, error)

// LibraryService answers the host commands against the photo repository and
// pushes a fresh library snapshot after every mutation
type LibraryService struct {
	photoRepo     repository.PhotoRepo
	importer      *Importer
	exif          *EXIFService
	hub           *WebSocketHub
	defaultFolder string
	logger        *observability.Logger

	commands map[string]CommandFunc
}

// NewLibraryService creates a LibraryService. defaultFolder is imported when
// add_photos_from_folder carries no path.
func NewLibraryService(
	photoRepo repository.PhotoRepo,
	importer *Importer,
	exif *EXIFService,
	hub *WebSocketHub,
	defaultFolder string,
) *LibraryService {
	s := &LibraryService{
		photoRepo:     photoRepo,
		importer:      importer,
		exif:          exif,
		hub:           hub,
		defaultFolder: defaultFolder,
		logger:        observability.GetLogger().WithField("component", "library"),
	}
	s.commands = map[string]CommandFunc{
		contract.AddPhotosFromFolder.Name():    command(contract.AddPhotosFromFolder, s.addFromFolder),
		contract.AddPhotosToLibrary.Name():     command(contract.AddPhotosToLibrary, s.addFiles),
		contract.GetPhotosFromLibrary.Name():   command(contract.GetPhotosFromLibrary, s.list),
		contract.ClearLibrary.Name():           command(contract.ClearLibrary, s.clear),
		contract.RemovePhotoFromLibrary.Name(): command(contract.RemovePhotoFromLibrary, s.remove),
		contract.SavePhotoConfig.Name():        command(contract.SavePhotoConfig, s.saveConfig),
		contract.SetPhotoFavorite.Name():       command(contract.SetPhotoFavorite, s.setFavorite),
		contract.SetPhotoStack.Name():          command(contract.SetPhotoStack, s.setStack),
		contract.ClearPhotoStack.Name():        command(contract.ClearPhotoStack, s.clearStack),
		contract.SetStackPrimary.Name():        command(contract.SetStackPrimary, s.setStackPrimary),
		contract.GetFullResAttachment.Name():   command(contract.GetFullResAttachment, s.fullRes),
		contract.AnalyzeImageMetadata.Name():   command(contract.AnalyzeImageMetadata, s.metadata),
	}
	return s
}

func command[A, R any](cmd contract.Command[A, R], fn func(ctx context.Context, args A) (R, error)) CommandFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		if len(raw) == 0 {
			raw = []byte("null")
		}
		args, err := cmd.DecodeArgs(raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
}

// Invoke runs the named command
func (s *LibraryService) Invoke(ctx context.Context, name string, args []byte) (any, error) {
	fn, ok := s.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownCommand, name)
	}

	ctx, span := observability.StartServiceSpan(ctx, "library", name)
	defer span.End()
	span.SetAttributes(observability.CommandName(name))

	result, err := fn(ctx, args)
	if err != nil {
		observability.RecordError(span, err)
		s.logger.WithContext(ctx).WithField("command", name).WithError(err).Warn("command failed")
		return nil, err
	}
	observability.SetSuccess(span)
	return result, nil
}

// Snapshot returns the whole library in wire form
func (s *LibraryService) Snapshot(ctx context.Context) (contract.Photos, error) {
	photos, err := s.photoRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return models.ToContractList(s.logger.WithContext(ctx), photos), nil
}

// publish pushes the current library to SetLibrary subscribers. A failure
// only costs subscribers one update, so it is logged rather than returned.
func (s *LibraryService) publish(ctx context.Context) {
	if s.hub == nil {
		return
	}
	photos, err := s.Snapshot(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to load library snapshot")
		return
	}
	if err := s.hub.BroadcastEvent(contract.SetLibrary.Name(), contract.LibrarySnapshot{Photos: photos}); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to publish library snapshot")
	}
}

func (s *LibraryService) importResult(ctx context.Context, summary *models.ImportSummary) contract.ImportResult {
	if len(summary.Imported) == 0 {
		return contract.ImportResult{Cancelled: true}
	}
	s.publish(ctx)
	return contract.ImportResult{Photos: models.ToContractList(s.logger.WithContext(ctx), summary.Imported)}
}

func (s *LibraryService) addFromFolder(ctx context.Context, args contract.ImportArgs) (contract.ImportResult, error) {
	dir := args.Path
	if dir == "" {
		dir = s.defaultFolder
	}
	if dir == "" {
		return contract.ImportResult{Cancelled: true}, nil
	}
	summary, err := s.importer.ImportFolder(ctx, dir)
	if err != nil {
		return contract.ImportResult{}, err
	}
	return s.importResult(ctx, summary), nil
}

func (s *LibraryService) addFiles(ctx context.Context, args contract.AddFilesArgs) (contract.ImportResult, error) {
	// A headless host has no file picker to open.
	if len(args.Paths) == 0 {
		return contract.ImportResult{Cancelled: true}, nil
	}
	summary, err := s.importer.ImportFiles(ctx, args.Paths)
	if err != nil {
		return contract.ImportResult{}, err
	}
	return s.importResult(ctx, summary), nil
}

func (s *LibraryService) list(ctx context.Context, _ contract.Empty) (contract.Photos, error) {
	return s.Snapshot(ctx)
}

func (s *LibraryService) clear(ctx context.Context, _ contract.Empty) (contract.Empty, error) {
	if err := s.photoRepo.Clear(ctx); err != nil {
		return contract.Empty{}, err
	}
	s.publish(ctx)
	return contract.Empty{}, nil
}

// remove succeeds for ids that are already gone
func (s *LibraryService) remove(ctx context.Context, args contract.PhotoIDArgs) (contract.Empty, error) {
	removed, err := s.photoRepo.Delete(ctx, args.ID)
	if err != nil {
		return contract.Empty{}, err
	}
	if removed {
		s.publish(ctx)
	}
	return contract.Empty{}, nil
}

func (s *LibraryService) saveConfig(ctx context.Context, args contract.SaveConfigArgs) (contract.Empty, error) {
	data, err := json.Marshal(args.Config)
	if err != nil {
		return contract.Empty{}, err
	}
	if err := s.photoRepo.SetConfig(ctx, args.ID, string(data)); err != nil {
		return contract.Empty{}, err
	}
	s.publish(ctx)
	return contract.Empty{}, nil
}

func (s *LibraryService) setFavorite(ctx context.Context, args contract.FavoriteArgs) (contract.Empty, error) {
	if err := s.photoRepo.SetFavorite(ctx, args.ID, args.Favorite); err != nil {
		return contract.Empty{}, err
	}
	s.publish(ctx)
	return contract.Empty{}, nil
}

func (s *LibraryService) setStack(ctx context.Context, args contract.StackArgs) (contract.Empty, error) {
	if err := s.photoRepo.SetStack(ctx, args.PhotoIDs, args.StackID, args.PrimaryID); err != nil {
		return contract.Empty{}, err
	}
	s.publish(ctx)
	return contract.Empty{}, nil
}

func (s *LibraryService) clearStack(ctx context.Context, args contract.UnstackArgs) (contract.Empty, error) {
	if err := s.photoRepo.ClearStack(ctx, args.PhotoIDs); err != nil {
		return contract.Empty{}, err
	}
	s.publish(ctx)
	return contract.Empty{}, nil
}

func (s *LibraryService) setStackPrimary(ctx context.Context, args contract.StackPrimaryArgs) (contract.Empty, error) {
	if err := s.photoRepo.SetStackPrimary(ctx, args.StackID, args.PrimaryID); err != nil {
		return contract.Empty{}, err
	}
	s.publish(ctx)
	return contract.Empty{}, nil
}

// fullRes answers null when the photo or its original file is gone
func (s *LibraryService) fullRes(ctx context.Context, args contract.PhotoIDArgs) (contract.FullRes, error) {
	photo, err := s.photoRepo.GetByID(ctx, args.ID)
	if err != nil {
		return contract.FullRes{}, err
	}
	if photo == nil {
		return contract.FullRes{}, nil
	}
	data, err := FileDataURI(photo.ImagePath)
	if os.IsNotExist(err) {
		s.logger.WithField("photo_id", photo.ID).WithField("path", photo.ImagePath).Warn("original file is missing")
		return contract.FullRes{}, nil
	}
	if err != nil {
		return contract.FullRes{}, err
	}
	return contract.FullRes{Data: data, Found: true}, nil
}

func (s *LibraryService) metadata(_ context.Context, args contract.PathArgs) (contract.ImageMetadata, error) {
	return s.exif.Metadata(args.Path)
}
