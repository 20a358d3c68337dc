package models

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

// Photo is a library entry as the host stores it
type Photo struct {
	ID             string
	Filename       string
	ImagePath      string
	Thumbnail      string
	FileSize       int64
	Config         *string
	Favorite       bool
	StackID        *string
	IsStackPrimary bool
	SyncStatus     contract.SyncStatus
	AuthorPeerID   *string
	DateTaken      time.Time
	ImportedAt     time.Time
}

// NewPhoto validates an imported file. id is the content hash of the image.
func NewPhoto(id, imagePath, thumbnail string, fileSize int64, dateTaken time.Time) (*Photo, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}
	if strings.TrimSpace(imagePath) == "" {
		return nil, ErrEmptyImagePath
	}
	if fileSize <= 0 {
		return nil, ErrInvalidFileSize
	}
	filename := sanitizeFilename(imagePath)
	if filename == "" || filename == "." {
		return nil, ErrEmptyFilename
	}

	return &Photo{
		ID:         strings.ToLower(id),
		Filename:   filename,
		ImagePath:  imagePath,
		Thumbnail:  thumbnail,
		FileSize:   fileSize,
		SyncStatus: contract.SyncStatusSynced,
		DateTaken:  dateTaken,
		ImportedAt: time.Now().UTC(),
	}, nil
}

// sanitizeFilename keeps the last path element and drops characters that
// cannot appear in a filename on every platform
func sanitizeFilename(path string) string {
	name := filepath.Base(path)

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)

	return replacer.Replace(name)
}

// SetConfig stores cfg as the JSON string the library persists.
func (p *Photo) SetConfig(cfg contract.PhotoConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	s := string(data)
	p.Config = &s
	return nil
}

// ToContract converts the record to the wire shape. Every photo advertises
// its original file as the full-resolution attachment.
func (p *Photo) ToContract() (contract.Photo, error) {
	out := contract.Photo{
		ID:             p.ID,
		Base64:         p.Thumbnail,
		Filename:       p.Filename,
		ImagePath:      p.ImagePath,
		Favorite:       p.Favorite,
		IsStackPrimary: p.IsStackPrimary,
		SyncStatus:     p.SyncStatus,
		FullResAttachment: &contract.Attachment{
			ID:     p.ID,
			Length: p.FileSize,
		},
	}
	if out.SyncStatus == "" {
		out.SyncStatus = contract.SyncStatusUnknown
	}
	if p.StackID != nil && *p.StackID != "" {
		out.StackID = contract.StringPtr(*p.StackID)
	}
	if p.AuthorPeerID != nil {
		out.AuthorPeerID = contract.StringPtr(*p.AuthorPeerID)
	}
	if p.Config != nil {
		cfg, err := contract.Decode[contract.PhotoConfig]([]byte(*p.Config))
		if err != nil {
			return contract.Photo{}, err
		}
		out.Config = &cfg
	}
	return out, nil
}

// ToContractList converts records. A record whose stored config no longer
// decodes is logged and sent without a config.
func ToContractList(logger *observability.Logger, photos []*Photo) contract.Photos {
	out := make(contract.Photos, 0, len(photos))
	for _, p := range photos {
		cp, err := p.ToContract()
		if err != nil {
			logger.WithField("photo_id", p.ID).WithError(err).Warn("dropping undecodable photo config")
			stripped := *p
			stripped.Config = nil
			cp, _ = stripped.ToContract()
		}
		out = append(out, cp)
	}
	return out
}

// Errors
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrEmptyID          = PhotoError{"photo id cannot be empty"}
	ErrEmptyFilename    = PhotoError{"filename cannot be empty"}
	ErrEmptyImagePath   = PhotoError{"image path cannot be empty"}
	ErrInvalidFileSize  = PhotoError{"file size must be positive"}
	ErrPhotoNotFound    = PhotoError{"photo not found"}
	ErrNotADirectory    = PhotoError{"import path is not a directory"}
	ErrEmptyStack       = PhotoError{"stack needs at least one photo and an id"}
	ErrPrimaryNotMember = PhotoError{"primary photo is not a member of the stack"}
	ErrUnknownCommand   = PhotoError{"unknown command"}
)
