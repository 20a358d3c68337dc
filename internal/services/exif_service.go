package services

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/picksy/desktop/internal/contract"
)

// EXIFData contains extracted EXIF metadata from an image
type EXIFData struct {
	CameraMake  *string
	CameraModel *string
	// DateTimeRaw is the DateTimeOriginal (or DateTime) tag as written by
	// the camera, e.g. "2024:03:15 10:04:12".
	DateTimeRaw *string
	DateTaken   *time.Time
	Latitude    *float64
	Longitude   *float64
	Orientation int
}

// ImageMetadata is the wire summary of the EXIF block
func (d *EXIFData) ImageMetadata() contract.ImageMetadata {
	return contract.ImageMetadata{
		Datetime:  d.DateTimeRaw,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Make:      d.CameraMake,
		Model:     d.CameraModel,
	}
}

// EXIFService extracts EXIF metadata from images
type EXIFService struct{}

// NewEXIFService creates a new EXIFService
func NewEXIFService() *EXIFService {
	return &EXIFService{}
}

// ExtractFromFile reads the EXIF block of the file at path
func (s *EXIFService) ExtractFromFile(path string) (*EXIFData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.ExtractFromReader(f)
}

// ExtractFromBytes extracts EXIF data from image bytes
func (s *EXIFService) ExtractFromBytes(data []byte) *EXIFData {
	out, _ := s.ExtractFromReader(bytes.NewReader(data))
	return out
}

// ExtractFromReader extracts EXIF data from an io.Reader. Images without an
// EXIF block yield empty data with the default orientation.
func (s *EXIFService) ExtractFromReader(r io.Reader) (*EXIFData, error) {
	result := &EXIFData{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return result, nil
	}

	result.CameraMake = stringTag(x, exif.Make)
	result.CameraModel = stringTag(x, exif.Model)

	if raw := stringTag(x, exif.DateTimeOriginal); raw != nil {
		result.DateTimeRaw = raw
	} else {
		result.DateTimeRaw = stringTag(x, exif.DateTime)
	}
	if tm, err := x.DateTime(); err == nil {
		result.DateTaken = &tm
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
			result.Orientation = val
		}
	}

	if lat, lng, err := x.LatLong(); err == nil {
		result.Latitude = &lat
		result.Longitude = &lng
	}

	return result, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}

// Metadata reads the wire metadata of the file at path. A file without a
// readable EXIF block yields all-null metadata; a missing file is an error.
func (s *EXIFService) Metadata(path string) (contract.ImageMetadata, error) {
	data, err := s.ExtractFromFile(path)
	if err != nil {
		return contract.ImageMetadata{}, err
	}
	return data.ImageMetadata(), nil
}
