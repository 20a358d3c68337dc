package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	_ "golang.org/x/image/webp"
)

// DefaultThumbnailSize is the bounding box of library thumbnails
const DefaultThumbnailSize = 300

// ThumbnailService decodes library images and renders thumbnails as data URIs
type ThumbnailService struct {
	maxDim  int
	quality int
}

// NewThumbnailService creates a ThumbnailService. Non-positive sizes fall
// back to DefaultThumbnailSize.
func NewThumbnailService(maxDim int) *ThumbnailService {
	if maxDim <= 0 {
		maxDim = DefaultThumbnailSize
	}
	return &ThumbnailService{maxDim: maxDim, quality: 80}
}

// Decode reads an image, using the HEIC decoder for .heic/.heif files
func (s *ThumbnailService) Decode(data []byte, filename string) (image.Image, error) {
	if IsHEIC(filename) {
		return decodeHEIC(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// imaging also understands tiff and bmp
		img, err = imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}
	return img, nil
}

// DataURI renders img, corrected for its EXIF orientation, as a JPEG data URI
// fitting the configured bounding box.
func (s *ThumbnailService) DataURI(img image.Image, orientation int) (string, error) {
	img = applyOrientation(img, orientation)
	thumb := imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: s.quality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// FileDataURI returns the original file at path as a data URI
func FileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType(path) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic", ".heif":
		return "image/heic"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

// applyOrientation corrects image orientation based on EXIF data
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		// Transpose
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		// Rotate 90 CW
		return imaging.Rotate270(img)
	case 7:
		// Transverse
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		// Rotate 90 CCW
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// IsHEIC checks if the file is HEIC/HEIF format (requires special handling)
func IsHEIC(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}

// decodeHEIC decodes a HEIC/HEIF image using goheif (pure Go)
func decodeHEIC(data []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode HEIC image: %w", err)
	}
	return img, nil
}
