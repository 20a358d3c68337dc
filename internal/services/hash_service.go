package services

import (
	"crypto/sha256"
	"encoding/hex"
	"image"

	"github.com/disintegration/imaging"
)

// contentIDSize is the side of the square the image is resampled to before
// hashing, so re-encodes of the same picture share an id.
const contentIDSize = 300

// HashService derives photo ids from image content
type HashService struct{}

// NewHashService creates a new HashService
func NewHashService() *HashService {
	return &HashService{}
}

// ContentID is the SHA256 of the image's pixels after resampling to a fixed
// square. It identifies a photo independently of its path.
func (s *HashService) ContentID(img image.Image) string {
	resized := imaging.Resize(img, contentIDSize, contentIDSize, imaging.Lanczos)
	h := sha256.New()
	b := resized.Bounds()
	rgb := make([]byte, 0, 3*b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		rgb = rgb[:0]
		row := resized.Pix[y*resized.Stride : y*resized.Stride+4*b.Dx()]
		for x := 0; x < len(row); x += 4 {
			rgb = append(rgb, row[x], row[x+1], row[x+2])
		}
		h.Write(rgb)
	}
	return hex.EncodeToString(h.Sum(nil))
}
