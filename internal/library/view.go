package library

import (
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/stacking"
)

// GalleryView is what a grid renders for one author filter.
type GalleryView struct {
	Display []contract.Photo
	Stacks  map[string][]contract.Photo
	Authors []string
	Total   int
}

// Gallery derives the grid for author from the current photos.
func (s *Store) Gallery(author string) GalleryView {
	photos := s.Photos()
	filtered := stacking.FilterByAuthor(photos, author)
	return GalleryView{
		Display: stacking.DisplayPhotos(filtered),
		Stacks:  stacking.StackGroups(filtered),
		Authors: stacking.Authors(photos),
		Total:   len(filtered),
	}
}
