package contract

// Empty is the argument or result of commands that carry no data. It accepts
// an empty object, any object, or null.
type Empty struct{}

func (e *Empty) DecodeValue(v Value) error {
	if v.IsNull() {
		return nil
	}
	_, err := v.Object()
	return err
}

// ImportArgs selects what the host should import. With no path the host uses
// its own folder picker or configured default.
type ImportArgs struct {
	Path string `json:"path,omitempty"`
}

func (a *ImportArgs) DecodeValue(v Value) error {
	if v.IsNull() {
		return nil
	}
	obj, err := v.Object()
	if err != nil {
		return err
	}
	path, err := obj.OptionalString("path")
	if err != nil {
		return err
	}
	if path != nil {
		a.Path = *path
	}
	return nil
}

// AddFilesArgs lists files to add. With no paths the host opens its file
// picker.
type AddFilesArgs struct {
	Paths []string `json:"paths,omitempty"`
}

func (a *AddFilesArgs) DecodeValue(v Value) error {
	if v.IsNull() {
		return nil
	}
	obj, err := v.Object()
	if err != nil {
		return err
	}
	a.Paths, err = obj.OptionalStringList("paths")
	return err
}

// ImportResult is the outcome of an import. A null result means the user
// cancelled the picker or nothing importable was found.
type ImportResult struct {
	Photos    Photos
	Cancelled bool
}

func (r *ImportResult) DecodeValue(v Value) error {
	if v.IsNull() {
		r.Cancelled = true
		r.Photos = nil
		return nil
	}
	return r.Photos.DecodeValue(v)
}

func (r ImportResult) MarshalJSON() ([]byte, error) {
	if r.Cancelled {
		return []byte("null"), nil
	}
	return marshal(r.Photos)
}

// PhotoIDArgs addresses one photo.
type PhotoIDArgs struct {
	ID string `json:"id"`
}

func (a *PhotoIDArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	a.ID, err = obj.String("id")
	return err
}

// SaveConfigArgs writes back the editor state of one photo.
type SaveConfigArgs struct {
	ID     string      `json:"id"`
	Config PhotoConfig `json:"config"`
}

func (a *SaveConfigArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if a.ID, err = obj.String("id"); err != nil {
		return err
	}
	if _, err := obj.Require("config"); err != nil {
		return err
	}
	cfg, err := decodeConfigField(obj, "config")
	if err != nil {
		return err
	}
	if cfg != nil {
		a.Config = *cfg
	}
	return nil
}

// FavoriteArgs sets the favorite flag of one photo.
type FavoriteArgs struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

func (a *FavoriteArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if a.ID, err = obj.String("id"); err != nil {
		return err
	}
	a.Favorite, err = obj.Bool("favorite")
	return err
}

// StackArgs puts photos into a stack and designates its primary.
type StackArgs struct {
	PhotoIDs  []string `json:"photo_ids"`
	StackID   string   `json:"stack_id"`
	PrimaryID string   `json:"primary_id"`
}

func (a *StackArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if a.PhotoIDs, err = obj.StringList("photo_ids"); err != nil {
		return err
	}
	if a.StackID, err = obj.String("stack_id"); err != nil {
		return err
	}
	a.PrimaryID, err = obj.String("primary_id")
	return err
}

// UnstackArgs removes photos from whatever stack they are in.
type UnstackArgs struct {
	PhotoIDs []string `json:"photo_ids"`
}

func (a *UnstackArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	a.PhotoIDs, err = obj.StringList("photo_ids")
	return err
}

// StackPrimaryArgs re-picks the representative of a stack.
type StackPrimaryArgs struct {
	StackID   string `json:"stack_id"`
	PrimaryID string `json:"primary_id"`
}

func (a *StackPrimaryArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if a.StackID, err = obj.String("stack_id"); err != nil {
		return err
	}
	a.PrimaryID, err = obj.String("primary_id")
	return err
}

// PathArgs addresses a host-side file.
type PathArgs struct {
	Path string `json:"path"`
}

func (a *PathArgs) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	a.Path, err = obj.String("path")
	return err
}

// FullRes is an original-resolution payload as a data URI. Found is false
// when the host has no attachment for the photo.
type FullRes struct {
	Data  string
	Found bool
}

func (f *FullRes) DecodeValue(v Value) error {
	if v.IsNull() {
		*f = FullRes{}
		return nil
	}
	s, err := v.String()
	if err != nil {
		return err
	}
	*f = FullRes{Data: s, Found: true}
	return nil
}

func (f FullRes) MarshalJSON() ([]byte, error) {
	if !f.Found {
		return []byte("null"), nil
	}
	return marshal(f.Data)
}

// ImageMetadata is what the host extracts from a file's EXIF block.
type ImageMetadata struct {
	Datetime  *string  `json:"datetime"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Make      *string  `json:"make"`
	Model     *string  `json:"model"`
}

func (m *ImageMetadata) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if m.Datetime, err = obj.OptionalString("datetime"); err != nil {
		return err
	}
	if m.Latitude, err = obj.OptionalNumber("latitude"); err != nil {
		return err
	}
	if m.Longitude, err = obj.OptionalNumber("longitude"); err != nil {
		return err
	}
	if m.Make, err = obj.OptionalString("make"); err != nil {
		return err
	}
	m.Model, err = obj.OptionalString("model")
	return err
}

// LibrarySnapshot is the payload of the full-snapshot event.
type LibrarySnapshot struct {
	Photos Photos `json:"photos"`
}

func (s *LibrarySnapshot) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	photos, err := obj.Require("photos")
	if err != nil {
		return err
	}
	return s.Photos.DecodeValue(photos)
}
