package contract

import "encoding/json"

// SyncStatus is the host-side replication state of a photo. The client only
// displays it.
type SyncStatus string

const (
	SyncStatusSynced       SyncStatus = "synced"
	SyncStatusPending      SyncStatus = "pending"
	SyncStatusDisconnected SyncStatus = "disconnected"
	SyncStatusUnknown      SyncStatus = "unknown"
)

// ParseSyncStatus maps unrecognised values to SyncStatusUnknown.
func ParseSyncStatus(s string) SyncStatus {
	switch SyncStatus(s) {
	case SyncStatusSynced, SyncStatusPending, SyncStatusDisconnected:
		return SyncStatus(s)
	default:
		return SyncStatusUnknown
	}
}

// Attachment is a token for lazily fetching a photo's original resolution.
type Attachment struct {
	ID       string         `json:"id"`
	Length   int64          `json:"length"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (a *Attachment) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if a.ID, err = obj.String("id"); err != nil {
		return err
	}
	length, err := obj.Number("length")
	if err != nil {
		return err
	}
	a.Length = int64(length)
	if a.Metadata, err = obj.OptionalMap("metadata"); err != nil {
		return err
	}
	return nil
}

// Photo is one image known to the library.
type Photo struct {
	ID                string       `json:"id"`
	Base64            string       `json:"base64"`
	FullResAttachment *Attachment  `json:"full_res_attachment,omitempty"`
	Filename          string       `json:"filename"`
	ImagePath         string       `json:"image_path"`
	Config            *PhotoConfig `json:"config,omitempty"`
	Favorite          bool         `json:"favorite"`
	StackID           *string      `json:"stack_id"`
	IsStackPrimary    bool         `json:"is_stack_primary"`
	SyncStatus        SyncStatus   `json:"sync_status"`
	AuthorPeerID      *string      `json:"author_peer_id"`
}

func (p *Photo) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	*p = Photo{}
	if p.ID, err = obj.String("id"); err != nil {
		return err
	}
	if p.Base64, err = obj.String("base64"); err != nil {
		return err
	}
	if p.Filename, err = obj.String("filename"); err != nil {
		return err
	}
	if p.ImagePath, err = obj.String("image_path"); err != nil {
		return err
	}
	if av, ok := obj.Optional("full_res_attachment"); ok {
		var a Attachment
		if err := a.DecodeValue(av); err != nil {
			return err
		}
		p.FullResAttachment = &a
	}
	if p.Config, err = decodeConfigField(obj, "config"); err != nil {
		return err
	}
	if p.Favorite, err = obj.OptionalBool("favorite", false); err != nil {
		return err
	}
	if p.StackID, err = obj.OptionalString("stack_id"); err != nil {
		return err
	}
	if p.IsStackPrimary, err = obj.OptionalBool("is_stack_primary", false); err != nil {
		return err
	}
	status, err := obj.OptionalString("sync_status")
	if err != nil {
		return err
	}
	p.SyncStatus = SyncStatusUnknown
	if status != nil {
		p.SyncStatus = ParseSyncStatus(*status)
	}
	if p.AuthorPeerID, err = obj.OptionalString("author_peer_id"); err != nil {
		return err
	}
	return nil
}

// InStack reports whether the photo belongs to a stack.
func (p Photo) InStack() bool {
	return p.StackID != nil && *p.StackID != ""
}

// StackKey returns the stack id or "" when unstacked.
func (p Photo) StackKey() string {
	if p.StackID == nil {
		return ""
	}
	return *p.StackID
}

// Author returns the originating peer id or "".
func (p Photo) Author() string {
	if p.AuthorPeerID == nil {
		return ""
	}
	return *p.AuthorPeerID
}

// Clone returns a deep copy so callers can patch it without aliasing the
// store's copy.
func (p Photo) Clone() Photo {
	out := p
	if p.FullResAttachment != nil {
		a := *p.FullResAttachment
		out.FullResAttachment = &a
	}
	if p.Config != nil {
		c := p.Config.Clone()
		out.Config = &c
	}
	if p.StackID != nil {
		s := *p.StackID
		out.StackID = &s
	}
	if p.AuthorPeerID != nil {
		s := *p.AuthorPeerID
		out.AuthorPeerID = &s
	}
	return out
}

// Photos is an ordered photo list.
type Photos []Photo

func (ps *Photos) DecodeValue(v Value) error {
	list, err := DecodeList[Photo](v)
	if err != nil {
		return err
	}
	*ps = list
	return nil
}

// MarshalJSON keeps an empty list from encoding as null.
func (ps Photos) MarshalJSON() ([]byte, error) {
	if ps == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Photo(ps))
}

// Clone deep-copies every photo.
func (ps Photos) Clone() Photos {
	if ps == nil {
		return nil
	}
	out := make(Photos, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

// IDs returns the ids in order.
func (ps Photos) IDs() []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

// StringPtr is a small helper for building optional fields.
func StringPtr(s string) *string {
	return &s
}

// Float is a small helper for building optional transform fields.
func Float(f float64) *float64 {
	return &f
}
