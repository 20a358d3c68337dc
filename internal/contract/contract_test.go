package contract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photoJSON = `{
	"id": "p1",
	"base64": "data:image/jpeg;base64,AAAA",
	"filename": "IMG_0001.jpg",
	"image_path": "/photos/IMG_0001.jpg",
	"favorite": true,
	"stack_id": null,
	"sync_status": "pending",
	"author_peer_id": "peer-a",
	"unexpected": {"nested": [1, 2, 3]}
}`

func TestDecodePhoto(t *testing.T) {
	t.Run("decodes required and optional fields", func(t *testing.T) {
		photo, err := Decode[Photo]([]byte(photoJSON))

		require.NoError(t, err)
		assert.Equal(t, "p1", photo.ID)
		assert.Equal(t, "IMG_0001.jpg", photo.Filename)
		assert.True(t, photo.Favorite)
		assert.Nil(t, photo.StackID)
		assert.False(t, photo.IsStackPrimary)
		assert.Equal(t, SyncStatusPending, photo.SyncStatus)
		assert.Equal(t, "peer-a", photo.Author())
		assert.Nil(t, photo.Config)
	})

	t.Run("defaults missing optional fields", func(t *testing.T) {
		photo, err := Decode[Photo]([]byte(`{"id":"p","base64":"","filename":"a.jpg","image_path":"/a.jpg"}`))

		require.NoError(t, err)
		assert.False(t, photo.Favorite)
		assert.Equal(t, SyncStatusUnknown, photo.SyncStatus)
		assert.Nil(t, photo.AuthorPeerID)
	})

	t.Run("maps unrecognised sync status to unknown", func(t *testing.T) {
		photo, err := Decode[Photo]([]byte(`{"id":"p","base64":"","filename":"a.jpg","image_path":"/a.jpg","sync_status":"replicating"}`))

		require.NoError(t, err)
		assert.Equal(t, SyncStatusUnknown, photo.SyncStatus)
	})

	t.Run("fails on missing required field with its path", func(t *testing.T) {
		_, err := Decode[Photo]([]byte(`{"id":"p","base64":"","image_path":"/a.jpg"}`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "filename", verr.Path)
		assert.Equal(t, "missing", verr.Actual)
	})

	t.Run("reports nested type mismatch with expected and actual", func(t *testing.T) {
		payload := `{"photos":[
			{"id":"a","base64":"","filename":"a.jpg","image_path":"/a"},
			{"id":"b","base64":"","filename":42,"image_path":"/b"}
		]}`

		_, err := Decode[LibrarySnapshot]([]byte(payload))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "photos[1].filename", verr.Path)
		assert.Equal(t, "string", verr.Expected)
		assert.Equal(t, "number", verr.Actual)
		assert.Equal(t, "photos[1].filename: expected string, got number", err.Error())
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := Decode[Photo]([]byte(`{"id":`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "valid JSON", verr.Expected)
	})
}

func TestDecodeConfigForms(t *testing.T) {
	structured := `{"id":"p","base64":"","filename":"a.jpg","image_path":"/a",
		"config":{"filters":[{"type":"brightness","value":1.2},{"type":"blur","value":3}],"transform":{"rotate":90}}}`
	encoded := `{"id":"p","base64":"","filename":"a.jpg","image_path":"/a",
		"config":"{\"filters\":[{\"type\":\"brightness\",\"value\":1.2},{\"type\":\"blur\",\"value\":3}],\"transform\":{\"rotate\":90}}"}`

	fromObject, err := Decode[Photo]([]byte(structured))
	require.NoError(t, err)
	fromString, err := Decode[Photo]([]byte(encoded))
	require.NoError(t, err)

	require.NotNil(t, fromObject.Config)
	assert.Equal(t, fromObject.Config, fromString.Config)
	assert.Equal(t, []Filter{{Kind: FilterBrightness, Value: 1.2}, {Kind: FilterBlur, Value: 3}}, fromObject.Config.Filters)
	require.NotNil(t, fromObject.Config.Transform)
	assert.Equal(t, 90.0, *fromObject.Config.Transform.Rotate)
	assert.Nil(t, fromObject.Config.Transform.Scale)

	t.Run("null config decodes to nil", func(t *testing.T) {
		photo, err := Decode[Photo]([]byte(`{"id":"p","base64":"","filename":"a.jpg","image_path":"/a","config":null}`))
		require.NoError(t, err)
		assert.Nil(t, photo.Config)
	})

	t.Run("string that is not JSON fails", func(t *testing.T) {
		_, err := Decode[Photo]([]byte(`{"id":"p","base64":"","filename":"a.jpg","image_path":"/a","config":"not json"}`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "config", verr.Path)
	})

	t.Run("unknown filter kind fails in either form", func(t *testing.T) {
		_, err := Decode[PhotoConfig]([]byte(`{"filters":[{"type":"vignette","value":1}]}`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "filters[0].type", verr.Path)
		assert.Equal(t, `"vignette"`, verr.Actual)
	})
}

func TestPhotoConfigCSS(t *testing.T) {
	cfg := PhotoConfig{Filters: []Filter{
		{Kind: FilterSepia, Value: 0.5},
		{Kind: FilterHueRotate, Value: 90},
		{Kind: FilterBlur, Value: 2},
	}}

	css, err := cfg.CSSFilter()

	require.NoError(t, err)
	assert.Equal(t, "sepia(0.5) hue-rotate(90deg) blur(2px)", css)

	t.Run("every kind renders", func(t *testing.T) {
		for _, kind := range FilterKinds {
			_, err := Filter{Kind: kind, Value: 1}.CSS()
			assert.NoError(t, err, kind)
		}
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		_, err := Filter{Kind: "vignette", Value: 1}.CSS()
		assert.Error(t, err)
	})

	t.Run("WithFilter replaces in place and appends new kinds", func(t *testing.T) {
		next := cfg.WithFilter(FilterSepia, 1).WithFilter(FilterInvert, 1)

		assert.Equal(t, 0.5, cfg.Filters[0].Value)
		assert.Equal(t, 1.0, next.Filters[0].Value)
		assert.Equal(t, FilterInvert, next.Filters[3].Kind)
	})
}

func TestCommandResults(t *testing.T) {
	t.Run("import result null means cancelled", func(t *testing.T) {
		result, err := AddPhotosFromFolder.DecodeResult([]byte(`null`))

		require.NoError(t, err)
		assert.True(t, result.Cancelled)
		assert.Empty(t, result.Photos)
	})

	t.Run("empty arguments accept an empty object", func(t *testing.T) {
		_, err := GetPhotosFromLibrary.DecodeArgs([]byte(`{}`))
		assert.NoError(t, err)
	})

	t.Run("stack args require every field", func(t *testing.T) {
		_, err := SetPhotoStack.DecodeArgs([]byte(`{"photo_ids":["a"],"stack_id":"s"}`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "primary_id", verr.Path)
	})

	t.Run("args round trip through JSON", func(t *testing.T) {
		args := SaveConfigArgs{ID: "p", Config: PhotoConfig{Filters: []Filter{{Kind: FilterContrast, Value: 1.1}}}}
		data, err := json.Marshal(args)
		require.NoError(t, err)

		decoded, err := SavePhotoConfig.DecodeArgs(data)
		require.NoError(t, err)
		assert.Equal(t, args, decoded)
	})

	t.Run("nil photo list encodes as an empty array", func(t *testing.T) {
		data, err := json.Marshal(LibrarySnapshot{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"photos":[]}`, string(data))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("every command and event is registered", func(t *testing.T) {
		assert.Contains(t, CommandNames(), "get_photos_from_library")
		assert.Contains(t, CommandNames(), "set_photo_favorite")
		assert.Contains(t, EventNames(), "SetLibrary")
		assert.Contains(t, EventNames(), "transport-images")
	})

	t.Run("unregistered command panics", func(t *testing.T) {
		assert.Panics(t, func() { LookupCommand("list_photos") })
	})

	t.Run("unregistered event panics", func(t *testing.T) {
		assert.Panics(t, func() { LookupEvent("NoSuchEvent") })
	})

	t.Run("handle built outside the registry panics on use", func(t *testing.T) {
		rogue := Command[Empty, Empty]{name: "rogue"}
		assert.Panics(t, func() { _, _ = rogue.DecodeResult([]byte(`{}`)) })
	})

	t.Run("registering twice panics", func(t *testing.T) {
		assert.Panics(t, func() { DefineEvent[Photos]("edit-images") })
	})
}

func TestPresenceDecode(t *testing.T) {
	payload := `{"local_peer":{"peer_key":"k0","device_name":"laptop","metadata":null},
		"remote_peers":[{"peer_key":"k1","device_name":"phone","metadata":{"name":"Sam's phone"}}]}`

	presence, err := Presence.DecodePayload([]byte(payload))

	require.NoError(t, err)
	assert.Equal(t, "laptop", presence.LocalPeer.DisplayName())
	require.Len(t, presence.RemotePeers, 1)
	assert.Equal(t, "Sam's phone", presence.RemotePeers[0].DisplayName())
	assert.Equal(t, 2, presence.OnlineCount())
}
