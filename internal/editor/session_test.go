package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/testsupport"
)

func openSession(t *testing.T, photos ...contract.Photo) (*Session, *testsupport.FakeHost) {
	t.Helper()
	fake := testsupport.NewFakeHost()
	conn := bridge.New(fake, bridge.WithLogger(observability.Discard()), bridge.WithTimeout(time.Second))
	s := New(conn, WithLogger(observability.Discard()))
	scope := bridge.NewScope(context.Background())
	t.Cleanup(func() { _ = scope.Close() })
	require.NoError(t, s.Listen(scope))
	if len(photos) > 0 {
		require.NoError(t, Open(context.Background(), conn, photos))
	}
	return s, fake
}

func withAttachment(p contract.Photo) contract.Photo {
	p.FullResAttachment = &contract.Attachment{ID: "att-" + p.ID, Length: 1024}
	return p
}

func TestListen(t *testing.T) {
	t.Run("each payload replaces the open photos", func(t *testing.T) {
		s, fake := openSession(t, testsupport.Photo("a", "a.jpg"), testsupport.Photo("b", "b.jpg"))
		require.NoError(t, s.SetActive(1))

		fake.Push("edit-images", contract.Photos{testsupport.Photo("c", "c.jpg")})

		assert.Equal(t, []string{"c"}, s.Photos().IDs())
		active, ok := s.Active()
		require.True(t, ok)
		assert.Equal(t, "c", active.ID)
	})

	t.Run("open refuses an empty selection", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		assert.ErrorIs(t, Open(context.Background(), fake, nil), ErrNoPhotos)
		assert.Empty(t, fake.Emitted("edit-images"))
	})

	t.Run("active index is bounded", func(t *testing.T) {
		s, _ := openSession(t, testsupport.Photo("a", "a.jpg"))
		assert.Error(t, s.SetActive(1))
		assert.Error(t, s.SetActive(-1))
	})
}

func TestConfigEdits(t *testing.T) {
	t.Run("updates stay local until saved", func(t *testing.T) {
		s, fake := openSession(t, testsupport.Photo("a", "a.jpg"))
		fake.Reply("save_photo_config", struct{}{})

		require.NoError(t, s.SetFilter("a", contract.FilterBrightness, 1.2))
		require.NoError(t, s.SetFilter("a", contract.FilterBlur, 3))
		require.NoError(t, s.SetFilter("a", contract.FilterBrightness, 0.8))
		assert.Zero(t, fake.CallCount("save_photo_config"))

		filter, transform, err := s.Style("a")
		require.NoError(t, err)
		assert.Equal(t, "brightness(0.8) blur(3px)", filter)
		assert.Empty(t, transform)

		require.NoError(t, s.Save(context.Background(), "a"))
		calls := fake.Calls("save_photo_config")
		require.Len(t, calls, 1)
		args, err := contract.SavePhotoConfig.DecodeArgs(calls[0].Args)
		require.NoError(t, err)
		assert.Equal(t, "a", args.ID)
		assert.Equal(t, []contract.Filter{
			{Kind: contract.FilterBrightness, Value: 0.8},
			{Kind: contract.FilterBlur, Value: 3},
		}, args.Config.Filters)
	})

	t.Run("update replaces the whole config", func(t *testing.T) {
		s, _ := openSession(t, testsupport.Photo("a", "a.jpg"))
		cfg := contract.PhotoConfig{Transform: &contract.Transform{Rotate: contract.Float(90)}}

		require.NoError(t, s.UpdateConfig("a", cfg))
		*cfg.Transform.Rotate = 180

		_, transform, err := s.Style("a")
		require.NoError(t, err)
		assert.Equal(t, "rotate(90deg)", transform)
	})

	t.Run("photos that are not open are rejected", func(t *testing.T) {
		s, fake := openSession(t, testsupport.Photo("a", "a.jpg"))

		assert.ErrorIs(t, s.UpdateConfig("x", contract.PhotoConfig{}), ErrNotEditing)
		assert.ErrorIs(t, s.SetFilter("x", contract.FilterSepia, 1), ErrNotEditing)
		assert.ErrorIs(t, s.Save(context.Background(), "x"), ErrNotEditing)
		assert.Error(t, s.SetFilter("a", contract.FilterKind("glow"), 1))
		assert.Zero(t, fake.CallCount("save_photo_config"))
	})

	t.Run("save all joins failures", func(t *testing.T) {
		s, fake := openSession(t, testsupport.Photo("a", "a.jpg"), testsupport.Photo("b", "b.jpg"))
		boom := errors.New("disk full")
		fake.Fail("save_photo_config", boom)

		err := s.SaveAll(context.Background())

		assert.ErrorIs(t, err, boom)
		assert.True(t, bridge.IsTransportFailure(err))
		assert.Equal(t, 2, fake.CallCount("save_photo_config"))
	})
}

func TestFullRes(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches once and caches", func(t *testing.T) {
		s, fake := openSession(t, withAttachment(testsupport.Photo("a", "a.jpg")))
		fake.Reply("get_full_res_attachment", "data:image/jpeg;base64,AAAA")

		for range 3 {
			data, ok, err := s.FullRes(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "data:image/jpeg;base64,AAAA", data)
		}
		assert.Equal(t, 1, fake.CallCount("get_full_res_attachment"))
	})

	t.Run("skips photos without an attachment", func(t *testing.T) {
		s, fake := openSession(t, testsupport.Photo("a", "a.jpg"))

		_, ok, err := s.FullRes(ctx, "a")

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, fake.CallCount("get_full_res_attachment"))
	})

	t.Run("null from the host is not cached", func(t *testing.T) {
		s, fake := openSession(t, withAttachment(testsupport.Photo("a", "a.jpg")))
		fake.ReplyRaw("get_full_res_attachment", []byte(`null`))

		_, ok, err := s.FullRes(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		_, _, _ = s.FullRes(ctx, "a")
		assert.Equal(t, 2, fake.CallCount("get_full_res_attachment"))
	})

	t.Run("prefetch tolerates failures", func(t *testing.T) {
		s, fake := openSession(t,
			withAttachment(testsupport.Photo("a", "a.jpg")),
			withAttachment(testsupport.Photo("b", "b.jpg")),
			testsupport.Photo("c", "c.jpg"),
		)
		fake.Handle("get_full_res_attachment", func(_ context.Context, args []byte) ([]byte, error) {
			decoded, err := contract.GetFullResAttachment.DecodeArgs(args)
			if err != nil {
				return nil, err
			}
			if decoded.ID == "a" {
				return nil, errors.New("attachment missing")
			}
			return []byte(`"data:image/png;base64,BBBB"`), nil
		})

		assert.Equal(t, 1, s.Prefetch(ctx))
		data, ok, err := s.FullRes(ctx, "b")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "data:image/png;base64,BBBB", data)
	})
}
