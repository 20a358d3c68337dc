package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/models"
	"github.com/picksy/desktop/internal/observability"
)

func newTestRepo(t *testing.T) *PhotoRepository {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "picksy.db"))
	require.NoError(t, err)
	traced, err := observability.NewTraceDB(db, SQLite.System())
	require.NoError(t, err)
	t.Cleanup(func() { _ = traced.Close() })
	return NewPhotoRepository(traced, SQLite)
}

func seed(t *testing.T, repo *PhotoRepository, names ...string) []*models.Photo {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var photos []*models.Photo
	for i, name := range names {
		p, err := models.NewPhoto("id-"+name, "/photos/"+name+".jpg", "data:image/jpeg;base64,AA", 100, base)
		require.NoError(t, err)
		p.ImportedAt = base.Add(time.Duration(i) * time.Second)
		photos = append(photos, p)
	}
	require.NoError(t, repo.Upsert(context.Background(), photos...))
	return photos
}

func ids(photos []*models.Photo) []string {
	out := make([]string, len(photos))
	for i, p := range photos {
		out[i] = p.ID
	}
	return out
}

func TestRebind(t *testing.T) {
	pg := &PhotoRepository{dialect: Postgres}
	lite := &PhotoRepository{dialect: SQLite}
	query := "UPDATE photos SET a = ? WHERE id IN (?,?)"

	assert.Equal(t, "UPDATE photos SET a = $1 WHERE id IN ($2,$3)", pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
	assert.Equal(t, "postgresql", Postgres.System())
}

func TestPhotoRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert and list keep import order", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo, "b", "a", "c")

		photos, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"id-b", "id-a", "id-c"}, ids(photos))
		assert.Equal(t, contract.SyncStatusSynced, photos[0].SyncStatus)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("re-import keeps user state", func(t *testing.T) {
		repo := newTestRepo(t)
		photos := seed(t, repo, "a")
		require.NoError(t, repo.SetFavorite(ctx, "id-a", true))
		require.NoError(t, repo.SetConfig(ctx, "id-a", `{"filters":[]}`))

		again := *photos[0]
		again.Thumbnail = "data:image/jpeg;base64,BB"
		require.NoError(t, repo.Upsert(ctx, &again))

		got, err := repo.GetByID(ctx, "id-a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Favorite)
		assert.Equal(t, "data:image/jpeg;base64,BB", got.Thumbnail)
		require.NotNil(t, got.Config)
		assert.Equal(t, `{"filters":[]}`, *got.Config)
	})

	t.Run("missing photos", func(t *testing.T) {
		repo := newTestRepo(t)

		got, err := repo.GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)

		assert.ErrorIs(t, repo.SetFavorite(ctx, "nope", true), models.ErrPhotoNotFound)
		deleted, err := repo.Delete(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("delete and clear", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo, "a", "b")

		deleted, err := repo.Delete(ctx, "id-a")
		require.NoError(t, err)
		assert.True(t, deleted)

		require.NoError(t, repo.Clear(ctx))
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("stack membership keeps a single primary", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo, "a", "b", "c")

		require.NoError(t, repo.SetStack(ctx, []string{"id-a", "id-b"}, "s1", "id-a"))
		require.NoError(t, repo.SetStack(ctx, []string{"id-c"}, "s1", "id-c"))

		photos, err := repo.List(ctx)
		require.NoError(t, err)
		var primaries []string
		for _, p := range photos {
			require.NotNil(t, p.StackID)
			assert.Equal(t, "s1", *p.StackID)
			if p.IsStackPrimary {
				primaries = append(primaries, p.ID)
			}
		}
		assert.Equal(t, []string{"id-c"}, primaries)

		require.NoError(t, repo.SetStackPrimary(ctx, "s1", "id-b"))
		b, err := repo.GetByID(ctx, "id-b")
		require.NoError(t, err)
		assert.True(t, b.IsStackPrimary)
		c, err := repo.GetByID(ctx, "id-c")
		require.NoError(t, err)
		assert.False(t, c.IsStackPrimary)
	})

	t.Run("primary must belong to the stack", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo, "a", "b")
		require.NoError(t, repo.SetStack(ctx, []string{"id-a"}, "s1", "id-a"))

		assert.ErrorIs(t, repo.SetStackPrimary(ctx, "s1", "id-b"), models.ErrPrimaryNotMember)
	})

	t.Run("clear stack is a full inverse", func(t *testing.T) {
		repo := newTestRepo(t)
		seed(t, repo, "a", "b")
		require.NoError(t, repo.SetStack(ctx, []string{"id-a", "id-b"}, "s1", "id-b"))

		require.NoError(t, repo.ClearStack(ctx, []string{"id-a", "id-b"}))

		photos, err := repo.List(ctx)
		require.NoError(t, err)
		for _, p := range photos {
			assert.Nil(t, p.StackID)
			assert.False(t, p.IsStackPrimary)
		}
	})

	t.Run("stacking unknown photos fails", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.ErrorIs(t, repo.SetStack(ctx, []string{"x"}, "s1", "x"), models.ErrPhotoNotFound)
		assert.ErrorIs(t, repo.SetStack(ctx, nil, "s1", ""), models.ErrEmptyStack)
	})

	t.Run("sync status only counts real changes", func(t *testing.T) {
		repo := newTestRepo(t)
		photos := seed(t, repo, "a", "b")

		n, err := repo.SetSyncStatus(ctx, []string{"id-a", "id-missing"}, contract.SyncStatusDisconnected)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = repo.SetSyncStatus(ctx, []string{"id-a"}, contract.SyncStatusDisconnected)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := repo.GetByID(ctx, "id-a")
		require.NoError(t, err)
		assert.Equal(t, contract.SyncStatusDisconnected, got.SyncStatus)

		require.NoError(t, repo.Upsert(ctx, photos[0]))
		got, err = repo.GetByID(ctx, "id-a")
		require.NoError(t, err)
		assert.Equal(t, contract.SyncStatusSynced, got.SyncStatus)
	})
}
