package services

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
)

func TestMaintenanceSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	imp, repo := newTestImporter(t)
	hub := NewWebSocketHub(contract.PeerInfo{PeerKey: "test-host"})
	hub.logger = observability.Discard()
	go hub.Run(ctx)
	lib := NewLibraryService(repo, imp, NewEXIFService(), hub, t.TempDir())
	lib.logger = observability.Discard()
	maint := NewMaintenanceService(repo, lib, 0)
	maint.logger = observability.Discard()

	dir := t.TempDir()
	red := filepath.Join(dir, "red.png")
	writePNG(t, red, color.RGBA{255, 0, 0, 255}, 20, 20)
	writePNG(t, filepath.Join(dir, "blue.png"), color.RGBA{0, 0, 255, 255}, 20, 20)
	summary, err := imp.ImportFolder(ctx, dir)
	require.NoError(t, err)
	require.Len(t, summary.Imported, 2)

	t.Run("nothing changes while files exist", func(t *testing.T) {
		status, err := maint.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, status.Missing)
		assert.Zero(t, status.Disconnected)
		assert.False(t, status.Enabled)
		assert.False(t, status.LastRun.IsZero())
	})

	hidden := red + ".bak"
	require.NoError(t, os.Rename(red, hidden))

	t.Run("missing files are marked disconnected once", func(t *testing.T) {
		status, err := maint.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Missing)
		assert.Equal(t, 1, status.Disconnected)

		status, err = maint.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Missing)
		assert.Zero(t, status.Disconnected)

		photos, err := lib.Snapshot(ctx)
		require.NoError(t, err)
		statuses := map[string]contract.SyncStatus{}
		for _, p := range photos {
			statuses[p.Filename] = p.SyncStatus
		}
		assert.Equal(t, contract.SyncStatusDisconnected, statuses["red.png"])
		assert.Equal(t, contract.SyncStatusSynced, statuses["blue.png"])
	})

	t.Run("restored files go back to synced", func(t *testing.T) {
		require.NoError(t, os.Rename(hidden, red))

		status, err := maint.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, status.Missing)
		assert.Equal(t, 1, status.Restored)
		assert.Equal(t, status, maint.Status())
	})

	t.Run("disabled loop returns at once", func(t *testing.T) {
		maint.Run(ctx)
	})
}
