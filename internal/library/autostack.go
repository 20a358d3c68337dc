package library

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/stacking"
)

// AutoStacker commits heuristic stacks while enabled and undoes exactly
// what it committed when disabled.
type AutoStacker struct {
	store *Store
	newID func() string

	mu      sync.Mutex
	enabled bool
	author  string
	created map[string][]string
}

// AutoStackOption configures an AutoStacker.
type AutoStackOption func(*AutoStacker)

// WithStackIDs replaces the uuid generator, for deterministic tests.
func WithStackIDs(next func() string) AutoStackOption {
	return func(a *AutoStacker) {
		a.newID = next
	}
}

func NewAutoStacker(store *Store, opts ...AutoStackOption) *AutoStacker {
	a := &AutoStacker{
		store:   store,
		newID:   uuid.NewString,
		created: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enable turns auto-stacking on for the photos of author (AllAuthors or ""
// for everyone) and commits the current candidates. It returns how many
// stacks were created and stops at the first failed commit.
func (a *AutoStacker) Enable(ctx context.Context, author string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	a.author = author
	return a.commitLocked(ctx)
}

// Refresh commits candidates that appeared since the last run, when enabled.
func (a *AutoStacker) Refresh(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return 0, nil
	}
	return a.commitLocked(ctx)
}

func (a *AutoStacker) commitLocked(ctx context.Context) (int, error) {
	var unstacked []contract.Photo
	for _, p := range stacking.FilterByAuthor(a.store.Photos(), a.author) {
		if !p.InStack() {
			unstacked = append(unstacked, p)
		}
	}
	if len(unstacked) < 2 {
		return 0, nil
	}

	created := 0
	for _, group := range stacking.HeuristicStacks(unstacked) {
		if len(group) < 2 {
			continue
		}
		sorted := stacking.SortByFilename(group)
		ids := contract.Photos(sorted).IDs()
		stackID := a.newID()

		if err := a.store.SetPhotoStack(ctx, ids, stackID, sorted[0].ID); err != nil {
			a.store.unstackLocal(stackID, ids)
			return created, err
		}
		a.created[stackID] = ids
		created++
	}
	if created > 0 {
		a.store.logger.WithField("stacks", created).Info("auto-stacked photos")
	}
	return created, nil
}

// Disable turns auto-stacking off and unstacks every photo it stacked. The
// record is kept when the host rejects the clear, so Disable can be retried.
func (a *AutoStacker) Disable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false

	ids := a.createdIDsLocked()
	if len(ids) == 0 {
		return nil
	}
	if err := a.store.ClearPhotoStack(ctx, ids); err != nil {
		return err
	}
	a.created = make(map[string][]string)
	return nil
}

func (a *AutoStacker) createdIDsLocked() []string {
	stackIDs := make([]string, 0, len(a.created))
	for id := range a.created {
		stackIDs = append(stackIDs, id)
	}
	sort.Strings(stackIDs)

	var ids []string
	for _, stackID := range stackIDs {
		ids = append(ids, a.created[stackID]...)
	}
	return ids
}

func (a *AutoStacker) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Created returns the stacks committed since the last successful Disable.
func (a *AutoStacker) Created() map[string][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string][]string, len(a.created))
	for k, v := range a.created {
		out[k] = append([]string(nil), v...)
	}
	return out
}
