package repository

import (
	"context"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/models"
)

// PhotoRepo defines the interface for photo persistence operations
type PhotoRepo interface {
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	List(ctx context.Context) ([]*models.Photo, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, photos ...*models.Photo) error
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
	SetConfig(ctx context.Context, id string, config string) error
	SetSyncStatus(ctx context.Context, ids []string, status contract.SyncStatus) (int64, error)
	SetStack(ctx context.Context, ids []string, stackID, primaryID string) error
	ClearStack(ctx context.Context, ids []string) error
	SetStackPrimary(ctx context.Context, stackID, primaryID string) error
}
