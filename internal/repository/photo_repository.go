package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/models"
	"github.com/picksy/desktop/internal/observability"
)

// Dialect selects the placeholder style of the underlying database
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// System is the db.system attribute for traces and metrics.
func (d Dialect) System() string {
	if d == Postgres {
		return "postgresql"
	}
	return "sqlite"
}

const photoColumns = `id, filename, image_path, thumbnail, file_size, config, favorite, stack_id,
	is_stack_primary, sync_status, author_peer_id, date_taken, imported_at`

// PhotoRepository handles photo persistence for SQLite and PostgreSQL.
// Queries are written with ? placeholders and rebound for PostgreSQL.
type PhotoRepository struct {
	db      *observability.TraceDB
	dialect Dialect
}

var _ PhotoRepo = (*PhotoRepository)(nil)

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db *observability.TraceDB, dialect Dialect) *PhotoRepository {
	return &PhotoRepository{db: db, dialect: dialect}
}

func (r *PhotoRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var photo models.Photo
	var config, stackID, author sql.NullString
	var status string
	if err := row.Scan(
		&photo.ID,
		&photo.Filename,
		&photo.ImagePath,
		&photo.Thumbnail,
		&photo.FileSize,
		&config,
		&photo.Favorite,
		&stackID,
		&photo.IsStackPrimary,
		&status,
		&author,
		&photo.DateTaken,
		&photo.ImportedAt,
	); err != nil {
		return nil, err
	}
	photo.SyncStatus = contract.ParseSyncStatus(status)
	if config.Valid {
		photo.Config = &config.String
	}
	if stackID.Valid {
		photo.StackID = &stackID.String
	}
	if author.Valid {
		photo.AuthorPeerID = &author.String
	}
	return &photo, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := r.rebind(`SELECT ` + photoColumns + ` FROM photos WHERE id = ?`)

	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// List returns every photo in import order
func (r *PhotoRepository) List(ctx context.Context) ([]*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos ORDER BY imported_at, filename, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []*models.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// Count returns the total number of photos
func (r *PhotoRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos").Scan(&count)
	return count, err
}

// Upsert inserts photos, or refreshes the file fields of photos already in
// the library. Favorite, config and stack membership survive a re-import.
func (r *PhotoRepository) Upsert(ctx context.Context, photos ...*models.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	query := r.rebind(`
		INSERT INTO photos (` + photoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			filename = excluded.filename,
			image_path = excluded.image_path,
			thumbnail = excluded.thumbnail,
			file_size = excluded.file_size,
			date_taken = excluded.date_taken,
			sync_status = excluded.sync_status
	`)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range photos {
		status := p.SyncStatus
		if status == "" {
			status = contract.SyncStatusSynced
		}
		if _, err := tx.ExecContext(ctx, query,
			p.ID,
			p.Filename,
			p.ImagePath,
			p.Thumbnail,
			p.FileSize,
			nullable(p.Config),
			p.Favorite,
			nullable(p.StackID),
			p.IsStackPrimary,
			string(status),
			nullable(p.AuthorPeerID),
			p.DateTaken,
			p.ImportedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a photo by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.rebind("DELETE FROM photos WHERE id = ?"), id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// Clear removes every photo
func (r *PhotoRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM photos")
	return err
}

func (r *PhotoRepository) updateOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrPhotoNotFound
	}
	return nil
}

func (r *PhotoRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return r.updateOne(ctx, "UPDATE photos SET favorite = ? WHERE id = ?", favorite, id)
}

// SetConfig stores the JSON-encoded editor config of a photo
func (r *PhotoRepository) SetConfig(ctx context.Context, id string, config string) error {
	return r.updateOne(ctx, "UPDATE photos SET config = ? WHERE id = ?", config, id)
}

// SetSyncStatus sets the sync status of ids and returns how many rows changed
func (r *PhotoRepository) SetSyncStatus(ctx context.Context, ids []string, status contract.SyncStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := r.rebind(`UPDATE photos SET sync_status = ? WHERE sync_status <> ? AND id IN (` + placeholders(len(ids)) + `)`)
	args := append([]interface{}{string(status), string(status)}, stringArgs(ids)...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetStack moves ids into stackID. When primaryID is one of them, it becomes
// the only primary of the stack.
func (r *PhotoRepository) SetStack(ctx context.Context, ids []string, stackID, primaryID string) error {
	if len(ids) == 0 || stackID == "" {
		return models.ErrEmptyStack
	}
	primaryInIDs := false
	for _, id := range ids {
		if id == primaryID {
			primaryInIDs = true
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if primaryInIDs {
		if _, err := tx.ExecContext(ctx, r.rebind("UPDATE photos SET is_stack_primary = ? WHERE stack_id = ?"), false, stackID); err != nil {
			return err
		}
	}

	var updated int64
	query := r.rebind("UPDATE photos SET stack_id = ?, is_stack_primary = ? WHERE id = ?")
	for _, id := range ids {
		result, err := tx.ExecContext(ctx, query, stackID, id == primaryID, id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		updated += n
	}
	if updated == 0 {
		return models.ErrPhotoNotFound
	}
	return tx.Commit()
}

// ClearStack takes ids out of whatever stack they are in
func (r *PhotoRepository) ClearStack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := r.rebind(`UPDATE photos SET stack_id = NULL, is_stack_primary = ? WHERE id IN (` + placeholders(len(ids)) + `)`)
	args := append([]interface{}{false}, stringArgs(ids)...)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// SetStackPrimary makes primaryID the only primary of stackID
func (r *PhotoRepository) SetStackPrimary(ctx context.Context, stackID, primaryID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var members int
	if err := tx.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM photos WHERE id = ? AND stack_id = ?"), primaryID, stackID).Scan(&members); err != nil {
		return err
	}
	if members == 0 {
		return models.ErrPrimaryNotMember
	}

	if _, err := tx.ExecContext(ctx, r.rebind("UPDATE photos SET is_stack_primary = ? WHERE stack_id = ?"), false, stackID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.rebind("UPDATE photos SET is_stack_primary = ? WHERE id = ?"), true, primaryID); err != nil {
		return err
	}
	return tx.Commit()
}
