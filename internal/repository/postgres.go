package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		image_path TEXT NOT NULL,
		thumbnail TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		config TEXT,
		favorite BOOLEAN NOT NULL DEFAULT FALSE,
		stack_id TEXT,
		is_stack_primary BOOLEAN NOT NULL DEFAULT FALSE,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		author_peer_id TEXT,
		date_taken TIMESTAMP NOT NULL,
		imported_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_photos_stack_id ON photos(stack_id);
	CREATE INDEX IF NOT EXISTS idx_photos_imported_at ON photos(imported_at);
	`

	_, err := db.Exec(schema)
	return err
}
