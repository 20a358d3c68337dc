package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		image_path TEXT NOT NULL,
		thumbnail TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		config TEXT,
		favorite INTEGER NOT NULL DEFAULT 0,
		stack_id TEXT,
		is_stack_primary INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		author_peer_id TEXT,
		date_taken DATETIME NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_photos_stack_id ON photos(stack_id);
	CREATE INDEX IF NOT EXISTS idx_photos_imported_at ON photos(imported_at);
	`

	_, err := db.Exec(schema)
	return err
}
