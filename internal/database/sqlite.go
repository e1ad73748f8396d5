package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteDB wraps a single-file embedded database. It is created lazily:
// the data directory is made on first open. The file is only safe for a
// single process at a time.
type SQLiteDB struct {
	DB     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteDB opens (creating if needed) the embedded database file.
func NewSQLiteDB(path string, logger *zap.Logger) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// The file is written by one process; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Info("opened embedded SQLite database", zap.String("path", path))

	return &SQLiteDB{DB: db, path: path, logger: logger}, nil
}

// Close closes the database file.
func (s *SQLiteDB) Close() error {
	if s.DB != nil {
		s.logger.Info("SQLite database closed", zap.String("path", s.path))
		return s.DB.Close()
	}
	return nil
}
