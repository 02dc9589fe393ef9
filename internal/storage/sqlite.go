package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist. The database must live on local disk even
// when the trees it catalogs are on network storage.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	inMemory := isInMemory(path)
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		if err := validateSQLiteFilesystem(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;", "PRAGMA synchronous = NORMAL;")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(pctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_files (
  path         TEXT PRIMARY KEY,
  dirname      TEXT NOT NULL,
  filename     TEXT NOT NULL,
  ext          TEXT NOT NULL,
  size         INTEGER NOT NULL,
  mtime        INTEGER NOT NULL,
  sha256       TEXT,
  hash_error   TEXT,
  scan_id      TEXT,
  scan_seen_at TEXT NOT NULL,
  ingested_at  TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS scan_jobs (
  id          TEXT PRIMARY KEY,
  status      TEXT NOT NULL,
  schedule    TEXT,
  config      TEXT NOT NULL,
  counts      TEXT NOT NULL,
  started_at  TEXT NOT NULL,
  finished_at TEXT,
  updated_at  TEXT NOT NULL,
  last_error  TEXT,
  last_path   TEXT
);`,
		`CREATE INDEX IF NOT EXISTS catalog_files_sha256_idx ON catalog_files(sha256) WHERE sha256 IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS catalog_files_dirname_idx ON catalog_files(dirname);`,
		`CREATE INDEX IF NOT EXISTS scan_jobs_started_at_idx ON scan_jobs(started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

func isInMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}
