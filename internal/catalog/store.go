package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const upsertSQL = `
INSERT INTO catalog_files(
  path, dirname, filename, ext, size, mtime, sha256, hash_error, scan_id, scan_seen_at, ingested_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  dirname      = excluded.dirname,
  filename     = excluded.filename,
  ext          = excluded.ext,
  size         = excluded.size,
  mtime        = excluded.mtime,
  sha256       = CASE
                   WHEN excluded.sha256 IS NOT NULL THEN excluded.sha256
                   WHEN catalog_files.size = excluded.size AND catalog_files.mtime = excluded.mtime THEN catalog_files.sha256
                   ELSE NULL
                 END,
  hash_error   = excluded.hash_error,
  scan_id      = excluded.scan_id,
  scan_seen_at = excluded.scan_seen_at;
`

// Store is the SQLite-backed catalog.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertBatch writes records in one transaction, matching on path.
// ingested_at is only set on first insert. A stored digest survives a record
// without one as long as size and mtime are unchanged. Per-record failures do
// not stop the rest of the batch; they come back joined as *PersistenceError
// alongside the number of records applied.
func (s *Store) UpsertBatch(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	applied := 0
	var errs []error
	for _, r := range records {
		if err := validateRecord(r); err != nil {
			errs = append(errs, &PersistenceError{Path: r.Path, Err: err})
			continue
		}
		seen := r.ScanSeenAt
		if seen.IsZero() {
			seen = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			r.Path, r.Dirname, r.Filename, r.Ext, r.Size, r.Mtime,
			nullString(r.SHA256), nullString(r.HashError), nullString(r.ScanID),
			seen.UTC().Format(time.RFC3339Nano), now,
		)
		if err != nil {
			errs = append(errs, &PersistenceError{Path: r.Path, Err: err})
			continue
		}
		applied++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Join(append(errs, fmt.Errorf("commit tx: %w", err))...)
	}
	return applied, errors.Join(errs...)
}

// Get returns the record stored for path.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT path, dirname, filename, ext, size, mtime, sha256, hash_error, scan_id, scan_seen_at, ingested_at
FROM catalog_files WHERE path = ?;
`, path)

	var (
		r          Record
		sha        sql.NullString
		hashErr    sql.NullString
		scanID     sql.NullString
		seenAtS    string
		ingestedAt string
	)
	err := row.Scan(&r.Path, &r.Dirname, &r.Filename, &r.Ext, &r.Size, &r.Mtime, &sha, &hashErr, &scanID, &seenAtS, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog record: %w", err)
	}
	r.SHA256 = sha.String
	r.HashError = hashErr.String
	r.ScanID = scanID.String
	if t, err := time.Parse(time.RFC3339Nano, seenAtS); err == nil {
		r.ScanSeenAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
		r.IngestedAt = t
	}
	return &r, nil
}

// Digest returns the stored sha256 for path if the record still matches size
// and mtime. ok is false when there is nothing reusable.
func (s *Store) Digest(ctx context.Context, path string, size, mtime int64) (string, bool, error) {
	var sha sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT sha256 FROM catalog_files WHERE path = ? AND size = ? AND mtime = ?;",
		path, size, mtime,
	).Scan(&sha)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup digest: %w", err)
	}
	if !sha.Valid || sha.String == "" {
		return "", false, nil
	}
	return sha.String, true, nil
}

// Count returns the number of cataloged files.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_files;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

func validateRecord(r Record) error {
	if r.Path == "" {
		return errors.New("path is empty")
	}
	if !filepath.IsAbs(r.Path) {
		return errors.New("path is not absolute")
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
