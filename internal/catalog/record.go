// Package catalog persists file metadata keyed by absolute path.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrRecordNotFound is returned by Get for an unknown path.
var ErrRecordNotFound = errors.New("catalog record not found")

// Record is one cataloged file. Path is the unique key.
type Record struct {
	Path       string    `json:"path"`
	Dirname    string    `json:"dirname"`
	Filename   string    `json:"filename"`
	Ext        string    `json:"ext"`
	Size       int64     `json:"size"`
	Mtime      int64     `json:"mtime"`
	SHA256     string    `json:"sha256,omitempty"`
	HashError  string    `json:"hash_error,omitempty"`
	ScanID     string    `json:"scan_id,omitempty"`
	ScanSeenAt time.Time `json:"scan_seen_at"`
	IngestedAt time.Time `json:"ingested_at"`
}

// NewRecord fills the path-derived fields from an absolute path.
func NewRecord(path, ext string, size int64, mtime time.Time, scanID string, seenAt time.Time) Record {
	return Record{
		Path:       path,
		Dirname:    filepath.Dir(path),
		Filename:   filepath.Base(path),
		Ext:        ext,
		Size:       size,
		Mtime:      mtime.Unix(),
		ScanID:     scanID,
		ScanSeenAt: seenAt.UTC(),
	}
}

// PersistenceError reports a record that could not be written.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("upsert %q: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
