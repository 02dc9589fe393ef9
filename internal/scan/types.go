// Package scan runs catalog crawls: one Controller per job, tracked by a
// Manager and persisted in a JobStore.
package scan

import (
	"errors"
	"time"
)

type Status string

const (
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusComplete Status = "complete"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusComplete
}

var (
	ErrScanNotFound = errors.New("scan not found")
	ErrNoRoots      = errors.New("no roots")
)

// Counts are the per-job counters.
type Counts struct {
	FilesSeen int64 `json:"files_seen"`
	Upserts   int64 `json:"upserts"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
	Batches   int64 `json:"batches"`
	Hashed    int64 `json:"hashed"`
}

// Config is the immutable input of one scan.
type Config struct {
	Roots         []string `json:"roots"`
	IncludeExt    []string `json:"include_ext,omitempty"`
	ExcludeExt    []string `json:"exclude_ext,omitempty"`
	BatchSize     int      `json:"batch_size"`
	ComputeHashes bool     `json:"compute_hashes"`
	HashMaxSize   int64    `json:"hash_max_size"`
	ProgressEvery int      `json:"progress_every,omitempty"`
	ReuseHashes   bool     `json:"reuse_hashes,omitempty"`

	// ID pins the job id; empty means generate one.
	ID string `json:"-"`
	// Schedule names the schedule that triggered the scan, if any.
	Schedule string `json:"-"`
}

// Job is the persisted view of a scan.
type Job struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Schedule   string     `json:"schedule,omitempty"`
	Config     Config     `json:"config"`
	Counts     Counts     `json:"counts"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastError  string     `json:"last_error,omitempty"`
	LastPath   string     `json:"last_path,omitempty"`
	Live       bool       `json:"live"`
}

type NotificationKind string

const (
	NotifyTick NotificationKind = "tick"
	NotifyDone NotificationKind = "done"
)

// Notification is sent on a controller's channel: ticks while running and
// exactly one done.
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	JobID      string           `json:"scan_id"`
	Status     Status           `json:"status"`
	Counts     Counts           `json:"counts"`
	LastPath   string           `json:"last_path,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}
