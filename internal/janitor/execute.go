package janitor

import (
	"context"
	"errors"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/catalogd/internal/events"
)

const (
	dryRunWarning  = "This was a dry run. No files were actually deleted."
	appliedWarning = "Files have been permanently deleted."
)

// Failure is one file execute did not delete.
type Failure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// ExecuteResult reports an execute call.
type ExecuteResult struct {
	DryRun       bool      `json:"dry_run"`
	TotalFiles   int       `json:"total_files"`
	Deleted      []string  `json:"deleted"`
	Failed       []Failure `json:"failed"`
	SpaceFreed   int64     `json:"space_freed"`
	SpaceFreedMB int64     `json:"space_freed_mb"`
	Warning      string    `json:"warning"`
}

// Execute deletes files, or only reports what would be deleted when dryRun is
// set. Each path passes the safety gate first; per-file failures never abort
// the rest.
func (j *Janitor) Execute(ctx context.Context, files []string, dryRun bool) *ExecuteResult {
	res := &ExecuteResult{
		DryRun:     dryRun,
		TotalFiles: len(files),
		Deleted:    []string{},
		Failed:     []Failure{},
	}

	for _, p := range files {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, Failure{File: p, Reason: ctx.Err().Error()})
			continue
		}
		size, err := j.deleteOne(p, dryRun)
		if err != nil {
			var sv *SafetyViolation
			if errors.As(err, &sv) {
				j.logger.Warn("execute: blocked by safety policy", "path", p)
			}
			res.Failed = append(res.Failed, Failure{File: p, Reason: err.Error()})
			continue
		}
		res.Deleted = append(res.Deleted, p)
		res.SpaceFreed += size
	}

	res.SpaceFreedMB = toMB(res.SpaceFreed)
	res.Warning = appliedWarning
	if dryRun {
		res.Warning = dryRunWarning
	}

	j.logger.Info("execute complete",
		"dry_run", dryRun,
		"requested", res.TotalFiles,
		"deleted", len(res.Deleted),
		"failed", len(res.Failed),
		"space_freed", humanize.IBytes(uint64(res.SpaceFreed)),
	)
	j.publish(events.JanitorExecuted, map[string]any{
		"dry_run":     dryRun,
		"total_files": res.TotalFiles,
		"deleted":     len(res.Deleted),
		"failed":      len(res.Failed),
		"space_freed": res.SpaceFreed,
	})
	return res
}

func (j *Janitor) deleteOne(path string, dryRun bool) (int64, error) {
	if err := j.gate(path); err != nil {
		return 0, err
	}

	info, err := j.fs.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, &NotFoundError{Path: path}
		}
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, &NotRegularError{Path: path}
	}

	if dryRun {
		return info.Size(), nil
	}
	if err := j.fs.Remove(path); err != nil {
		j.logger.Warn("execute: delete failed", "path", path, "error", err)
		return 0, err
	}
	j.logger.Info("execute: deleted", "path", path, "size", info.Size())
	return info.Size(), nil
}
