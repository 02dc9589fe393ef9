package janitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/catalogd/internal/crawler"
)

// DuplicateGroup is a set of files with identical content. Files are sorted
// by path; the first one is the copy a cleanup keeps.
type DuplicateGroup struct {
	Hash   string   `json:"hash"`
	Files  []string `json:"files"`
	Count  int      `json:"count"`
	Size   int64    `json:"size"`
	Wasted int64    `json:"wasted"`
}

// Analysis is the result of walking one directory.
type Analysis struct {
	Path            string           `json:"path"`
	HashAlgorithm   string           `json:"hash_algorithm"`
	TotalFiles      int              `json:"total_files"`
	ScannedFiles    int              `json:"scanned_files"`
	TotalSize       int64            `json:"total_size"`
	DuplicatesCount int              `json:"duplicates_count"`
	WastedSpace     int64            `json:"wasted_space"`
	WastedSpaceMB   int64            `json:"wasted_space_mb"`
	DuplicateGroups []DuplicateGroup `json:"duplicate_groups"`
	Truncated       bool             `json:"truncated"`
}

type fileInfo struct {
	path  string
	size  int64
	mtime time.Time
}

// walkResult carries everything Suggest needs beyond the public Analysis.
type walkResult struct {
	analysis Analysis
	files    []fileInfo
	groups   []DuplicateGroup
}

// Analyze walks path, digests every regular file under the hash ceiling and
// groups identical content. A missing or unreadable root yields an empty
// result, not an error.
func (j *Janitor) Analyze(ctx context.Context, path string) (*Analysis, error) {
	res, err := j.walk(ctx, path)
	if err != nil {
		return nil, err
	}
	a := res.analysis
	return &a, nil
}

func (j *Janitor) walk(ctx context.Context, root string) (*walkResult, error) {
	if root == "" {
		return nil, ErrPathRequired
	}
	// The filesystem is rooted at "/"; a relative root would not mean the
	// working directory.
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("%w: %q", ErrPathNotAbsolute, root)
	}
	root = filepath.Clean(root)
	started := time.Now()

	res := &walkResult{analysis: Analysis{
		Path:            root,
		HashAlgorithm:   string(j.hasher.Algorithm()),
		DuplicateGroups: []DuplicateGroup{},
	}}
	a := &res.analysis
	byDigest := make(map[string][]fileInfo)
	limitHit := false

	walker := crawler.New(j.fs, crawler.Options{
		Stopped: func() bool {
			if ctx.Err() != nil {
				return true
			}
			if j.cfg.MaxFiles > 0 && a.TotalFiles >= j.cfg.MaxFiles {
				limitHit = true
				return true
			}
			return false
		},
		OnError: func(err error) {
			j.logger.Warn("analyze: skipping unreadable entry", "error", err)
		},
	})

	err := walker.Walk([]string{root}, func(e crawler.Entry) error {
		fi := fileInfo{path: e.Path, size: e.Info.Size(), mtime: e.Info.ModTime()}
		a.TotalFiles++
		a.TotalSize += fi.size
		res.files = append(res.files, fi)

		if j.cfg.HashMaxSize > 0 && fi.size > j.cfg.HashMaxSize {
			return nil
		}
		sum, err := j.digest(ctx, fi)
		if err != nil {
			j.logger.Warn("analyze: cannot hash file", "path", fi.path, "error", err)
			return nil
		}
		a.ScannedFiles++
		byDigest[sum] = append(byDigest[sum], fi)
		return nil
	})
	if errors.Is(err, crawler.ErrStopped) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.Truncated = limitHit
	} else if err != nil {
		return nil, err
	}

	for sum, files := range byDigest {
		if len(files) < 2 {
			continue
		}
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.path
		}
		sort.Strings(paths)
		size := files[0].size
		res.groups = append(res.groups, DuplicateGroup{
			Hash:   sum,
			Files:  paths,
			Count:  len(paths),
			Size:   size,
			Wasted: size * int64(len(paths)-1),
		})
	}
	sort.Slice(res.groups, func(i, k int) bool {
		gi, gk := res.groups[i], res.groups[k]
		if gi.Wasted != gk.Wasted {
			return gi.Wasted > gk.Wasted
		}
		return gi.Files[0] < gk.Files[0]
	})

	a.DuplicatesCount = len(res.groups)
	for _, g := range res.groups {
		a.WastedSpace += g.Wasted
	}
	a.WastedSpaceMB = toMB(a.WastedSpace)

	shown := res.groups
	if j.cfg.MaxGroups > 0 && len(shown) > j.cfg.MaxGroups {
		shown = shown[:j.cfg.MaxGroups]
	}
	a.DuplicateGroups = append(a.DuplicateGroups, shown...)

	j.logger.Info("analysis complete",
		"path", root,
		"total_files", a.TotalFiles,
		"duplicate_groups", a.DuplicatesCount,
		"wasted", humanize.IBytes(uint64(a.WastedSpace)),
		"truncated", a.Truncated,
		"duration", time.Since(started).String(),
	)
	return res, nil
}

func (j *Janitor) digest(ctx context.Context, fi fileInfo) (string, error) {
	if j.digests != nil {
		sum, ok, err := j.digests.Digest(ctx, fi.path, fi.size, fi.mtime.Unix())
		if err == nil && ok {
			return sum, nil
		}
	}
	return j.hasher.File(fi.path)
}
