package janitor

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	PolicyDeleteDuplicates = "delete_duplicates"
	PolicyRemoveTempFiles  = "remove_temp_files"
	PolicyRemoveLargeFiles = "remove_large_files"
)

const (
	ActionDelete = "delete"
	ActionReview = "review"
)

// Policy describes one cleanup rule.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	SafeMode    bool   `json:"safe_mode"`
}

// Policies lists the cleanup rules with their configured thresholds.
func (j *Janitor) Policies() []Policy {
	return []Policy{
		{
			ID:          PolicyDeleteDuplicates,
			Name:        "Delete Duplicate Files",
			Description: "Keep one copy per identical content (first by path), delete the rest",
			Enabled:     true,
			SafeMode:    true,
		},
		{
			ID:          PolicyRemoveTempFiles,
			Name:        "Remove Temporary Files",
			Description: fmt.Sprintf("Delete temporary files older than %s", formatAge(j.cfg.TempAge)),
			Enabled:     true,
			SafeMode:    true,
		},
		{
			ID:          PolicyRemoveLargeFiles,
			Name:        "Flag Large Files",
			Description: fmt.Sprintf("Identify files of %s or more for manual review", humanize.IBytes(uint64(j.cfg.LargeFileThreshold))),
			Enabled:     false,
			SafeMode:    true,
		},
	}
}

// resolvePolicies returns the requested ids, or every enabled policy when
// none are given.
func (j *Janitor) resolvePolicies(requested []string) ([]string, error) {
	known := make(map[string]Policy)
	var enabled []string
	for _, p := range j.Policies() {
		known[p.ID] = p
		if p.Enabled {
			enabled = append(enabled, p.ID)
		}
	}
	if len(requested) == 0 {
		return enabled, nil
	}

	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, id)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
