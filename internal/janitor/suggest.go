package janitor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/catalogd/internal/crawler"
)

// Suggestion is one proposed cleanup action.
type Suggestion struct {
	Policy     string   `json:"policy"`
	Action     string   `json:"action"`
	Files      []string `json:"files"`
	Reason     string   `json:"reason"`
	SpaceSaved int64    `json:"space_saved"`
}

// SuggestResult aggregates over Suggestions as returned.
type SuggestResult struct {
	Path              string       `json:"path"`
	SuggestionsCount  int          `json:"suggestions_count"`
	TotalSpaceSaved   int64        `json:"total_space_saved"`
	TotalSpaceSavedMB int64        `json:"total_space_saved_mb"`
	Suggestions       []Suggestion `json:"suggestions"`
	PoliciesApplied   []string     `json:"policies_applied"`
	Truncated         bool         `json:"truncated"`
}

// ForPolicy returns the subset of suggestions produced by one policy, with
// aggregates recomputed.
func (r *SuggestResult) ForPolicy(id string) *SuggestResult {
	subset := make([]Suggestion, 0)
	for _, s := range r.Suggestions {
		if s.Policy == id {
			subset = append(subset, s)
		}
	}
	out := &SuggestResult{
		Path:            r.Path,
		PoliciesApplied: []string{id},
		Truncated:       r.Truncated,
	}
	out.setSuggestions(subset)
	return out
}

func (r *SuggestResult) setSuggestions(s []Suggestion) {
	r.Suggestions = s
	r.SuggestionsCount = len(s)
	r.TotalSpaceSaved = 0
	for _, sg := range s {
		r.TotalSpaceSaved += sg.SpaceSaved
	}
	r.TotalSpaceSavedMB = toMB(r.TotalSpaceSaved)
}

// Suggest analyzes path and evaluates the requested policies (every enabled
// policy when none are given).
func (j *Janitor) Suggest(ctx context.Context, path string, policies []string) (*SuggestResult, error) {
	active, err := j.resolvePolicies(policies)
	if err != nil {
		return nil, err
	}
	res, err := j.walk(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, id := range active {
		switch id {
		case PolicyDeleteDuplicates:
			out = append(out, j.duplicateSuggestions(res.groups)...)
		case PolicyRemoveTempFiles:
			out = append(out, j.tempSuggestions(res.analysis.Path, res.files)...)
		case PolicyRemoveLargeFiles:
			out = append(out, j.largeSuggestions(res.files)...)
		}
	}
	if j.cfg.MaxSuggestions > 0 && len(out) > j.cfg.MaxSuggestions {
		out = out[:j.cfg.MaxSuggestions]
	}
	if out == nil {
		out = []Suggestion{}
	}

	result := &SuggestResult{
		Path:            res.analysis.Path,
		PoliciesApplied: active,
		Truncated:       res.analysis.Truncated,
	}
	result.setSuggestions(out)

	j.logger.Info("suggestions generated",
		"path", result.Path,
		"policies", active,
		"count", result.SuggestionsCount,
		"space_saved", humanize.IBytes(uint64(result.TotalSpaceSaved)),
	)
	return result, nil
}

func (j *Janitor) duplicateSuggestions(groups []DuplicateGroup) []Suggestion {
	out := make([]Suggestion, 0, len(groups))
	for _, g := range groups {
		out = append(out, Suggestion{
			Policy:     PolicyDeleteDuplicates,
			Action:     ActionDelete,
			Files:      append([]string(nil), g.Files[1:]...),
			Reason:     fmt.Sprintf("Duplicate of %s (%s %s)", g.Files[0], j.hasher.Algorithm(), shortHash(g.Hash)),
			SpaceSaved: g.Wasted,
		})
	}
	return out
}

func (j *Janitor) tempSuggestions(root string, files []fileInfo) []Suggestion {
	cutoff := j.now().Add(-j.cfg.TempAge)
	reason := "Temp file older than " + formatAge(j.cfg.TempAge)

	var out []Suggestion
	for _, f := range files {
		if !f.mtime.Before(cutoff) || !j.isTemp(root, f.path) {
			continue
		}
		out = append(out, Suggestion{
			Policy:     PolicyRemoveTempFiles,
			Action:     ActionDelete,
			Files:      []string{f.path},
			Reason:     reason,
			SpaceSaved: f.size,
		})
	}
	return out
}

func (j *Janitor) largeSuggestions(files []fileInfo) []Suggestion {
	threshold := j.cfg.LargeFileThreshold
	var out []Suggestion
	for _, f := range files {
		if threshold <= 0 || f.size < threshold {
			continue
		}
		out = append(out, Suggestion{
			Policy: PolicyRemoveLargeFiles,
			Action: ActionReview,
			Files:  []string{f.path},
			Reason: fmt.Sprintf("Large file (%s, threshold %s)", humanize.IBytes(uint64(f.size)), humanize.IBytes(uint64(threshold))),
		})
	}
	return out
}

// isTemp matches the temp extension set, a trailing "~", or a tmp/temp
// directory from root down. Directories above root are not considered.
func (j *Janitor) isTemp(root, path string) bool {
	name := filepath.Base(path)
	if _, ok := j.tempExts[crawler.Ext(name)]; ok && crawler.Ext(name) != "" {
		return true
	}
	if _, ok := j.tempExts["~"]; ok && strings.HasSuffix(name, "~") {
		return true
	}

	rel, err := filepath.Rel(filepath.Dir(root), filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		switch strings.ToLower(part) {
		case "tmp", "temp":
			return true
		}
	}
	return false
}

func formatAge(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d == day:
		return "1 day"
	case d > 0 && d%day == 0:
		return fmt.Sprintf("%d days", int(d/day))
	}
	return d.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
