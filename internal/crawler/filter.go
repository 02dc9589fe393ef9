package crawler

import (
	"path"
	"strings"
)

// Filter decides which files qualify by extension. Extensions are compared
// lower-cased and without the leading dot.
type Filter struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// NewFilter builds a Filter. An empty include list admits every extension.
func NewFilter(include, exclude []string) Filter {
	return Filter{include: toSet(include), exclude: toSet(exclude)}
}

// Allows reports whether a file with extension ext passes both lists.
func (f Filter) Allows(ext string) bool {
	ext = normalizeExt(ext)
	if len(f.include) > 0 {
		if _, ok := f.include[ext]; !ok {
			return false
		}
	}
	if _, ok := f.exclude[ext]; ok {
		return false
	}
	return true
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return normalizeExt(path.Ext(name))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func toSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = normalizeExt(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
