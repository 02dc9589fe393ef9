package janitor

import "path/filepath"

// Directories that are never deleted, whatever the request says.
var systemDenylist = []string{
	"/", "/bin", "/boot", "/dev", "/etc", "/home", "/lib", "/lib64",
	"/proc", "/root", "/sbin", "/sys", "/usr", "/var",
}

// SafetyViolation rejects a path before any filesystem access.
type SafetyViolation struct {
	Path string
}

func (e *SafetyViolation) Error() string { return "Blocked by safety policy" }

// NotFoundError reports a path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return "File not found" }

// InvalidPathError reports an empty path.
type InvalidPathError struct{}

func (e *InvalidPathError) Error() string { return "Invalid file path" }

// NotRegularError reports a directory, symlink or device.
type NotRegularError struct {
	Path string
}

func (e *NotRegularError) Error() string { return "Not a regular file" }

func buildDenylist(extra []string) map[string]struct{} {
	deny := make(map[string]struct{}, len(systemDenylist)+len(extra))
	for _, p := range systemDenylist {
		deny[p] = struct{}{}
	}
	for _, p := range extra {
		deny[filepath.Clean(p)] = struct{}{}
	}
	return deny
}

// gate applies the checks that need no filesystem access.
func (j *Janitor) gate(path string) error {
	if path == "" {
		return &InvalidPathError{}
	}
	if !filepath.IsAbs(path) {
		return &SafetyViolation{Path: path}
	}
	if _, blocked := j.denylist[filepath.Clean(path)]; blocked {
		return &SafetyViolation{Path: path}
	}
	return nil
}
