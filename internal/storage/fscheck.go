package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Network filesystems on which SQLite locking is unreliable. Catalogued trees
// may live on these, the catalog database may not.
var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"nfs4":   {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// FilesystemError reports a database path that sits on a network mount.
type FilesystemError struct {
	Path   string
	FSType string
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf(
		"catalog database %q is on network filesystem %q; SQLite needs local disk for reliable locking. Point state.path at a local file (the scanned roots may stay remote)",
		e.Path, e.FSType,
	)
}

func validateSQLiteFilesystem(path string) error {
	return checkLocalFilesystem(path, detectFilesystemType)
}

func checkLocalFilesystem(path string, detect func(string) (string, error)) error {
	existing, err := closestExistingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if isNetworkFilesystem(fsType) {
		return &FilesystemError{Path: path, FSType: fsType}
	}
	return nil
}

func closestExistingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for cur := abs; ; {
		_, err := os.Stat(cur)
		switch {
		case err == nil:
			return cur, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("no existing ancestor for %q", abs)
		}
		cur = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return found
}
