package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCheckLocalFilesystemAllowsLocal(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	err := checkLocalFilesystem(dbPath, func(string) (string, error) { return "ext4", nil })
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckLocalFilesystemRejectsNetworkMount(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	err := checkLocalFilesystem(dbPath, func(string) (string, error) { return "cifs", nil })

	var fsErr *FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("expected *FilesystemError, got %v", err)
	}
	if fsErr.FSType != "cifs" || fsErr.Path != dbPath {
		t.Fatalf("unexpected error fields: %+v", fsErr)
	}
}

func TestCheckLocalFilesystemInspectsClosestAncestor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dbPath := filepath.Join(root, "a", "b", "catalog.db")

	var inspected string
	err := checkLocalFilesystem(dbPath, func(p string) (string, error) {
		inspected = p
		return "apfs", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("inspected %q, want %q", inspected, root)
	}
}

func TestCheckLocalFilesystemDetectorError(t *testing.T) {
	t.Parallel()

	err := checkLocalFilesystem(filepath.Join(t.TempDir(), "x.db"), func(string) (string, error) {
		return "", errors.New("statfs failed")
	})
	if err == nil {
		t.Fatal("expected detector error to surface")
	}
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"nfs":    true,
		"SMBFS":  true,
		" nfs4 ": true,
		"apfs":   false,
		"0xef53": false,
		"":       false,
	}
	for fs, want := range cases {
		if got := isNetworkFilesystem(fs); got != want {
			t.Errorf("isNetworkFilesystem(%q)=%v, want %v", fs, got, want)
		}
	}
}
