// Package janitor finds duplicate and stale files and deletes approved ones
// behind a safety gate.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/hasher"
)

var (
	ErrPathRequired    = errors.New("path required")
	ErrPathNotAbsolute = errors.New("path is not absolute")
	ErrUnknownPolicy   = errors.New("unknown policy")
)

// DigestSource supplies stored sha256 digests for unchanged files.
type DigestSource interface {
	Digest(ctx context.Context, path string, size, mtime int64) (string, bool, error)
}

// Publisher receives janitor events.
type Publisher interface {
	Publish(eventType string, data any)
}

// Janitor is safe for concurrent use.
type Janitor struct {
	fs       billy.Filesystem
	cfg      config.JanitorConfig
	hasher   *hasher.Hasher
	digests  DigestSource
	hub      Publisher
	logger   *slog.Logger
	denylist map[string]struct{}
	tempExts map[string]struct{}
	now      func() time.Time
}

// New builds a Janitor. digests and hub may be nil.
func New(fs billy.Filesystem, cfg config.JanitorConfig, digests DigestSource, hub Publisher, logger *slog.Logger) (*Janitor, error) {
	algo, err := hasher.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	if algo != hasher.SHA256 || !cfg.UseCatalog {
		// Stored digests are sha256 only.
		digests = nil
	}

	exts := make(map[string]struct{}, len(cfg.TempExtensions))
	for _, e := range config.NormalizeExtensions(cfg.TempExtensions) {
		exts[e] = struct{}{}
	}

	return &Janitor{
		fs:       fs,
		cfg:      cfg,
		hasher:   hasher.New(fs, algo),
		digests:  digests,
		hub:      hub,
		logger:   logger.With("component", "janitor"),
		denylist: buildDenylist(cfg.ProtectedPaths),
		tempExts: exts,
		now:      time.Now,
	}, nil
}

func (j *Janitor) publish(eventType string, data any) {
	if j.hub != nil {
		j.hub.Publish(eventType, data)
	}
}

func toMB(bytes int64) int64 {
	return int64(math.Round(float64(bytes) / 1024 / 1024))
}
