// Package hasher computes content digests of files with bounded memory.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/zeebo/blake3"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

const chunkSize = 64 * 1024

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, chunkSize)
		return &b
	},
}

// HashError is a per-file digest failure. Callers ingest the file without a
// digest and keep the error text as an annotation.
type HashError struct {
	Path string
	Op   string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("hash %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// ParseAlgorithm accepts "sha256" or "blake3" (case-insensitive).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case SHA256, "":
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", s)
	}
}

// Hasher streams files from a billy filesystem through a digest.
type Hasher struct {
	fs   billy.Filesystem
	algo Algorithm
}

// New returns a Hasher reading from fs.
func New(fs billy.Filesystem, algo Algorithm) *Hasher {
	if algo == "" {
		algo = SHA256
	}
	return &Hasher{fs: fs, algo: algo}
}

// Algorithm reports the digest this hasher produces.
func (h *Hasher) Algorithm() Algorithm { return h.algo }

// File returns the hex digest of the file at path. Errors are *HashError.
func (h *Hasher) File(path string) (string, error) {
	f, err := h.fs.Open(path)
	if err != nil {
		return "", &HashError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	sum, err := h.Reader(f)
	if err != nil {
		return "", &HashError{Path: path, Op: "read", Err: err}
	}
	return sum, nil
}

// Reader digests r in fixed-size chunks.
func (h *Hasher) Reader(r io.Reader) (string, error) {
	d := newDigest(h.algo)

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	if _, err := io.CopyBuffer(d, r, *bp); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

func newDigest(algo Algorithm) hash.Hash {
	if algo == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}
