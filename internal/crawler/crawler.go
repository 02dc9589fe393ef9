// Package crawler walks directory trees depth-first with an explicit stack so
// memory grows with tree breadth, not with the number of files.
package crawler

import (
	"os"

	"github.com/go-git/go-billy/v5"
)

// Entry is a qualifying regular file with fresh metadata.
type Entry struct {
	Path string
	Info os.FileInfo
}

// Options configures a Crawler. All callbacks are optional.
type Options struct {
	Filter Filter

	// Stopped is polled before each directory and before each directory
	// entry. Returning true ends the walk with ErrStopped.
	Stopped func() bool

	// OnError receives *TraversalError and *StatError values.
	OnError func(error)

	// OnSkip is called for regular files rejected by the filter.
	OnSkip func(path string)
}

// Crawler walks a billy filesystem.
type Crawler struct {
	fs   billy.Filesystem
	opts Options
}

// New returns a Crawler over fs.
func New(fs billy.Filesystem, opts Options) *Crawler {
	return &Crawler{fs: fs, opts: opts}
}

// Walk visits every qualifying file under roots. Sibling order follows the
// filesystem listing. Walk returns ErrStopped when stopped, the first error
// returned by visit, or nil once the stack is exhausted. Symlinks and other
// non-regular entries are ignored.
func (c *Crawler) Walk(roots []string, visit func(Entry) error) error {
	stack := make([]string, 0, len(roots))
	stack = append(stack, roots...)

	for len(stack) > 0 {
		if c.stopped() {
			return ErrStopped
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := c.fs.ReadDir(dir)
		if err != nil {
			c.report(&TraversalError{Dir: dir, Err: err})
			continue
		}

		for _, ent := range entries {
			if c.stopped() {
				return ErrStopped
			}
			p := c.fs.Join(dir, ent.Name())

			if ent.IsDir() {
				stack = append(stack, p)
				continue
			}
			if !ent.Mode().IsRegular() {
				continue
			}
			if !c.opts.Filter.Allows(Ext(ent.Name())) {
				if c.opts.OnSkip != nil {
					c.opts.OnSkip(p)
				}
				continue
			}

			info, err := c.fs.Stat(p)
			if err != nil {
				c.report(&StatError{Path: p, Err: err})
				continue
			}
			if err := visit(Entry{Path: p, Info: info}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Crawler) stopped() bool {
	return c.opts.Stopped != nil && c.opts.Stopped()
}

func (c *Crawler) report(err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}
