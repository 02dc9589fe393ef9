package crawler

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Walk when the stop check fired before the stack
// was exhausted.
var ErrStopped = errors.New("crawl stopped")

// TraversalError reports a directory that could not be listed. The walk
// continues with the remaining stack.
type TraversalError struct {
	Dir string
	Err error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("readdir %s: %v", e.Dir, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }

// StatError reports a qualifying file whose metadata could not be read. The
// file is skipped.
type StatError struct {
	Path string
	Err  error
}

func (e *StatError) Error() string {
	return fmt.Sprintf("stat %s: %v", e.Path, e.Err)
}

func (e *StatError) Unwrap() error { return e.Err }
