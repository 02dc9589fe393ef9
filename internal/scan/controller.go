package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"

	"github.com/mattjoyce/catalogd/internal/catalog"
	"github.com/mattjoyce/catalogd/internal/crawler"
	"github.com/mattjoyce/catalogd/internal/hasher"
)

const notifyBuffer = 16

// CatalogWriter is the subset of the catalog store a scan needs.
type CatalogWriter interface {
	UpsertBatch(ctx context.Context, records []catalog.Record) (int, error)
	Digest(ctx context.Context, path string, size, mtime int64) (string, bool, error)
}

// Controller owns one crawl. Only its run goroutine mutates counters; readers
// take snapshots under mu.
type Controller struct {
	id        string
	cfg       Config
	fs        billy.Filesystem
	hasher    *hasher.Hasher
	catalog   CatalogWriter
	jobs      *JobStore
	logger    *slog.Logger
	startedAt time.Time

	stopFlag atomic.Bool

	mu         sync.Mutex
	status     Status
	counts     Counts
	lastPath   string
	lastError  string
	finishedAt *time.Time

	notify     chan Notification
	done       chan struct{}
	finishOnce sync.Once
	onDone     func(Notification)
}

func newController(id string, cfg Config, fs billy.Filesystem, cat CatalogWriter, jobs *JobStore, logger *slog.Logger, startedAt time.Time) *Controller {
	return &Controller{
		id:        id,
		cfg:       cfg,
		fs:        fs,
		hasher:    hasher.New(fs, hasher.SHA256),
		catalog:   cat,
		jobs:      jobs,
		logger:    logger,
		startedAt: startedAt,
		status:    StatusRunning,
		notify:    make(chan Notification, notifyBuffer),
		done:      make(chan struct{}),
	}
}

// Notifications carries ticks (best-effort) and exactly one done message,
// after which the channel is closed.
func (c *Controller) Notifications() <-chan Notification { return c.notify }

// Done is closed once the job is terminal and persisted.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Stop requests cooperative cancellation. It reports false if the job had
// already finished.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Terminal() {
		return false
	}
	c.stopFlag.Store(true)
	return true
}

// Snapshot returns the current in-memory view of the job.
func (c *Controller) Snapshot() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Job{
		ID:         c.id,
		Status:     c.status,
		Schedule:   c.cfg.Schedule,
		Config:     c.cfg,
		Counts:     c.counts,
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
		UpdatedAt:  time.Now().UTC(),
		LastError:  c.lastError,
		LastPath:   c.lastPath,
		Live:       !c.status.Terminal(),
	}
}

func (c *Controller) stopped(ctx context.Context) bool {
	return c.stopFlag.Load() || ctx.Err() != nil
}

// run drives the crawl to a terminal state. Context cancellation is treated
// like Stop.
func (c *Controller) run(ctx context.Context) {
	log := c.logger
	log.Info("scan started", "roots", c.cfg.Roots, "batch_size", c.cfg.BatchSize, "compute_hashes", c.cfg.ComputeHashes)

	batch := make([]catalog.Record, 0, c.cfg.BatchSize)
	walker := crawler.New(c.fs, crawler.Options{
		Filter:  crawler.NewFilter(c.cfg.IncludeExt, c.cfg.ExcludeExt),
		Stopped: func() bool { return c.stopped(ctx) },
		OnSkip: func(string) {
			c.mu.Lock()
			c.counts.Skipped++
			c.mu.Unlock()
		},
		OnError: func(err error) {
			log.Warn("crawl error", "error", err)
			c.recordError(err, 1)
		},
	})

	err := walker.Walk(c.cfg.Roots, func(e crawler.Entry) error {
		rec := c.buildRecord(ctx, e)
		batch = append(batch, rec)
		if len(batch) >= c.cfg.BatchSize {
			c.flush(ctx, batch)
			batch = batch[:0]
		}

		c.mu.Lock()
		c.counts.FilesSeen++
		c.lastPath = e.Path
		seen := c.counts.FilesSeen
		c.mu.Unlock()

		if c.cfg.ProgressEvery > 0 && seen%int64(c.cfg.ProgressEvery) == 0 {
			c.tick(ctx)
		}
		return nil
	})

	final := StatusComplete
	if errors.Is(err, crawler.ErrStopped) || c.stopped(ctx) {
		final = StatusStopped
	} else if err != nil {
		c.recordError(err, 1)
	}

	// The job's own context may be cancelled; the final flush and
	// persistence must still land.
	persistCtx := context.WithoutCancel(ctx)
	c.flush(persistCtx, batch)
	c.finish(persistCtx, final)
}

func (c *Controller) buildRecord(ctx context.Context, e crawler.Entry) catalog.Record {
	size := e.Info.Size()
	rec := catalog.NewRecord(e.Path, crawler.Ext(e.Info.Name()), size, e.Info.ModTime(), c.id, time.Now())

	if !c.cfg.ComputeHashes || size > c.cfg.HashMaxSize {
		return rec
	}

	if c.cfg.ReuseHashes {
		sum, ok, err := c.catalog.Digest(ctx, rec.Path, rec.Size, rec.Mtime)
		if err != nil {
			c.logger.Debug("digest lookup failed", "path", rec.Path, "error", err)
		}
		if ok {
			rec.SHA256 = sum
			return rec
		}
	}

	sum, err := c.hasher.File(rec.Path)
	if err != nil {
		c.logger.Warn("hash failed; ingesting without digest", "path", rec.Path, "error", err)
		rec.HashError = err.Error()
		return rec
	}
	rec.SHA256 = sum

	c.mu.Lock()
	c.counts.Hashed++
	c.mu.Unlock()
	return rec
}

func (c *Controller) flush(ctx context.Context, batch []catalog.Record) {
	if len(batch) == 0 {
		return
	}
	// Records already crawled are written even if the scan is being cancelled.
	applied, err := c.catalog.UpsertBatch(context.WithoutCancel(ctx), batch)

	c.mu.Lock()
	c.counts.Upserts += int64(applied)
	c.counts.Batches++
	c.mu.Unlock()

	if err != nil {
		failed := len(batch) - applied
		if failed < 1 {
			failed = 1
		}
		c.logger.Error("batch upsert failed", "records", len(batch), "applied", applied, "error", err)
		c.recordError(err, int64(failed))
	}
}

func (c *Controller) recordError(err error, n int64) {
	c.mu.Lock()
	c.counts.Errors += n
	c.lastError = truncate(err.Error(), 1024)
	c.mu.Unlock()
}

func (c *Controller) tick(ctx context.Context) {
	snap := c.Snapshot()
	if err := c.jobs.UpdateProgress(ctx, c.id, snap.Counts, snap.LastPath, snap.LastError); err != nil {
		c.logger.Warn("persist progress failed", "error", err)
	}
	c.logger.Info("scan progress",
		"files_seen", humanize.Comma(snap.Counts.FilesSeen),
		"upserts", snap.Counts.Upserts,
		"errors", snap.Counts.Errors,
		"last_path", snap.LastPath,
	)

	select {
	case c.notify <- Notification{
		Kind:      NotifyTick,
		JobID:     c.id,
		Status:    StatusRunning,
		Counts:    snap.Counts,
		LastPath:  snap.LastPath,
		StartedAt: c.startedAt,
	}:
	default:
	}
}

// finish performs the single terminal transition.
func (c *Controller) finish(ctx context.Context, status Status) {
	c.finishOnce.Do(func() {
		now := time.Now().UTC()

		c.mu.Lock()
		c.status = status
		c.finishedAt = &now
		counts, lastPath, lastError := c.counts, c.lastPath, c.lastError
		c.mu.Unlock()

		if err := c.jobs.Finish(ctx, c.id, status, counts, lastPath, lastError, now); err != nil {
			c.logger.Error("persist final scan state failed", "error", err)
		}

		n := Notification{
			Kind:       NotifyDone,
			JobID:      c.id,
			Status:     status,
			Counts:     counts,
			LastPath:   lastPath,
			StartedAt:  c.startedAt,
			FinishedAt: &now,
		}
		c.logger.Info("scan finished",
			"status", status,
			"files_seen", counts.FilesSeen,
			"upserts", counts.Upserts,
			"errors", counts.Errors,
			"duration", now.Sub(c.startedAt).String(),
		)

		if c.onDone != nil {
			c.onDone(n)
		}
		c.sendDone(n)
		close(c.done)
	})
}

// sendDone delivers the completion message, evicting the oldest tick if the
// buffer is full, then closes the channel.
func (c *Controller) sendDone(n Notification) {
	for {
		select {
		case c.notify <- n:
			close(c.notify)
			return
		default:
		}
		select {
		case <-c.notify:
		default:
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
