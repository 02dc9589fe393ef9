package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/log"
)

// Publisher receives scan lifecycle events.
type Publisher interface {
	Publish(eventType string, data any)
}

// Manager starts scans and keeps the registry of live controllers.
type Manager struct {
	fs       billy.Filesystem
	catalog  CatalogWriter
	jobs     *JobStore
	hub      Publisher
	logger   *slog.Logger
	defaults config.ScannerConfig

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	live map[string]*Controller
}

// NewManager returns a Manager. Scans run under a context owned by the
// Manager, not by the caller of Start, so a finished HTTP request does not
// stop its scan.
func NewManager(fs billy.Filesystem, cat CatalogWriter, jobs *JobStore, hub Publisher, defaults config.ScannerConfig, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		fs:       fs,
		catalog:  cat,
		jobs:     jobs,
		hub:      hub,
		logger:   logger.With("component", "scan"),
		defaults: defaults,
		baseCtx:  ctx,
		cancel:   cancel,
		live:     make(map[string]*Controller),
	}
}

// Start validates cfg, persists a running job and launches its controller.
// It returns the job id as soon as the job is registered.
func (m *Manager) Start(ctx context.Context, cfg Config) (string, error) {
	cfg = m.withDefaults(cfg)
	if len(cfg.Roots) == 0 {
		return "", ErrNoRoots
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	cfg.ID = ""

	startedAt := time.Now().UTC()
	job := &Job{
		ID:        id,
		Status:    StatusRunning,
		Schedule:  cfg.Schedule,
		Config:    cfg,
		StartedAt: startedAt,
	}
	// The primary key rejects an id that is live or already recorded.
	if err := m.jobs.Create(ctx, job); err != nil {
		return "", err
	}

	c := newController(id, cfg, m.fs, m.catalog, m.jobs, log.WithScan(m.logger, id), startedAt)
	c.onDone = func(n Notification) {
		m.mu.Lock()
		delete(m.live, id)
		m.mu.Unlock()
		m.publish(events.ScanDone, n)
	}

	m.mu.Lock()
	m.live[id] = c
	m.mu.Unlock()

	m.publish(events.ScanStarted, map[string]any{
		"scan_id":    id,
		"roots":      cfg.Roots,
		"schedule":   cfg.Schedule,
		"started_at": startedAt,
	})

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		c.run(m.baseCtx)
	}()
	go func() {
		defer m.wg.Done()
		m.forwardTicks(c)
	}()

	return id, nil
}

// Wait blocks until scan id is no longer live or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) error {
	c := m.controller(id)
	if c == nil {
		return nil
	}
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forwardTicks bridges a controller's notifications onto the hub. Done is
// published by the completion observer.
func (m *Manager) forwardTicks(c *Controller) {
	for n := range c.Notifications() {
		if n.Kind == NotifyTick {
			m.publish(events.ScanProgress, n)
		}
	}
}

// Status returns the job, preferring live in-memory counters.
func (m *Manager) Status(ctx context.Context, id string) (*Job, error) {
	if c := m.controller(id); c != nil {
		return c.Snapshot(), nil
	}
	return m.jobs.Get(ctx, id)
}

// Stop asks a live scan to stop. accepted is false for unknown or finished
// jobs.
func (m *Manager) Stop(id string) bool {
	c := m.controller(id)
	if c == nil {
		return false
	}
	if !c.Stop() {
		return false
	}
	m.logger.Info("scan stop requested", "scan_id", id)
	return true
}

// IsLive reports whether id is in the live registry.
func (m *Manager) IsLive(id string) bool {
	return m.controller(id) != nil
}

// LiveCount returns the number of running scans.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// List returns recent jobs, newest first, with the live flag set.
func (m *Manager) List(ctx context.Context, limit int) ([]*Job, error) {
	jobs, err := m.jobs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i, j := range jobs {
		if c := m.controller(j.ID); c != nil {
			jobs[i] = c.Snapshot()
		}
	}
	return jobs, nil
}

// LiveIDs returns the ids of running scans in sorted order.
func (m *Manager) LiveIDs() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Shutdown stops every live scan and waits for them to reach a terminal
// state. Scans are only cancelled once ctx expires; batch writes already
// under way still complete.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, id := range m.LiveIDs() {
		m.Stop(id)
	}

	waitCh := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		return fmt.Errorf("waiting for scans to stop: %w", ctx.Err())
	}
}

func (m *Manager) controller(id string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[id]
}

func (m *Manager) withDefaults(cfg Config) Config {
	d := m.defaults
	if len(cfg.Roots) == 0 {
		cfg.Roots = append([]string(nil), d.Roots...)
	}
	if cfg.IncludeExt == nil {
		cfg.IncludeExt = append([]string(nil), d.IncludeExt...)
	}
	if cfg.ExcludeExt == nil {
		cfg.ExcludeExt = append([]string(nil), d.ExcludeExt...)
	}
	cfg.IncludeExt = config.NormalizeExtensions(cfg.IncludeExt)
	cfg.ExcludeExt = config.NormalizeExtensions(cfg.ExcludeExt)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.HashMaxSize <= 0 {
		cfg.HashMaxSize = d.HashMaxSize
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = d.ProgressEvery
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 5000
	}
	return cfg
}

func (m *Manager) publish(eventType string, data any) {
	if m.hub != nil {
		m.hub.Publish(eventType, data)
	}
}
