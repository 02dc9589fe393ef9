// Package scheduler starts periodic rescans of configured roots.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/scan"
)

// Scheduler starts a scan for each schedule once its interval has elapsed,
// unless the previous scan for that schedule is still live.
type Scheduler struct {
	schedules    []config.ScheduleConfig
	tickInterval time.Duration
	reuseHashes  bool
	scans        ScanStarter
	events       Publisher
	logger       *slog.Logger
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	mu        sync.Mutex
	intervals map[string]time.Duration
	next      map[string]time.Time
	lastScan  map[string]string

	now func() time.Time
}

// New creates a new Scheduler instance.
func New(cfg *config.Config, scans ScanStarter, hub Publisher, logger *slog.Logger) *Scheduler {
	if hub == nil {
		hub = events.NewHub(128)
	}
	schedules := append([]config.ScheduleConfig(nil), cfg.Schedules...)
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].Name < schedules[j].Name })

	return &Scheduler{
		schedules:    schedules,
		tickInterval: cfg.Service.TickInterval,
		reuseHashes:  cfg.Scanner.ReuseHashes,
		scans:        scans,
		events:       hub,
		logger:       logger.With("component", "scheduler"),
		stopCh:       make(chan struct{}),
		intervals:    make(map[string]time.Duration, len(schedules)),
		next:         make(map[string]time.Time, len(schedules)),
		lastScan:     make(map[string]string, len(schedules)),
		now:          time.Now,
	}
}

// Start parses every schedule and begins the tick loop. Each schedule is due
// on the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.prepare(); err != nil {
		return err
	}
	s.logger.Info("Starting scheduler", "schedules", len(s.schedules), "tick_interval", s.tickInterval)

	s.wg.Add(1)
	go s.tickLoop(ctx)
	return nil
}

// Stop stops the tick loop. Scans already started keep running.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping scheduler")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, sc := range s.schedules {
		interval, err := parseScheduleEvery(sc.Every)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", sc.Name, err)
		}
		s.intervals[sc.Name] = interval
		s.next[sc.Name] = now
	}
	return nil
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	interval := s.tickInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Debug("Scheduler context cancelled, stopping tick loop")
			return
		}
	}
}

// tick starts every due schedule whose previous scan is no longer live.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, sc := range s.schedules {
		due, ok := s.next[sc.Name]
		if !ok || now.Before(due) {
			continue
		}

		if id, ok := s.lastScan[sc.Name]; ok && s.scans.IsLive(id) {
			s.events.Publish(events.ScheduleSkipped, map[string]any{
				"schedule": sc.Name,
				"scan_id":  id,
				"reason":   "scan_live",
			})
			s.logger.Info("Skipped scheduled scan, previous scan still live", "schedule", sc.Name, "scan_id", id)
			continue
		}

		interval := s.intervals[sc.Name]
		id, err := s.scans.Start(ctx, s.scanConfig(sc))
		if err != nil {
			// Retry on the next interval rather than every tick.
			s.next[sc.Name] = now.Add(interval)
			s.logger.Error("Failed to start scheduled scan", "schedule", sc.Name, "error", err)
			continue
		}

		s.lastScan[sc.Name] = id
		s.next[sc.Name] = now.Add(calculateJitteredInterval(interval, sc.Jitter))
		s.events.Publish(events.ScheduleTriggered, map[string]any{
			"schedule": sc.Name,
			"scan_id":  id,
			"next_at":  s.next[sc.Name].UTC(),
		})
		s.logger.Info("Started scheduled scan", "schedule", sc.Name, "scan_id", id, "next_at", s.next[sc.Name])
	}
}

func (s *Scheduler) scanConfig(sc config.ScheduleConfig) scan.Config {
	return scan.Config{
		Roots:         append([]string(nil), sc.Roots...),
		IncludeExt:    sc.IncludeExt,
		ExcludeExt:    sc.ExcludeExt,
		ComputeHashes: sc.ComputeHashes,
		ReuseHashes:   s.reuseHashes,
		Schedule:      sc.Name,
	}
}

// calculateJitteredInterval adds a random jitter to the base interval.
func calculateJitteredInterval(baseInterval time.Duration, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return baseInterval
	}
	randomJitter := time.Duration(rand.Int63n(jitter.Nanoseconds()))
	return baseInterval + randomJitter
}

// parseScheduleEvery converts the 'every' string from config to a base duration.
func parseScheduleEvery(every string) (time.Duration, error) {
	return config.ParseInterval(every)
}
