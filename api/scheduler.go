/*
scheduler.go - Periodic directory sync

PURPOSE:
  Mirrors the directory into the member store on a fixed interval so that
  manager and director links stay current without an admin running the
  sync by hand.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start, then on every tick
  - Runs never overlap; RunNow waits for a run in progress
  - Every run is recorded in the job metrics and the audit log

CONFIGURATION:
  - Interval: How often to sync (SYNC_INTERVAL, 0 disables the scheduler)

USAGE:
  scheduler := NewSyncScheduler(syncer, log)
  scheduler.Interval = cfg.SyncInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SyncDirectory endpoint (manual sync)
  - directory/sync.go: Syncer
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/directory"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/metrics"
)

// HierarchySyncer is satisfied by *directory.Syncer.
type HierarchySyncer interface {
	SyncHierarchy(ctx context.Context, actor generic.EmployeeID) (*directory.Report, error)
}

// syncJob is the job label used in metrics.
const syncJob = "directory_sync"

// SyncScheduler runs the directory sync periodically.
type SyncScheduler struct {
	Syncer   HierarchySyncer
	Interval time.Duration
	Timeout  time.Duration

	log     *zap.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running sync.Mutex
	lastRun time.Time
	last    *directory.Report
}

// NewSyncScheduler creates a disabled scheduler. Set Interval before Start.
func NewSyncScheduler(syncer HierarchySyncer, log *zap.Logger) *SyncScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncScheduler{
		Syncer:  syncer,
		Timeout: 10 * time.Minute,
		log:     log.Named("scheduler"),
	}
}

// Enabled reports whether Start would launch the loop.
func (s *SyncScheduler) Enabled() bool { return s.Syncer != nil && s.Interval > 0 }

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled() {
		s.log.Info("directory sync scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.Info("directory sync scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a run in progress.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	// RunNow takes mu when it finishes, so wait outside it.
	s.wg.Wait()
	s.log.Info("directory sync scheduler stopped")
}

func (s *SyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.runOnce()
	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-stop:
			return
		}
	}
}

func (s *SyncScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if _, err := s.RunNow(ctx, "scheduler"); err != nil {
		s.log.Error("scheduled directory sync failed", zap.Error(err))
	}
}

// RunNow syncs the whole hierarchy on behalf of actor.
func (s *SyncScheduler) RunNow(ctx context.Context, actor generic.EmployeeID) (*directory.Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	start := time.Now()
	report, err := s.Syncer.SyncHierarchy(ctx, actor)
	metrics.ObserveJob(syncJob, start, err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastRun = start
	s.last = report
	s.mu.Unlock()

	s.log.Info("directory sync completed",
		zap.String("actor", string(actor)),
		zap.Int("created", report.Count(directory.ActionCreated)),
		zap.Int("updated", report.Count(directory.ActionUpdated)),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// LastRun returns the start time and report of the last successful run.
func (s *SyncScheduler) LastRun() (time.Time, *directory.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.last
}

// NextRunTime returns when the next scheduled run happens, or the zero time
// when the scheduler is not running.
func (s *SyncScheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil || s.lastRun.IsZero() {
		return time.Time{}
	}
	return s.lastRun.Add(s.Interval)
}
