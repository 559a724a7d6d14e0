package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"contact-guard-go/internal/clock"
	"contact-guard-go/internal/config"
	"contact-guard-go/internal/metrics"
	"contact-guard-go/internal/ratelimit"
	"contact-guard-go/internal/session"
)

// Session markers older than this many cooldown windows are dropped by
// the janitor; they can no longer influence a cooldown check.
const sessionRetentionFactor = 10

// Janitor periodically prunes the IP rate-limit ledger and stale
// session markers. Pruning also happens inline on every ledger access;
// the janitor keeps the stores small between submissions.
type Janitor struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	cfg       *config.JanitorConfig
	ledger    ratelimit.Store
	sessions  session.Store
	cooldown  time.Duration
	clock     clock.Clock
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
	isRunning bool
	lastRun   time.Time
	mu        sync.RWMutex
}

// NewJanitor creates a janitor over the given stores.
func NewJanitor(cfg *config.JanitorConfig, ledger ratelimit.Store, sessions session.Store, cooldown time.Duration, clk clock.Clock, m *metrics.Metrics) *Janitor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Janitor{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		ledger:   ledger,
		sessions: sessions,
		cooldown: cooldown,
		clock:    clk,
		metrics:  m,
	}
}

// Start starts the janitor
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		return fmt.Errorf("janitor is already running")
	}

	schedule := fmt.Sprintf("0 */%d * * * *", j.cfg.IntervalMinutes)

	entryID, err := j.cron.AddFunc(schedule, j.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	j.entryID = entryID
	j.cron.Start()
	j.isRunning = true

	logrus.Infof("Janitor started with interval: %d minutes", j.cfg.IntervalMinutes)
	return nil
}

// Stop stops the janitor
func (j *Janitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.isRunning {
		return nil
	}

	ctx := j.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Janitor stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Janitor stop timeout, forcing shutdown")
	}

	j.isRunning = false
	return nil
}

// Wait waits for any in-flight sweep to complete
func (j *Janitor) Wait() {
	j.wg.Wait()
}

// IsRunning returns whether the janitor is running
func (j *Janitor) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isRunning
}

// RunOnce runs one sweep immediately (for manual triggering)
func (j *Janitor) RunOnce() {
	j.sweep()
}

// GetNextRun returns the time of the next scheduled sweep
func (j *Janitor) GetNextRun() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if !j.isRunning {
		return time.Time{}
	}
	return j.cron.Entry(j.entryID).Next
}

// GetLastRun returns the time of the last completed sweep
func (j *Janitor) GetLastRun() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastRun
}

// sweep prunes both stores once.
func (j *Janitor) sweep() {
	j.wg.Add(1)
	defer j.wg.Done()

	j.mu.RLock()
	running := j.isRunning
	j.mu.RUnlock()
	if !running {
		logrus.Info("Janitor not running, skipping sweep")
		return
	}

	start := time.Now()
	now := j.clock.Now()

	remaining, err := j.ledger.Prune(now)
	if err != nil {
		logrus.Errorf("Failed to prune rate-limit ledger: %v", err)
	} else {
		j.metrics.LedgerEntries.Set(float64(remaining))
	}

	kept := j.sessions.Prune(now, j.cooldown*sessionRetentionFactor)

	j.mu.Lock()
	j.lastRun = now
	j.mu.Unlock()

	logrus.Infof("Janitor sweep completed in %v (ledger entries: %d, sessions: %d)",
		time.Since(start), remaining, kept)
}
