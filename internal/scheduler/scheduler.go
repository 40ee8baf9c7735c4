package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/sismosve/sismos-api/internal/observability"
	"github.com/sismosve/sismos-api/internal/sismos"
)

// DefaultInterval is the refresh interval used when none is configured.
const DefaultInterval = 5 * time.Minute

// ErrClosed is returned when a refresh is requested after Close.
var ErrClosed = errors.New("scheduler closed")

// Refresher runs one fetch-transform-persist cycle.
type Refresher interface {
	Refresh(ctx context.Context) (sismos.Stats, error)
}

// RefreshStats counts refresh cycles. Every cycle increments Total and
// exactly one of Successful or Failed.
type RefreshStats struct {
	Total       int64      `json:"total_updates"`
	Successful  int64      `json:"successful_updates"`
	Failed      int64      `json:"failed_updates"`
	LastError   *string    `json:"last_error"`
	LastSuccess *time.Time `json:"last_success"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running     bool         `json:"is_running"`
	Interval    int64        `json:"update_interval"` // seconds
	LastUpdate  *time.Time   `json:"last_update"`
	Stats       RefreshStats `json:"stats"`
	NextUpdate  *time.Time   `json:"next_update"`
	LastCycleID string       `json:"last_cycle_id,omitempty"`
}

type request struct {
	reply chan bool // nil for timer triggers
}

// Scheduler periodically refreshes the earthquake snapshot.
//
// Timer ticks and forced refreshes are both queued to a single worker, so
// cycles never overlap. A tick that arrives while another cycle is already
// queued is dropped.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	requests   chan request
	quit       chan struct{}
	workerDone chan struct{}
	workerOnce sync.Once
	closeOnce  sync.Once

	mu          sync.Mutex
	cron        *gocron.Scheduler
	running     bool
	stats       RefreshStats
	lastCycleID string
}

// New creates a new Scheduler. If interval is <= 0, DefaultInterval is used.
func New(refresher Refresher, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		refresher:  refresher,
		interval:   interval,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		requests:   make(chan request, 1),
		quit:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}
}

// Start schedules the periodic job, then runs one cycle synchronously so a
// snapshot is available without waiting a full interval. Starting a running
// scheduler is a no-op. A failed first cycle is recorded but does not fail Start.
// A closed scheduler cannot be restarted and returns ErrClosed.
func (s *Scheduler) Start(ctx context.Context) error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("scheduler already running")
		return nil
	}

	cron := gocron.NewScheduler(time.UTC)
	if _, err := cron.Every(s.interval).WaitForSchedule().Do(s.trigger); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule refresh job: %w", err)
	}
	cron.StartAsync()
	s.cron = cron
	s.running = true
	s.mu.Unlock()

	s.metrics.SchedulerRunning.Set(1)
	s.startWorker()

	if _, err := s.ForceRefresh(ctx); err != nil {
		s.logger.Warn("initial refresh not completed", "error", err)
	}

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels future ticks without waiting for an in-flight cycle.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cron := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	cron.Clear()
	cron.Stop()
	s.metrics.SchedulerRunning.Set(0)
	s.logger.Info("scheduler stopped")
}

// Close stops the scheduler and the worker, waiting for an in-flight cycle
// to finish or ctx to expire.
func (s *Scheduler) Close(ctx context.Context) error {
	s.Stop()
	s.closeOnce.Do(func() { close(s.quit) })
	// A worker that never started has nothing to drain.
	s.workerOnce.Do(func() { close(s.workerDone) })

	select {
	case <-s.workerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether periodic refreshes are scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ForceRefresh runs a cycle out of band and reports whether it succeeded.
// It waits behind any cycle already in progress. An error means the cycle
// could not be queued or ctx ended before it completed.
func (s *Scheduler) ForceRefresh(ctx context.Context) (bool, error) {
	select {
	case <-s.quit:
		return false, ErrClosed
	default:
	}
	s.startWorker()

	req := request{reply: make(chan bool, 1)}
	select {
	case s.requests <- req:
	case <-s.workerDone:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-req.reply:
		return ok, nil
	case <-s.workerDone:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Status returns the scheduler state. NextUpdate is only set while running
// and after at least one successful cycle.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:     s.running,
		Interval:    int64(s.interval / time.Second),
		LastUpdate:  s.stats.LastSuccess,
		Stats:       s.stats,
		LastCycleID: s.lastCycleID,
	}
	if s.running && s.stats.LastSuccess != nil {
		next := s.stats.LastSuccess.Add(s.interval)
		st.NextUpdate = &next
	}
	return st
}

// Stats returns a copy of the cycle counters.
func (s *Scheduler) Stats() RefreshStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// trigger is the gocron job body. It never blocks the cron goroutine.
func (s *Scheduler) trigger() {
	select {
	case s.requests <- request{}:
	default:
		s.metrics.SkippedTriggers.Inc()
		s.logger.Warn("refresh already pending, skipping tick")
	}
}

func (s *Scheduler) startWorker() {
	s.workerOnce.Do(func() {
		go s.work()
	})
}

func (s *Scheduler) work() {
	defer close(s.workerDone)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.requests:
			ok := s.runCycle()
			if req.reply != nil {
				req.reply <- ok
			}
		}
	}
}

// runCycle executes one refresh and records its outcome. Nothing escapes it,
// including panics from the refresher.
func (s *Scheduler) runCycle() bool {
	id := uuid.NewString()
	logger := s.logger.With("cycle_id", id)
	start := s.clock.Now()

	logger.Info("refresh cycle started")
	stats, err := s.safeRefresh()
	s.metrics.RefreshDuration.Observe(s.clock.Since(start).Seconds())

	s.mu.Lock()
	s.stats.Total++
	s.lastCycleID = id
	if err != nil {
		s.stats.Failed++
		msg := err.Error()
		s.stats.LastError = &msg
		s.mu.Unlock()

		s.metrics.RefreshCycles.WithLabelValues("failure").Inc()
		logger.Error("refresh cycle failed", "error", err)
		return false
	}
	s.stats.Successful++
	now := s.clock.Now()
	s.stats.LastSuccess = &now
	s.mu.Unlock()

	s.metrics.RefreshCycles.WithLabelValues("success").Inc()
	logger.Info("refresh cycle completed",
		"events", stats.Total,
		"magnitude_min", stats.MinMagnitude,
		"magnitude_max", stats.MaxMagnitude,
		"magnitude_avg", stats.AvgMagnitude,
	)
	return true
}

func (s *Scheduler) safeRefresh() (stats sismos.Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	// In-flight cycles are not cancelled by Stop; the fetch carries its own timeout.
	return s.refresher.Refresh(context.Background())
}
