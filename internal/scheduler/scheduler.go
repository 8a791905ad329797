// package scheduler drives reconciliation-and-download cycles.
//
// One long-lived loop runs a cycle on a fixed interval and on manual trigger,
// with the guarantee that at most one cycle executes at a time. The manual
// trigger is a single-slot signal: a trigger while running is reported and
// dropped, never queued behind the current cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/ledger"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/pool"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/reconciler"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
)

// Config holds the scheduler cadence and the per-kind pool bounds.
type Config struct {
	CheckInterval time.Duration
	RunOnStart    bool
	Quality       int
	Pools         map[models.Kind]pool.Config
}

// Scheduler owns the cycle loop and its collaborators.
type Scheduler struct {
	svc      services.Service
	ledger   *ledger.Ledger
	reporter *status.Reporter
	cfg      Config
	logger   *log.Logger

	trigger chan struct{}
	running atomic.Bool
}

// New creates a Scheduler. The reporter starts in the never-run state.
func New(svc services.Service, led *ledger.Ledger, reporter *status.Reporter, cfg Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		svc:      svc,
		ledger:   led,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate cycle. Returns false when a cycle is
// already running or a trigger is already pending; the request is dropped,
// not queued.
func (s *Scheduler) TriggerNow() bool {
	if s.running.Load() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// IsRunning reports whether a cycle is executing.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Run executes the scheduler loop until the context is cancelled. An
// in-flight cycle finishes its current batch before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.cfg.CheckInterval, "run_on_start", s.cfg.RunOnStart)

	if s.cfg.RunOnStart {
		s.RunCycle(ctx)
	} else {
		s.reporter.SetNextRun(time.Now().Add(s.cfg.CheckInterval))
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunCycle(ctx)
			// A cycle can outlast the interval; restarting the timer keeps
			// the actual next fire in step with the published next run.
			ticker.Reset(s.cfg.CheckInterval)
		case <-s.trigger:
			s.logger.Info("manual trigger received")
			s.RunCycle(ctx)
			ticker.Reset(s.cfg.CheckInterval)
		}
	}
}

// RunCycle executes one full reconciliation-and-download cycle. A call while
// another cycle is running returns ErrAlreadyRunning without starting one.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("a cycle is already running, skipping")
		return shared.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	stats := models.NewCycleStats(shared.GenerateID(), time.Now())
	logger := shared.WithLogger(s.logger, "cycle", stats.ID)
	logger.Info("cycle started")
	s.reporter.CycleStarted(stats)

	s.runCycle(ctx, stats, logger)

	stats.FinishedAt = time.Now()
	nextRun := time.Now().Add(s.cfg.CheckInterval)
	s.reporter.CycleFinished(stats, nextRun)

	logger.Info("cycle finished",
		"succeeded", stats.TotalSucceeded(),
		"failed", stats.TotalFailed(),
		"errors", len(stats.Errors),
		"duration", stats.FinishedAt.Sub(stats.StartedAt).Round(time.Second),
	)
	return nil
}

// runCycle is the cycle body: authenticate, reconcile each kind, and drain
// the per-kind pools. Cycle-level errors land in stats.Errors and never
// propagate further.
func (s *Scheduler) runCycle(ctx context.Context, stats *models.CycleStats, logger *log.Logger) {
	if err := s.ledger.Ping(ctx); err != nil {
		logger.Error("ledger unreachable, aborting cycle", "error", err)
		stats.Errors = append(stats.Errors, err.Error())
		return
	}

	if err := s.svc.Authenticate(ctx); err != nil {
		logger.Error("authentication failed", "error", err)
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", s.svc.Name(), err))
		return
	}

	s.reporter.SetPhase(status.PhaseFetching)
	logger.Info("fetching favorites", "service", s.svc.Name())

	rec := reconciler.New(s.svc, s.ledger, logger)
	pendingByKind := make(map[models.Kind][]models.FavoriteItem)

	var mu sync.Mutex // guards stats during the concurrent pool phase

	for _, kind := range models.Kinds() {
		pending, total, err := rec.Pending(ctx, kind)
		stats.FavoritesCount[kind] = total
		s.reporter.SetFavoritesCount(kind, total)

		if err != nil {
			// A ledger failure means the handled set can no longer be
			// trusted, so the whole cycle aborts before any download runs.
			if errors.Is(err, shared.ErrLedgerUnavailable) {
				logger.Error("ledger failure during reconcile, aborting cycle", "error", err)
				stats.Errors = append(stats.Errors, err.Error())
				return
			}

			// A listing failure empties this kind's pending list for the
			// cycle; the other kinds proceed.
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", kind.Plural(), err))
			continue
		}

		ks := stats.PerKind[kind]
		ks.Pending = len(pending)
		stats.PerKind[kind] = ks
		pendingByKind[kind] = pending
	}

	s.reporter.PublishCycle(stats)
	s.reporter.SetPhase(status.PhaseDownloading)

	progress := make(chan pool.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			s.reporter.SetPhase(status.DownloadingPhase(update.Item.Kind))
			s.reporter.SetCurrentItem(update.Item.String())
		}
	}()

	// Kinds touch disjoint pending sets and the ledger tolerates concurrent
	// distinct-id writes, so the three pools run in parallel.
	var wg sync.WaitGroup
	for kind, pending := range pendingByKind {
		if len(pending) == 0 {
			continue
		}

		wg.Add(1)
		go func(kind models.Kind, pending []models.FavoriteItem) {
			defer wg.Done()

			p := pool.New(s.svc, s.ledger, s.cfg.Pools[kind], s.cfg.Quality, logger)
			result, err := p.Run(ctx, kind, pending, progress)

			mu.Lock()
			defer mu.Unlock()
			ks := stats.PerKind[kind]
			ks.Succeeded = result.Succeeded
			ks.Failed = result.Failed
			stats.PerKind[kind] = ks
			s.reporter.AddOutcomes(kind, result.Succeeded, result.Failed)
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", kind.Plural(), err))
			}
		}(kind, pending)
	}

	wg.Wait()
	close(progress)
	<-done
}
