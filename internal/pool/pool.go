// package pool implements the bounded-concurrency download worker pool.
//
// A pool consumes one kind's pending list in consecutive batches: within a
// batch up to MaxWorkers downloads run concurrently, the pool waits for the
// whole batch, then pauses before the next one. Batches exist purely to bound
// CPU, disk, and network load on small hosts; correctness never depends on
// the delay value.
//
// Retry orchestration lives here: transient failures are retried in the same
// batch slot up to the retry cap, then recorded as failed-permanent. Per-item
// errors never escape the pool; ledger failures do, because persistence loss
// aborts the cycle.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
)

// retryBackoff is the in-slot pause between attempts at the same item.
// A variable so tests can shorten it.
var retryBackoff = 2 * time.Second

// outcomeSkipped marks an item whose download was cut short by shutdown.
// Skipped items are never recorded, so the next cycle retries them.
const outcomeSkipped models.Outcome = ""

// Config bounds a pool's resource usage.
type Config struct {
	MaxWorkers      int           // Concurrent downloads in flight per batch
	BatchSize       int           // Items per batch
	RetryCap        int           // Total attempts per item, including the first
	InterBatchDelay time.Duration // Pause between batches
}

// normalize clamps nonsensical values so a zeroed config still makes progress.
func (c Config) normalize() Config {
	if c.MaxWorkers < 1 {
		c.MaxWorkers = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.RetryCap < 1 {
		c.RetryCap = 1
	}
	return c
}

// Fetcher is the slice of the catalog client the pool needs.
type Fetcher interface {
	FetchArtifact(ctx context.Context, item models.FavoriteItem, quality int) (*services.ArtifactResult, error)
}

// Recorder is the slice of the ledger the pool needs.
type Recorder interface {
	Record(ctx context.Context, entry models.LedgerEntry) error
}

// Progress reports one item's terminal outcome to interested observers.
type Progress struct {
	Item     models.FavoriteItem
	Outcome  models.Outcome
	Attempts int
	Bytes    int64
}

// Result summarizes one pool run.
type Result struct {
	Succeeded int
	Failed    int
}

// Pool downloads one kind's pending items under bounded concurrency.
type Pool struct {
	fetcher  Fetcher
	recorder Recorder
	cfg      Config
	quality  int
	logger   *log.Logger
}

// New creates a Pool with the given collaborators and bounds.
func New(fetcher Fetcher, recorder Recorder, cfg Config, quality int, logger *log.Logger) *Pool {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pool{
		fetcher:  fetcher,
		recorder: recorder,
		cfg:      cfg.normalize(),
		quality:  quality,
		logger:   logger,
	}
}

// Run processes pending in batches and returns the outcome totals. Progress
// updates are sent without blocking; a nil or full channel drops them.
//
// Context cancellation lets in-flight downloads finish and be recorded, stops
// dispatching further items, and leaves everything undispatched or
// interrupted unrecorded for the next cycle. A ledger write failure stops the
// pool after the current batch and is returned to the caller.
func (p *Pool) Run(ctx context.Context, kind models.Kind, pending []models.FavoriteItem, progress chan<- Progress) (Result, error) {
	if len(pending) == 0 {
		return Result{}, nil
	}

	batches := partition(pending, p.cfg.BatchSize)
	logger := shared.WithLogger(p.logger, "kind", kind)
	logger.Info("starting pool", "pending", len(pending), "batches", len(batches), "workers", p.cfg.MaxWorkers)

	var (
		result    Result
		mu        sync.Mutex
		ledgerErr error
	)

	for i, batch := range batches {
		if ctx.Err() != nil {
			logger.Warn("pool stopped before batch", "batch", i+1, "reason", ctx.Err())
			break
		}

		logger.Info("processing batch", "batch", i+1, "of", len(batches), "items", len(batch))

		sem := make(chan struct{}, p.cfg.MaxWorkers)
		var wg sync.WaitGroup

		for _, item := range batch {
			// Once cancelled, stop handing out the rest of the batch; the
			// undispatched items stay unrecorded for the next cycle.
			if ctx.Err() != nil {
				break
			}

			wg.Add(1)
			sem <- struct{}{}

			go func(item models.FavoriteItem) {
				defer wg.Done()
				defer func() { <-sem }()

				outcome, attempts, bytes, err := p.processItem(ctx, item)
				if outcome == outcomeSkipped {
					return
				}

				mu.Lock()
				if err != nil && ledgerErr == nil {
					ledgerErr = err
				}
				switch outcome {
				case models.OutcomeSucceeded:
					result.Succeeded++
				case models.OutcomeFailedPermanent:
					result.Failed++
				}
				mu.Unlock()

				sendProgress(progress, Progress{Item: item, Outcome: outcome, Attempts: attempts, Bytes: bytes})
			}(item)
		}

		wg.Wait()

		if ledgerErr != nil {
			logger.Error("stopping pool on ledger failure", "error", ledgerErr)
			break
		}

		if i < len(batches)-1 && p.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(p.cfg.InterBatchDelay):
			case <-ctx.Done():
			}
		}
	}

	logger.Info("pool finished", "succeeded", result.Succeeded, "failed", result.Failed)
	return result, ledgerErr
}

// processItem attempts one download with in-slot retries and records the
// terminal outcome in the ledger. An item interrupted by cancellation comes
// back as outcomeSkipped with nothing recorded. The returned error is only
// ever a ledger persistence failure; download errors are absorbed into the
// outcome.
func (p *Pool) processItem(ctx context.Context, item models.FavoriteItem) (models.Outcome, int, int64, error) {
	logger := shared.WithLogger(p.logger, "kind", item.Kind, "item", item.String())

	var (
		attempts int
		lastErr  error
		bytes    int64
	)

	outcome := models.OutcomeFailedPermanent

	for attempts = 1; attempts <= p.cfg.RetryCap; attempts++ {
		if ctx.Err() != nil {
			logger.Warn("skipping download on shutdown")
			return outcomeSkipped, attempts, 0, nil
		}

		artifact, err := p.fetcher.FetchArtifact(ctx, item, p.quality)
		if err == nil {
			outcome = models.OutcomeSucceeded
			bytes = artifact.BytesWritten
			logger.Info("downloaded", "attempts", attempts, "files", artifact.Files, "size", humanize.Bytes(uint64(artifact.BytesWritten)))
			break
		}

		lastErr = err

		// Shutdown is not a verdict on the item. Failed-permanent is
		// reserved for terminal errors and retry-cap exhaustion; an item
		// interrupted by cancellation stays unrecorded.
		if ctx.Err() != nil {
			logger.Warn("download interrupted, leaving unrecorded", "attempt", attempts, "error", lastErr)
			return outcomeSkipped, attempts, 0, nil
		}

		if !services.IsTransient(err) {
			break
		}

		if attempts < p.cfg.RetryCap {
			logger.Warn("transient failure, retrying", "attempt", attempts, "error", err)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
			}
		}
	}

	if attempts > p.cfg.RetryCap {
		attempts = p.cfg.RetryCap
	}

	if outcome == models.OutcomeFailedPermanent {
		logger.Error("download failed", "attempts", attempts, "error", lastErr)
	}

	return outcome, attempts, bytes, p.recordOutcome(ctx, item, outcome, attempts)
}

// recordOutcome persists a terminal outcome; the returned error is a ledger
// persistence failure, which the caller escalates to the cycle.
func (p *Pool) recordOutcome(ctx context.Context, item models.FavoriteItem, outcome models.Outcome, attempts int) error {
	// The batch is the unit of consistency: an outcome reached during
	// shutdown is still persisted, so the write outlives cancellation.
	ctx = context.WithoutCancel(ctx)

	entry := models.LedgerEntry{
		ItemID:   item.ID,
		Kind:     item.Kind,
		Outcome:  outcome,
		Attempts: attempts,
	}
	if err := p.recorder.Record(ctx, entry); err != nil {
		p.logger.Error("failed to record outcome", "item", item.ID, "error", err)
		return err
	}
	return nil
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- Progress, update Progress) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// partition splits items into consecutive batches of at most size elements.
// The union of the batches is exactly the input, order preserved.
func partition(items []models.FavoriteItem, size int) [][]models.FavoriteItem {
	var batches [][]models.FavoriteItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
