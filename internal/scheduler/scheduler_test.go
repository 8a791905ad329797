package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/ledger"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/pool"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
	mock "github.com/seniordevguy/qobuz-favorites-downloader/internal/testing"
)

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return ledger.New(db)
}

func testConfig() Config {
	pools := make(map[models.Kind]pool.Config)
	for _, kind := range models.Kinds() {
		pools[kind] = pool.Config{MaxWorkers: 2, BatchSize: 10, RetryCap: 1}
	}
	return Config{
		CheckInterval: time.Hour,
		Quality:       27,
		Pools:         pools,
	}
}

func TestRunCycleDownloadsPendingItems(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	// One track is already handled and must not be fetched again.
	if err := led.Record(ctx, models.LedgerEntry{
		ItemID: "t1", Kind: models.KindTrack, Outcome: models.OutcomeSucceeded, Attempts: 1,
	}); err != nil {
		t.Fatalf("failed to seed ledger: %v", err)
	}

	svc := &mock.MockService{
		ListFavoritesFunc: func(_ context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
			switch kind {
			case models.KindTrack:
				return mock.Items(kind, "t1", "t2"), nil
			case models.KindAlbum:
				return mock.Items(kind, "a1"), nil
			default:
				return nil, nil
			}
		},
	}

	reporter := status.New()
	sched := New(svc, led, reporter, testConfig(), nil)
	sched.RunCycle(ctx)

	for _, id := range []string{"t1", "t2"} {
		handled, err := led.IsHandled(ctx, id)
		if err != nil {
			t.Fatalf("IsHandled failed: %v", err)
		}
		if !handled {
			t.Errorf("expected %s handled after the cycle", id)
		}
	}

	fetched := svc.Fetched()
	for _, id := range fetched {
		if id == "t1" {
			t.Error("already-handled item was fetched again")
		}
	}
	if len(fetched) != 2 {
		t.Errorf("expected 2 fetches (t2, a1), got %v", fetched)
	}

	snap := reporter.Snapshot()
	if snap.IsRunning {
		t.Error("expected not running after the cycle")
	}
	if snap.Stats.TracksDownloaded != 1 || snap.Stats.AlbumsDownloaded != 1 {
		t.Errorf("unexpected totals: %+v", snap.Stats)
	}
	if snap.FavoritesCount["tracks"] != 2 {
		t.Errorf("expected favorites count 2 for tracks, got %d", snap.FavoritesCount["tracks"])
	}
	if snap.Cycle == nil {
		t.Fatal("expected cycle stats published")
	}
	if ks := snap.Cycle.PerKind[models.KindTrack]; ks.Pending != 1 || ks.Succeeded != 1 {
		t.Errorf("unexpected track cycle stats: %+v", ks)
	}
}

func TestRunCycleSecondRunIsEmpty(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	svc := &mock.MockService{
		ListFavoritesFunc: func(_ context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
			if kind == models.KindTrack {
				return mock.Items(kind, "t1", "t2"), nil
			}
			return nil, nil
		},
	}

	sched := New(svc, led, status.New(), testConfig(), nil)
	sched.RunCycle(ctx)
	sched.RunCycle(ctx)

	if got := len(svc.Fetched()); got != 2 {
		t.Errorf("expected no refetches on the second cycle, got %d total fetches", got)
	}
}

func TestRunCycleAuthFailure(t *testing.T) {
	svc := &mock.MockService{
		AuthenticateFunc: func(context.Context) error {
			return shared.ErrAuthFailed
		},
	}

	reporter := status.New()
	sched := New(svc, newTestLedger(t), reporter, testConfig(), nil)
	sched.RunCycle(context.Background())

	snap := reporter.Snapshot()
	if snap.CurrentStatus != string(status.PhaseError) {
		t.Errorf("expected error phase, got %q", snap.CurrentStatus)
	}
	if snap.Stats.LastError == "" {
		t.Error("expected last error published")
	}
	if len(svc.Fetched()) != 0 {
		t.Error("expected no fetches after auth failure")
	}
}

func TestRunCycleListingFailureIsolatedPerKind(t *testing.T) {
	led := newTestLedger(t)
	listErr := errors.New("service unavailable")

	svc := &mock.MockService{
		ListFavoritesFunc: func(_ context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
			if kind == models.KindTrack {
				return nil, listErr
			}
			if kind == models.KindAlbum {
				return mock.Items(kind, "a1"), nil
			}
			return nil, nil
		},
	}

	reporter := status.New()
	sched := New(svc, led, reporter, testConfig(), nil)
	sched.RunCycle(context.Background())

	// Albums proceed despite the track listing failure.
	handled, err := led.IsHandled(context.Background(), "a1")
	if err != nil {
		t.Fatalf("IsHandled failed: %v", err)
	}
	if !handled {
		t.Error("expected album downloaded despite track listing failure")
	}

	snap := reporter.Snapshot()
	if snap.CurrentStatus != string(status.PhaseError) {
		t.Errorf("expected error phase, got %q", snap.CurrentStatus)
	}
	if snap.Cycle == nil || len(snap.Cycle.Errors) != 1 {
		t.Fatalf("expected one cycle error, got %+v", snap.Cycle)
	}
}

func TestRunCycleLedgerFailureAbortsCycle(t *testing.T) {
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// The database stays reachable, so the health ping passes, but the
	// handled set can no longer be read.
	if _, err := db.Exec("DROP TABLE ledger"); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	svc := &mock.MockService{
		ListFavoritesFunc: func(_ context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
			switch kind {
			case models.KindTrack:
				return mock.Items(kind, "t1"), nil
			case models.KindAlbum:
				return mock.Items(kind, "a1"), nil
			default:
				return nil, nil
			}
		},
	}

	reporter := status.New()
	sched := New(svc, ledger.New(db), reporter, testConfig(), nil)
	sched.RunCycle(context.Background())

	// Without a trustworthy handled set nothing may be downloaded, for any
	// kind.
	if got := svc.Fetched(); len(got) != 0 {
		t.Errorf("expected no downloads after ledger failure, got %v", got)
	}

	snap := reporter.Snapshot()
	if snap.CurrentStatus != string(status.PhaseError) {
		t.Errorf("expected error phase, got %q", snap.CurrentStatus)
	}
	if snap.Cycle == nil || len(snap.Cycle.Errors) != 1 {
		t.Fatalf("expected one cycle error, got %+v", snap.Cycle)
	}
	if !strings.Contains(snap.Cycle.Errors[0], shared.ErrLedgerUnavailable.Error()) {
		t.Errorf("expected a ledger error, got %q", snap.Cycle.Errors[0])
	}
}

func TestRunCycleReportsPerKindDownloadPhase(t *testing.T) {
	reporter := status.New()

	var calls atomic.Int32
	var sawPhase atomic.Bool

	svc := &mock.MockService{
		ListFavoritesFunc: func(_ context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
			if kind == models.KindTrack {
				return mock.Items(kind, "t1", "t2"), nil
			}
			return nil, nil
		},
		FetchArtifactFunc: func(context.Context, models.FavoriteItem, int) (*services.ArtifactResult, error) {
			// The first finished item flips the phase, observed from the
			// second item's download slot.
			if calls.Add(1) == 2 {
				deadline := time.Now().Add(2 * time.Second)
				want := string(status.DownloadingPhase(models.KindTrack))
				for time.Now().Before(deadline) {
					if reporter.Snapshot().CurrentStatus == want {
						sawPhase.Store(true)
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
			}
			return &services.ArtifactResult{Files: 1}, nil
		},
	}

	cfg := testConfig()
	cfg.Pools[models.KindTrack] = pool.Config{MaxWorkers: 1, BatchSize: 10, RetryCap: 1}

	sched := New(svc, newTestLedger(t), reporter, cfg, nil)
	sched.RunCycle(context.Background())

	if !sawPhase.Load() {
		t.Error(`expected phase "downloading tracks" while the track pool drained`)
	}
}

func TestTriggerNowWhileRunning(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})

	svc := &mock.MockService{
		ListFavoritesFunc: func(_ context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
			if kind == models.KindTrack {
				return mock.Items(kind, "t1"), nil
			}
			return nil, nil
		},
		FetchArtifactFunc: func(context.Context, models.FavoriteItem, int) (*services.ArtifactResult, error) {
			close(started)
			<-block
			return &services.ArtifactResult{Files: 1}, nil
		},
	}

	sched := New(svc, newTestLedger(t), status.New(), testConfig(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.RunCycle(context.Background())
	}()

	<-started
	if !sched.IsRunning() {
		t.Error("expected IsRunning true mid-cycle")
	}
	if sched.TriggerNow() {
		t.Error("expected trigger to be dropped while running")
	}
	if err := sched.RunCycle(context.Background()); !errors.Is(err, shared.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning from a concurrent cycle, got %v", err)
	}

	close(block)
	<-done

	if sched.IsRunning() {
		t.Error("expected IsRunning false after the cycle")
	}
}

func TestTriggerNowSingleSlot(t *testing.T) {
	sched := New(&mock.MockService{}, newTestLedger(t), status.New(), testConfig(), nil)

	if !sched.TriggerNow() {
		t.Fatal("expected first trigger accepted")
	}
	if sched.TriggerNow() {
		t.Error("expected second trigger dropped while one is pending")
	}
}

func TestRunTriggerRestartsInterval(t *testing.T) {
	var cycles atomic.Int32
	svc := &mock.MockService{
		AuthenticateFunc: func(context.Context) error {
			cycles.Add(1)
			return nil
		},
	}

	cfg := testConfig()
	cfg.CheckInterval = 200 * time.Millisecond

	sched := New(svc, newTestLedger(t), status.New(), cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	if !sched.TriggerNow() {
		t.Fatal("expected trigger accepted")
	}

	// The trigger restarts the interval, so the tick that was due at the
	// original deadline does not fire a second cycle.
	time.Sleep(180 * time.Millisecond)
	if got := cycles.Load(); got != 1 {
		t.Errorf("expected exactly 1 cycle after the trigger, got %d", got)
	}

	cancel()
	<-done
}

func TestRunHonorsContext(t *testing.T) {
	sched := New(&mock.MockService{}, newTestLedger(t), status.New(), testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}
