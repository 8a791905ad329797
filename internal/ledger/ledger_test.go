package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return New(db)
}

func TestRecordAndIsHandled(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	handled, err := led.IsHandled(ctx, "track-1")
	if err != nil {
		t.Fatalf("IsHandled failed: %v", err)
	}
	if handled {
		t.Error("expected unrecorded item to be unhandled")
	}

	entry := models.LedgerEntry{
		ItemID:   "track-1",
		Kind:     models.KindTrack,
		Outcome:  models.OutcomeSucceeded,
		Attempts: 1,
	}
	if err := led.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	handled, err = led.IsHandled(ctx, "track-1")
	if err != nil {
		t.Fatalf("IsHandled failed: %v", err)
	}
	if !handled {
		t.Error("expected recorded item to be handled")
	}
}

func TestRecordUpsertPreservesRecordedAt(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	first := models.LedgerEntry{
		ItemID:   "album-1",
		Kind:     models.KindAlbum,
		Outcome:  models.OutcomeFailedPermanent,
		Attempts: 3,
	}
	if err := led.Record(ctx, first); err != nil {
		t.Fatalf("first Record failed: %v", err)
	}

	original, err := led.Get(ctx, "album-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	second := first
	second.Outcome = models.OutcomeSucceeded
	second.Attempts = 4
	if err := led.Record(ctx, second); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	updated, err := led.Get(ctx, "album-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if updated.Outcome != models.OutcomeSucceeded {
		t.Errorf("expected outcome %q, got %q", models.OutcomeSucceeded, updated.Outcome)
	}
	if updated.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", updated.Attempts)
	}
	if !updated.RecordedAt.Equal(original.RecordedAt) {
		t.Errorf("expected recorded_at to be preserved: %v != %v", updated.RecordedAt, original.RecordedAt)
	}

	count, err := led.CountHandled(ctx, models.KindAlbum)
	if err != nil {
		t.Fatalf("CountHandled failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single row after upsert, got %d", count)
	}
}

func TestRecordRejectsInvalidEntry(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry models.LedgerEntry
	}{
		{"missing id", models.LedgerEntry{Kind: models.KindTrack, Outcome: models.OutcomeSucceeded, Attempts: 1}},
		{"bad kind", models.LedgerEntry{ItemID: "x", Kind: "playlist", Outcome: models.OutcomeSucceeded, Attempts: 1}},
		{"bad outcome", models.LedgerEntry{ItemID: "x", Kind: models.KindTrack, Outcome: "pending", Attempts: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := led.Record(ctx, tc.entry); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	led := newTestLedger(t)

	_, err := led.Get(context.Background(), "missing")
	if !errors.Is(err, shared.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	entries := []models.LedgerEntry{
		{ItemID: "t1", Kind: models.KindTrack, Outcome: models.OutcomeSucceeded, Attempts: 1},
		{ItemID: "t2", Kind: models.KindTrack, Outcome: models.OutcomeSucceeded, Attempts: 2},
		{ItemID: "t3", Kind: models.KindTrack, Outcome: models.OutcomeFailedPermanent, Attempts: 3},
		{ItemID: "a1", Kind: models.KindAlbum, Outcome: models.OutcomeSucceeded, Attempts: 1},
	}
	for _, entry := range entries {
		if err := led.Record(ctx, entry); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		kind    models.Kind
		handled int
		failed  int
	}{
		{models.KindTrack, 3, 1},
		{models.KindAlbum, 1, 0},
		{models.KindArtist, 0, 0},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			handled, err := led.CountHandled(ctx, tc.kind)
			if err != nil {
				t.Fatalf("CountHandled failed: %v", err)
			}
			if handled != tc.handled {
				t.Errorf("expected %d handled, got %d", tc.handled, handled)
			}

			failed, err := led.CountByOutcome(ctx, tc.kind, models.OutcomeFailedPermanent)
			if err != nil {
				t.Fatalf("CountByOutcome failed: %v", err)
			}
			if failed != tc.failed {
				t.Errorf("expected %d failed, got %d", tc.failed, failed)
			}
		})
	}
}

func TestConcurrentRecordDistinctIDs(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- led.Record(ctx, models.LedgerEntry{
				ItemID:   fmt.Sprintf("track-%d", i),
				Kind:     models.KindTrack,
				Outcome:  models.OutcomeSucceeded,
				Attempts: 1,
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Record failed: %v", err)
		}
	}

	count, err := led.CountHandled(ctx, models.KindTrack)
	if err != nil {
		t.Fatalf("CountHandled failed: %v", err)
	}
	if count != workers {
		t.Errorf("expected %d entries, got %d", workers, count)
	}
}

func TestPingClosedDatabase(t *testing.T) {
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	led := New(db)
	db.Close()

	if err := led.Ping(context.Background()); !errors.Is(err, shared.ErrLedgerUnavailable) {
		t.Errorf("expected ErrLedgerUnavailable, got %v", err)
	}
}
