package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
)

// Ledger records terminal download outcomes keyed by item identifier.
//
// Safe for concurrent use: workers within a pool call Record concurrently for
// distinct ids, and sqlite serializes the underlying writes. Each Record is a
// single transactional upsert, so a crash mid-cycle leaves prior entries intact.
type Ledger struct {
	db *sql.DB
}

// New creates a Ledger backed by the given database connection.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// IsHandled reports whether the item already has a terminal outcome recorded.
func (l *Ledger) IsHandled(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM ledger WHERE item_id = ?)", itemID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: failed to query ledger: %v", shared.ErrLedgerUnavailable, err)
	}
	return exists, nil
}

// Record upserts a terminal outcome for an item. Re-recording the same item
// updates the outcome, attempt count, and updated_at while preserving the
// original recorded_at, keeping the operation idempotent.
func (l *Ledger) Record(ctx context.Context, entry models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid ledger entry: %w", err)
	}

	now := time.Now().UTC()
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = now
	}

	query := `
		INSERT INTO ledger (item_id, kind, outcome, attempts, recorded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			outcome = excluded.outcome,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at
	`

	_, err := l.db.ExecContext(ctx, query,
		entry.ItemID,
		string(entry.Kind),
		string(entry.Outcome),
		entry.Attempts,
		entry.RecordedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to record entry: %v", shared.ErrLedgerUnavailable, err)
	}

	return nil
}

// Get retrieves the ledger entry for an item identifier.
func (l *Ledger) Get(ctx context.Context, itemID string) (*models.LedgerEntry, error) {
	query := `
		SELECT item_id, kind, outcome, attempts, recorded_at, updated_at
		FROM ledger
		WHERE item_id = ?
	`

	var (
		entry      models.LedgerEntry
		kind       string
		outcome    string
		recordedAt time.Time
		updatedAt  time.Time
	)

	err := l.db.QueryRowContext(ctx, query, itemID).Scan(
		&entry.ItemID, &kind, &outcome, &entry.Attempts, &recordedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan entry: %v", shared.ErrLedgerUnavailable, err)
	}

	entry.Kind = models.Kind(kind)
	entry.Outcome = models.Outcome(outcome)
	entry.RecordedAt = recordedAt
	entry.UpdatedAt = updatedAt

	return &entry, nil
}

// CountHandled returns the number of ledger entries for a kind, any outcome.
func (l *Ledger) CountHandled(ctx context.Context, kind models.Kind) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger WHERE kind = ?", string(kind),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count entries: %v", shared.ErrLedgerUnavailable, err)
	}
	return count, nil
}

// CountByOutcome returns the number of ledger entries for a kind with the given outcome.
func (l *Ledger) CountByOutcome(ctx context.Context, kind models.Kind, outcome models.Outcome) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger WHERE kind = ? AND outcome = ?",
		string(kind), string(outcome),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count entries: %v", shared.ErrLedgerUnavailable, err)
	}
	return count, nil
}

// Ping verifies the ledger store is reachable, for health checks.
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLedgerUnavailable, err)
	}
	return nil
}
