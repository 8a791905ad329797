package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/formatter"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/ledger"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/urfave/cli/v3"
)

// openLedger opens the configured ledger database read side for inspection
// commands. The caller owns the returned close function.
func (r *Runner) openLedger(cmd *cli.Command) (*ledger.Ledger, func() error, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	return ledger.New(db), db.Close, nil
}

// LedgerStats prints per kind handled and failed counts from the ledger.
func (r *Runner) LedgerStats(ctx context.Context, cmd *cli.Command) error {
	led, closer, err := r.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closer()

	summary := formatter.LedgerSummary{
		Handled: make(map[models.Kind]int),
		Failed:  make(map[models.Kind]int),
	}

	for _, kind := range models.Kinds() {
		handled, err := led.CountHandled(ctx, kind)
		if err != nil {
			return err
		}

		failed, err := led.CountByOutcome(ctx, kind, models.OutcomeFailedPermanent)
		if err != nil {
			return err
		}

		summary.Handled[kind] = handled
		summary.Failed[kind] = failed
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary)
	}

	return r.writePlain(formatter.LedgerToText(summary))
}

// LedgerShow prints a single ledger entry by item ID.
func (r *Runner) LedgerShow(ctx context.Context, cmd *cli.Command) error {
	itemID := cmd.Args().First()
	if itemID == "" {
		return fmt.Errorf("%w: item ID", shared.ErrMissingArgument)
	}

	led, closer, err := r.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closer()

	entry, err := led.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, shared.ErrItemNotFound) {
			return fmt.Errorf("no ledger entry for item %s", itemID)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry)
	}

	return r.writePlain(formatter.EntryToText(entry))
}
