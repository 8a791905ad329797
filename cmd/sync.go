package main

import (
	"context"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Sync runs a single reconciliation cycle in the foreground and prints the
// resulting counters.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	d, err := r.buildDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.scheduler.RunCycle(ctx); err != nil {
		return err
	}

	snap := d.reporter.Snapshot()
	if cmd.Bool("json") {
		return r.writeJSON(snap)
	}

	return r.writePlain(formatter.StatusToText(snap))
}
