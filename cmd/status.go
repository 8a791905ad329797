package main

import (
	"context"
	"fmt"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/formatter"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
	"github.com/urfave/cli/v3"
)

// Status fetches and prints the current snapshot from a running daemon.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	client := services.NewDashboardClient(r.dashboardURL(cmd), r.client)

	snap, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(snap)
	}

	return r.writePlain(formatter.StatusToText(*snap))
}

// Trigger asks a running daemon to start a cycle immediately.
func (r *Runner) Trigger(ctx context.Context, cmd *cli.Command) error {
	client := services.NewDashboardClient(r.dashboardURL(cmd), r.client)

	accepted, err := client.TriggerCycle(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}

	if !accepted {
		return r.writePlain([]byte("a cycle is already running\n"))
	}

	return r.writePlain([]byte("cycle triggered\n"))
}
