package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch opens the live terminal view over a running daemon.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	client := services.NewDashboardClient(r.dashboardURL(cmd), r.client)

	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("daemon is not reachable at %s: %w", r.dashboardURL(cmd), err)
	}

	program := tea.NewProgram(ui.NewModel(ctx, client), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch view failed: %w", err)
	}

	return nil
}
