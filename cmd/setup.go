package main

import (
	"context"
	"fmt"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the configuration file if missing and prepares the ledger
// database schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warnf("%v", err)
	} else {
		r.logger.Infof("created configuration file at %s", path)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open ledger database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	r.logger.Infof("ledger database ready at %s", config.Database.Path)
	r.logger.Info("edit the configuration file with your Qobuz credentials, then start the daemon with `qbzdl run`")
	return nil
}
