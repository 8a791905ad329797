package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/ledger"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/pool"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/scheduler"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/server"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
	"github.com/urfave/cli/v3"
)

// daemon bundles the wired pipeline pieces shared by the run and sync commands.
type daemon struct {
	db        *sql.DB
	ledger    *ledger.Ledger
	reporter  *status.Reporter
	scheduler *scheduler.Scheduler
	config    *shared.Config
}

func (d *daemon) Close() error {
	return d.db.Close()
}

// buildDaemon validates configuration and wires the service client, ledger,
// reporter, and scheduler together.
func (r *Runner) buildDaemon(cmd *cli.Command) (*daemon, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := shared.NewRotatingLogger(config.Logging)
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))
	r.logger = logger

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	svc := services.NewQobuzService(services.QobuzConfig{
		Email:     config.Credentials.Email,
		Password:  config.Credentials.Password,
		AppID:     config.Credentials.AppID,
		AppSecret: config.Credentials.AppSecret,
		Directory: config.Downloads.Directory,
	}, r.client, logger)

	led := ledger.New(db)
	reporter := status.New()

	pools := make(map[models.Kind]pool.Config, len(models.Kinds()))
	workers := map[models.Kind]int{
		models.KindTrack:  config.Downloads.MaxWorkersTracks,
		models.KindAlbum:  config.Downloads.MaxWorkersAlbums,
		models.KindArtist: config.Downloads.MaxWorkersArtists,
	}
	for kind, maxWorkers := range workers {
		pools[kind] = pool.Config{
			MaxWorkers:      maxWorkers,
			BatchSize:       config.Downloads.BatchSize,
			RetryCap:        config.Downloads.RetryCap,
			InterBatchDelay: config.BatchDelay(),
		}
	}

	sched := scheduler.New(svc, led, reporter, scheduler.Config{
		CheckInterval: config.CheckInterval(),
		RunOnStart:    config.Scheduler.RunOnStart,
		Quality:       config.Downloads.Quality,
		Pools:         pools,
	}, logger)

	return &daemon{
		db:        db,
		ledger:    led,
		reporter:  reporter,
		scheduler: sched,
		config:    config,
	}, nil
}

// Run starts the daemon: the scheduler loop plus the HTTP dashboard when
// enabled. It blocks until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	d, err := r.buildDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if d.config.Dashboard.Enabled {
		router := server.NewBasicRouter()
		router.Use(server.Logging(r.logger))
		router.Handler(server.NewDashboardHandler(d.reporter, d.scheduler, d.ledger, r.logger))

		addr := fmt.Sprintf("%s:%d", d.config.Dashboard.Host, d.config.Dashboard.Port)
		go func() {
			serverErr <- server.Serve(ctx, addr, router, r.logger)
		}()
	}

	err = d.scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if d.config.Dashboard.Enabled {
		if serveErr := <-serverErr; serveErr != nil && err == nil {
			err = serveErr
		}
	}

	r.logger.Info("daemon stopped")
	return err
}
