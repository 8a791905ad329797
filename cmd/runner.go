package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds the shared dependencies for CLI command actions.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	client *http.Client
	stdout io.Writer
}

// RunnerOpts carries the dependencies injected into [NewRunner]. Zero fields
// fall back to working defaults so tests can override only what they need.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Client *http.Client
	Stdout io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}

	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		client: opts.Client,
		stdout: opts.Stdout,
	}
}

// loadConfig reloads configuration from the --config flag when it points at
// an existing file, falling back to the config the runner was built with.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")
	if path == "" {
		return r.config, nil
	}

	if _, err := os.Stat(path); err != nil {
		if cmd.IsSet("config") {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		}

		return r.config, nil
	}

	return shared.LoadConfig(path)
}

// dashboardURL resolves the daemon address client commands talk to. An
// explicit --url flag wins over the configured dashboard host and port.
func (r *Runner) dashboardURL(cmd *cli.Command) string {
	if url := cmd.String("url"); url != "" {
		return url
	}

	host := r.config.Dashboard.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}

	return fmt.Sprintf("http://%s:%d", host, r.config.Dashboard.Port)
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Runner) writePlain(b []byte) error {
	_, err := r.stdout.Write(b)
	return err
}
