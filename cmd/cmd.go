package main

import (
	"github.com/urfave/cli/v3"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the configuration file",
		Value:   "config.toml",
	}
}

func urlFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "url",
		Aliases: []string{"u"},
		Usage:   "base URL of a running daemon",
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "print machine readable JSON",
	}
}

// register wires every CLI command to its runner action.
func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "setup",
			Usage:  "Create the configuration file and initialize the ledger database",
			Flags:  []cli.Flag{configFlag()},
			Action: r.Setup,
		},
		{
			Name:   "run",
			Usage:  "Run the download daemon with the scheduler and dashboard",
			Flags:  []cli.Flag{configFlag()},
			Action: r.Run,
		},
		{
			Name:   "sync",
			Usage:  "Run a single reconciliation cycle and exit",
			Flags:  []cli.Flag{configFlag(), jsonFlag()},
			Action: r.Sync,
		},
		{
			Name:   "status",
			Usage:  "Show the current status of a running daemon",
			Flags:  []cli.Flag{configFlag(), urlFlag(), jsonFlag()},
			Action: r.Status,
		},
		{
			Name:   "trigger",
			Usage:  "Ask a running daemon to start a cycle now",
			Flags:  []cli.Flag{configFlag(), urlFlag()},
			Action: r.Trigger,
		},
		{
			Name:  "ledger",
			Usage: "Inspect the download ledger",
			Commands: []*cli.Command{
				{
					Name:   "stats",
					Usage:  "Show per kind ledger counts",
					Flags:  []cli.Flag{configFlag(), jsonFlag()},
					Action: r.LedgerStats,
				},
				{
					Name:      "show",
					Usage:     "Show a single ledger entry by item ID",
					ArgsUsage: "<item-id>",
					Flags:     []cli.Flag{configFlag(), jsonFlag()},
					Action:    r.LedgerShow,
				},
			},
		},
		{
			Name:   "watch",
			Usage:  "Watch a running daemon in a live terminal view",
			Flags:  []cli.Flag{configFlag(), urlFlag()},
			Action: r.Watch,
		},
	}
}
