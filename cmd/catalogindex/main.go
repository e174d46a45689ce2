package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/catalogindex/internal/config"
	"github.com/kailas-cloud/catalogindex/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "catalogindex:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "catalogindex",
		Usage: "Rebuild the semantic product search index from a catalog export",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (overrides --env lookup)",
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name, reads config/<env>.yaml",
				Value:   config.GetEnv(),
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every loaded package",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Drop the index, embed the catalog and load it",
				Action: loadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "catalog",
						Usage:    "Path to the catalog export ({\"skus\": [...]}, .zst allowed)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Index only the first N records (0 = all)",
					},
				},
			},
			{
				Name:   "replay",
				Usage:  "Send a recovery file to the existing index",
				Action: replayCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Recovery file to replay (default: loader.recovery_file)",
					},
					&cli.IntFlag{
						Name:  "bulk-limit",
						Usage: "Override loader.bulk_limit for this replay",
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintf(c.App.Writer, "catalogindex %s (commit %s, built %s)\n",
						version.Version, version.Commit, version.Date)
					return err
				},
			},
		},
	}
}
