// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func searchFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "search",
		Usage: "Only include entries whose title (or URL) contains this text",
	}
}

func sortFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort column: id, mediaType, title, startTime, endTime, updatedTime, status, selected",
		},
		&cli.BoolFlag{
			Name:  "desc",
			Usage: "Sort descending",
		},
		searchFlag(),
	}
}

func outputFlags(prettyDefault bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: prettyDefault,
		},
	}
}

func transportFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "transport",
		Usage: "Stream transport: sse or websocket (default: stream.transport)",
	}
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// tuiCommand returns the top-level TUI command for the live dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive download dashboard",
		Flags: []cli.Flag{
			transportFlag(),
			&cli.BoolFlag{
				Name:  "no-stream",
				Usage: "Do not connect to the live event stream",
			},
			&cli.BoolFlag{
				Name:  "journal",
				Usage: "Record stream events even if journal.enabled is false",
			},
		},
		Action: r.TUI,
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List downloads",
		Flags:   append(sortFlags(), outputFlags(false)...),
		Action:  r.ListDownloads,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the live event stream",
		Flags: []cli.Flag{
			transportFlag(),
			&cli.BoolFlag{
				Name:  "journal",
				Usage: "Record stream events even if journal.enabled is false",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print raw event payloads, one per line",
			},
		},
		Action: r.Watch,
	}
}

func editCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "edit",
		Usage: "Change the title and/or media type of a download",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Entry ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "New title; an empty value clears it",
			},
			&cli.StringFlag{
				Name:    "media-type",
				Aliases: []string{"t"},
				Usage:   "New media type: gallery, image, video, audio or text",
			},
			yesFlag(),
		},
		Action: r.EditDownload,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Aliases: []string{"rm"},
		Usage:   "Delete downloads by id or search",
		Flags: []cli.Flag{
			&cli.Int64SliceFlag{
				Name:  "id",
				Usage: "Entry ID (repeatable)",
			},
			searchFlag(),
			yesFlag(),
		},
		Action: r.DeleteDownloads,
	}
}

func copyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "copy",
		Usage: "Copy the URLs or titles of downloads to the clipboard",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:  "field",
				Value: "urls",
			},
		},
		Flags:  sortFlags(),
		Action: r.CopyDownloads,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export downloads to csv, markdown, txt and/or json",
		Flags: append(sortFlags(),
			&cli.StringSliceFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format (repeatable; default: all)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: dlx_export_<epoch>)",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "File name without extension",
				Value: "downloads",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent writers",
				Value: 4,
			},
		),
		Action: r.ExportDownloads,
	}
}

// journalCommand inspects the local event journal.
func journalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Inspect recorded stream sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sessions, newest first",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions",
						Value: 20,
					},
				}, outputFlags(false)...),
				Action: r.JournalList,
			},
			{
				Name:  "events",
				Usage: "List recorded events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "Session ID"},
					&cli.Int64Flag{Name: "entry", Usage: "Entry ID"},
					&cli.StringFlag{Name: "kind", Usage: "CREATE, UPDATE, DELETE or PROGRESS"},
					&cli.StringFlag{Name: "origin", Usage: "stream or command"},
					&cli.IntFlag{Name: "limit", Usage: "Keep only the newest n events", Value: 100},
					&cli.BoolFlag{Name: "json", Usage: "Print raw payloads"},
				},
				Action: r.JournalEvents,
			},
			{
				Name:  "replay",
				Usage: "Rebuild the table a session produced",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session ID (default: most recent)",
					},
				}, outputFlags(true)...),
				Action: r.JournalReplay,
			},
			{
				Name:  "prune",
				Usage: "Delete all but the newest events",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "retain",
						Usage: "Events to keep (default: journal.retain)",
					},
				},
				Action: r.JournalPrune,
			},
		},
	}
}

// setupCommand handles setup operations for configuration, database and authentication.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the journal database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "key",
				Usage: "Configure the API key from a request copied from the browser",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.SetupKey,
			},
		},
	}
}

func demoServerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "demo-server",
		Usage: "Run a local media server with simulated downloads",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (default: demo.host)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (default: demo.port)"},
			&cli.IntFlag{Name: "seed", Usage: "Number of entries to start with (default: demo.seed)"},
			&cli.StringFlag{Name: "api-key", Usage: "Required API key; empty disables the check (default: server.api_key)"},
		},
		Action: r.DemoServer,
	}
}
