// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/lectern"
	"github.com/poiesic/lectern/config"
)

// Flags record whether they were set, so every command gets its own.
func projectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "project",
		Aliases:  []string{"p"},
		Usage:    "Project the sources belong to",
		Required: true,
	}
}

func waitFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "wait",
		Usage: "Wait for processing to finish before exiting",
		Value: true,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lectern",
		Usage: "Per-project knowledge base for documents, media and links",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file (default: <data-dir>/" + config.FileName + ")",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Knowledge base directory (overrides the configuration file)",
				EnvVars: []string{"LECTERN_DATA_DIR"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a configuration file with default values",
				Action: initCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
			{
				Name:      "add",
				Usage:     "Add a file to a project",
				ArgsUsage: "FILE",
				Action:    addCommand,
				Flags: []cli.Flag{
					projectFlag(),
					waitFlag(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name (default: the file name)",
					},
				},
			},
			{
				Name:      "text",
				Usage:     "Add pasted text to a project; reads stdin when TEXT is omitted",
				ArgsUsage: "[TEXT]",
				Action:    textCommand,
				Flags: []cli.Flag{
					projectFlag(),
					waitFlag(),
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Display name",
						Required: true,
					},
				},
			},
			{
				Name:      "link",
				Usage:     "Add a web page or YouTube video to a project",
				ArgsUsage: "URL",
				Action:    linkCommand,
				Flags:     []cli.Flag{projectFlag(), waitFlag()},
			},
			{
				Name:      "research",
				Usage:     "Add research results to a project; reads stdin when FILE is omitted",
				ArgsUsage: "[FILE]",
				Action:    researchCommand,
				Flags: []cli.Flag{
					projectFlag(),
					waitFlag(),
					&cli.StringFlag{
						Name:     "query",
						Usage:    "Query the research answered",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name (default: the query)",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List the sources of a project",
				Action: listCommand,
				Flags:  []cli.Flag{projectFlag()},
			},
			{
				Name:      "show",
				Usage:     "Show a source and its tasks",
				ArgsUsage: "SOURCE_ID",
				Action:    showCommand,
				Flags:     []cli.Flag{projectFlag()},
			},
			{
				Name:      "retry",
				Usage:     "Reprocess a failed or waiting source",
				ArgsUsage: "SOURCE_ID",
				Action:    retryCommand,
				Flags:     []cli.Flag{projectFlag(), waitFlag()},
			},
			{
				Name:      "cancel",
				Usage:     "Return an interrupted source to uploaded",
				ArgsUsage: "SOURCE_ID",
				Action:    cancelCommand,
				Flags:     []cli.Flag{projectFlag()},
			},
			{
				Name:      "delete",
				Usage:     "Delete a source and everything derived from it",
				ArgsUsage: "SOURCE_ID",
				Action:    deleteCommand,
				Flags:     []cli.Flag{projectFlag()},
			},
			{
				Name:      "activate",
				Usage:     "Include a source in retrieval, or exclude it with --off",
				ArgsUsage: "SOURCE_ID",
				Action:    activateCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.BoolFlag{
						Name:  "off",
						Usage: "Deactivate instead",
					},
				},
			},
			{
				Name:   "resume",
				Usage:  "Process sources left waiting or interrupted by a previous run",
				Action: resumeCommand,
				Flags:  []cli.Flag{projectFlag(), waitFlag()},
			},
			{
				Name:      "search",
				Usage:     "Search one source",
				ArgsUsage: "SOURCE_ID QUERY...",
				Action:    searchCommand,
				Flags:     []cli.Flag{projectFlag()},
			},
			{
				Name:      "cite",
				Usage:     "Show the chunk a citation token names",
				ArgsUsage: "TOKEN",
				Action:    citeCommand,
				Flags:     []cli.Flag{projectFlag()},
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild chunks and embeddings of every ready source",
				Action: reembedCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of sources to process in each batch",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Sources embedded in parallel within a batch",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N sources",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed sources already embedded with the current model",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// configPath returns --config, or the file inside the data directory.
func configPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	dataDir := c.String("data-dir")
	if dataDir == "" {
		dataDir = config.Default().DataDir
	}
	return filepath.Join(dataDir, config.FileName)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(configPath(c))
	if err != nil {
		return nil, err
	}
	if dataDir := c.String("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// openKnowledgeBase opens the configured knowledge base. The returned
// context is cancelled on SIGINT or SIGTERM.
func openKnowledgeBase(c *cli.Context) (context.Context, *lectern.KnowledgeBase, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	kb, err := lectern.Open(ctx, cfg.DataDir, lectern.WithConfig(cfg))
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}

	closeFn := func() {
		if err := kb.Close(); err != nil {
			slog.Error("error closing knowledge base", "err", err)
		}
		stop()
	}
	return ctx, kb, closeFn, nil
}
