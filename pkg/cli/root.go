/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/engine"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// newEngine builds the engine behind the commands. Tests swap it for a fake.
var newEngine = func() engine.Engine { return engine.New() }

// New returns the root atctl command.
func New() *cli.Command {
	return &cli.Command{
		Name:                  "atctl",
		Usage:                 "Autotune parallelism settings for NeMo pretraining",
		Version:               version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Emit logs as JSON instead of text",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			opts := &slog.HandlerOptions{Level: level}
			var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
			if cmd.Bool("log-json") {
				handler = slog.NewJSONHandler(os.Stderr, opts)
			}
			slog.SetDefault(slog.New(handler))
			return ctx, nil
		},
		Commands: []*cli.Command{
			generateCmd(),
			runCmd(),
			resultsCmd(),
			listConfigsCmd(),
			listModelsCmd(),
		},
	}
}
