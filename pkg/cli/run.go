/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:                  "run",
		EnableShellCompletion: true,
		Usage:                 "Launch the generated candidate configurations",
		Description: `Loads the configuration persisted by generate and launches every
candidate. Candidates flagged with memory risk are skipped unless --run-all
is set. Launches happen in parallel unless --sequential is set.

# Examples

  atctl run --config-dir ./configs --model llama3_8b
  atctl run --config-dir ./configs --model llama3_8b --sequential --run-all`,
		Flags: []cli.Flag{
			configDirFlag,
			modelFlag,
			&cli.BoolFlag{
				Name:  "sequential",
				Usage: "Run configurations sequentially instead of in parallel",
			},
			&cli.BoolFlag{
				Name:  "run-all",
				Usage: "Include configurations with potential CUDA OOM risk",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rec, err := args.Load(cmd.String("config-dir"), cmd.String("model"))
			if err != nil {
				return err
			}
			// The persisted record is read-mostly: only the two scheduling
			// toggles are patched per invocation.
			rec.Sequential = cmd.Bool("sequential")
			rec.RunAll = cmd.Bool("run-all")

			slog.Info("launching candidates",
				slog.String("model", rec.Model),
				slog.Bool("sequential", rec.Sequential),
				slog.Bool("run_all", rec.RunAll),
			)
			return newEngine().Run(ctx, rec)
		},
	}
}
