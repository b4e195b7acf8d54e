/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	"github.com/NVIDIA/dgxc-autotune/pkg/engine"
)

func resultsCmd() *cli.Command {
	return &cli.Command{
		Name:                  "results",
		EnableShellCompletion: true,
		Usage:                 "Analyze training logs and rank the candidates",
		Description: `Parses per-step timings out of the training logs under --path whose file
names start with --log-prefix, ranks the candidates by average step time, and
projects throughput and training cost. The ranking is saved next to the logs
and reused on later invocations unless --force-reconstruct is set.

# Examples

  atctl results --config-dir ./configs --model llama3_8b \
    --path /workspace/logs --log-prefix llama3_8b --top-n 5

  atctl results ... --force-reconstruct --cost-per-node-hour 32.0`,
		Flags: []cli.Flag{
			configDirFlag,
			modelFlag,
			&cli.StringFlag{
				Name:     "path",
				Aliases:  []string{"p"},
				Required: true,
				Usage:    "Path to the training logs directory",
			},
			&cli.StringFlag{
				Name:     "log-prefix",
				Required: true,
				Usage:    "Log file prefix for result files",
			},
			&cli.IntFlag{
				Name:      "top-n",
				Value:     10,
				Usage:     "Number of top configurations to display",
				Validator: positiveInt("top-n"),
			},
			&cli.BoolFlag{
				Name:  "force-reconstruct",
				Usage: "Re-parse logs instead of using the saved ranking",
			},
			&cli.FloatFlag{
				Name:      "cost-per-node-hour",
				Value:     24.0,
				Usage:     "Cost per node hour in USD (default: $24.0 for H100)",
				Validator: positiveFloat("cost-per-node-hour"),
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Only save the ranking, don't print it",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rec, err := args.Load(cmd.String("config-dir"), cmd.String("model"))
			if err != nil {
				return err
			}

			req := engine.ResultsRequest{
				Path:             cmd.String("path"),
				LogPrefix:        cmd.String("log-prefix"),
				TopN:             cmd.Int("top-n"),
				ForceReconstruct: cmd.Bool("force-reconstruct"),
				CostPerNodeHour:  cmd.Float("cost-per-node-hour"),
				Quiet:            cmd.Bool("quiet"),
			}
			if err := newEngine().Results(ctx, rec, req); err != nil {
				return err
			}

			color.Green("Results analysis completed!")
			return nil
		},
	}
}
