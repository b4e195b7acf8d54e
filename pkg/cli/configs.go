/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/serializer"
)

func listConfigsCmd() *cli.Command {
	return &cli.Command{
		Name:                  "list-configs",
		EnableShellCompletion: true,
		Usage:                 "List generated configurations with their status",
		Description: `Lists every candidate configuration generated for a model together with
its parallelism settings and run status. The listing can be output in JSON,
YAML, or table format.`,
		Flags: []cli.Flag{
			configDirFlag,
			modelFlag,
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			statuses, err := newEngine().ListConfigs(ctx, cmd.String("config-dir"), cmd.String("model"))
			if err != nil {
				return err
			}

			ser := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer func() {
				if err := ser.Close(); err != nil {
					slog.Warn("failed to close serializer", "error", err)
				}
			}()
			return ser.Serialize(ctx, statuses)
		},
	}
}
