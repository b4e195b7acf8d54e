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

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:                  "list-models",
		EnableShellCompletion: true,
		Usage:                 "List the supported model catalog",
		Flags: []cli.Flag{
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			models, err := newEngine().ListModels(ctx)
			if err != nil {
				return err
			}

			ser := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer func() {
				if err := ser.Close(); err != nil {
					slog.Warn("failed to close serializer", "error", err)
				}
			}()
			return ser.Serialize(ctx, models)
		},
	}
}
