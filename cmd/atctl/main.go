/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/NVIDIA/dgxc-autotune/pkg/cli"
)

func main() {
	// Tokens like HF_TOKEN and WANDB_API_KEY may come from a local .env
	// instead of flags; a missing file is not an error.
	_ = godotenv.Load()

	if err := cli.New().Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprintf("Error: %v", err))
		os.Exit(1)
	}
}
