/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/serializer"
)

// Flags shared by every command that addresses a persisted configuration.
var (
	configDirFlag = &cli.StringFlag{
		Name:     "config-dir",
		Required: true,
		Usage:    "Directory holding the generated configurations",
	}
	modelFlag = &cli.StringFlag{
		Name:      "model",
		Required:  true,
		Usage:     "Model to pretrain (see list-models)",
		Validator: nonEmpty("model"),
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file path (default: stdout)",
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Value: "json",
		Usage: "output format (json, yaml, table)",
	}
)

// parseOutputFormat extracts and validates the output format from CLI flags.
// Returns the validated format or an error if the format is unknown.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	outFormat := serializer.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, valid formats are: yaml, json, table", outFormat)
	}
	return outFormat, nil
}

// positiveInt rejects zero and negative flag values at parse time.
func positiveInt(name string) func(int) error {
	return func(v int) error {
		if v <= 0 {
			return fmt.Errorf("%s must be a positive integer, got: %d", name, v)
		}
		return nil
	}
}

// positiveFloat rejects zero and negative flag values at parse time.
func positiveFloat(name string) func(float64) error {
	return func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("%s must be a positive number, got: %v", name, v)
		}
		return nil
	}
}

func nonEmpty(name string) func(string) error {
	return func(v string) error {
		if v == "" {
			return fmt.Errorf("%s must be a non-empty string", name)
		}
		return nil
	}
}
