/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	"github.com/NVIDIA/dgxc-autotune/pkg/shape"
	"github.com/NVIDIA/dgxc-autotune/pkg/values"
)

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:                  "generate",
		EnableShellCompletion: true,
		Usage:                 "Generate candidate configurations for pretraining",
		Description: `Enumerates the parallelism search grid for a model and persists one
candidate configuration per grid point under <config-dir>/<model>/, together
with the args record that run and results load later.

List-valued options take comma-separated positive integers
(e.g. --tensor-parallel-sizes 1,2,4). The pipeline and batch size options
additionally accept the whole-value sentinel "auto", which lets the engine
pick the candidates; "auto" cannot be mixed with explicit values.

Exactly one of the GPU budget options must be provided:
  --resource-shape gpu.8xh200     (named shape, memory inferred)
  --memory-per-gpu 141.0          (explicit budget in GB)

# Examples

Generate with a named resource shape:
  atctl generate --config-dir ./configs --model llama3_8b \
    --nodes 2 --gpus-per-node 8 \
    --mount-path /workspace --mount-from fs-primary \
    --node-group gpu-a --logs-subdir logs \
    --resource-shape gpu.8xh200

Let the engine pick pipeline and batch sizes:
  atctl generate ... --pipeline-parallel-sizes auto --micro-batch-sizes auto`,
		Flags: []cli.Flag{
			configDirFlag,
			modelFlag,
			&cli.IntFlag{
				Name:      "nodes",
				Required:  true,
				Usage:     "Number of nodes for training",
				Validator: positiveInt("nodes"),
			},
			&cli.IntFlag{
				Name:      "gpus-per-node",
				Required:  true,
				Usage:     "GPUs per node",
				Validator: positiveInt("gpus-per-node"),
			},
			&cli.StringFlag{
				Name:     "mount-path",
				Required: true,
				Usage:    "Mount path in container",
			},
			&cli.StringFlag{
				Name:     "mount-from",
				Required: true,
				Usage:    "Mount source",
			},
			&cli.StringFlag{
				Name:     "node-group",
				Required: true,
				Usage:    "Node group for execution",
			},
			&cli.StringFlag{
				Name:     "logs-subdir",
				Required: true,
				Usage:    "Logs subdirectory relative to mount-path",
			},
			&cli.StringFlag{
				Name:  "tensor-parallel-sizes",
				Value: "1,2",
				Usage: "Tensor parallel sizes (comma-separated)",
			},
			&cli.StringFlag{
				Name:  "pipeline-parallel-sizes",
				Value: "1,2",
				Usage: "Pipeline parallel sizes (comma-separated or 'auto')",
			},
			&cli.StringFlag{
				Name:  "context-parallel-sizes",
				Value: "1,2",
				Usage: "Context parallel sizes (comma-separated)",
			},
			&cli.StringFlag{
				Name:  "expert-parallel-sizes",
				Value: "1",
				Usage: "Expert parallel sizes (comma-separated)",
			},
			&cli.StringFlag{
				Name:  "virtual-pipeline-parallel-sizes",
				Usage: "Virtual pipeline sizes (comma-separated)",
			},
			&cli.StringFlag{
				Name:  "micro-batch-sizes",
				Value: "1,2,4",
				Usage: "Micro batch sizes (comma-separated or 'auto')",
			},
			&cli.StringFlag{
				Name:  "global-batch-sizes",
				Value: "512",
				Usage: "Global batch sizes (comma-separated or 'auto')",
			},
			&cli.StringFlag{
				Name:  "resource-shape",
				Usage: "GPU resource shape, e.g. gpu.8xh200, gpu.4xh100, gpu.2xa100-40gb",
			},
			&cli.FloatFlag{
				Name:  "memory-per-gpu",
				Usage: "Custom GPU memory in GB (alternative to --resource-shape)",
			},
			&cli.StringFlag{
				Name:  "container-image",
				Value: "nvcr.io/nvidia/nemo:25.04",
				Usage: "Container image for training runs",
			},
			&cli.StringFlag{
				Name:  "run-dir",
				Value: "/nemo-workspace/nemo-run",
				Usage: "Working directory inside the container",
			},
			&cli.StringFlag{
				Name:  "hf-token",
				Usage: "HuggingFace token (optional)",
			},
			&cli.StringFlag{
				Name:  "wandb-api-key",
				Usage: "Weights & Biases API key (optional)",
			},
			&cli.StringFlag{
				Name:  "torch-home",
				Value: "/nemo-workspace/.cache",
				Usage: "PyTorch cache directory",
			},
			&cli.StringFlag{
				Name:  "pythonpath",
				Value: "/nemo-workspace/nemo-run:$PYTHONPATH",
				Usage: "Python path configuration",
			},
			&cli.IntFlag{
				Name:      "max-model-parallel-size",
				Value:     32,
				Usage:     "Maximum model parallel size",
				Validator: positiveInt("max-model-parallel-size"),
			},
			&cli.IntFlag{
				Name:      "min-model-parallel-size",
				Value:     1,
				Usage:     "Minimum model parallel size",
				Validator: positiveInt("min-model-parallel-size"),
			},
			&cli.IntFlag{
				Name:      "max-steps-per-run",
				Value:     10,
				Usage:     "Maximum steps per candidate run",
				Validator: positiveInt("max-steps-per-run"),
			},
			&cli.IntFlag{
				Name:      "max-minutes-per-run",
				Value:     10,
				Usage:     "Maximum minutes per candidate run",
				Validator: positiveInt("max-minutes-per-run"),
			},
			&cli.IntFlag{
				Name:      "num-tokens-in-b",
				Value:     15000,
				Usage:     "Training token budget in billions",
				Validator: positiveInt("num-tokens-in-b"),
			},
			&cli.IntFlag{
				Name:      "vocab-size",
				Value:     32000,
				Usage:     "Vocabulary size",
				Validator: positiveInt("vocab-size"),
			},
			&cli.IntFlag{
				Name:      "seq-length",
				Value:     8192,
				Usage:     "Sequence length for the model",
				Validator: positiveInt("seq-length"),
			},
			&cli.IntFlag{
				Name:      "val-check-interval",
				Value:     50,
				Usage:     "Validation check interval",
				Validator: positiveInt("val-check-interval"),
			},
			&cli.IntFlag{
				Name:      "max-steps",
				Value:     10,
				Usage:     "Maximum training steps",
				Validator: positiveInt("max-steps"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rec, err := buildGenerateArgs(cmd)
			if err != nil {
				return err
			}

			slog.Info("generating configurations",
				slog.String("model", rec.Model),
				slog.Int("nodes", rec.Nodes),
				slog.Int("gpus_per_node", rec.GPUsPerNode),
			)

			if err := newEngine().Generate(ctx, rec); err != nil {
				return err
			}

			printGenerateInstructions(rec)
			return nil
		},
	}
}

// buildGenerateArgs parses and validates every generate option into the args
// record. All validation happens here, before any engine call.
func buildGenerateArgs(cmd *cli.Command) (*args.Args, error) {
	tp, err := values.ParseIntList(cmd.String("tensor-parallel-sizes"))
	if err != nil {
		return nil, fmt.Errorf("tensor-parallel-sizes: %w", err)
	}
	pp, err := values.ParseIntListOrAuto(cmd.String("pipeline-parallel-sizes"))
	if err != nil {
		return nil, fmt.Errorf("pipeline-parallel-sizes: %w", err)
	}
	cp, err := values.ParseIntList(cmd.String("context-parallel-sizes"))
	if err != nil {
		return nil, fmt.Errorf("context-parallel-sizes: %w", err)
	}
	ep, err := values.ParseIntList(cmd.String("expert-parallel-sizes"))
	if err != nil {
		return nil, fmt.Errorf("expert-parallel-sizes: %w", err)
	}
	vp, err := values.ParseIntList(cmd.String("virtual-pipeline-parallel-sizes"))
	if err != nil {
		return nil, fmt.Errorf("virtual-pipeline-parallel-sizes: %w", err)
	}
	mbs, err := values.ParseIntListOrAuto(cmd.String("micro-batch-sizes"))
	if err != nil {
		return nil, fmt.Errorf("micro-batch-sizes: %w", err)
	}
	gbs, err := values.ParseIntListOrAuto(cmd.String("global-batch-sizes"))
	if err != nil {
		return nil, fmt.Errorf("global-batch-sizes: %w", err)
	}

	// The two GPU budget options gate each other: the requirement that at
	// least one is present can only fire once both have been registered,
	// regardless of registration order.
	var gate shape.Gate
	if _, err := gate.RegisterShape(cmd.String("resource-shape")); err != nil {
		return nil, err
	}
	if err := gate.RegisterMemory(cmd.Float("memory-per-gpu")); err != nil {
		return nil, err
	}

	return &args.Args{
		ConfigDir:                    cmd.String("config-dir"),
		Model:                        cmd.String("model"),
		Nodes:                        cmd.Int("nodes"),
		GPUsPerNode:                  cmd.Int("gpus-per-node"),
		MountPath:                    cmd.String("mount-path"),
		MountFrom:                    cmd.String("mount-from"),
		NodeGroup:                    cmd.String("node-group"),
		LogsSubdir:                   cmd.String("logs-subdir"),
		ContainerImage:               cmd.String("container-image"),
		RunDir:                       cmd.String("run-dir"),
		HFToken:                      cmd.String("hf-token"),
		WandbAPIKey:                  cmd.String("wandb-api-key"),
		TorchHome:                    cmd.String("torch-home"),
		PythonPath:                   cmd.String("pythonpath"),
		TensorParallelSizes:          tp,
		PipelineParallelSizes:        pp,
		ContextParallelSizes:         cp,
		ExpertParallelSizes:          ep,
		VirtualPipelineParallelSizes: vp,
		MicroBatchSizes:              mbs,
		GlobalBatchSizes:             gbs,
		ResourceShape:                cmd.String("resource-shape"),
		MemoryPerGPU:                 cmd.Float("memory-per-gpu"),
		MaxModelParallelSize:         cmd.Int("max-model-parallel-size"),
		MinModelParallelSize:         cmd.Int("min-model-parallel-size"),
		MaxStepsPerRun:               cmd.Int("max-steps-per-run"),
		MaxMinutesPerRun:             cmd.Int("max-minutes-per-run"),
		NumTokensInB:                 cmd.Int("num-tokens-in-b"),
		VocabSize:                    cmd.Int("vocab-size"),
		SeqLength:                    cmd.Int("seq-length"),
		ValCheckInterval:             cmd.Int("val-check-interval"),
		MaxSteps:                     cmd.Int("max-steps"),
	}, nil
}

// printGenerateInstructions prints user-friendly next steps.
func printGenerateInstructions(rec *args.Args) {
	color.Green("\nConfigurations generated successfully!")
	fmt.Printf("Output directory: %s\n", args.Dir(rec.ConfigDir, rec.Model))
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  atctl list-configs --config-dir %s --model %s\n", rec.ConfigDir, rec.Model)
	fmt.Printf("  atctl run --config-dir %s --model %s\n", rec.ConfigDir, rec.Model)
}
