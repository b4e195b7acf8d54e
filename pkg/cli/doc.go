// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package cli implements the command-line interface for the atctl tool.
//
// # Overview
//
// The atctl CLI wraps the autotuning engine for NeMo pretraining: it
// generates candidate parallelism configurations for a model, launches them
// on GPU nodes, and analyzes the training logs to rank the candidates by
// measured throughput.
//
// # Commands
//
// generate - Generate candidate configurations (Step 1):
//
//	atctl generate --config-dir ./configs --model llama3_8b \
//	  --nodes 2 --gpus-per-node 8 \
//	  --mount-path /workspace --mount-from fs-primary \
//	  --node-group gpu-a --logs-subdir logs \
//	  --resource-shape gpu.8xh200
//
// Validates every option, enumerates the search grid over tensor, pipeline,
// context, and expert parallel sizes plus micro and global batch sizes, and
// persists the args record and one JSON file per candidate under
// <config-dir>/<model>/. Exactly one of --resource-shape and
// --memory-per-gpu must be provided; list-valued options accept
// comma-separated positive integers, and the pipeline and batch size options
// additionally accept the whole-value sentinel "auto".
//
// run - Launch the generated candidates (Step 2):
//
//	atctl run --config-dir ./configs --model llama3_8b
//	atctl run --config-dir ./configs --model llama3_8b --sequential --run-all
//
// Loads the persisted record by (config-dir, model) and launches each
// candidate in a container. Candidates whose estimated memory exceeds the
// per-GPU budget are skipped unless --run-all is set; --sequential launches
// one at a time instead of in parallel.
//
// results - Analyze training logs and rank candidates (Step 3):
//
//	atctl results --config-dir ./configs --model llama3_8b \
//	  --path /workspace/logs --log-prefix llama3_8b --top-n 5
//
// Parses per-step timings out of the training logs, ranks candidates by
// average step time, projects tokens/s and training cost, and persists the
// ranking next to the logs for later invocations (--force-reconstruct
// re-parses).
//
// list-configs - Show generated candidates and their status:
//
//	atctl list-configs --config-dir ./configs --model llama3_8b --format table
//
// list-models - Show the supported model catalog:
//
//	atctl list-models --format json
package cli
