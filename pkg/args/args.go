// Package args defines the persisted autotune configuration record. A record
// is produced once by generate, written to <config-dir>/<model>/args.json,
// and loaded read-mostly by the other commands. Only the Sequential and
// RunAll flags may be patched onto a loaded record.
package args

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NVIDIA/dgxc-autotune/pkg/errors"
	"github.com/NVIDIA/dgxc-autotune/pkg/values"
)

// FileName is the name of the persisted record inside the per-model
// configuration directory.
const FileName = "args.json"

// Args is the immutable configuration record assembled from the validated
// generate options.
type Args struct {
	ConfigDir   string `json:"config_dir"`
	Model       string `json:"model"`
	Nodes       int    `json:"nodes"`
	GPUsPerNode int    `json:"gpus_per_node"`
	MountPath   string `json:"mount_path"`
	MountFrom   string `json:"mount_from"`
	NodeGroup   string `json:"node_group"`
	LogsSubdir  string `json:"logs_subdir"`

	// Executor settings.
	ContainerImage string `json:"container_image"`
	RunDir         string `json:"run_dir"`
	HFToken        string `json:"hf_token,omitempty"`
	WandbAPIKey    string `json:"wandb_api_key,omitempty"`
	TorchHome      string `json:"torch_home"`
	PythonPath     string `json:"pythonpath"`

	// Search-space lists.
	TensorParallelSizes          []int             `json:"tensor_parallel_sizes"`
	PipelineParallelSizes        values.ListOrAuto `json:"pipeline_parallel_sizes"`
	ContextParallelSizes         []int             `json:"context_parallel_sizes"`
	ExpertParallelSizes          []int             `json:"expert_parallel_sizes"`
	VirtualPipelineParallelSizes []int             `json:"virtual_pipeline_parallel_sizes,omitempty"`
	MicroBatchSizes              values.ListOrAuto `json:"micro_batch_sizes"`
	GlobalBatchSizes             values.ListOrAuto `json:"global_batch_sizes"`

	// Exactly one of these two is required; the shape is stored as matched.
	ResourceShape string  `json:"resource_shape,omitempty"`
	MemoryPerGPU  float64 `json:"memory_per_gpu,omitempty"`

	// Numeric hyperparameters.
	MaxModelParallelSize int `json:"max_model_parallel_size"`
	MinModelParallelSize int `json:"min_model_parallel_size"`
	MaxStepsPerRun       int `json:"max_steps_per_run"`
	MaxMinutesPerRun     int `json:"max_minutes_per_run"`
	NumTokensInB         int `json:"num_tokens_in_b"`
	VocabSize            int `json:"vocab_size"`
	SeqLength            int `json:"seq_length"`
	ValCheckInterval     int `json:"val_check_interval"`
	MaxSteps             int `json:"max_steps"`

	// Patchable execution flags; everything above is immutable once
	// generated.
	Sequential bool `json:"sequential"`
	RunAll     bool `json:"run_all"`
}

// Dir returns the per-model configuration directory.
func Dir(configDir, model string) string {
	return filepath.Join(configDir, model)
}

// FilePath returns the deterministic location of the persisted record.
func FilePath(configDir, model string) string {
	return filepath.Join(configDir, model, FileName)
}

// Save persists the record under configDir, creating the per-model
// directory as needed. Saving again for the same (configDir, model) pair
// replaces the previous record.
func (a *Args) Save(configDir string) error {
	dir := Dir(configDir, a.Model)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "creating config directory", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "encoding args record", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "writing args record", err)
	}
	return nil
}

// Load reads the persisted record for (configDir, model). A missing file or
// malformed content is a NOT_FOUND_ERROR: from the caller's point of view
// there is no usable configuration at the expected path.
func Load(configDir, model string) (*Args, error) {
	path := FilePath(configDir, model)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound,
			fmt.Sprintf("no generated configuration at %s (run generate first)", path), err)
	}
	var a Args
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound,
			fmt.Sprintf("malformed configuration at %s", path), err)
	}
	return &a, nil
}

// RunName builds the canonical per-candidate run name used for generated
// config files and log directories, e.g.
// llama3_70b_8nodes_tp_4_pp_4_cp_2_ep_1_mbs_1_vp_None_seq_8192_gbs_512.
// A vp of 0 means no virtual pipelining and renders as "None".
func RunName(model string, nodes, tp, pp, cp, ep, vp, mbs, seq, gbs int) string {
	vpStr := "None"
	if vp > 0 {
		vpStr = fmt.Sprintf("%d", vp)
	}
	return fmt.Sprintf("%s_%dnodes_tp_%d_pp_%d_cp_%d_ep_%d_mbs_%d_vp_%s_seq_%d_gbs_%d",
		model, nodes, tp, pp, cp, ep, mbs, vpStr, seq, gbs)
}
