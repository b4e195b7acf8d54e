/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	"github.com/NVIDIA/dgxc-autotune/pkg/engine"
	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

type fakeEngine struct {
	generated  *args.Args
	ran        *args.Args
	resultsRec *args.Args
	resultsReq engine.ResultsRequest
	listedDir  string
	models     []string
	err        error
}

func (f *fakeEngine) Generate(_ context.Context, a *args.Args) error {
	f.generated = a
	return f.err
}

func (f *fakeEngine) Run(_ context.Context, a *args.Args) error {
	f.ran = a
	return f.err
}

func (f *fakeEngine) Results(_ context.Context, a *args.Args, req engine.ResultsRequest) error {
	f.resultsRec = a
	f.resultsReq = req
	return f.err
}

func (f *fakeEngine) ListConfigs(_ context.Context, configDir, _ string) ([]engine.ConfigStatus, error) {
	f.listedDir = configDir
	return nil, f.err
}

func (f *fakeEngine) ListModels(_ context.Context) ([]string, error) {
	return f.models, f.err
}

// installFakeEngine swaps the engine constructor for the test's lifetime.
func installFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	fake := &fakeEngine{}
	orig := newEngine
	newEngine = func() engine.Engine { return fake }
	t.Cleanup(func() { newEngine = orig })
	return fake
}

func generateArgv(dir string, extra ...string) []string {
	argv := []string{"atctl", "generate",
		"--config-dir", dir,
		"--model", "llama3_8b",
		"--nodes", "2",
		"--gpus-per-node", "8",
		"--mount-path", "/workspace",
		"--mount-from", "fs-primary",
		"--node-group", "gpu-a",
		"--logs-subdir", "logs",
	}
	return append(argv, extra...)
}

func TestRootCommandStructure(t *testing.T) {
	root := New()
	if root.Name != "atctl" {
		t.Errorf("Name = %v, want atctl", root.Name)
	}
	want := []string{"generate", "run", "results", "list-configs", "list-models"}
	for _, name := range want {
		if root.Command(name) == nil {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestGenerateCommandStructure(t *testing.T) {
	cmd := generateCmd()

	if cmd.Usage == "" {
		t.Error("Usage should not be empty")
	}
	if cmd.Action == nil {
		t.Error("Action should not be nil")
	}

	requiredFlags := []string{
		"config-dir", "model", "nodes", "gpus-per-node",
		"mount-path", "mount-from", "node-group", "logs-subdir",
		"resource-shape", "memory-per-gpu",
	}
	for _, flagName := range requiredFlags {
		found := false
		for _, flag := range cmd.Flags {
			if hasName(flag, flagName) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("flag %q not found", flagName)
		}
	}
}

func TestGenerateBuildsArgsRecord(t *testing.T) {
	fake := installFakeEngine(t)
	dir := t.TempDir()

	argv := generateArgv(dir,
		"--tensor-parallel-sizes", "1,2,4",
		"--pipeline-parallel-sizes", "auto",
		"--global-batch-sizes", "512",
		"--resource-shape", "gpu.8xh200",
	)
	if err := New().Run(context.Background(), argv); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	rec := fake.generated
	if rec == nil {
		t.Fatal("engine never received the record")
	}
	if !reflect.DeepEqual(rec.TensorParallelSizes, []int{1, 2, 4}) {
		t.Errorf("tensor parallel sizes = %v, want [1 2 4]", rec.TensorParallelSizes)
	}
	if !rec.PipelineParallelSizes.Auto {
		t.Error("pipeline parallel sizes should be the auto sentinel")
	}
	if rec.ResourceShape != "gpu.8xh200" {
		t.Errorf("resource shape = %q", rec.ResourceShape)
	}
	if rec.Nodes != 2 || rec.GPUsPerNode != 8 {
		t.Errorf("nodes/gpus = %d/%d, want 2/8", rec.Nodes, rec.GPUsPerNode)
	}
	// Defaults pass through untouched.
	if rec.MaxModelParallelSize != 32 || rec.NumTokensInB != 15000 || rec.SeqLength != 8192 {
		t.Errorf("default hyperparameters not applied: %+v", rec)
	}
	if rec.ContainerImage != "nvcr.io/nvidia/nemo:25.04" {
		t.Errorf("container image = %q", rec.ContainerImage)
	}
}

func TestGenerateGateEnforcement(t *testing.T) {
	tests := []struct {
		name     string
		extra    []string
		wantErr  bool
		wantCode string
	}{
		{
			name:     "neither budget option",
			wantErr:  true,
			wantCode: cnserrors.ErrCodeRequirement,
		},
		{
			name:  "shape only",
			extra: []string{"--resource-shape", "gpu.8xh200"},
		},
		{
			name:  "memory only",
			extra: []string{"--memory-per-gpu", "141.0"},
		},
		{
			name: "both",
			extra: []string{
				"--resource-shape", "gpu.8xh200",
				"--memory-per-gpu", "141.0",
			},
		},
		{
			name:     "malformed shape",
			extra:    []string{"--resource-shape", "cpu.large"},
			wantErr:  true,
			wantCode: cnserrors.ErrCodeFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := installFakeEngine(t)
			err := New().Run(context.Background(), generateArgv(t.TempDir(), tt.extra...))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !cnserrors.IsCode(err, tt.wantCode) {
					t.Errorf("code = %s, want %s", cnserrors.Code(err), tt.wantCode)
				}
				if fake.generated != nil {
					t.Error("validation failure must not reach the engine")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fake.generated == nil {
				t.Error("engine should have been called")
			}
		})
	}
}

func TestGenerateListValidation(t *testing.T) {
	tests := []struct {
		name     string
		extra    []string
		wantCode string
	}{
		{
			name:     "mixed auto and values",
			extra:    []string{"--micro-batch-sizes", "auto,2"},
			wantCode: cnserrors.ErrCodeMixedSentinel,
		},
		{
			name:     "malformed integer",
			extra:    []string{"--tensor-parallel-sizes", "1,x,4"},
			wantCode: cnserrors.ErrCodeParse,
		},
		{
			name:     "non-positive value",
			extra:    []string{"--context-parallel-sizes", "1,0"},
			wantCode: cnserrors.ErrCodeRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := installFakeEngine(t)
			extra := append([]string{"--resource-shape", "gpu.8xh200"}, tt.extra...)
			err := New().Run(context.Background(), generateArgv(t.TempDir(), extra...))
			if err == nil {
				t.Fatal("expected error")
			}
			if !cnserrors.IsCode(err, tt.wantCode) {
				t.Errorf("code = %s, want %s", cnserrors.Code(err), tt.wantCode)
			}
			if fake.generated != nil {
				t.Error("validation failure must not reach the engine")
			}
		})
	}
}

func TestGenerateRejectsNonPositiveNodes(t *testing.T) {
	installFakeEngine(t)
	argv := []string{"atctl", "generate",
		"--config-dir", t.TempDir(),
		"--model", "llama3_8b",
		"--nodes", "0",
		"--gpus-per-node", "8",
		"--mount-path", "/w", "--mount-from", "fs", "--node-group", "g", "--logs-subdir", "l",
		"--resource-shape", "gpu.8xh200",
	}
	err := New().Run(context.Background(), argv)
	if err == nil || !strings.Contains(err.Error(), "positive") {
		t.Fatalf("expected positive-integer error, got: %v", err)
	}
}

func TestRunPatchesSchedulingFlags(t *testing.T) {
	fake := installFakeEngine(t)
	dir := t.TempDir()
	rec := &args.Args{ConfigDir: dir, Model: "llama3_8b", Nodes: 2}
	if err := rec.Save(dir); err != nil {
		t.Fatal(err)
	}

	argv := []string{"atctl", "run",
		"--config-dir", dir, "--model", "llama3_8b",
		"--sequential", "--run-all",
	}
	if err := New().Run(context.Background(), argv); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if fake.ran == nil {
		t.Fatal("engine never received the record")
	}
	if !fake.ran.Sequential || !fake.ran.RunAll {
		t.Error("scheduling flags were not patched onto the loaded record")
	}
	// The rest of the record comes from disk, not from flags.
	if fake.ran.Nodes != 2 {
		t.Errorf("loaded nodes = %d, want 2", fake.ran.Nodes)
	}
}

func TestRunMissingConfiguration(t *testing.T) {
	fake := installFakeEngine(t)
	argv := []string{"atctl", "run", "--config-dir", t.TempDir(), "--model", "llama3_8b"}
	err := New().Run(context.Background(), argv)
	if err == nil {
		t.Fatal("expected error")
	}
	if !cnserrors.IsCode(err, cnserrors.ErrCodeNotFound) {
		t.Errorf("code = %s, want NOT_FOUND_ERROR", cnserrors.Code(err))
	}
	if fake.ran != nil {
		t.Error("missing configuration must not reach the engine")
	}
}

func TestResultsRequestDefaults(t *testing.T) {
	fake := installFakeEngine(t)
	dir := t.TempDir()
	rec := &args.Args{ConfigDir: dir, Model: "llama3_8b"}
	if err := rec.Save(dir); err != nil {
		t.Fatal(err)
	}

	argv := []string{"atctl", "results",
		"--config-dir", dir, "--model", "llama3_8b",
		"--path", "/workspace/logs", "--log-prefix", "llama3_8b",
	}
	if err := New().Run(context.Background(), argv); err != nil {
		t.Fatalf("results failed: %v", err)
	}
	req := fake.resultsReq
	if req.TopN != 10 {
		t.Errorf("top-n = %d, want 10", req.TopN)
	}
	if req.CostPerNodeHour != 24.0 {
		t.Errorf("cost per node hour = %v, want 24.0", req.CostPerNodeHour)
	}
	if req.ForceReconstruct || req.Quiet {
		t.Error("boolean options should default to false")
	}
	if req.Path != "/workspace/logs" || req.LogPrefix != "llama3_8b" {
		t.Errorf("path/prefix = %q/%q", req.Path, req.LogPrefix)
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"yaml", false},
		{"table", false},
		{"xml", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var parseErr error
			testCmd := &cli.Command{
				Name:  "test",
				Flags: []cli.Flag{&cli.StringFlag{Name: "format"}},
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, parseErr = parseOutputFormat(cmd)
					return nil
				},
			}
			if err := testCmd.Run(context.Background(), []string{"test", "--format", tt.format}); err != nil {
				t.Fatal(err)
			}
			if (parseErr != nil) != tt.wantErr {
				t.Errorf("parseOutputFormat(%q) error = %v, wantErr %v", tt.format, parseErr, tt.wantErr)
			}
		})
	}
}

func hasName(flag cli.Flag, name string) bool {
	if flag == nil {
		return false
	}
	for _, n := range flag.Names() {
		if n == name {
			return true
		}
	}
	return false
}
