package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
	"github.com/NVIDIA/dgxc-autotune/pkg/values"
)

func testArgs(t *testing.T) *args.Args {
	t.Helper()
	return &args.Args{
		ConfigDir:             t.TempDir(),
		Model:                 "llama3_8b",
		Nodes:                 2,
		GPUsPerNode:           8,
		MountPath:             "/workspace",
		MountFrom:             "fs-primary",
		NodeGroup:             "gpu-a",
		LogsSubdir:            "logs",
		ContainerImage:        "nvcr.io/nvidia/nemo:25.04",
		RunDir:                "/nemo-workspace/nemo-run",
		TorchHome:             "/nemo-workspace/.cache",
		PythonPath:            "/nemo-workspace/nemo-run:$PYTHONPATH",
		TensorParallelSizes:   []int{1, 2, 4},
		PipelineParallelSizes: values.ListOrAuto{Values: []int{1}},
		ContextParallelSizes:  []int{1},
		ExpertParallelSizes:   []int{1},
		MicroBatchSizes:       values.ListOrAuto{Values: []int{1}},
		GlobalBatchSizes:      values.ListOrAuto{Values: []int{512}},
		ResourceShape:         "gpu.8xh200",
		MaxModelParallelSize:  32,
		MinModelParallelSize:  1,
		NumTokensInB:          15000,
		VocabSize:             32000,
		SeqLength:             8192,
	}
}

func TestGeneratePersistsRecordAndCandidates(t *testing.T) {
	rec := testArgs(t)
	eng := New()

	if err := eng.Generate(context.Background(), rec); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// The record lands at the deterministic args.json path with the parsed
	// list values intact.
	raw, err := os.ReadFile(filepath.Join(rec.ConfigDir, "llama3_8b", "args.json"))
	if err != nil {
		t.Fatalf("args.json not written: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("args.json malformed: %v", err)
	}
	want := []any{float64(1), float64(2), float64(4)}
	if !reflect.DeepEqual(decoded["tensor_parallel_sizes"], want) {
		t.Errorf("tensor_parallel_sizes = %v, want %v", decoded["tensor_parallel_sizes"], want)
	}

	// One candidate file per grid point (tp in 1,2,4), plus base config.
	dir := filepath.Join(rec.ConfigDir, "llama3_8b")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var candidateFiles int
	for _, e := range entries {
		switch e.Name() {
		case args.FileName, baseConfigFile:
		default:
			candidateFiles++
		}
	}
	if candidateFiles != 3 {
		t.Errorf("candidate files = %d, want 3", candidateFiles)
	}
}

func TestGenerateRejectsIndivisibleParallelSize(t *testing.T) {
	rec := testArgs(t)
	rec.TensorParallelSizes = []int{3} // 16 GPUs % 3 != 0

	err := New().Generate(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !cnserrors.IsCode(err, cnserrors.ErrCodeRange) {
		t.Fatalf("code = %s, want RANGE_ERROR", cnserrors.Code(err))
	}
}

func TestGenerateRejectsUnknownModel(t *testing.T) {
	rec := testArgs(t)
	rec.Model = "not_a_model"

	err := New().Generate(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !cnserrors.IsCode(err, cnserrors.ErrCodeUnsupportedModel) {
		t.Fatalf("code = %s, want UNSUPPORTED_MODEL", cnserrors.Code(err))
	}
	// Validation fails before anything is persisted.
	if _, err := os.Stat(filepath.Join(rec.ConfigDir, rec.Model)); !os.IsNotExist(err) {
		t.Error("failed generate should leave no partial state")
	}
}

func TestGenerateMarksMemoryRiskyCandidates(t *testing.T) {
	rec := testArgs(t)
	rec.Model = "llama3_70b" // 70B params: 1260 GB of state
	rec.MaxModelParallelSize = 4

	if err := New().Generate(context.Background(), rec); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	statuses, err := New().ListConfigs(context.Background(), rec.ConfigDir, rec.Model)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range statuses {
		// 1260 GB / (tp*pp) far exceeds 141 GB per GPU for tp <= 4.
		if !s.MemoryRisky {
			t.Errorf("candidate %s should be memory-risky", s.Name)
		}
	}
}

func TestListConfigsIdempotent(t *testing.T) {
	rec := testArgs(t)
	if err := New().Generate(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	eng := New()
	first, err := eng.ListConfigs(context.Background(), rec.ConfigDir, rec.Model)
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.ListConfigs(context.Background(), rec.ConfigDir, rec.Model)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two listings over unchanged state should be identical")
	}
	if len(first) != 3 {
		t.Errorf("listed %d candidates, want 3", len(first))
	}
}

func TestListConfigsMissingRecord(t *testing.T) {
	_, err := New().ListConfigs(context.Background(), t.TempDir(), "m")
	if err == nil {
		t.Fatal("expected error")
	}
	if !cnserrors.IsCode(err, cnserrors.ErrCodeNotFound) {
		t.Fatalf("code = %s, want NOT_FOUND_ERROR", cnserrors.Code(err))
	}
}

func TestListModels(t *testing.T) {
	models, err := New().ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) == 0 {
		t.Fatal("expected a non-empty catalog")
	}
}

type fakeLauncher struct {
	mu     sync.Mutex
	names  []string
	failOn string
}

func (f *fakeLauncher) Launch(_ context.Context, job Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.Name == f.failOn {
		return cnserrors.New(cnserrors.ErrCodeEngine, "boom")
	}
	f.names = append(f.names, job.Name)
	return nil
}

func (f *fakeLauncher) launched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

func TestRunLaunchesAllCandidates(t *testing.T) {
	rec := testArgs(t)
	if err := New().Generate(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	fl := &fakeLauncher{}
	eng := New(WithLauncher(fl), WithLaunchRate(rate.Inf))
	if err := eng.Run(context.Background(), rec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// tp=1 is memory-risky for llama3_8b on h200 (144 GB > 141 GB), so only
	// tp=2 and tp=4 launch without --run-all.
	if got := len(fl.launched()); got != 2 {
		t.Fatalf("launched %d candidates, want 2: %v", got, fl.launched())
	}
}

func TestRunAllIncludesRiskyCandidates(t *testing.T) {
	rec := testArgs(t)
	if err := New().Generate(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	fl := &fakeLauncher{}
	eng := New(WithLauncher(fl), WithLaunchRate(rate.Inf))
	rec.RunAll = true
	if err := eng.Run(context.Background(), rec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := len(fl.launched()); got != 3 {
		t.Fatalf("launched %d candidates, want 3: %v", got, fl.launched())
	}
}

func TestRunSequentialPreservesOrder(t *testing.T) {
	rec := testArgs(t)
	if err := New().Generate(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	fl := &fakeLauncher{}
	eng := New(WithLauncher(fl))
	rec.Sequential = true
	rec.RunAll = true
	if err := eng.Run(context.Background(), rec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	launched := fl.launched()
	if len(launched) != 3 {
		t.Fatalf("launched %d, want 3", len(launched))
	}
	for i := 1; i < len(launched); i++ {
		if launched[i-1] >= launched[i] {
			t.Errorf("sequential run should launch in listing order: %v", launched)
		}
	}
}

func TestRunPropagatesLaunchFailure(t *testing.T) {
	rec := testArgs(t)
	if err := New().Generate(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	statuses, err := New().ListConfigs(context.Background(), rec.ConfigDir, rec.Model)
	if err != nil {
		t.Fatal(err)
	}

	fl := &fakeLauncher{failOn: statuses[1].Name}
	eng := New(WithLauncher(fl), WithLaunchRate(rate.Inf))
	rec.RunAll = true
	err = eng.Run(context.Background(), rec)
	if err == nil {
		t.Fatal("launch failure should propagate")
	}
	if !cnserrors.IsCode(err, cnserrors.ErrCodeEngine) {
		t.Fatalf("code = %s, want ENGINE_ERROR", cnserrors.Code(err))
	}
}

func TestRunWithoutCandidates(t *testing.T) {
	rec := testArgs(t)
	err := New(WithLauncher(&fakeLauncher{})).Run(context.Background(), rec)
	if err == nil {
		t.Fatal("run before generate should fail")
	}
	if !cnserrors.IsCode(err, cnserrors.ErrCodeNotFound) {
		t.Fatalf("code = %s, want NOT_FOUND_ERROR", cnserrors.Code(err))
	}
}
