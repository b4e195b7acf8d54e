package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	"github.com/NVIDIA/dgxc-autotune/pkg/catalog"
	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
	"github.com/NVIDIA/dgxc-autotune/pkg/shape"
)

// baseConfigFile holds the reference candidate the search grid is built
// around; it is excluded from candidate listings, like the args record.
const baseConfigFile = "base_config.json"

// Defaults used when a search dimension is set to "auto" and the engine
// picks the candidates itself.
var (
	autoPipelineParallelSizes = []int{1, 2}
	autoMicroBatchSizes       = []int{1, 2, 4}
	autoGlobalBatchSizes      = []int{512}
)

// Autotuner is the bundled Engine implementation.
type Autotuner struct {
	launcher   Launcher
	out        io.Writer
	launchRate rate.Limit
}

// Option configures an Autotuner.
type Option func(*Autotuner)

// WithLauncher overrides the default container launcher.
func WithLauncher(l Launcher) Option {
	return func(a *Autotuner) { a.launcher = l }
}

// WithOutput redirects human-readable engine output (results tables).
func WithOutput(w io.Writer) Option {
	return func(a *Autotuner) { a.out = w }
}

// WithLaunchRate bounds how fast parallel runs submit jobs.
func WithLaunchRate(r rate.Limit) Option {
	return func(a *Autotuner) { a.launchRate = r }
}

// New returns an Autotuner with default output and launch pacing.
func New(opts ...Option) *Autotuner {
	a := &Autotuner{
		out:        os.Stdout,
		launchRate: rate.Limit(4), // job submissions per second
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Candidate is one point of the search grid.
type Candidate struct {
	Nodes       int     `json:"nodes"`
	TP          int     `json:"tp"`
	PP          int     `json:"pp"`
	CP          int     `json:"cp"`
	EP          int     `json:"ep"`
	VP          int     `json:"vp,omitempty"`
	MBS         int     `json:"mbs"`
	GBS         int     `json:"gbs"`
	SeqLength   int     `json:"seq_length"`
	EstMemoryGB float64 `json:"est_memory_gb"`
	MemoryRisky bool    `json:"memory_risky"`
}

// Name returns the canonical run name for this candidate.
func (c Candidate) Name(model string) string {
	return args.RunName(model, c.Nodes, c.TP, c.PP, c.CP, c.EP, c.VP, c.MBS, c.SeqLength, c.GBS)
}

// Generate validates the record, enumerates the candidate grid, and persists
// the record plus one JSON file per candidate under
// <config-dir>/<model>/.
func (a *Autotuner) Generate(ctx context.Context, rec *args.Args) error {
	start := time.Now()
	defer func() { generateDuration.Observe(time.Since(start).Seconds()) }()

	candidates, err := a.enumerate(rec)
	if err != nil {
		generateTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := a.persist(rec, candidates); err != nil {
		generateTotal.WithLabelValues("error").Inc()
		return err
	}

	generateTotal.WithLabelValues("success").Inc()
	slog.Info("generated candidate configurations",
		"model", rec.Model,
		"candidates", len(candidates),
		"dir", args.Dir(rec.ConfigDir, rec.Model),
	)
	return nil
}

func (a *Autotuner) enumerate(rec *args.Args) ([]Candidate, error) {
	if err := catalog.Validate(rec.Model); err != nil {
		return nil, err
	}
	model, _ := catalog.Lookup(rec.Model)

	totalGPUs := rec.Nodes * rec.GPUsPerNode
	if totalGPUs <= 0 {
		return nil, cnserrors.Newf(cnserrors.ErrCodeRange,
			"nodes and gpus-per-node must be positive, got %d x %d", rec.Nodes, rec.GPUsPerNode)
	}

	tpSizes := rec.TensorParallelSizes
	ppSizes := listOrDefault(rec.PipelineParallelSizes.Values, rec.PipelineParallelSizes.Auto, autoPipelineParallelSizes)
	cpSizes := rec.ContextParallelSizes
	epSizes := rec.ExpertParallelSizes
	mbsSizes := listOrDefault(rec.MicroBatchSizes.Values, rec.MicroBatchSizes.Auto, autoMicroBatchSizes)
	gbsSizes := listOrDefault(rec.GlobalBatchSizes.Values, rec.GlobalBatchSizes.Auto, autoGlobalBatchSizes)
	vpSizes := rec.VirtualPipelineParallelSizes
	if len(vpSizes) == 0 {
		vpSizes = []int{0} // no virtual pipelining
	}

	for name, sizes := range map[string][]int{
		"tensor": tpSizes, "pipeline": ppSizes, "context": cpSizes, "expert": epSizes,
	} {
		for _, s := range sizes {
			if s <= 0 || totalGPUs%s != 0 {
				return nil, cnserrors.Newf(cnserrors.ErrCodeRange,
					"invalid %s parallel size %d for %d GPUs", name, s, totalGPUs)
			}
		}
	}

	gpuShape, err := shape.Parse(rec.ResourceShape)
	if err != nil {
		return nil, err
	}
	spec := gpuShape.Specs(rec.MemoryPerGPU)

	var candidates []Candidate
	for _, tp := range tpSizes {
		for _, pp := range ppSizes {
			mp := tp * pp
			if mp < rec.MinModelParallelSize || mp > rec.MaxModelParallelSize {
				continue
			}
			for _, cp := range cpSizes {
				if totalGPUs%(mp*cp) != 0 {
					continue
				}
				for _, ep := range epSizes {
					for _, vp := range vpSizes {
						for _, mbs := range mbsSizes {
							for _, gbs := range gbsSizes {
								// 18 bytes/param covers bf16 weights and grads
								// plus fp32 Adam state, sharded across the
								// model-parallel group.
								est := model.ParamsB * 18 / float64(mp*cp)
								candidates = append(candidates, Candidate{
									Nodes:       rec.Nodes,
									TP:          tp,
									PP:          pp,
									CP:          cp,
									EP:          ep,
									VP:          vp,
									MBS:         mbs,
									GBS:         gbs,
									SeqLength:   rec.SeqLength,
									EstMemoryGB: est,
									MemoryRisky: est > spec.MemoryGB,
								})
							}
						}
					}
				}
			}
		}
	}
	if len(candidates) == 0 {
		return nil, cnserrors.Newf(cnserrors.ErrCodeRange,
			"no viable candidates for %d GPUs within model parallel bounds [%d, %d]",
			totalGPUs, rec.MinModelParallelSize, rec.MaxModelParallelSize)
	}
	return candidates, nil
}

func (a *Autotuner) persist(rec *args.Args, candidates []Candidate) error {
	if err := rec.Save(rec.ConfigDir); err != nil {
		return err
	}
	dir := args.Dir(rec.ConfigDir, rec.Model)

	write := func(name string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return cnserrors.Wrap(cnserrors.ErrCodeInternal, "encoding candidate", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return cnserrors.Wrap(cnserrors.ErrCodeInternal, "writing candidate file", err)
		}
		return nil
	}

	if err := write(baseConfigFile, candidates[0]); err != nil {
		return err
	}
	for _, c := range candidates {
		if err := write(c.Name(rec.Model)+".json", c); err != nil {
			return err
		}
	}
	return nil
}

// ListConfigs returns the generated candidates, sorted by name so repeated
// listings over unchanged state are identical.
func (a *Autotuner) ListConfigs(_ context.Context, configDir, model string) ([]ConfigStatus, error) {
	if _, err := args.Load(configDir, model); err != nil {
		return nil, err
	}
	candidates, err := loadCandidates(args.Dir(configDir, model))
	if err != nil {
		return nil, err
	}

	statuses := make([]ConfigStatus, 0, len(candidates))
	for _, nc := range candidates {
		status := "generated"
		if nc.candidate.MemoryRisky {
			status = "generated (memory risk, skipped unless --run-all)"
		}
		statuses = append(statuses, ConfigStatus{
			Name:        nc.name,
			TP:          nc.candidate.TP,
			PP:          nc.candidate.PP,
			CP:          nc.candidate.CP,
			EP:          nc.candidate.EP,
			VP:          nc.candidate.VP,
			MBS:         nc.candidate.MBS,
			GBS:         nc.candidate.GBS,
			MemoryRisky: nc.candidate.MemoryRisky,
			Status:      status,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}

// ListModels returns the supported model names.
func (a *Autotuner) ListModels(_ context.Context) ([]string, error) {
	return catalog.Names()
}

type namedCandidate struct {
	name      string
	candidate Candidate
}

// loadCandidates reads every candidate file in dir, skipping the args record
// and the base config.
func loadCandidates(dir string) ([]namedCandidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeNotFound,
			fmt.Sprintf("no generated configurations under %s", dir), err)
	}

	var out []namedCandidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") ||
			name == args.FileName || name == baseConfigFile {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "reading candidate file", err)
		}
		var c Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal,
				fmt.Sprintf("malformed candidate file %s", name), err)
		}
		out = append(out, namedCandidate{name: strings.TrimSuffix(name, ".json"), candidate: c})
	}
	if len(out) == 0 {
		return nil, cnserrors.Newf(cnserrors.ErrCodeNotFound,
			"no candidate configurations under %s (run generate first)", dir)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func listOrDefault(values []int, auto bool, autoDefaults []int) []int {
	if auto {
		return autoDefaults
	}
	return values
}
