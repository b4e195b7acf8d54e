package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
	"github.com/NVIDIA/dgxc-autotune/pkg/serializer"
)

// RunResult is one analyzed candidate, ranked by measured step time.
type RunResult struct {
	Name            string  `json:"name"`
	TP              int     `json:"tp"`
	PP              int     `json:"pp"`
	CP              int     `json:"cp"`
	EP              int     `json:"ep"`
	MBS             int     `json:"mbs"`
	GBS             int     `json:"gbs"`
	Steps           int     `json:"steps"`
	AvgStepSeconds  float64 `json:"avg_step_seconds"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	// EstTrainingCost is the projected cost in USD to train the record's
	// full token budget at the given cost per node hour.
	EstTrainingCost float64 `json:"est_training_cost_usd"`
}

// stepTimingRe matches NeMo-style per-step timing lines, e.g.
// "train_step_timing in s: 1.23".
var stepTimingRe = regexp.MustCompile(`train_step_timing in s:?\s*([0-9]+(?:\.[0-9]+)?)`)

// Patterns recovering candidate settings from a run name.
var runNameRes = map[string]*regexp.Regexp{
	"tp":  regexp.MustCompile(`tp_(\d+)_`),
	"pp":  regexp.MustCompile(`pp_(\d+)_`),
	"cp":  regexp.MustCompile(`cp_(\d+)_`),
	"ep":  regexp.MustCompile(`ep_(\d+)_`),
	"mbs": regexp.MustCompile(`mbs_(\d+)_`),
	"seq": regexp.MustCompile(`seq_(\d+)_`),
	"gbs": regexp.MustCompile(`gbs_(\d+)(?:_|$)`),
}

// Results analyzes training logs under req.Path whose names start with
// req.LogPrefix, ranks candidates by average step time, persists the ranking
// next to the logs, and prints the top N unless quiet. A previously saved
// ranking is reused unless ForceReconstruct is set.
func (a *Autotuner) Results(ctx context.Context, rec *args.Args, req ResultsRequest) error {
	start := time.Now()
	defer func() { resultsParseDuration.Observe(time.Since(start).Seconds()) }()

	resultsPath := filepath.Join(req.Path, req.LogPrefix+"_results.json")

	results, err := a.loadSavedResults(resultsPath, req.ForceReconstruct)
	if err != nil {
		return err
	}
	if results == nil {
		results, err = a.reconstructResults(rec, req)
		if err != nil {
			return err
		}
		if err := saveResults(resultsPath, results); err != nil {
			return err
		}
	}

	if req.TopN > 0 && len(results) > req.TopN {
		results = results[:req.TopN]
	}
	if req.Quiet {
		return nil
	}
	return serializer.NewWriter(serializer.FormatTable, a.out).Serialize(ctx, results)
}

func (a *Autotuner) loadSavedResults(path string, force bool) ([]RunResult, error) {
	if force {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "reading saved results", err)
	}
	var results []RunResult
	if err := json.Unmarshal(data, &results); err != nil {
		// A stale or corrupt cache is reconstructed, not fatal.
		slog.Warn("ignoring malformed saved results", "path", path, "error", err)
		return nil, nil
	}
	slog.Debug("using saved results", "path", path, "count", len(results))
	return results, nil
}

func (a *Autotuner) reconstructResults(rec *args.Args, req ResultsRequest) ([]RunResult, error) {
	logs, err := filepath.Glob(filepath.Join(req.Path, req.LogPrefix+"*"))
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "globbing log files", err)
	}

	var results []RunResult
	for _, logPath := range logs {
		if filepath.Ext(logPath) == ".json" {
			continue // saved results or candidate artifacts
		}
		timings, err := parseStepTimings(logPath)
		if err != nil {
			return nil, err
		}
		if len(timings) == 0 {
			slog.Debug("no step timings found", "log", logPath)
			continue
		}
		name := filepath.Base(logPath)
		r := resultFromName(name)
		r.Steps = len(timings)
		r.AvgStepSeconds = average(timings)

		tokensPerStep := float64(r.GBS) * float64(seqOrDefault(name, rec.SeqLength))
		if r.AvgStepSeconds > 0 && tokensPerStep > 0 {
			r.TokensPerSecond = tokensPerStep / r.AvgStepSeconds
			totalSteps := float64(rec.NumTokensInB) * 1e9 / tokensPerStep
			hours := totalSteps * r.AvgStepSeconds / 3600
			r.EstTrainingCost = hours * float64(rec.Nodes) * req.CostPerNodeHour
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, cnserrors.Newf(cnserrors.ErrCodeNotFound,
			"no training logs with step timings under %s matching prefix %q", req.Path, req.LogPrefix)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].AvgStepSeconds != results[j].AvgStepSeconds {
			return results[i].AvgStepSeconds < results[j].AvgStepSeconds
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

func parseStepTimings(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "opening log file", err)
	}
	defer f.Close()

	var timings []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := stepTimingRe.FindStringSubmatch(scanner.Text()); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				timings = append(timings, v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal,
			fmt.Sprintf("scanning log file %s", path), err)
	}
	// The first measured step includes warmup; drop it when enough samples
	// remain.
	if len(timings) > 1 {
		timings = timings[1:]
	}
	return timings, nil
}

func resultFromName(name string) RunResult {
	r := RunResult{Name: name}
	get := func(key string) int {
		if m := runNameRes[key].FindStringSubmatch(name); m != nil {
			v, _ := strconv.Atoi(m[1])
			return v
		}
		return 0
	}
	r.TP, r.PP, r.CP, r.EP = get("tp"), get("pp"), get("cp"), get("ep")
	r.MBS, r.GBS = get("mbs"), get("gbs")
	return r
}

func seqOrDefault(name string, fallback int) int {
	if m := runNameRes["seq"].FindStringSubmatch(name); m != nil {
		v, _ := strconv.Atoi(m[1])
		return v
	}
	return fallback
}

func average(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func saveResults(path string, results []RunResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return cnserrors.Wrap(cnserrors.ErrCodeInternal, "encoding results", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cnserrors.Wrap(cnserrors.ErrCodeInternal, "writing results file", err)
	}
	return nil
}
