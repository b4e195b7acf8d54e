// Package engine is the boundary to the autotuning engine. The CLI commands
// depend only on the Engine interface; Autotuner is the bundled
// implementation that generates candidate configurations, launches them, and
// ranks their measured results.
package engine

import (
	"context"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
)

// Engine is the autotuning collaborator behind the five commands.
type Engine interface {
	// Generate enumerates and persists candidate configurations for the
	// given validated args record.
	Generate(ctx context.Context, a *args.Args) error

	// Run executes the previously generated candidates. The Sequential and
	// RunAll flags on the record control scheduling and selection.
	Run(ctx context.Context, a *args.Args) error

	// Results analyzes training logs and reports the best candidates.
	Results(ctx context.Context, a *args.Args, req ResultsRequest) error

	// ListConfigs lists the generated candidates and their status.
	ListConfigs(ctx context.Context, configDir, model string) ([]ConfigStatus, error)

	// ListModels lists the supported model catalog.
	ListModels(ctx context.Context) ([]string, error)
}

// ResultsRequest carries the results-analysis options.
type ResultsRequest struct {
	Path             string
	LogPrefix        string
	TopN             int
	ForceReconstruct bool
	CostPerNodeHour  float64
	Quiet            bool
}

// ConfigStatus describes one generated candidate in a listing.
type ConfigStatus struct {
	Name        string `json:"name"`
	TP          int    `json:"tp"`
	PP          int    `json:"pp"`
	CP          int    `json:"cp"`
	EP          int    `json:"ep"`
	VP          int    `json:"vp,omitempty"`
	MBS         int    `json:"mbs"`
	GBS         int    `json:"gbs"`
	MemoryRisky bool   `json:"memory_risky"`
	Status      string `json:"status"`
}

// Job is one candidate submitted to a Launcher.
type Job struct {
	// SessionID tags every job of one run invocation.
	SessionID string
	// Name is the canonical run name of the candidate.
	Name string
	// Candidate holds the parallelism and batch settings under test.
	Candidate Candidate
	// LogsDir is where the training run writes its logs.
	LogsDir string
}

// Launcher submits candidate jobs for execution. Scheduling and training
// mechanics belong to the external platform, not to this package.
type Launcher interface {
	Launch(ctx context.Context, job Job) error
}
