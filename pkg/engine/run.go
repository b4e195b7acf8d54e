package engine

import (
	"context"
	"log/slog"
	"path"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

// Run launches the generated candidates. Candidates flagged as memory-risky
// are skipped unless the record's RunAll flag is set. Launches run in
// parallel through an errgroup unless Sequential is set; parallel
// submissions are paced by the configured launch rate.
func (a *Autotuner) Run(ctx context.Context, rec *args.Args) error {
	candidates, err := loadCandidates(args.Dir(rec.ConfigDir, rec.Model))
	if err != nil {
		return err
	}

	launcher := a.launcher
	if launcher == nil {
		launcher, err = NewContainerLauncher(rec)
		if err != nil {
			return err
		}
	}

	session := uuid.NewString()
	slog.Info("starting autotune run",
		"session", session,
		"model", rec.Model,
		"candidates", len(candidates),
		"sequential", rec.Sequential,
		"run_all", rec.RunAll,
	)

	jobs := make([]Job, 0, len(candidates))
	for _, nc := range candidates {
		if nc.candidate.MemoryRisky && !rec.RunAll {
			launchTotal.WithLabelValues("skipped").Inc()
			slog.Warn("skipping candidate with memory risk (use --run-all to include)",
				"session", session, "name", nc.name, "est_memory_gb", nc.candidate.EstMemoryGB)
			continue
		}
		jobs = append(jobs, Job{
			SessionID: session,
			Name:      nc.name,
			Candidate: nc.candidate,
			LogsDir:   path.Join(rec.MountPath, rec.LogsSubdir, nc.name),
		})
	}
	if len(jobs) == 0 {
		return cnserrors.New(cnserrors.ErrCodeEngine,
			"all candidates were skipped for memory risk; re-run with --run-all to include them")
	}

	if rec.Sequential {
		for _, job := range jobs {
			if err := a.launch(ctx, launcher, job); err != nil {
				return err
			}
		}
		return nil
	}

	limiter := rate.NewLimiter(a.launchRate, 1)
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			return a.launch(gctx, launcher, job)
		})
	}
	return g.Wait()
}

func (a *Autotuner) launch(ctx context.Context, launcher Launcher, job Job) error {
	if err := launcher.Launch(ctx, job); err != nil {
		launchTotal.WithLabelValues("error").Inc()
		return cnserrors.Wrap(cnserrors.ErrCodeEngine, "launching "+job.Name, err)
	}
	launchTotal.WithLabelValues("launched").Inc()
	slog.Info("candidate launched", "session", job.SessionID, "name", job.Name)
	return nil
}
