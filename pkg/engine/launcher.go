package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/distribution/reference"

	"github.com/NVIDIA/dgxc-autotune/pkg/args"
	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

// ContainerLauncher submits candidate jobs as container runs built from the
// record's executor settings.
type ContainerLauncher struct {
	image     string
	mountPath string
	mountFrom string
	nodeGroup string
	runDir    string
	env       []string
}

// NewContainerLauncher builds a launcher from the record, validating the
// container image reference up front so a bad image fails before the first
// submission rather than mid-run.
func NewContainerLauncher(rec *args.Args) (*ContainerLauncher, error) {
	if _, err := reference.ParseNormalizedNamed(rec.ContainerImage); err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeEngine,
			fmt.Sprintf("invalid container image %q", rec.ContainerImage), err)
	}

	env := []string{
		"TORCH_HOME=" + rec.TorchHome,
		"PYTHONPATH=" + rec.PythonPath,
	}
	if rec.HFToken != "" {
		env = append(env, "HF_TOKEN="+rec.HFToken)
	}
	if rec.WandbAPIKey != "" {
		env = append(env, "WANDB_API_KEY="+rec.WandbAPIKey)
	}

	return &ContainerLauncher{
		image:     rec.ContainerImage,
		mountPath: rec.MountPath,
		mountFrom: rec.MountFrom,
		nodeGroup: rec.NodeGroup,
		runDir:    rec.RunDir,
		env:       env,
	}, nil
}

// Launch starts one candidate run. The submission command writes its own
// logs under the job's LogsDir.
func (l *ContainerLauncher) Launch(ctx context.Context, job Job) error {
	argv := []string{
		"run", "--rm",
		"--gpus", "all",
		"--name", job.Name,
		"--label", "autotune.session=" + job.SessionID,
		"--label", "autotune.node-group=" + l.nodeGroup,
		"-v", l.mountFrom + ":" + l.mountPath,
		"-w", l.runDir,
	}
	for _, e := range l.env {
		argv = append(argv, "-e", e)
	}
	argv = append(argv, l.image,
		"python", "-m", "autotune.pretrain",
		"--run-name", job.Name,
		"--logs-dir", job.LogsDir,
		"--tp", fmt.Sprint(job.Candidate.TP),
		"--pp", fmt.Sprint(job.Candidate.PP),
		"--cp", fmt.Sprint(job.Candidate.CP),
		"--ep", fmt.Sprint(job.Candidate.EP),
		"--vp", fmt.Sprint(job.Candidate.VP),
		"--mbs", fmt.Sprint(job.Candidate.MBS),
		"--gbs", fmt.Sprint(job.Candidate.GBS),
		"--seq-length", fmt.Sprint(job.Candidate.SeqLength),
		"--nodes", fmt.Sprint(job.Candidate.Nodes),
	)

	cmd := exec.CommandContext(ctx, "docker", argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("container run for %s: %w", job.Name, err)
	}
	return nil
}
