package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sweap/internal/image"
)

// Config tunes the Docker runner. The defaults mirror the published
// harness limits: four CPUs, 30g of memory, a 30 minute test budget.
type Config struct {
	// Timeout is the per-instance wall clock budget.
	Timeout time.Duration `yaml:"timeout"`

	// CPUQuota is passed to --cpu-quota (100000 per CPU).
	CPUQuota int `yaml:"cpu_quota"`

	// Memory is passed to --memory.
	Memory string `yaml:"memory"`

	// Platform is passed to --platform; images are built for amd64 only.
	Platform string `yaml:"platform"`

	// PullTimeout bounds the image pull, separate from the run budget.
	PullTimeout time.Duration `yaml:"pull_timeout"`
}

// DefaultConfig returns the published harness limits.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Minute,
		CPUQuota:    400000,
		Memory:      "30g",
		Platform:    "linux/amd64",
		PullTimeout: 15 * time.Minute,
	}
}

// DockerRunner runs jobs in containers by shelling out to the docker CLI.
type DockerRunner struct {
	config     Config
	dockerPath string
	available  bool
	log        *zap.Logger
}

// NewDockerRunner locates the docker binary and verifies the daemon
// responds. Availability is checked once at construction.
func NewDockerRunner(config Config, log *zap.Logger) *DockerRunner {
	r := &DockerRunner{config: config, log: log}
	r.detectDocker()
	return r
}

func (r *DockerRunner) detectDocker() {
	dockerPath, err := exec.LookPath("docker")
	if err != nil {
		return
	}
	r.dockerPath = dockerPath

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, dockerPath, "version", "--format", "{{.Server.Version}}")
	if err := cmd.Run(); err != nil {
		return
	}
	r.available = true
}

// IsAvailable reports whether Docker can be used on this host.
func (r *DockerRunner) IsAvailable() bool {
	return r.available
}

// Run executes one job: load scripts, stage the workspace, pull the
// instance image, run the entryscript in a container, and collect the
// parsed test report. A non-zero container exit still yields a result if
// the parser wrote its report.
func (r *DockerRunner) Run(ctx context.Context, job Job) (*Result, error) {
	if !r.available {
		return nil, fmt.Errorf("docker is not available on this system")
	}

	scripts, err := LoadScripts(job.ScriptsDir, job.Instance.InstanceID)
	if err != nil {
		return nil, err
	}

	entryscript := BuildEntryscript(job.Instance)
	workspace, err := StageWorkspace(job, scripts, entryscript)
	if err != nil {
		return nil, err
	}

	imageURI, err := image.URI(job.Instance.InstanceID, job.DockerhubUser, job.Instance.Repo)
	if err != nil {
		return nil, err
	}
	r.log.Info("using image",
		zap.String("instance", job.Instance.InstanceID),
		zap.String("image", imageURI))

	if err := r.pull(ctx, imageURI); err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", imageURI, err)
	}

	exitCode, duration, runErr := r.runContainer(ctx, job, imageURI, workspace)
	if runErr != nil {
		return nil, runErr
	}
	if exitCode != 0 {
		r.log.Warn("entryscript returned non-zero",
			zap.String("instance", job.Instance.InstanceID),
			zap.Int("exit_code", exitCode))
	}

	output, err := CollectOutput(job, workspace)
	if err != nil {
		return nil, err
	}

	return &Result{Output: output, ExitCode: exitCode, Duration: duration}, nil
}

func (r *DockerRunner) pull(ctx context.Context, imageURI string) error {
	pullCtx, cancel := context.WithTimeout(ctx, r.config.PullTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(pullCtx, r.dockerPath,
		"pull", "--platform", r.config.Platform, imageURI)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, stderr.String())
	}
	return nil
}

// runContainer runs the entryscript and returns the container exit code.
// On timeout the named container is force-removed.
func (r *DockerRunner) runContainer(ctx context.Context, job Job, imageURI, workspace string) (int, time.Duration, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	name := "sweap-" + uuid.NewString()
	args := r.buildRunArgs(job, imageURI, workspace, name)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.dockerPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() != nil {
		r.removeContainer(name)
		// The parent context cancelling (shutdown signal) is not the
		// instance blowing its budget.
		if ctx.Err() != nil {
			return -1, duration, fmt.Errorf("instance %s interrupted: %w",
				job.Instance.InstanceID, ctx.Err())
		}
		return -1, duration, fmt.Errorf("instance %s timed out after %s",
			job.Instance.InstanceID, r.config.Timeout)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), duration, nil
		}
		return -1, duration, fmt.Errorf("docker run failed: %v: %s", err, stderr.String())
	}
	return 0, duration, nil
}

func (r *DockerRunner) buildRunArgs(job Job, imageURI, workspace, name string) []string {
	network := "bridge"
	if job.BlockNetwork {
		network = "none"
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		absWorkspace = workspace
	}

	args := []string{
		"run", "--rm",
		"--name", name,
		"-v", fmt.Sprintf("%s:/workspace:rw", absWorkspace),
		"--cpu-quota", fmt.Sprintf("%d", r.config.CPUQuota),
		"--memory", r.config.Memory,
		"--network", network,
		"--platform", r.config.Platform,
		imageURI,
		"bash", "/workspace/entryscript.sh",
	}
	return args
}

// removeContainer best-effort kills a container left behind by a timeout.
func (r *DockerRunner) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, r.dockerPath, "rm", "-f", name)
	if err := cmd.Run(); err != nil {
		r.log.Warn("failed to remove container", zap.String("name", name), zap.Error(err))
	}
}
