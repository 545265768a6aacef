// Package eval orchestrates a benchmark run: it matches candidate patches
// to dataset instances, fans the work out across bounded parallel workers,
// and scores each instance against its declared fail-to-pass and
// pass-to-pass test sets.
package eval

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sweap/internal/dataset"
	"sweap/internal/patchset"
	"sweap/internal/runner"
)

// Options configures a run.
type Options struct {
	OutputDir     string
	ScriptsDir    string
	DockerhubUser string

	// NumWorkers bounds parallel instance executions.
	NumWorkers int

	// Redo forces re-execution even when a cached report exists.
	Redo bool

	// BlockNetwork runs containers with networking disabled.
	BlockNetwork bool
}

// Evaluator scores a patch set against a dataset.
type Evaluator struct {
	ds     *dataset.Dataset
	runner runner.Runner
	opts   Options
	log    *zap.Logger
}

// New builds an evaluator. The runner decides where instances execute.
func New(ds *dataset.Dataset, r runner.Runner, opts Options, log *zap.Logger) *Evaluator {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	return &Evaluator{ds: ds, runner: r, opts: opts, log: log}
}

// InstanceResult is the scored outcome for one instance.
type InstanceResult struct {
	InstanceID string        `json:"instance_id"`
	Prefix     string        `json:"prefix,omitempty"`
	Resolved   bool          `json:"resolved"`
	Cached     bool          `json:"cached,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Report aggregates a whole run.
type Report struct {
	Results []InstanceResult

	// Missing lists patch instance IDs absent from the dataset.
	Missing []string
}

// Resolved counts resolved instances.
func (r *Report) Resolved() int {
	n := 0
	for _, res := range r.Results {
		if res.Resolved {
			n++
		}
	}
	return n
}

// Accuracy is resolved / evaluated. Zero evaluated instances yield 0.
func (r *Report) Accuracy() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Resolved()) / float64(len(r.Results))
}

// ResultMap returns instance_id -> resolved, the eval_results.json shape.
func (r *Report) ResultMap() map[string]bool {
	m := make(map[string]bool, len(r.Results))
	for _, res := range r.Results {
		m[res.InstanceID] = res.Resolved
	}
	return m
}

// Run evaluates every patch whose instance exists in the dataset.
// Instances run independently: a failure marks that instance unresolved
// and the run continues.
func (e *Evaluator) Run(ctx context.Context, patches []*patchset.Patch) (*Report, error) {
	valid, missing := e.filterPatches(patches)
	report := &Report{Missing: missing}

	if len(missing) > 0 {
		e.log.Warn("patch instances not in dataset",
			zap.Int("missing", len(missing)),
			zap.Strings("first", head(missing, 5)))
		e.log.Warn("proceeding with valid patches",
			zap.Int("valid", len(valid)),
			zap.Int("total", len(patches)))
	}

	var (
		mu sync.Mutex
		g  *errgroup.Group
	)
	g, ctx = errgroup.WithContext(ctx)
	g.SetLimit(e.opts.NumWorkers)

	for _, patch := range valid {
		patch := patch
		g.Go(func() error {
			res := e.evalOne(ctx, patch)
			mu.Lock()
			report.Results = append(report.Results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// evalOne runs a single instance and scores it. All failures collapse to
// an unresolved result carrying the error string.
func (e *Evaluator) evalOne(ctx context.Context, patch *patchset.Patch) InstanceResult {
	uid := patch.InstanceID
	res := InstanceResult{InstanceID: uid, Prefix: patch.Prefix}
	start := time.Now()

	in := e.ds.Get(uid)

	output, cached, err := e.obtainOutput(ctx, in, patch)
	res.Cached = cached
	res.Duration = time.Since(start)
	if err != nil {
		e.log.Warn("instance evaluation failed",
			zap.String("instance", uid), zap.Error(err))
		res.Error = err.Error()
		return res
	}

	res.Resolved = Resolved(in, output)
	e.log.Info("instance evaluated",
		zap.String("instance", uid),
		zap.Bool("resolved", res.Resolved),
		zap.Bool("cached", cached),
		zap.Duration("duration", res.Duration))
	return res
}

// obtainOutput reuses a cached report when one exists (unless Redo),
// otherwise executes the instance.
func (e *Evaluator) obtainOutput(ctx context.Context, in *dataset.Instance, patch *patchset.Patch) (*runner.TestOutput, bool, error) {
	if !e.opts.Redo {
		output, ok, err := runner.CachedOutput(e.opts.OutputDir, in.InstanceID, patch.Prefix)
		if err != nil {
			return nil, false, err
		}
		if ok {
			e.log.Info("skipping, output already exists",
				zap.String("instance", in.InstanceID))
			return output, true, nil
		}
	}

	result, err := e.runner.Run(ctx, runner.Job{
		Instance:      toRunnerInstance(in),
		Patch:         patch.Diff(),
		Prefix:        patch.Prefix,
		OutputDir:     e.opts.OutputDir,
		ScriptsDir:    e.opts.ScriptsDir,
		DockerhubUser: e.opts.DockerhubUser,
		BlockNetwork:  e.opts.BlockNetwork,
	})
	if err != nil {
		return nil, false, err
	}
	return result.Output, false, nil
}

// Resolved reports whether every declared fail-to-pass and pass-to-pass
// test is in the passed set. A nil output never resolves.
func Resolved(in *dataset.Instance, output *runner.TestOutput) bool {
	if output == nil {
		return false
	}
	passed := output.PassedSet()
	for _, name := range in.AllTests() {
		if !passed[name] {
			return false
		}
	}
	return true
}

func (e *Evaluator) filterPatches(patches []*patchset.Patch) (valid []*patchset.Patch, missing []string) {
	for _, p := range patches {
		if e.ds.Has(p.InstanceID) {
			valid = append(valid, p)
		} else {
			missing = append(missing, p.InstanceID)
		}
	}
	return valid, missing
}

func toRunnerInstance(in *dataset.Instance) *runner.Instance {
	return &runner.Instance{
		InstanceID:             in.InstanceID,
		Repo:                   in.Repo,
		BaseCommit:             in.BaseCommit,
		BeforeRepoSetCmd:       in.BeforeRepoSetCmd,
		SelectedTestFilesToRun: in.SelectedTestFilesToRun,
		BaseDockerfile:         in.BaseDockerfile,
		InstanceDockerfile:     in.InstanceDockerfile,
	}
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// WriteResults stores the instance_id -> resolved map as
// {outputDir}/eval_results.json.
func WriteResults(outputDir string, report *Report) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return writeJSON(outputDir, "eval_results.json", report.ResultMap())
}
