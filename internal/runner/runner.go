// Package runner executes one benchmark instance at a time inside its
// prebuilt Docker environment: stage the workspace, apply the candidate
// patch at the base commit, run the project's own test script, and parse
// the result into a structured test report.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Job is the unit of work: one instance, one candidate patch.
type Job struct {
	Instance *Instance

	// Patch is the unified diff to apply at the instance's base commit.
	Patch string

	// Prefix namespaces the artifacts this job writes under the instance
	// output directory ("{prefix}_output.json" and friends).
	Prefix string

	// OutputDir is the evaluation output root; artifacts land under
	// {OutputDir}/{instance_id}/.
	OutputDir string

	// ScriptsDir holds per-instance run_script.sh and parser.py files.
	ScriptsDir string

	// DockerhubUser is the account holding the sweap-images repository.
	DockerhubUser string

	// BlockNetwork disables container networking for the test run.
	BlockNetwork bool
}

// Instance carries the fields the runner needs from a dataset record.
// It is a narrow mirror of dataset.Instance so the runner does not depend
// on the dataset package.
type Instance struct {
	InstanceID             string
	Repo                   string
	BaseCommit             string
	BeforeRepoSetCmd       string
	SelectedTestFilesToRun []string
	BaseDockerfile         string
	InstanceDockerfile     string
}

// TestCase is one test outcome reported by the instance's parser script.
type TestCase struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// StatusPassed is the parser-script status marking a passing test.
const StatusPassed = "PASSED"

// TestOutput is the parsed content of /workspace/output.json.
type TestOutput struct {
	Tests []TestCase `json:"tests"`
}

// PassedSet returns the names of tests whose status is PASSED.
func (o *TestOutput) PassedSet() map[string]bool {
	passed := make(map[string]bool, len(o.Tests))
	for _, tc := range o.Tests {
		if tc.Status == StatusPassed {
			passed[tc.Name] = true
		}
	}
	return passed
}

// Result is what a runner hands back for a completed job. A non-zero exit
// code is not an error as long as the parser produced an output report.
type Result struct {
	Output   *TestOutput
	ExitCode int
	Duration time.Duration
}

// Runner executes jobs. DockerRunner is the production implementation;
// tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, job Job) (*Result, error)
}

// InstanceDir returns the per-instance artifact directory.
func InstanceDir(outputDir, instanceID string) string {
	return filepath.Join(outputDir, instanceID)
}

// OutputPath returns where a job's parsed test report is stored.
func OutputPath(outputDir, instanceID, prefix string) string {
	return filepath.Join(outputDir, instanceID, prefix+"_output.json")
}

// CachedOutput loads a previously stored test report, if one exists.
func CachedOutput(outputDir, instanceID, prefix string) (*TestOutput, bool, error) {
	data, err := os.ReadFile(OutputPath(outputDir, instanceID, prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out TestOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("corrupt cached output for %s: %w", instanceID, err)
	}
	return &out, true, nil
}
