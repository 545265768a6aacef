// Package dataset loads and indexes SWE-Bench Pro instance records.
// An instance is one benchmark problem: a repository at a base commit, an
// issue description with requirements, the golden fix, and the declared
// fail-to-pass / pass-to-pass test sets that score a candidate patch.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
)

// Instance is a single benchmark problem loaded from the dataset CSV or
// JSONL. Field names mirror the dataset columns.
type Instance struct {
	InstanceID   string `csv:"instance_id" json:"instance_id"`
	Repo         string `csv:"repo" json:"repo"`
	RepoLanguage string `csv:"repo_language" json:"repo_language"`
	BaseCommit   string `csv:"base_commit" json:"base_commit"`

	ProblemStatement string `csv:"problem_statement" json:"problem_statement"`
	Requirements     string `csv:"requirements" json:"requirements"`
	Interface        string `csv:"interface" json:"interface"`

	// Patch is the golden (reference) solution diff. TestPatch carries the
	// test additions and is never applied by the harness.
	Patch     string `csv:"patch" json:"patch"`
	TestPatch string `csv:"test_patch" json:"test_patch"`

	FailToPass TestList `csv:"fail_to_pass" json:"fail_to_pass"`
	PassToPass TestList `csv:"pass_to_pass" json:"pass_to_pass"`

	// Execution metadata consumed by the entryscript.
	BeforeRepoSetCmd       string   `csv:"before_repo_set_cmd" json:"before_repo_set_cmd"`
	SelectedTestFilesToRun TestList `csv:"selected_test_files_to_run" json:"selected_test_files_to_run"`

	BaseDockerfile     string `csv:"base_dockerfile" json:"base_dockerfile"`
	InstanceDockerfile string `csv:"instance_dockerfile" json:"instance_dockerfile"`
}

// RepoOrg returns the organization part of the repo slug.
func (in *Instance) RepoOrg() string {
	org, _, _ := strings.Cut(in.Repo, "/")
	return org
}

// RepoName returns the repository part of the repo slug.
func (in *Instance) RepoName() string {
	_, name, ok := strings.Cut(in.Repo, "/")
	if !ok {
		return in.Repo
	}
	return name
}

// FullProblemStatement composes the problem statement shown to an agent:
// the issue text, the requirements, and any new interfaces introduced.
func (in *Instance) FullProblemStatement() string {
	return fmt.Sprintf("%s\n\nRequirements:\n%s\n\nNew interfaces introduced:\n%s",
		in.ProblemStatement, in.Requirements, in.Interface)
}

// AllTests returns fail-to-pass followed by pass-to-pass test names.
func (in *Instance) AllTests() []string {
	all := make([]string, 0, len(in.FailToPass)+len(in.PassToPass))
	all = append(all, in.FailToPass...)
	all = append(all, in.PassToPass...)
	return all
}

// Dataset is an instance collection indexed by instance_id.
type Dataset struct {
	Instances []*Instance
	byID      map[string]*Instance
}

// Load reads a dataset from path. A .jsonl suffix selects the JSON Lines
// parser; anything else is read as CSV.
func Load(path string) (*Dataset, error) {
	var (
		instances []*Instance
		err       error
	)
	if strings.HasSuffix(path, ".jsonl") {
		instances, err = loadJSONL(path)
	} else {
		instances, err = loadCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return New(instances)
}

// New indexes the given instances. Duplicate instance IDs are rejected:
// instance_id is the sole key joining patches, scripts and images.
func New(instances []*Instance) (*Dataset, error) {
	byID := make(map[string]*Instance, len(instances))
	for _, in := range instances {
		if in.InstanceID == "" {
			return nil, fmt.Errorf("instance with empty instance_id")
		}
		if _, dup := byID[in.InstanceID]; dup {
			return nil, fmt.Errorf("duplicate instance_id %q", in.InstanceID)
		}
		byID[in.InstanceID] = in
	}
	return &Dataset{Instances: instances, byID: byID}, nil
}

// Get returns the instance with the given ID, or nil.
func (d *Dataset) Get(instanceID string) *Instance {
	return d.byID[instanceID]
}

// Has reports whether an instance with the given ID exists.
func (d *Dataset) Has(instanceID string) bool {
	_, ok := d.byID[instanceID]
	return ok
}

// Len returns the number of instances.
func (d *Dataset) Len() int {
	return len(d.Instances)
}

func loadCSV(path string) ([]*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var instances []*Instance
	if err := gocsv.UnmarshalFile(f, &instances); err != nil {
		return nil, fmt.Errorf("failed to parse dataset csv %s: %w", path, err)
	}
	return instances, nil
}

func loadJSONL(path string) ([]*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var instances []*Instance
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var in Instance
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return nil, fmt.Errorf("failed to parse dataset line %d: %w", i+1, err)
		}
		instances = append(instances, &in)
	}
	return instances, nil
}

// SaveCSV writes the dataset back out as CSV, preserving the Python list
// literal encoding for list-valued columns.
func (d *Dataset) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&d.Instances, f); err != nil {
		return fmt.Errorf("failed to write dataset csv: %w", err)
	}
	return nil
}

// LanguageCensus counts instances per repo_language.
func (d *Dataset) LanguageCensus() map[string]int {
	census := make(map[string]int)
	for _, in := range d.Instances {
		census[in.RepoLanguage]++
	}
	return census
}

// JoinDockerfiles fills the base_dockerfile and instance_dockerfile columns
// from a dockerfiles directory laid out as
// {dir}/{base_dockerfile|instance_dockerfile}/{instance_id}/Dockerfile.
// It returns how many instances are missing each file. Instances that
// already carry dockerfile content are left untouched.
func (d *Dataset) JoinDockerfiles(dir string) (missingBase, missingInstance int, err error) {
	for _, in := range d.Instances {
		if in.BaseDockerfile == "" {
			content, rerr := readDockerfile(dir, "base_dockerfile", in.InstanceID)
			if rerr != nil {
				return 0, 0, rerr
			}
			if content == "" {
				missingBase++
			}
			in.BaseDockerfile = content
		}
		if in.InstanceDockerfile == "" {
			content, rerr := readDockerfile(dir, "instance_dockerfile", in.InstanceID)
			if rerr != nil {
				return 0, 0, rerr
			}
			if content == "" {
				missingInstance++
			}
			in.InstanceDockerfile = content
		}
	}
	return missingBase, missingInstance, nil
}

func readDockerfile(dir, kind, instanceID string) (string, error) {
	path := filepath.Join(dir, kind, instanceID, "Dockerfile")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
