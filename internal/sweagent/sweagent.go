// Package sweagent renders dataset instances into the YAML instance file
// consumed by agent harnesses.
package sweagent

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sweap/internal/dataset"
	"sweap/internal/image"
)

// Instance is one entry of the generated instances file.
type Instance struct {
	ImageName        string `yaml:"image_name"`
	ProblemStatement string `yaml:"problem_statement"`
	InstanceID       string `yaml:"instance_id"`
	BaseCommit       string `yaml:"base_commit"`
	RepoName         string `yaml:"repo_name"`
}

// repoName is fixed: inside the evaluation images the repository is
// always checked out at /app.
const repoName = "app"

// Generate converts every dataset instance into an agent instance.
func Generate(ds *dataset.Dataset, dockerhubUser string) ([]Instance, error) {
	instances := make([]Instance, 0, ds.Len())
	for _, in := range ds.Instances {
		uri, err := image.URI(in.InstanceID, dockerhubUser, in.Repo)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", in.InstanceID, err)
		}
		instances = append(instances, Instance{
			ImageName:        uri,
			ProblemStatement: in.FullProblemStatement(),
			InstanceID:       in.InstanceID,
			BaseCommit:       in.BaseCommit,
			RepoName:         repoName,
		})
	}
	return instances, nil
}

// Write serializes instances to a YAML file at path, creating parent
// directories as needed.
func Write(instances []Instance, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create instances file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(instances); err != nil {
		return fmt.Errorf("failed to encode instances: %w", err)
	}
	return enc.Close()
}

// Load reads a previously generated instances file.
func Load(path string) ([]Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instances file: %w", err)
	}
	var instances []Instance
	if err := yaml.Unmarshal(data, &instances); err != nil {
		return nil, fmt.Errorf("failed to parse instances file: %w", err)
	}
	return instances, nil
}
