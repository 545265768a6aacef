// Package patchset handles candidate patch collections: the JSON files fed
// to the evaluator and the prediction trees produced by agent runs.
package patchset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Patch is one candidate solution for an instance. Prediction tooling
// writes the diff under model_patch; hand-assembled sets use patch. The
// prefix distinguishes multiple patch sets evaluated into the same output
// directory.
type Patch struct {
	InstanceID string `json:"instance_id"`
	Patch      string `json:"patch,omitempty"`
	ModelPatch string `json:"model_patch,omitempty"`
	Prefix     string `json:"prefix,omitempty"`

	// ModelName is carried through from prediction files when present.
	ModelName string `json:"model_name_or_path,omitempty"`
}

// Diff returns the unified diff to apply, preferring model_patch.
func (p *Patch) Diff() string {
	if p.ModelPatch != "" {
		return p.ModelPatch
	}
	return p.Patch
}

// Load reads a patches JSON file: a top-level array of patch entries.
func Load(path string) ([]*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patches: %w", err)
	}
	var patches []*Patch
	if err := json.Unmarshal(data, &patches); err != nil {
		return nil, fmt.Errorf("failed to parse patches %s: %w", path, err)
	}
	return patches, nil
}

// Save writes patches as indented JSON.
func Save(path string, patches []*Patch) error {
	data, err := json.MarshalIndent(patches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode patches: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
