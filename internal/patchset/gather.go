package patchset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Gather walks a results directory of instance_* folders, pulls the .pred
// file out of each, and returns patch entries tagged with prefix. A .pred
// file may be JSON (instance_id / model_patch / patch keys) or the raw
// diff text; in the latter case the folder name serves as the instance ID.
func Gather(dir, prefix string, log *zap.Logger) ([]*Patch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "instance_") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var patches []*Patch
	for _, name := range names {
		instanceDir := filepath.Join(dir, name)
		predFile := findPredFile(instanceDir, name)
		if predFile == "" {
			log.Warn("no .pred file found", zap.String("instance", name))
			continue
		}

		content, err := os.ReadFile(predFile)
		if err != nil {
			log.Warn("failed to read prediction",
				zap.String("file", predFile), zap.Error(err))
			continue
		}

		patch := parsePred(content)
		if patch.InstanceID == "" {
			patch.InstanceID = name
			log.Warn("using folder name as instance_id", zap.String("instance", name))
		}
		patch.Prefix = prefix
		patches = append(patches, patch)
	}
	return patches, nil
}

// findPredFile prefers {instanceID}*.pred, then any *.pred.
func findPredFile(dir, instanceID string) string {
	matches, _ := filepath.Glob(filepath.Join(dir, instanceID+"*.pred"))
	if len(matches) > 0 {
		sort.Strings(matches)
		return matches[0]
	}
	matches, _ = filepath.Glob(filepath.Join(dir, "*.pred"))
	if len(matches) > 0 {
		sort.Strings(matches)
		return matches[0]
	}
	return ""
}

// parsePred decodes a prediction payload. Non-JSON content is treated as
// the patch text itself.
func parsePred(content []byte) *Patch {
	var pred struct {
		InstanceID string `json:"instance_id"`
		ModelPatch string `json:"model_patch"`
		Patch      string `json:"patch"`
	}
	if err := json.Unmarshal(content, &pred); err != nil {
		return &Patch{Patch: string(content)}
	}

	p := &Patch{InstanceID: pred.InstanceID}
	switch {
	case pred.ModelPatch != "":
		p.Patch = pred.ModelPatch
	case pred.Patch != "":
		p.Patch = pred.Patch
	default:
		p.Patch = string(content)
	}
	return p
}
