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

// Compile collects predictions from an agent trajectory tree laid out as
// {base}/{model}/traj/{instance_id}/. Each instance folder holds either a
// .pred file (JSON prediction) or a bare .patch file (the diff itself).
func Compile(base, model string, log *zap.Logger) ([]*Patch, error) {
	trajDir := filepath.Join(base, model, "traj")
	entries, err := os.ReadDir(trajDir)
	if err != nil {
		return nil, fmt.Errorf("trajectory folder not found: %w", err)
	}

	var predictions []*Patch
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		instanceID := e.Name()
		instanceDir := filepath.Join(trajDir, instanceID)

		files, _ := filepath.Glob(filepath.Join(instanceDir, "*.pred"))
		if len(files) == 0 {
			files, _ = filepath.Glob(filepath.Join(instanceDir, "*.patch"))
		}
		if len(files) == 0 {
			log.Warn("no .pred or .patch file found", zap.String("instance", instanceID))
			continue
		}
		sort.Strings(files)

		pred, err := loadPrediction(files[0], instanceID)
		if err != nil {
			log.Warn("failed to load prediction",
				zap.String("file", files[0]), zap.Error(err))
			continue
		}
		predictions = append(predictions, pred)
	}
	return predictions, nil
}

func loadPrediction(path, instanceID string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(string(data))

	// A bare .patch file is the diff itself.
	if filepath.Ext(path) == ".patch" {
		return &Patch{InstanceID: instanceID, ModelPatch: content}, nil
	}

	var p Patch
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if p.InstanceID == "" {
		p.InstanceID = instanceID
	}
	return &p, nil
}
