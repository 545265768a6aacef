package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scripts are the per-instance test driver files shipped with the
// benchmark: run_script.sh invokes the project's native test runner,
// parser.py turns its logs into the structured output report.
type Scripts struct {
	RunScript    string
	ParserScript string
}

// LoadScripts reads both scripts from {scriptsDir}/{instanceID}/.
// A missing script fails the instance, not the whole evaluation.
func LoadScripts(scriptsDir, instanceID string) (*Scripts, error) {
	runScript, err := loadScript(scriptsDir, instanceID, "run_script.sh")
	if err != nil {
		return nil, err
	}
	parserScript, err := loadScript(scriptsDir, instanceID, "parser.py")
	if err != nil {
		return nil, err
	}
	return &Scripts{RunScript: runScript, ParserScript: parserScript}, nil
}

func loadScript(scriptsDir, instanceID, name string) (string, error) {
	path := filepath.Join(scriptsDir, instanceID, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("script not found: %s", path)
		}
		return "", fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return string(data), nil
}
