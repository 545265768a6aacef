package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// workspaceName is the per-instance staging directory mounted into the
// container at /workspace.
const workspaceName = "workspace"

// StageWorkspace writes everything the entryscript expects under
// {outputDir}/{instanceID}/workspace and returns that directory. The
// candidate patch is additionally kept as {prefix}_patch.diff next to the
// workspace for later inspection.
func StageWorkspace(job Job, scripts *Scripts, entryscript string) (string, error) {
	instanceDir := InstanceDir(job.OutputDir, job.Instance.InstanceID)
	workspace := filepath.Join(instanceDir, workspaceName)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}

	files := map[string]string{
		filepath.Join(instanceDir, job.Prefix+"_patch.diff"): job.Patch,
		filepath.Join(workspace, "patch.diff"):               job.Patch,
		filepath.Join(workspace, "run_script.sh"):            scripts.RunScript,
		filepath.Join(workspace, "parser.py"):                scripts.ParserScript,
		filepath.Join(workspace, "entryscript.sh"):           entryscript,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", path, err)
		}
	}
	return workspace, nil
}

// CollectOutput reads the parser's report from the workspace and copies it
// to the instance directory as {prefix}_output.json. The container's
// stdout/stderr logs and the entryscript are copied alongside it.
func CollectOutput(job Job, workspace string) (*TestOutput, error) {
	data, err := os.ReadFile(filepath.Join(workspace, "output.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("output.json not found for %s: check %s_stdout.log and %s_stderr.log",
				job.Instance.InstanceID, job.Prefix, job.Prefix)
		}
		return nil, fmt.Errorf("failed to read output.json: %w", err)
	}

	var output TestOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse output.json for %s: %w", job.Instance.InstanceID, err)
	}

	outPath := OutputPath(job.OutputDir, job.Instance.InstanceID, job.Prefix)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store output report: %w", err)
	}

	copyArtifacts(job, workspace)
	return &output, nil
}

// copyArtifacts moves run logs out of the workspace so reruns cannot
// clobber them. Missing logs are not an error.
func copyArtifacts(job Job, workspace string) {
	instanceDir := InstanceDir(job.OutputDir, job.Instance.InstanceID)
	for _, name := range []string{"stdout.log", "stderr.log", "entryscript.sh"} {
		src := filepath.Join(workspace, name)
		dst := filepath.Join(instanceDir, job.Prefix+"_"+name)
		copyFile(src, dst)
	}
}

func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()
	_, _ = io.Copy(out, in)
}
