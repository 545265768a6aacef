package runner

import (
	"fmt"
	"strings"
)

// BuildEntryscript produces the shell script executed inside the instance
// container. The prebuilt image has the repository checked out at /app;
// the script pins it to the base commit, applies the candidate patch, runs
// any final repo setup command, then delegates to the instance's own
// run_script.sh and parser.py staged under /workspace.
func BuildEntryscript(in *Instance) string {
	envExports := extractEnvExports(in.BaseDockerfile, in.InstanceDockerfile)
	setupCmd := lastLine(in.BeforeRepoSetCmd)
	testFiles := strings.Join(in.SelectedTestFilesToRun, ",")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(envExports)
	b.WriteString("\n# apply patch\ncd /app\n")
	fmt.Fprintf(&b, "git reset --hard %s\n", in.BaseCommit)
	fmt.Fprintf(&b, "git checkout %s\n", in.BaseCommit)
	b.WriteString("git apply -v /workspace/patch.diff\n")
	if setupCmd != "" {
		b.WriteString(setupCmd)
	}
	b.WriteString("\n# run test and save stdout and stderr to separate files\n")
	fmt.Fprintf(&b, "bash /workspace/run_script.sh %s > /workspace/stdout.log 2> /workspace/stderr.log\n", testFiles)
	b.WriteString("# run parsing script\n")
	b.WriteString("python /workspace/parser.py /workspace/stdout.log /workspace/stderr.log /workspace/output.json\n")
	return b.String()
}

// extractEnvExports converts every ENV line of the instance's dockerfiles
// into an export statement, so the entryscript sees the same environment
// the image was built with.
func extractEnvExports(dockerfiles ...string) string {
	var exports []string
	for _, df := range dockerfiles {
		for _, line := range strings.Split(df, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "ENV") {
				exports = append(exports, strings.Replace(line, "ENV", "export", 1))
			}
		}
	}
	return strings.Join(exports, "\n")
}

// lastLine returns the last non-empty line of a multi-line setup command.
// Earlier lines were already baked into the image during build.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
