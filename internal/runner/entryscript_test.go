package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testInstance() *Instance {
	return &Instance{
		InstanceID: "instance_org__proj-abc123",
		Repo:       "org/proj",
		BaseCommit: "abc123",
		BeforeRepoSetCmd: "apt-get update\n" +
			"npm ci --prefer-offline",
		SelectedTestFilesToRun: []string{"test/a.test.js", "test/b.test.js"},
		BaseDockerfile:         "FROM node:18\nENV NODE_ENV=test\nRUN npm install",
		InstanceDockerfile:     "ENV CI=true",
	}
}

func TestBuildEntryscript(t *testing.T) {
	script := BuildEntryscript(testInstance())

	assert.Contains(t, script, "export NODE_ENV=test")
	assert.Contains(t, script, "export CI=true")
	assert.NotContains(t, script, "RUN npm install")

	assert.Contains(t, script, "cd /app")
	assert.Contains(t, script, "git reset --hard abc123")
	assert.Contains(t, script, "git checkout abc123")
	assert.Contains(t, script, "git apply -v /workspace/patch.diff")

	// Only the final setup line runs; the rest was baked into the image.
	assert.Contains(t, script, "npm ci --prefer-offline")
	assert.NotContains(t, script, "apt-get update")

	assert.Contains(t, script, "bash /workspace/run_script.sh test/a.test.js,test/b.test.js > /workspace/stdout.log 2> /workspace/stderr.log")
	assert.Contains(t, script, "python /workspace/parser.py /workspace/stdout.log /workspace/stderr.log /workspace/output.json")
}

func TestBuildEntryscriptOrdering(t *testing.T) {
	script := BuildEntryscript(testInstance())

	patchIdx := strings.Index(script, "git apply")
	setupIdx := strings.Index(script, "npm ci")
	testIdx := strings.Index(script, "run_script.sh")
	parseIdx := strings.Index(script, "parser.py")

	assert.Less(t, patchIdx, setupIdx)
	assert.Less(t, setupIdx, testIdx)
	assert.Less(t, testIdx, parseIdx)
}

func TestBuildEntryscriptEmptySetup(t *testing.T) {
	in := testInstance()
	in.BeforeRepoSetCmd = ""
	in.SelectedTestFilesToRun = nil

	script := BuildEntryscript(in)
	assert.Contains(t, script, "bash /workspace/run_script.sh  >")
	assert.Contains(t, script, "git apply -v /workspace/patch.diff\n\n# run test")
}

func TestExtractEnvExports(t *testing.T) {
	exports := extractEnvExports(
		"FROM x\nENV A=1\n  ENV B=2\n# ENV commented",
		"ENV C=3",
	)
	assert.Equal(t, "export A=1\nexport B=2\nexport C=3", exports)
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "c", lastLine("a\nb\nc"))
	assert.Equal(t, "c", lastLine("a\nb\nc\n\n"))
	assert.Equal(t, "only", lastLine("only"))
	assert.Equal(t, "", lastLine(""))
}
