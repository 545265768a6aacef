package sweagent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweap/internal/dataset"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New([]*dataset.Instance{
		{
			InstanceID:       "instance_NodeBB__NodeBB-abc123",
			Repo:             "NodeBB/NodeBB",
			BaseCommit:       "abc123",
			ProblemStatement: "Posts disappear after an upgrade.",
			Requirements:     "Posts must survive upgrades.",
			Interface:        "No new interfaces are introduced",
		},
		{
			InstanceID:       "instance_gravitational__teleport-def456-vnan",
			Repo:             "gravitational/teleport",
			BaseCommit:       "def456",
			ProblemStatement: "Sessions leak on disconnect.",
		},
	})
	require.NoError(t, err)
	return ds
}

func TestGenerate(t *testing.T) {
	instances, err := Generate(testDataset(t), "scaleci")
	require.NoError(t, err)
	require.Len(t, instances, 2)

	first := instances[0]
	assert.Equal(t, "scaleci/sweap-images:nodebb.nodebb-NodeBB__NodeBB-abc123", first.ImageName)
	assert.Equal(t, "instance_NodeBB__NodeBB-abc123", first.InstanceID)
	assert.Equal(t, "abc123", first.BaseCommit)
	assert.Equal(t, "app", first.RepoName)
	assert.Contains(t, first.ProblemStatement, "Posts disappear after an upgrade.")
	assert.Contains(t, first.ProblemStatement, "Requirements:\nPosts must survive upgrades.")

	second := instances[1]
	assert.Equal(t, "scaleci/sweap-images:gravitational.teleport-gravitational__teleport-def456", second.ImageName)
	// Section headers are present even when the fields are empty.
	assert.Contains(t, second.ProblemStatement, "Requirements:")
	assert.Contains(t, second.ProblemStatement, "New interfaces introduced:")
}

func TestGenerateBadRepo(t *testing.T) {
	ds, err := dataset.New([]*dataset.Instance{
		{InstanceID: "instance_x-1", Repo: "norepo", BaseCommit: "1"},
	})
	require.NoError(t, err)

	_, err = Generate(ds, "scaleci")
	assert.Error(t, err)
}

func TestWriteAndLoad(t *testing.T) {
	instances, err := Generate(testDataset(t), "scaleci")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data", "instances.yaml")
	require.NoError(t, Write(instances, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "image_name:"))
	assert.True(t, strings.Contains(string(data), "repo_name: app"))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, instances, loaded)
}
