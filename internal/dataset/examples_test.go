package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New([]*Instance{
		{
			InstanceID:       "instance_org__py-a1",
			Repo:             "org/py",
			RepoLanguage:     "python",
			BaseCommit:       "a1",
			ProblemStatement: "The parser chokes on unicode.",
			Requirements:     "Handle unicode input.",
			Patch:            "diff --git a/p b/p",
			TestPatch:        "diff --git a/t b/t",
		},
		{
			InstanceID:   "instance_org__ts-b2",
			Repo:         "org/ts",
			RepoLanguage: "ts",
			BaseCommit:   "b2",
			Patch:        "diff --git a/x b/x",
		},
		{
			InstanceID:   "instance_org__rs-c3",
			Repo:         "org/rs",
			RepoLanguage: "rust",
			BaseCommit:   "c3",
			Patch:        "diff --git a/y b/y",
		},
	})
	require.NoError(t, err)
	return ds
}

func TestWriteExamples(t *testing.T) {
	dir := t.TempDir()
	n, err := exampleDataset(t).WriteExamples(dir, 10)
	require.NoError(t, err)
	// The rust instance has no bucket.
	assert.Equal(t, 2, n)

	readme, err := os.ReadFile(filepath.Join(dir, "python_01", "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "# Example Python 1: org/py")
	assert.Contains(t, string(readme), "The parser chokes on unicode.")
	assert.Contains(t, string(readme), "Handle unicode input.")
	assert.Contains(t, string(readme), "git checkout a1")
	// Empty interface renders as N/A.
	assert.Contains(t, string(readme), "## Interface\n\nN/A")

	golden, err := os.ReadFile(filepath.Join(dir, "python_01", "golden_patch.diff"))
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/p b/p", string(golden))

	testPatch, err := os.ReadFile(filepath.Join(dir, "python_01", "test_patch.diff"))
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/t b/t", string(testPatch))

	// The ts instance lands in the js bucket.
	_, err = os.Stat(filepath.Join(dir, "js_01", "README.md"))
	assert.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "## Python Examples (1)")
	assert.Contains(t, string(index), "[python_01](./python_01/README.md) - org/py")
	assert.Contains(t, string(index), "## JavaScript/TypeScript Examples (1)")
	assert.NotContains(t, string(index), "rust")
}

func TestWriteExamplesPerBucketCap(t *testing.T) {
	instances := make([]*Instance, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		instances = append(instances, &Instance{
			InstanceID:   "instance_org__go-" + id,
			Repo:         "org/go" + id,
			RepoLanguage: "go",
			BaseCommit:   id,
			Patch:        "diff --git a/z b/z",
		})
	}
	ds, err := New(instances)
	require.NoError(t, err)

	dir := t.TempDir()
	n, err := ds.WriteExamples(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// go_01, go_02 and the index.
	assert.Len(t, entries, 3)
}

func TestWriteExamplesDeterministic(t *testing.T) {
	ds := exampleDataset(t)

	first := t.TempDir()
	_, err := ds.WriteExamples(first, 10)
	require.NoError(t, err)
	second := t.TempDir()
	_, err = ds.WriteExamples(second, 10)
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(first, "README.md"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(second, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
