package patchset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sweap/internal/dataset"
)

func TestDiffPrefersModelPatch(t *testing.T) {
	p := &Patch{Patch: "plain", ModelPatch: "model"}
	assert.Equal(t, "model", p.Diff())

	p = &Patch{Patch: "plain"}
	assert.Equal(t, "plain", p.Diff())
}

func TestLoadSaveRoundTrip(t *testing.T) {
	patches := []*Patch{
		{InstanceID: "a", Patch: "diff --git a/x b/x", Prefix: "gold"},
		{InstanceID: "b", ModelPatch: "diff --git a/y b/y", Prefix: "run1"},
	}
	path := filepath.Join(t.TempDir(), "patches.json")
	require.NoError(t, Save(path, patches))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[0].InstanceID)
	assert.Equal(t, "diff --git a/y b/y", loaded[1].Diff())
}

func writePred(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestGather(t *testing.T) {
	root := t.TempDir()

	// JSON prediction with model_patch.
	writePred(t, filepath.Join(root, "instance_a"), "instance_a.pred",
		`{"instance_id":"instance_a","model_patch":"diff-a"}`)
	// Raw diff content, no JSON: folder name becomes the instance ID.
	writePred(t, filepath.Join(root, "instance_b"), "something.pred", "diff-b")
	// Folder without a .pred file is skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "instance_c"), 0o755))
	// Non-instance folder is ignored.
	writePred(t, filepath.Join(root, "notes"), "x.pred", "ignored")

	patches, err := Gather(root, "run1", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, patches, 2)

	assert.Equal(t, "instance_a", patches[0].InstanceID)
	assert.Equal(t, "diff-a", patches[0].Diff())
	assert.Equal(t, "run1", patches[0].Prefix)

	assert.Equal(t, "instance_b", patches[1].InstanceID)
	assert.Equal(t, "diff-b", patches[1].Diff())
}

func TestGatherPrefersInstanceNamedPred(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "instance_a")
	writePred(t, dir, "aaa.pred", `{"instance_id":"wrong","model_patch":"other"}`)
	writePred(t, dir, "instance_a.pred", `{"instance_id":"instance_a","model_patch":"right"}`)

	patches, err := Gather(root, "", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "right", patches[0].Diff())
}

func TestCompile(t *testing.T) {
	base := t.TempDir()
	traj := filepath.Join(base, "mymodel", "traj")

	writePred(t, filepath.Join(traj, "instance_a"), "instance_a.pred",
		`{"instance_id":"instance_a","model_patch":"diff-a","model_name_or_path":"mymodel"}`)
	writePred(t, filepath.Join(traj, "instance_b"), "fix.patch", "diff-b\n")
	// Unparseable .pred is skipped.
	writePred(t, filepath.Join(traj, "instance_c"), "bad.pred", "{not json")

	preds, err := Compile(base, "mymodel", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, preds, 2)

	byID := map[string]*Patch{}
	for _, p := range preds {
		byID[p.InstanceID] = p
	}
	assert.Equal(t, "diff-a", byID["instance_a"].Diff())
	assert.Equal(t, "mymodel", byID["instance_a"].ModelName)
	assert.Equal(t, "diff-b", byID["instance_b"].Diff())
}

func TestCompileMissingTrajFolder(t *testing.T) {
	_, err := Compile(t.TempDir(), "nope", zap.NewNop())
	assert.Error(t, err)
}

func TestExtractGold(t *testing.T) {
	ds, err := dataset.New([]*dataset.Instance{
		{InstanceID: "a", Patch: "diff-a"},
		{InstanceID: "b"}, // no golden patch
	})
	require.NoError(t, err)

	patches := ExtractGold(ds, "gold", zap.NewNop())
	require.Len(t, patches, 1)
	assert.Equal(t, "a", patches[0].InstanceID)
	assert.Equal(t, "gold", patches[0].Prefix)
}
