package evolution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeworks/parallex/internal/semantic"
)

// fakeVCS is a minimal vcs.Client double for tests that drive
// RefreshFromGit without a real repository.
type fakeVCS struct {
	mergeBase string
	diff      string
	atRev     map[string]string
}

func (f *fakeVCS) TwoDotDiff(_ context.Context, _, _, _ string) (string, error) { return f.diff, nil }
func (f *fakeVCS) ShowAtRevision(_ context.Context, _, path string) (string, error) {
	return f.atRev[path], nil
}
func (f *fakeVCS) MergeBase(_ context.Context, _, _ string) (string, error) { return f.mergeBase, nil }
func (f *fakeVCS) RefExists(_ context.Context, _ string) bool               { return true }

func TestCaptureBaselines_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	result, err := s.CaptureBaselines("task-1", map[string]string{"app.py": "print(1)\n"}, "abc123")
	require.NoError(t, err)
	require.Contains(t, result, "app.py")

	content, err := s.GetBaselineContent("app.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", content)
}

func TestCaptureBaselines_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	_, err := s.CaptureBaselines("task-1", map[string]string{"app.py": "print(1)\n"}, "abc")
	require.NoError(t, err)

	_, err = s.CaptureBaselines("task-2", map[string]string{"app.py": "print(999)\n"}, "def")
	require.NoError(t, err)

	content, err := s.GetBaselineContent("app.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", content, "baseline must not change once captured")
}

func TestRecordModification_CreatesOneSnapshotPerTask(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	_, err := s.CaptureBaselines("task-1", map[string]string{"app.py": "import os\n"}, "abc")
	require.NoError(t, err)

	_, err = s.RecordModification("task-1", "app.py", "import os\n", "import os\nimport sys\n", nil, false)
	require.NoError(t, err)

	_, err = s.RecordModification("task-1", "app.py", "import os\nimport sys\n", "import os\nimport sys\nimport json\n", nil, false)
	require.NoError(t, err)

	mods := s.GetTaskModifications("task-1")
	require.Contains(t, mods, "app.py")
	assert.Len(t, mods["app.py"].SemanticChanges, 1, "second call should replace, not append, the snapshot")
}

func TestRecordModification_SkipSemantic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	snap, err := s.RecordModification("task-1", "app.py", "a", "b", nil, true)
	require.NoError(t, err)
	assert.Empty(t, snap.SemanticChanges)
	assert.NotEmpty(t, snap.ContentHashBefore)
	assert.NotEmpty(t, snap.ContentHashAfter)
}

func TestGetConflictingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	_, err := s.RecordModification("task-1", "shared.py", "a", "b", nil, true)
	require.NoError(t, err)
	_, err = s.RecordModification("task-2", "shared.py", "a", "c", nil, true)
	require.NoError(t, err)
	_, err = s.RecordModification("task-1", "solo.py", "x", "y", nil, true)
	require.NoError(t, err)

	conflicting := s.GetConflictingFiles([]string{"task-1", "task-2"})
	assert.Equal(t, []string{"shared.py"}, conflicting)
}

func TestMarkTaskCompleted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	_, err := s.RecordModification("task-1", "app.py", "a", "b", nil, true)
	require.NoError(t, err)

	require.NoError(t, s.MarkTaskCompleted("task-1"))

	mods := s.GetTaskModifications("task-1")
	assert.NotNil(t, mods["app.py"].CompletedAt)
}

func TestCleanupTask(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, nil, nil)

	_, err := s.RecordModification("task-1", "app.py", "a", "b", nil, true)
	require.NoError(t, err)

	require.NoError(t, s.CleanupTask("task-1", true))

	assert.Empty(t, s.GetTaskModifications("task-1"))
}

func TestRefreshFromGit_ProducesSnapshotsForEachChangedFile(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	worktree := t.TempDir()

	aBefore := "def existing():\n    pass\n"
	aAfter := "def existing():\n    pass\n\ndef added():\n    pass\n"
	bBefore := "def handle():\n    return 1\n"
	bAfter := "def handle():\n    return 2\n"

	require.NoError(t, os.WriteFile(filepath.Join(worktree, "a.py"), []byte(aAfter), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "b.py"), []byte(bAfter), 0o644))

	vcsClient := &fakeVCS{
		mergeBase: "base-sha",
		diff: "diff --git a/a.py b/a.py\n--- a/a.py\n+++ b/a.py\n@@ -1,1 +1,3 @@\n" +
			"diff --git a/b.py b/b.py\n--- a/b.py\n+++ b/b.py\n@@ -1,2 +1,2 @@\n",
		atRev: map[string]string{"a.py": aBefore, "b.py": bBefore},
	}

	s := New(stateDir, vcsClient, nil)

	require.NoError(t, s.RefreshFromGit(context.Background(), "task-t", worktree, "main", nil))

	mods := s.GetTaskModifications("task-t")
	require.Contains(t, mods, "a.py")
	require.Contains(t, mods, "b.py")
	require.Len(t, mods, 2)

	var aHasAdd, bHasModify bool

	for _, c := range mods["a.py"].SemanticChanges {
		if c.ChangeType == semantic.AddFunction {
			aHasAdd = true
		}
	}

	for _, c := range mods["b.py"].SemanticChanges {
		if c.ChangeType == semantic.ModifyFunction {
			bHasModify = true
		}
	}

	assert.True(t, aHasAdd, "a.py snapshot should record an ADD_FUNCTION change")
	assert.True(t, bHasModify, "b.py snapshot should record a MODIFY_FUNCTION change")
}

func TestChangedFilesFromDiff(t *testing.T) {
	t.Parallel()

	diff := "diff --git a/app.py b/app.py\n--- a/app.py\n+++ b/app.py\n@@ -1 +1 @@\n-a\n+b\n"

	assert.Equal(t, []string{"app.py"}, changedFilesFromDiff(diff))
}
