package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnTaskStart_CreatesActiveView(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	bp := BranchPoint{CommitHash: "abc", Content: "v1", Timestamp: time.Now().UTC()}
	intent := TaskIntent{Title: "add feature"}

	require.NoError(t, tracker.OnTaskStart("task-1", []string{"app.py"}, bp, intent))

	ft := tracker.GetTimeline("app.py")
	view, ok := ft.TaskViews["task-1"]
	require.True(t, ok)
	assert.Equal(t, StatusActive, view.Status)
	assert.Zero(t, view.CommitsBehindMain)
}

func TestOnMainBranchCommit_IncrementsActiveViews(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	bp := BranchPoint{CommitHash: "abc", Content: "v1", Timestamp: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, tracker.OnTaskStart("task-1", []string{"app.py"}, bp, TaskIntent{}))

	event := MainBranchEvent{CommitHash: "def", Timestamp: time.Now().UTC(), Source: SourceHuman}
	require.NoError(t, tracker.OnMainBranchCommit(event, []string{"app.py"}))

	ft := tracker.GetTimeline("app.py")
	assert.Equal(t, 1, ft.TaskViews["task-1"].CommitsBehindMain)
}

func TestOnTaskMerged_SetsStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	bp := BranchPoint{CommitHash: "abc", Timestamp: time.Now().UTC()}
	require.NoError(t, tracker.OnTaskStart("task-1", []string{"app.py"}, bp, TaskIntent{}))
	require.NoError(t, tracker.OnTaskMerged("task-1", []string{"app.py"}))

	ft := tracker.GetTimeline("app.py")
	assert.Equal(t, StatusMerged, ft.TaskViews["task-1"].Status)
	assert.NotNil(t, ft.TaskViews["task-1"].MergedAt)
}

func TestGetMergeContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	branchTime := time.Now().UTC().Add(-time.Hour)
	bp := BranchPoint{CommitHash: "abc", Content: "v1", Timestamp: branchTime}
	require.NoError(t, tracker.OnTaskStart("task-1", []string{"app.py"}, bp, TaskIntent{Title: "t1"}))
	require.NoError(t, tracker.OnTaskStart("task-2", []string{"app.py"}, bp, TaskIntent{Title: "t2"}))

	event := MainBranchEvent{CommitHash: "def", Timestamp: time.Now().UTC(), CommitMessage: "fix bug"}
	require.NoError(t, tracker.OnMainBranchCommit(event, []string{"app.py"}))

	mc, err := tracker.GetMergeContext("task-1", "app.py", "current content", "def")
	require.NoError(t, err)

	assert.Equal(t, 1, mc.TotalCommitsBehind)
	assert.Equal(t, 1, mc.TotalPendingTasks)
	require.Len(t, mc.MainEvolution, 1)
	assert.Equal(t, "fix bug", mc.MainEvolution[0].CommitMessage)
	assert.Equal(t, "task-2", mc.OtherPendingTasks[0].TaskID)
}

func TestGetTaskDrift(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	bp := BranchPoint{CommitHash: "abc", Timestamp: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, tracker.OnTaskStart("task-1", []string{"a.py", "b.py"}, bp, TaskIntent{}))

	event := MainBranchEvent{CommitHash: "def", Timestamp: time.Now().UTC()}
	require.NoError(t, tracker.OnMainBranchCommit(event, []string{"a.py"}))

	drift := tracker.GetTaskDrift("task-1")
	assert.Equal(t, 1, drift["a.py"])
	assert.Equal(t, 0, drift["b.py"])
}

func TestGetTaskDrift_ThreeHumanCommitsAfterBranch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	branchTime := time.Now().UTC().Add(-time.Hour)
	bp := BranchPoint{CommitHash: "c1", Timestamp: branchTime}
	require.NoError(t, tracker.OnTaskStart("task-t", []string{"app.py"}, bp, TaskIntent{}))

	for _, hash := range []string{"c2", "c3", "c4"} {
		event := MainBranchEvent{CommitHash: hash, Timestamp: time.Now().UTC(), Source: SourceHuman}
		require.NoError(t, tracker.OnMainBranchCommit(event, []string{"app.py"}))
	}

	drift := tracker.GetTaskDrift("task-t")
	assert.Equal(t, 3, drift["app.py"])

	mc, err := tracker.GetMergeContext("task-t", "app.py", "current content", "c4")
	require.NoError(t, err)
	require.Len(t, mc.MainEvolution, 3)
	assert.Equal(t, []string{"c2", "c3", "c4"}, []string{
		mc.MainEvolution[0].CommitHash,
		mc.MainEvolution[1].CommitHash,
		mc.MainEvolution[2].CommitHash,
	})
}

func TestDescribeDrift(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracker := New(dir, nil)

	assert.Contains(t, tracker.DescribeDrift("task-1", "missing.py"), "no timeline")

	bp := BranchPoint{CommitHash: "abc", Timestamp: time.Now().UTC()}
	require.NoError(t, tracker.OnTaskStart("task-1", []string{"app.py"}, bp, TaskIntent{}))
	assert.Contains(t, tracker.DescribeDrift("task-1", "app.py"), "current with main")
}
