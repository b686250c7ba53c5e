package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/latticeworks/parallex/internal/config"
	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/mergepipeline"
	"github.com/latticeworks/parallex/internal/observability"
	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
	"github.com/latticeworks/parallex/internal/timeline"
)

func testConfig(t *testing.T, stateRoot string) *config.Config {
	t.Helper()

	return &config.Config{
		Merge: config.MergeConfig{
			StateRoot:    stateRoot,
			TargetBranch: "main",
		},
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *evolution.Store) {
	t.Helper()

	root := t.TempDir()

	evoStore := evolution.New(root, nil, nil)
	tracker := timeline.New(root, nil)
	pipeline := mergepipeline.New(rules.NewDefaultRuleBook(), nil)

	orch := New(testConfig(t, root), evoStore, tracker, nil, pipeline, nil)

	return orch, evoStore
}

func seedSingleTaskFile(t *testing.T, evoStore *evolution.Store, filePath string) {
	t.Helper()

	_, err := evoStore.CaptureBaselines("task-1", map[string]string{filePath: "print('hi')\n"}, "deadbeef")
	require.NoError(t, err)

	content := "import os\nprint('hi')\n"
	_, err = evoStore.RecordModification("task-1", filePath, "print('hi')\n", content, nil, false)
	require.NoError(t, err)
}

func TestMergeTask_SingleTaskAutoMerges(t *testing.T) {
	t.Parallel()

	orch, evoStore := newTestOrchestrator(t)
	seedSingleTaskFile(t, evoStore, "app.py")

	report, err := orch.MergeTask(t.Context(), "task-1", "", "main")

	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "app.py", report.Files[0].FilePath)
	assert.Equal(t, 1, report.Stats.FilesProcessed)
}

func TestPreviewMerge_DoesNotMarkTaskCompleted(t *testing.T) {
	t.Parallel()

	orch, evoStore := newTestOrchestrator(t)
	seedSingleTaskFile(t, evoStore, "app.py")

	_, err := orch.PreviewMerge(t.Context(), []string{"task-1"})
	require.NoError(t, err)

	active := evoStore.GetActiveTasks()
	assert.Contains(t, active, "task-1")
}

func TestGetPendingConflicts_ReportsOverlap(t *testing.T) {
	t.Parallel()

	orch, evoStore := newTestOrchestrator(t)

	_, err := evoStore.CaptureBaselines("t1", map[string]string{"app.py": "def foo():\n    pass\n"}, "deadbeef")
	require.NoError(t, err)

	snap1 := &evolution.TaskSnapshot{
		TaskID:    "t1",
		StartedAt: time.Unix(1, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.ModifyFunction, Target: "foo", Location: "function:foo", LineStart: 1, LineEnd: 2},
		},
	}
	snap2 := &evolution.TaskSnapshot{
		TaskID:    "t2",
		StartedAt: time.Unix(2, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.ModifyFunction, Target: "foo", Location: "function:foo", LineStart: 1, LineEnd: 2},
		},
	}

	_ = snap1
	_ = snap2

	fe, ok := evoStore.GetFileEvolution("app.py")
	require.True(t, ok)

	fe.TaskSnapshots = append(fe.TaskSnapshots, snap1, snap2)

	conflicts, err := orch.GetPendingConflicts()

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "app.py", conflicts[0].FilePath)
}

func TestPersistReport_WritesJSONUnderMergeReports(t *testing.T) {
	t.Parallel()

	orch, evoStore := newTestOrchestrator(t)
	seedSingleTaskFile(t, evoStore, "app.py")

	report, err := orch.MergeTask(t.Context(), "task-1", "", "main")
	require.NoError(t, err)

	reportsDir := filepath.Join(orch.cfg.Merge.StateRoot, "merge_reports")
	entries, err := filepathGlob(reportsDir)

	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.Contains(t, report.Name, "task-1")
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.json"))
}

func TestMergeTask_RecordsMergeMetricsWhenWired(t *testing.T) {
	t.Parallel()

	orch, evoStore := newTestOrchestrator(t)
	seedSingleTaskFile(t, evoStore, "app.py")

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	mm, err := observability.NewMergeMetrics(mp.Meter("test"))
	require.NoError(t, err)

	orch.SetMetrics(mm)

	_, err = orch.MergeTask(t.Context(), "task-1", "", "main")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var filesTotal *metricdata.Metrics

	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == "parallex.merge.files.total" {
				filesTotal = &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	require.NotNil(t, filesTotal, "parallex.merge.files.total metric not found")

	sum, ok := filesTotal.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data type")
	require.Len(t, sum.DataPoints, 1)
	assert.EqualValues(t, 1, sum.DataPoints[0].Value)
}
