package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/latticeworks/parallex/internal/observability"
)

func setupMergeMeter(t *testing.T) (*observability.MergeMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	mm, err := observability.NewMergeMetrics(meter)
	require.NoError(t, err)

	return mm, reader
}

func sumInt64(m *metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestMergeMetrics_RecordMergeRun_FilesByDecision(t *testing.T) {
	t.Parallel()

	mm, reader := setupMergeMeter(t)

	mm.RecordMergeRun(context.Background(), observability.MergeRunRecord{
		FilesAutoMerged: 2,
		FilesAIMerged:   1,
		FilesNeedReview: 1,
		FilesFailed:     0,
		Duration:        time.Second,
	})

	rm := collectMetrics(t, reader)

	filesTotal := findMetric(rm, "parallex.merge.files.total")
	require.NotNil(t, filesTotal, "parallex.merge.files.total metric not found")
	assert.EqualValues(t, 4, sumInt64(filesTotal))
}

func TestMergeMetrics_RecordMergeRun_Conflicts(t *testing.T) {
	t.Parallel()

	mm, reader := setupMergeMeter(t)

	mm.RecordMergeRun(context.Background(), observability.MergeRunRecord{
		ConflictsDetected:     3,
		ConflictsAutoResolved: 2,
		ConflictsAIResolved:   1,
		Duration:              time.Second,
	})

	rm := collectMetrics(t, reader)

	conflictsTotal := findMetric(rm, "parallex.merge.conflicts.total")
	require.NotNil(t, conflictsTotal, "parallex.merge.conflicts.total metric not found")
	assert.EqualValues(t, 6, sumInt64(conflictsTotal))
}

func TestMergeMetrics_RecordMergeRun_AIUsage(t *testing.T) {
	t.Parallel()

	mm, reader := setupMergeMeter(t)

	mm.RecordMergeRun(context.Background(), observability.MergeRunRecord{
		AICallsMade:         2,
		EstimatedTokensUsed: 512,
		Duration:            time.Second,
	})

	rm := collectMetrics(t, reader)

	aiCalls := findMetric(rm, "parallex.merge.ai_calls.total")
	require.NotNil(t, aiCalls, "parallex.merge.ai_calls.total metric not found")
	assert.EqualValues(t, 2, sumInt64(aiCalls))

	aiTokens := findMetric(rm, "parallex.merge.ai_tokens.total")
	require.NotNil(t, aiTokens, "parallex.merge.ai_tokens.total metric not found")
	assert.EqualValues(t, 512, sumInt64(aiTokens))
}

func TestMergeMetrics_RecordMergeRun_BudgetExhaustedMakesNoAICalls(t *testing.T) {
	t.Parallel()

	mm, reader := setupMergeMeter(t)

	mm.RecordMergeRun(context.Background(), observability.MergeRunRecord{
		FilesNeedReview: 1,
		Duration:        time.Millisecond * 5,
	})

	rm := collectMetrics(t, reader)

	aiCalls := findMetric(rm, "parallex.merge.ai_calls.total")
	require.NotNil(t, aiCalls, "ai_calls counter must report a zero total for a run with no AI calls")
	assert.EqualValues(t, 0, sumInt64(aiCalls))
}

func TestMergeMetrics_RecordMergeRun_Duration(t *testing.T) {
	t.Parallel()

	mm, reader := setupMergeMeter(t)

	mm.RecordMergeRun(context.Background(), observability.MergeRunRecord{Duration: 2500 * time.Millisecond})

	rm := collectMetrics(t, reader)

	duration := findMetric(rm, "parallex.merge.duration.seconds")
	require.NotNil(t, duration, "parallex.merge.duration.seconds metric not found")

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 2.5, hist.DataPoints[0].Sum, 0.001)
}
