package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal     = "parallex.merge.files.total"
	metricConflictsTotal = "parallex.merge.conflicts.total"
	metricAICallsTotal   = "parallex.merge.ai_calls.total"
	metricAITokensTotal  = "parallex.merge.ai_tokens.total"
	metricMergeDuration  = "parallex.merge.duration.seconds"

	attrDecision   = "decision"
	attrResolution = "resolution"

	decisionAutoMerged  = "auto_merged"
	decisionAIMerged    = "ai_merged"
	decisionNeedsReview = "needs_human_review"
	decisionFailed      = "failed"

	resolutionDetected = "detected"
	resolutionAuto     = "auto"
	resolutionAI       = "ai"
)

// mergeDurationBuckets covers a single-file auto-merge up to a large
// multi-file AI-assisted batch resolution.
var mergeDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// MergeMetrics holds the OTel instruments tracking merge pipeline outcomes.
// One RecordMergeRun call reports the aggregate stats from a single
// merge_task/merge_tasks/preview_merge invocation.
type MergeMetrics struct {
	filesTotal     metric.Int64Counter
	conflictsTotal metric.Int64Counter
	aiCallsTotal   metric.Int64Counter
	aiTokensTotal  metric.Int64Counter
	mergeDuration  metric.Float64Histogram
}

// NewMergeMetrics creates merge pipeline instruments from the given meter.
func NewMergeMetrics(mt metric.Meter) (*MergeMetrics, error) {
	b := newMetricBuilder(mt)

	mm := &MergeMetrics{
		filesTotal:     b.counter(metricFilesTotal, "Files processed by decision outcome", "{file}"),
		conflictsTotal: b.counter(metricConflictsTotal, "Conflict regions detected and resolved", "{conflict}"),
		aiCallsTotal:   b.counter(metricAICallsTotal, "AI resolver invocations", "{call}"),
		aiTokensTotal:  b.counter(metricAITokensTotal, "Estimated AI tokens consumed", "{token}"),
		mergeDuration:  b.histogram(metricMergeDuration, "Merge run duration in seconds", "s", mergeDurationBuckets...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return mm, nil
}

// MergeRunRecord is one merge_task/merge_tasks/preview_merge run's aggregate
// stats. It carries the counters of internal/orchestrator.MergeStats (all but
// FilesProcessed, with the duration as a time.Duration) rather than
// importing that type, since orchestrator imports observability and not the
// other way around.
type MergeRunRecord struct {
	FilesAutoMerged       int
	FilesAIMerged         int
	FilesNeedReview       int
	FilesFailed           int
	ConflictsDetected     int
	ConflictsAutoResolved int
	ConflictsAIResolved   int
	AICallsMade           int
	EstimatedTokensUsed   int
	Duration              time.Duration
}

// RecordMergeRun reports one run's aggregate stats as OTel measurements.
func (mm *MergeMetrics) RecordMergeRun(ctx context.Context, rec MergeRunRecord) {
	mm.addFiles(ctx, decisionAutoMerged, rec.FilesAutoMerged)
	mm.addFiles(ctx, decisionAIMerged, rec.FilesAIMerged)
	mm.addFiles(ctx, decisionNeedsReview, rec.FilesNeedReview)
	mm.addFiles(ctx, decisionFailed, rec.FilesFailed)

	mm.addConflicts(ctx, resolutionDetected, rec.ConflictsDetected)
	mm.addConflicts(ctx, resolutionAuto, rec.ConflictsAutoResolved)
	mm.addConflicts(ctx, resolutionAI, rec.ConflictsAIResolved)

	mm.aiCallsTotal.Add(ctx, int64(rec.AICallsMade))

	if rec.EstimatedTokensUsed > 0 {
		mm.aiTokensTotal.Add(ctx, int64(rec.EstimatedTokensUsed))
	}

	mm.mergeDuration.Record(ctx, rec.Duration.Seconds())
}

func (mm *MergeMetrics) addFiles(ctx context.Context, decision string, n int) {
	if n == 0 {
		return
	}

	mm.filesTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrDecision, decision)))
}

func (mm *MergeMetrics) addConflicts(ctx context.Context, resolution string, n int) {
	if n == 0 {
		return
	}

	mm.conflictsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrResolution, resolution)))
}
