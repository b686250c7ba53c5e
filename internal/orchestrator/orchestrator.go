package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/config"
	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/mergepipeline"
	"github.com/latticeworks/parallex/internal/mergetypes"
	"github.com/latticeworks/parallex/internal/observability"
	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
	"github.com/latticeworks/parallex/internal/timeline"
	"github.com/latticeworks/parallex/internal/vcs"
)

const lockFileName = "merge.lock"

// ErrLocked is returned when another process holds the state root's
// advisory merge lock.
var ErrLocked = fmt.Errorf("state root is locked: %s", lockFileName)

// Orchestrator composes the evolution store, timeline tracker, and merge
// pipeline into the top-level merge operations, single-threaded per
// invocation: every call processes its files sequentially.
type Orchestrator struct {
	cfg       *config.Config
	store     *evolution.Store
	tracker   *timeline.Tracker
	vcsClient vcs.Client
	pipeline  *mergepipeline.Pipeline
	detector  *conflict.Detector
	logger    *slog.Logger
	metrics   *observability.MergeMetrics
	tracer    trace.Tracer
}

// New builds an Orchestrator from its collaborators.
func New(cfg *config.Config, evoStore *evolution.Store, tracker *timeline.Tracker, vcsClient vcs.Client, pipeline *mergepipeline.Pipeline, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		cfg:       cfg,
		store:     evoStore,
		tracker:   tracker,
		vcsClient: vcsClient,
		pipeline:  pipeline,
		detector:  conflict.New(rules.NewDefaultRuleBook()),
		logger:    logger,
	}
}

// SetMetrics wires merge-domain instrumentation into the orchestrator. Every
// subsequent merge_task/merge_tasks/preview_merge run reports its
// MergeStats through mm once it completes.
func (o *Orchestrator) SetMetrics(mm *observability.MergeMetrics) {
	o.metrics = mm
}

// SetTracer wires span creation into the orchestrator. Every subsequent run
// is wrapped in a "parallex.merge.run" span carrying its outcome counts.
func (o *Orchestrator) SetTracer(tracer trace.Tracer) {
	o.tracer = tracer
}

// acquireLock creates the advisory merge.lock file, failing fast if one
// already exists, per the shared-resource policy: only one process may
// write the project's state root at a time.
func (o *Orchestrator) acquireLock() (release func(), err error) {
	path := filepath.Join(o.cfg.Merge.StateRoot, lockFileName)

	if err := os.MkdirAll(o.cfg.Merge.StateRoot, 0o750); err != nil {
		return nil, fmt.Errorf("create state root: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}

		return nil, fmt.Errorf("acquire merge lock: %w", err)
	}

	file.Close()

	return func() { os.Remove(path) }, nil
}

// MergeTask refreshes the given task's worktree (when worktreePath is
// non-empty) and merges every file it modified into targetBranch.
func (o *Orchestrator) MergeTask(ctx context.Context, taskID, worktreePath, targetBranch string) (*MergeReport, error) {
	if targetBranch == "" {
		targetBranch = o.cfg.Merge.TargetBranch
	}

	if worktreePath != "" {
		if err := o.store.RefreshFromGit(ctx, taskID, worktreePath, targetBranch, nil); err != nil {
			return nil, fmt.Errorf("refresh %s from %s: %w", taskID, worktreePath, err)
		}
	}

	return o.run(ctx, fmt.Sprintf("merge_%s", taskID), []string{taskID}, targetBranch, o.cfg.Merge.DryRun)
}

// MergeTasks refreshes every requested task's worktree, ordered by
// descending priority, then merges the union of files they modified.
func (o *Orchestrator) MergeTasks(ctx context.Context, requests []TaskMergeRequest, targetBranch string) (*MergeReport, error) {
	if targetBranch == "" {
		targetBranch = o.cfg.Merge.TargetBranch
	}

	ordered := make([]TaskMergeRequest, len(requests))
	copy(ordered, requests)

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	taskIDs := make([]string, 0, len(ordered))

	for _, req := range ordered {
		taskIDs = append(taskIDs, req.TaskID)

		if req.WorktreePath == "" {
			continue
		}

		if err := o.store.RefreshFromGit(ctx, req.TaskID, req.WorktreePath, targetBranch, nil); err != nil {
			return nil, fmt.Errorf("refresh %s from %s: %w", req.TaskID, req.WorktreePath, err)
		}
	}

	return o.run(ctx, "merge_batch", taskIDs, targetBranch, o.cfg.Merge.DryRun)
}

// PreviewMerge computes the same result as a merge without refreshing
// worktrees, writing any output, or marking tasks complete.
func (o *Orchestrator) PreviewMerge(ctx context.Context, taskIDs []string) (*MergeReport, error) {
	return o.run(ctx, "preview", taskIDs, o.cfg.Merge.TargetBranch, true)
}

// GetPendingConflicts reports currently-detected conflicts across every
// file touched by two or more active tasks, without attempting to
// resolve any of them.
func (o *Orchestrator) GetPendingConflicts() ([]FileConflicts, error) {
	activeTasks := o.store.GetActiveTasks()

	files := o.store.GetConflictingFiles(activeTasks)

	var out []FileConflicts

	for _, filePath := range files {
		analyses := o.analysesFor(filePath, activeTasks)

		regions := o.detector.DetectConflicts(filePath, analyses)
		if len(regions) > 0 {
			out = append(out, FileConflicts{FilePath: filePath, Conflicts: regions})
		}
	}

	return out, nil
}

func (o *Orchestrator) analysesFor(filePath string, taskIDs []string) map[string]*semantic.FileAnalysis {
	fe, ok := o.store.GetFileEvolution(filePath)
	if !ok {
		return nil
	}

	wanted := map[string]bool{}
	for _, id := range taskIDs {
		wanted[id] = true
	}

	out := map[string]*semantic.FileAnalysis{}

	for _, snap := range fe.TaskSnapshots {
		if wanted[snap.TaskID] {
			out[snap.TaskID] = &semantic.FileAnalysis{FilePath: filePath, Changes: snap.SemanticChanges}
		}
	}

	return out
}

// run performs the shared merge_task/merge_tasks/preview_merge algorithm:
// discover files modified by taskIDs, merge each sequentially in
// lexicographic order, accumulate stats, and (unless dryRun) write the
// merge_output tree and mark every task completed. The run is wrapped in a
// tracer span that is ended whether or not the run errors; a run that
// returns without error reports its MergeStats to the configured
// MergeMetrics.
func (o *Orchestrator) run(ctx context.Context, name string, taskIDs []string, targetBranch string, dryRun bool) (report *MergeReport, err error) {
	ctx, span := o.startRunSpan(ctx, name, taskIDs, targetBranch, dryRun)
	defer func() { o.endRunSpan(span, report, err) }()

	if !dryRun {
		if o.vcsClient != nil && targetBranch != "" && !o.vcsClient.RefExists(ctx, targetBranch) {
			return nil, fmt.Errorf("target branch %q does not exist", targetBranch)
		}

		unlock, lockErr := o.acquireLock()
		if lockErr != nil {
			return nil, lockErr
		}

		defer unlock()
	}

	start := time.Now()

	report = &MergeReport{
		Name:         name,
		RunID:        uuid.NewString(),
		TaskIDs:      taskIDs,
		TargetBranch: targetBranch,
		DryRun:       dryRun,
		GeneratedAt:  start,
	}

	files := o.store.GetFilesModifiedByTasks(taskIDs)

	for _, filePath := range files {
		outcome := o.mergeOneFile(filePath, taskIDs)
		report.Files = append(report.Files, outcome)

		o.accumulate(&report.Stats, outcome)
	}

	report.Stats.DurationSeconds = time.Since(start).Seconds()

	if !dryRun {
		for _, taskID := range taskIDs {
			if markErr := o.store.MarkTaskCompleted(taskID); markErr != nil {
				o.logger.Warn("mark task completed failed", "task_id", taskID, "error", markErr)
			}

			if o.tracker != nil {
				if trackErr := o.tracker.OnTaskMerged(taskID, files); trackErr != nil {
					o.logger.Warn("timeline update on merge failed", "task_id", taskID, "error", trackErr)
				}
			}
		}

		if persistErr := o.persistReport(report); persistErr != nil {
			return report, persistErr
		}
	}

	o.recordMergeMetrics(ctx, report)

	return report, nil
}

func (o *Orchestrator) startRunSpan(ctx context.Context, name string, taskIDs []string, targetBranch string, dryRun bool) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, nil
	}

	ctx, span := o.tracer.Start(ctx, "parallex.merge.run",
		trace.WithAttributes(
			attribute.String("merge.run_name", name),
			attribute.Int("merge.task_count", len(taskIDs)),
			attribute.String("merge.target_branch", targetBranch),
			attribute.Bool("merge.dry_run", dryRun),
		),
	)

	return ctx, span
}

func (o *Orchestrator) endRunSpan(span trace.Span, report *MergeReport, err error) {
	if span == nil {
		return
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}

	if report != nil {
		span.SetAttributes(
			attribute.Int("merge.files_processed", report.Stats.FilesProcessed),
			attribute.Int("merge.conflicts_detected", report.Stats.ConflictsDetected),
			attribute.Int("merge.ai_calls_made", report.Stats.AICallsMade),
		)
	}

	span.End()
}

// recordMergeMetrics reports a completed run's MergeStats as OTel
// measurements. Skipped entirely when no MergeMetrics is wired, so preview
// and merge commands that opt out of observability pay no instrument cost.
func (o *Orchestrator) recordMergeMetrics(ctx context.Context, report *MergeReport) {
	if o.metrics == nil || report == nil {
		return
	}

	stats := report.Stats

	o.metrics.RecordMergeRun(ctx, observability.MergeRunRecord{
		FilesAutoMerged:       stats.FilesAutoMerged,
		FilesAIMerged:         stats.FilesAIMerged,
		FilesNeedReview:       stats.FilesNeedReview,
		FilesFailed:           stats.FilesFailed,
		ConflictsDetected:     stats.ConflictsDetected,
		ConflictsAutoResolved: stats.ConflictsAutoResolved,
		ConflictsAIResolved:   stats.ConflictsAIResolved,
		AICallsMade:           stats.AICallsMade,
		EstimatedTokensUsed:   stats.EstimatedTokensUsed,
		Duration:              time.Duration(stats.DurationSeconds * float64(time.Second)),
	})
}

func (o *Orchestrator) mergeOneFile(filePath string, taskIDs []string) FileMergeOutcome {
	baseline, err := o.store.GetBaselineContent(filePath)
	if err != nil {
		return FileMergeOutcome{FilePath: filePath, Decision: mergetypes.Failed, Error: err.Error()}
	}

	wanted := map[string]bool{}
	for _, id := range taskIDs {
		wanted[id] = true
	}

	fe, ok := o.store.GetFileEvolution(filePath)
	if !ok {
		return FileMergeOutcome{FilePath: filePath, Decision: mergetypes.Failed, Error: "no evolution record for " + filePath}
	}

	var snapshots []*evolution.TaskSnapshot

	for _, snap := range fe.TaskSnapshots {
		if wanted[snap.TaskID] {
			snapshots = append(snapshots, snap)
		}
	}

	if len(snapshots) == 0 {
		return FileMergeOutcome{FilePath: filePath, Decision: mergetypes.Failed, Error: "no task snapshots matched " + filePath}
	}

	result := o.pipeline.MergeFile(filePath, baseline, snapshots)

	return FileMergeOutcome{
		FilePath:           filePath,
		Decision:           result.Decision,
		MergedContent:      result.MergedContent,
		ConflictsResolved:  result.ConflictsResolved,
		ConflictsRemaining: result.ConflictsRemaining,
		AICallsMade:        result.AICallsMade,
		TokensUsed:         result.TokensUsed,
		Error:              result.Error,
	}
}

func (o *Orchestrator) accumulate(stats *MergeStats, outcome FileMergeOutcome) {
	stats.FilesProcessed++
	stats.ConflictsDetected += len(outcome.ConflictsResolved) + len(outcome.ConflictsRemaining)
	stats.AICallsMade += outcome.AICallsMade
	stats.EstimatedTokensUsed += outcome.TokensUsed

	if outcome.AICallsMade > 0 {
		stats.ConflictsAIResolved += len(outcome.ConflictsResolved)
	} else {
		stats.ConflictsAutoResolved += len(outcome.ConflictsResolved)
	}

	switch outcome.Decision {
	case mergetypes.AutoMerged:
		stats.FilesAutoMerged++
	case mergetypes.AIMerged:
		stats.FilesAIMerged++
	case mergetypes.NeedsHumanReview:
		stats.FilesNeedReview++
	case mergetypes.Failed:
		stats.FilesFailed++
	}
}

// WriteMergedFiles writes every outcome with merged content to outDir
// (defaulting to "<state-root>/merge_output"), preserving relative paths.
func (o *Orchestrator) WriteMergedFiles(report *MergeReport, outDir string) error {
	if outDir == "" {
		outDir = filepath.Join(o.cfg.Merge.StateRoot, "merge_output")
	}

	for _, f := range report.Files {
		if f.MergedContent == nil {
			continue
		}

		dest := filepath.Join(outDir, f.FilePath)

		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return fmt.Errorf("create output dir for %s: %w", f.FilePath, err)
		}

		if err := os.WriteFile(dest, []byte(*f.MergedContent), 0o600); err != nil {
			return fmt.Errorf("write merged output for %s: %w", f.FilePath, err)
		}
	}

	return nil
}

// ApplyToProject writes every outcome with merged content directly into
// the project tree at cfg.Repository.ProjectRoot.
func (o *Orchestrator) ApplyToProject(report *MergeReport) error {
	return o.WriteMergedFiles(report, o.cfg.Repository.ProjectRoot)
}
