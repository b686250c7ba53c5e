// Package orchestrator drives the merge pipeline across every file a set
// of tasks touched, tracks aggregate statistics, and persists the result
// as a JSON report.
package orchestrator

import (
	"time"

	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/mergetypes"
)

// TaskMergeRequest names one task to merge and, for merge_tasks, the
// priority used to order worktree refreshes (higher merges its view of
// main first).
type TaskMergeRequest struct {
	TaskID       string
	WorktreePath string
	Priority     int
}

// MergeStats are the aggregate counters tracked across a whole merge run.
type MergeStats struct {
	FilesProcessed        int     `json:"files_processed"`
	FilesAutoMerged       int     `json:"files_auto_merged"`
	FilesAIMerged         int     `json:"files_ai_merged"`
	FilesNeedReview       int     `json:"files_need_review"`
	FilesFailed           int     `json:"files_failed"`
	AICallsMade           int     `json:"ai_calls_made"`
	EstimatedTokensUsed   int     `json:"estimated_tokens_used"`
	ConflictsDetected     int     `json:"conflicts_detected"`
	ConflictsAutoResolved int     `json:"conflicts_auto_resolved"`
	ConflictsAIResolved   int     `json:"conflicts_ai_resolved"`
	DurationSeconds       float64 `json:"duration_seconds"`
}

// FileMergeOutcome is the per-file result recorded in a MergeReport.
type FileMergeOutcome struct {
	FilePath           string              `json:"file_path"`
	Decision           mergetypes.Decision `json:"decision"`
	MergedContent      *string             `json:"merged_content,omitempty"`
	ConflictsResolved  []conflict.Region   `json:"conflicts_resolved,omitempty"`
	ConflictsRemaining []conflict.Region   `json:"conflicts_remaining,omitempty"`
	AICallsMade        int                 `json:"ai_calls_made"`
	TokensUsed         int                 `json:"tokens_used"`
	Error              string              `json:"error,omitempty"`
}

// MergeReport is the full record of one merge_task/merge_tasks/preview_merge
// invocation.
type MergeReport struct {
	Name         string             `json:"name"`
	RunID        string             `json:"run_id"`
	TaskIDs      []string           `json:"task_ids"`
	TargetBranch string             `json:"target_branch"`
	DryRun       bool               `json:"dry_run"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Stats        MergeStats         `json:"stats"`
	Files        []FileMergeOutcome `json:"files"`
}

// FileConflicts is one file's currently-detected, unresolved conflicts,
// returned by GetPendingConflicts without attempting resolution.
type FileConflicts struct {
	FilePath  string            `json:"file_path"`
	Conflicts []conflict.Region `json:"conflicts"`
}
