// Package evolution persists per-task baselines and typed per-task
// snapshots, and can retroactively reconstruct them from a git worktree.
package evolution

import (
	"time"

	"github.com/latticeworks/parallex/internal/semantic"
)

// TaskSnapshot is what one task did to one file.
type TaskSnapshot struct {
	TaskID            string                    `json:"task_id"`
	TaskIntent        string                    `json:"task_intent"`
	StartedAt         time.Time                 `json:"started_at"`
	CompletedAt       *time.Time                `json:"completed_at,omitempty"`
	ContentHashBefore string                    `json:"content_hash_before"`
	ContentHashAfter  string                    `json:"content_hash_after"`
	SemanticChanges   []semantic.SemanticChange `json:"semantic_changes"`
	RawDiff           *string                   `json:"raw_diff,omitempty"`
}

// FileEvolution is the per-file record owned by the evolution store.
type FileEvolution struct {
	FilePath             string          `json:"file_path"`
	BaselineCommit       string          `json:"baseline_commit"`
	BaselineCapturedAt   time.Time       `json:"baseline_captured_at"`
	BaselineContentHash  string          `json:"baseline_content_hash"`
	BaselineSnapshotPath string          `json:"baseline_snapshot_path"`
	TaskSnapshots        []*TaskSnapshot `json:"task_snapshots"`
}

// snapshotFor returns the existing snapshot for taskID, or nil.
func (fe *FileEvolution) snapshotFor(taskID string) *TaskSnapshot {
	for _, snap := range fe.TaskSnapshots {
		if snap.TaskID == taskID {
			return snap
		}
	}

	return nil
}

// putSnapshot inserts or replaces the snapshot for its TaskID, keeping the
// "exactly one snapshot per task_id" invariant and preserving started_at
// order among distinct tasks.
func (fe *FileEvolution) putSnapshot(snap *TaskSnapshot) {
	for i, existing := range fe.TaskSnapshots {
		if existing.TaskID == snap.TaskID {
			fe.TaskSnapshots[i] = snap

			return
		}
	}

	fe.TaskSnapshots = append(fe.TaskSnapshots, snap)
}
