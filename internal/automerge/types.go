// Package automerge implements the deterministic merge strategies: given a
// conflict region and the baseline/task content involved, produce merged
// file content without ever calling an AI.
package automerge

import (
	"time"

	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/mergetypes"
	"github.com/latticeworks/parallex/internal/semantic"
)

// TaskChange is one task's semantic change at a conflict's location, plus
// the ordering key (started_at) handlers need for deterministic sequencing.
type TaskChange struct {
	TaskID    string
	StartedAt time.Time
	Change    semantic.SemanticChange
}

// Context is everything a strategy handler needs to merge one conflict
// region. Handlers must read only BaselineContent and TaskChanges; they
// must never call an AI.
type Context struct {
	FilePath        string
	BaselineContent string
	Conflict        conflict.Region
	TaskChanges     []TaskChange
}

// sortedByStartedAt returns ctx.TaskChanges ordered by started_at ascending,
// ties broken by task_id lexicographic, per the concurrency model's
// ordering guarantee.
func (ctx Context) sortedByStartedAt() []TaskChange {
	out := make([]TaskChange, len(ctx.TaskChanges))
	copy(out, ctx.TaskChanges)

	sortStable(out, func(a, b TaskChange) bool {
		if a.StartedAt.Equal(b.StartedAt) {
			return a.TaskID < b.TaskID
		}

		return a.StartedAt.Before(b.StartedAt)
	})

	return out
}

func sortStable(changes []TaskChange, less func(a, b TaskChange) bool) {
	for i := 1; i < len(changes); i++ {
		for j := i; j > 0 && less(changes[j], changes[j-1]); j-- {
			changes[j], changes[j-1] = changes[j-1], changes[j]
		}
	}
}

// Handler is a deterministic merge strategy implementation.
type Handler func(ctx Context) mergetypes.Result

// successResult builds the common successful-merge shape.
func successResult(ctx Context, merged string, explanation string) mergetypes.Result {
	return mergetypes.Result{
		Decision:          mergetypes.AutoMerged,
		MergedContent:     &merged,
		ConflictsResolved: []conflict.Region{ctx.Conflict},
		Explanation:       explanation,
	}
}

func failedResult(err error) mergetypes.Result {
	return mergetypes.Result{
		Decision: mergetypes.Failed,
		Error:    err.Error(),
	}
}

// needsReviewResult is used when a handler detects its own determinism has
// broken down (e.g. combine_props with conflicting values) and must demote
// to ai_required rather than fabricate an answer.
func needsReviewResult(ctx Context, reason string) mergetypes.Result {
	return mergetypes.Result{
		Decision:           mergetypes.NeedsHumanReview,
		ConflictsRemaining: []conflict.Region{ctx.Conflict},
		Explanation:        reason,
	}
}
