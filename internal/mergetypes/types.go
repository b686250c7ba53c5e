// Package mergetypes holds the result types shared by the auto merger, the
// AI resolver, and the merge pipeline, kept separate to avoid import
// cycles between those three packages.
package mergetypes

import "github.com/latticeworks/parallex/internal/conflict"

// Decision is the closed enum of terminal merge outcomes for one file.
type Decision string

const (
	AutoMerged       Decision = "auto_merged"
	AIMerged         Decision = "ai_merged"
	NeedsHumanReview Decision = "needs_human_review"
	Failed           Decision = "failed"
)

// Result is the outcome of merging one file.
type Result struct {
	Decision          Decision           `json:"decision"`
	MergedContent     *string            `json:"merged_content,omitempty"`
	ConflictsResolved []conflict.Region  `json:"conflicts_resolved"`
	ConflictsRemaining []conflict.Region `json:"conflicts_remaining"`
	AICallsMade       int                `json:"ai_calls_made"`
	TokensUsed        int                `json:"tokens_used"`
	Explanation       string             `json:"explanation"`
	Error             string             `json:"error,omitempty"`
}
