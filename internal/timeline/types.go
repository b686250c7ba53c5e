// Package timeline maintains a file-centric chronological log of
// main-branch events and per-task branch points, and produces the
// MergeContext handed to conflict resolution.
package timeline

import "time"

// EventSource distinguishes human commits from merged-task commits.
type EventSource string

const (
	SourceHuman      EventSource = "human"
	SourceMergedTask EventSource = "merged_task"
)

// TaskViewStatus is the lifecycle state of a TaskFileView.
type TaskViewStatus string

const (
	StatusActive    TaskViewStatus = "active"
	StatusMerged    TaskViewStatus = "merged"
	StatusAbandoned TaskViewStatus = "abandoned"
)

// MainBranchEvent is one commit on the main branch that touched a file.
type MainBranchEvent struct {
	CommitHash     string      `json:"commit_hash"`
	Timestamp      time.Time   `json:"timestamp"`
	Content        string      `json:"content"`
	Source         EventSource `json:"source"`
	MergedFromTask *string     `json:"merged_from_task,omitempty"`
	CommitMessage  string      `json:"commit_message"`
	Author         *string     `json:"author,omitempty"`
	DiffSummary    *string     `json:"diff_summary,omitempty"`
}

// BranchPoint is the state of a file at the commit a task branched from.
type BranchPoint struct {
	CommitHash string    `json:"commit_hash"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// WorktreeState is the most recently observed content of a task's working
// copy of a file.
type WorktreeState struct {
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
}

// TaskIntent describes why a task exists, in one sentence, plus optional
// structured origin.
type TaskIntent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	FromPlan    bool   `json:"from_plan"`
}

// TaskFileView is one task's perspective on one file.
type TaskFileView struct {
	TaskID           string         `json:"task_id"`
	BranchPoint      BranchPoint    `json:"branch_point"`
	WorktreeState    *WorktreeState `json:"worktree_state,omitempty"`
	TaskIntent       TaskIntent     `json:"task_intent"`
	CommitsBehindMain int           `json:"commits_behind_main"`
	Status           TaskViewStatus `json:"status"`
	MergedAt         *time.Time     `json:"merged_at,omitempty"`
}

// FileTimeline is the full chronological record for one file.
type FileTimeline struct {
	FilePath         string                   `json:"file_path"`
	MainBranchHistory []MainBranchEvent       `json:"main_branch_history"`
	TaskViews        map[string]*TaskFileView `json:"task_views"`
	CreatedAt        time.Time                `json:"created_at"`
	LastUpdated      time.Time                `json:"last_updated"`
}

// PendingTask describes another active task touching the same file, for
// forward-compatibility awareness in MergeContext.
type PendingTask struct {
	TaskID          string `json:"task_id"`
	TaskIntent      string `json:"task_intent"`
	BranchPointHash string `json:"branch_point_hash"`
	CommitsBehind   int    `json:"commits_behind"`
}

// MergeContext is the bundle handed to conflict resolution for one
// (task, file) pair.
type MergeContext struct {
	FilePath            string            `json:"file_path"`
	TaskID              string            `json:"task_id"`
	TaskIntent          TaskIntent        `json:"task_intent"`
	TaskBranchPoint     BranchPoint       `json:"task_branch_point"`
	MainEvolution       []MainBranchEvent `json:"main_evolution"`
	TaskWorktreeContent string            `json:"task_worktree_content"`
	CurrentMainContent  string            `json:"current_main_content"`
	CurrentMainCommit   string            `json:"current_main_commit"`
	OtherPendingTasks   []PendingTask     `json:"other_pending_tasks"`
	TotalCommitsBehind  int               `json:"total_commits_behind"`
	TotalPendingTasks   int               `json:"total_pending_tasks"`
}
