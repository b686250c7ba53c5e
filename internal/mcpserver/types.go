// Package mcpserver implements a Model Context Protocol server exposing
// the merge orchestrator as MCP tools over stdio transport.
package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNamePreviewMerge     = "parallex_preview_merge"
	ToolNameMergeTask        = "parallex_merge_task"
	ToolNamePendingConflicts = "parallex_pending_conflicts"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyTaskIDs indicates the task_ids parameter is empty.
	ErrEmptyTaskIDs = errors.New("task_ids parameter is required and must not be empty")
	// ErrEmptyTaskID indicates the task_id parameter is empty.
	ErrEmptyTaskID = errors.New("task_id parameter is required and must not be empty")
)

// PreviewMergeInput is the input schema for the parallex_preview_merge tool.
type PreviewMergeInput struct {
	TaskIDs []string `json:"task_ids" jsonschema:"task IDs whose pending changes should be merged and previewed"`
}

// MergeTaskInput is the input schema for the parallex_merge_task tool.
type MergeTaskInput struct {
	TaskID       string `json:"task_id"                 jsonschema:"task whose changes should be merged"`
	WorktreePath string `json:"worktree_path,omitempty"  jsonschema:"optional worktree path to refresh from before merging"`
	TargetBranch string `json:"target_branch,omitempty"  jsonschema:"branch to merge into (default: configured target branch)"`
}

// PendingConflictsInput is the input schema for the parallex_pending_conflicts tool.
type PendingConflictsInput struct{}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
