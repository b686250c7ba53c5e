package mcpserver

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// handlePreviewMerge processes parallex_preview_merge tool calls.
func (s *Server) handlePreviewMerge(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input PreviewMergeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if len(input.TaskIDs) == 0 {
		return errorResult(ErrEmptyTaskIDs)
	}

	report, err := s.orch.PreviewMerge(ctx, input.TaskIDs)
	if err != nil {
		return errorResult(fmt.Errorf("preview merge: %w", err))
	}

	return jsonResult(report)
}

// handleMergeTask processes parallex_merge_task tool calls.
func (s *Server) handleMergeTask(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input MergeTaskInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.TaskID == "" {
		return errorResult(ErrEmptyTaskID)
	}

	report, err := s.orch.MergeTask(ctx, input.TaskID, input.WorktreePath, input.TargetBranch)
	if err != nil {
		return errorResult(fmt.Errorf("merge task: %w", err))
	}

	return jsonResult(report)
}

// handlePendingConflicts processes parallex_pending_conflicts tool calls.
func (s *Server) handlePendingConflicts(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	_ PendingConflictsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	conflicts, err := s.orch.GetPendingConflicts()
	if err != nil {
		return errorResult(fmt.Errorf("get pending conflicts: %w", err))
	}

	return jsonResult(conflicts)
}
