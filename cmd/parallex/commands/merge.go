package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticeworks/parallex/internal/observability"
	"github.com/latticeworks/parallex/internal/orchestrator"
)

func newMergeCommand() *cobra.Command {
	var (
		worktreePath string
		targetBranch string
		outDir       string
		apply        bool
	)

	cmd := &cobra.Command{
		Use:   "merge <task-id> [task-id...]",
		Short: "Merge one or more tasks' changes into the target branch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			providers, err := initObservability(observability.ModeCLI, false)
			if err != nil {
				return err
			}

			defer func() {
				if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			orch, err := loadOrchestrator(providers)
			if err != nil {
				return err
			}

			var report *orchestrator.MergeReport

			if len(args) == 1 {
				report, err = orch.MergeTask(cobraCmd.Context(), args[0], worktreePath, targetBranch)
			} else {
				requests := make([]orchestrator.TaskMergeRequest, len(args))
				for i, taskID := range args {
					requests[i] = orchestrator.TaskMergeRequest{TaskID: taskID}
				}

				report, err = orch.MergeTasks(cobraCmd.Context(), requests, targetBranch)
			}

			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}

			if apply {
				if applyErr := orch.ApplyToProject(report); applyErr != nil {
					return fmt.Errorf("apply merged files: %w", applyErr)
				}
			} else if outDir != "" {
				if writeErr := orch.WriteMergedFiles(report, outDir); writeErr != nil {
					return fmt.Errorf("write merged files: %w", writeErr)
				}
			}

			fmt.Fprintln(cobraCmd.OutOrStdout(), orchestrator.RenderSummaryTable(report))

			return nil
		},
	}

	cmd.Flags().StringVar(&worktreePath, "worktree", "", "worktree path to refresh before merging (single-task merges only)")
	cmd.Flags().StringVar(&targetBranch, "target", "", "branch to merge into (default: configured target branch)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write merged file content into")
	cmd.Flags().BoolVar(&apply, "apply", false, "write merged content directly into the project tree")

	return cmd
}
