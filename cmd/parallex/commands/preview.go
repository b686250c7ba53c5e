package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticeworks/parallex/internal/observability"
	"github.com/latticeworks/parallex/internal/orchestrator"
)

func newPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <task-id> [task-id...]",
		Short: "Preview a merge of one or more tasks without writing output",
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

			report, err := orch.PreviewMerge(cobraCmd.Context(), args)
			if err != nil {
				return fmt.Errorf("preview merge: %w", err)
			}

			fmt.Fprintln(cobraCmd.OutOrStdout(), orchestrator.RenderSummaryTable(report))

			return nil
		},
	}

	return cmd
}
