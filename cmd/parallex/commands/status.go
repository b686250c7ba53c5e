package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/observability"
)

var severityColor = map[conflict.Severity]*color.Color{
	conflict.SeverityCritical: color.New(color.FgRed, color.Bold),
	conflict.SeverityHigh:     color.New(color.FgRed),
	conflict.SeverityMedium:   color.New(color.FgYellow),
	conflict.SeverityLow:      color.New(color.FgYellow),
	conflict.SeverityNone:     color.New(color.FgGreen),
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List files with pending, unresolved conflicts across active tasks",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
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

			conflicts, err := orch.GetPendingConflicts()
			if err != nil {
				return fmt.Errorf("get pending conflicts: %w", err)
			}

			out := cobraCmd.OutOrStdout()

			if len(conflicts) == 0 {
				fmt.Fprintln(out, "no pending conflicts")
				return nil
			}

			for _, fc := range conflicts {
				fmt.Fprintf(out, "%s: %d conflict region(s)\n", fc.FilePath, len(fc.Conflicts))

				for _, region := range fc.Conflicts {
					label := string(region.Severity)
					if c, ok := severityColor[region.Severity]; ok {
						label = c.Sprint(label)
					}

					fmt.Fprintf(out, "  - %s [%s] (tasks: %v, auto-mergeable: %t)\n", region.Location, label, region.TasksInvolved, region.CanAutoMerge)
				}
			}

			return nil
		},
	}

	return cmd
}
