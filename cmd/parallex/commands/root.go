// Package commands implements the parallex CLI's subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticeworks/parallex/internal/config"
	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/mergepipeline"
	"github.com/latticeworks/parallex/internal/observability"
	"github.com/latticeworks/parallex/internal/orchestrator"
	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/timeline"
	"github.com/latticeworks/parallex/internal/vcs"
	"github.com/latticeworks/parallex/internal/vcs/execclient"
	"github.com/latticeworks/parallex/pkg/version"
)

var configPath string

// NewRootCommand builds the parallex root command and wires every
// subcommand onto it.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "parallex",
		Short: "Parallel task execution & intent-aware merge engine",
		Long: `parallex coordinates the merge of multiple AI agents' isolated
worktree changes back into a shared branch.

Commands:
  merge    Merge one or more tasks into the target branch
  preview  Preview a merge without writing output
  status   List files with pending, unresolved conflicts`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to parallex config file")

	root.AddCommand(newMergeCommand())
	root.AddCommand(newPreviewCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newMCPCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// loadOrchestrator builds an Orchestrator from the resolved configuration,
// shared by every command that drives a merge. Metrics and tracing are
// wired from providers so every merge_task/merge_tasks/preview_merge run,
// regardless of which command triggered it, reports through the same
// MergeMetrics instruments.
func loadOrchestrator(providers observability.Providers) (*orchestrator.Orchestrator, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := providers.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	evoStore := evolution.New(cfg.Merge.StateRoot, nil, logger)
	tracker := timeline.New(cfg.Merge.StateRoot, logger)

	var vcsClient vcs.Client
	if cfg.Repository.ProjectRoot != "" {
		vcsClient = execclient.New(cfg.Repository.ProjectRoot, cfg.VCS.Timeout)
	}

	pipeline := mergepipeline.New(rules.NewDefaultRuleBook(), nil)

	orch := orchestrator.New(cfg, evoStore, tracker, vcsClient, pipeline, logger)

	if providers.Meter != nil {
		mm, mmErr := observability.NewMergeMetrics(providers.Meter)
		if mmErr != nil {
			return nil, fmt.Errorf("create merge metrics: %w", mmErr)
		}

		orch.SetMetrics(mm)
	}

	if providers.Tracer != nil {
		orch.SetTracer(providers.Tracer)
	}

	return orch, nil
}

// initObservability builds OTel providers for mode, honoring the same
// OTEL_EXPORTER_OTLP_* environment variables across every command so the CLI
// and the MCP server share one configuration surface.
func initObservability(mode observability.AppMode, debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = mode
	cfg.LogJSON = mode == observability.ModeMCP

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}
