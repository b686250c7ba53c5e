package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticeworks/parallex/internal/config"
	"github.com/latticeworks/parallex/internal/mcpserver"
	"github.com/latticeworks/parallex/internal/observability"
)

// newMCPCommand creates the MCP server command.
func newMCPCommand() *cobra.Command {
	var (
		debug           bool
		diagnosticsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the merge engine as tools AI agents can discover
and invoke:
  - parallex_preview_merge: compute a merge without writing output
  - parallex_merge_task: merge one task's changes into the target branch
  - parallex_pending_conflicts: list files with unresolved conflicts`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			providers, err := initObservability(observability.ModeMCP, debug)
			if err != nil {
				return err
			}

			defer func() {
				if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			orch, err := loadOrchestrator(providers)
			if err != nil {
				return err
			}

			stopDiagnostics, err := startDiagnosticsServer(providers, diagnosticsAddr)
			if err != nil {
				return err
			}
			defer stopDiagnostics()

			deps := mcpserver.ServerDeps{Logger: providers.Logger, Metrics: red, Tracer: providers.Tracer}

			srv := mcpserver.NewServer(deps, orch)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")
	cmd.Flags().StringVar(&diagnosticsAddr, "diagnostics-addr", "", "address to serve /healthz, /readyz, and /metrics on (disabled when empty)")

	return cmd
}

// startDiagnosticsServer starts a DiagnosticsServer on addr, wiring a
// readiness check against the configured state root so a load balancer
// only routes traffic once the merge engine can read its own state. A
// blank addr disables the server, returning a no-op cleanup.
func startDiagnosticsServer(providers observability.Providers, addr string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}

	stateRootCheck := func(_ context.Context) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		info, err := os.Stat(cfg.Merge.StateRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return fmt.Errorf("stat state root %s: %w", cfg.Merge.StateRoot, err)
		}

		if !info.IsDir() {
			return fmt.Errorf("state root %s is not a directory", cfg.Merge.StateRoot)
		}

		return nil
	}

	diagServer, err := observability.NewDiagnosticsServer(addr, providers.Meter, stateRootCheck)
	if err != nil {
		return func() {}, fmt.Errorf("start diagnostics server: %w", err)
	}

	providers.Logger.Info("diagnostics server listening", "addr", diagServer.Addr())

	return func() { diagServer.Close() }, nil
}
