package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/hostconfig"
	"github.com/cogtrace/mcpaudit/internal/config"
)

var configureRestore bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "One-shot rewrite (or restore) of a host's MCP config",
	Long: `configure rewrites the MCP server entries in a host's config file
(e.g. an IDE's mcp.json) so their command points at mcpaudit instead of the
real server, inserting a --target-command/--target-args marker that lets
mcpaudit re-spawn the original server transparently. A timestamped backup
of the file is written first, and rewriting is idempotent: running it
twice on an already-rewritten entry is a no-op.

Use --restore to undo the rewrite from the most recent backup.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureRestore, "restore", false, "restore the host config from its most recent backup instead of rewriting")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	exitCode, err := runConfigureInternal()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if exitCode != exitOK {
		os.Exit(exitCode)
	}
	return nil
}

func runConfigureInternal() (int, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return exitConfigIOError, fmt.Errorf("load config: %w", err)
	}

	if cfg.HostConfig.Path == "" {
		return exitInvalidArgs, errors.New("host_config.path is not set; nothing to configure")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))

	proxyExecutable := cfg.HostConfig.ProxyExecutable
	if proxyExecutable == "" {
		if self, err := os.Executable(); err == nil {
			proxyExecutable = self
		}
	}
	rewriter := hostconfig.NewRewriter(proxyExecutable)

	if configureRestore {
		if err := rewriter.Restore(cfg.HostConfig.Path); err != nil {
			return exitConfigIOError, fmt.Errorf("restore host config: %w", err)
		}
		logger.Info("host config restored", "path", cfg.HostConfig.Path)
		return exitOK, nil
	}

	if err := rewriter.Rewrite(cfg.HostConfig.Path); err != nil {
		return exitConfigIOError, fmt.Errorf("rewrite host config: %w", err)
	}
	logger.Info("host config rewritten", "path", cfg.HostConfig.Path, "proxy_executable", proxyExecutable)
	return exitOK, nil
}
