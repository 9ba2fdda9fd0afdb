// Package cmd provides the CLI commands for mcpaudit.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cogtrace/mcpaudit/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpaudit",
	Short: "mcpaudit - cognitive observability agent for MCP traffic",
	Long: `mcpaudit is a transparent stdio proxy for Model Context Protocol (MCP)
servers that captures every message, reconstructs interaction flows, and
scores the cognitive load a human operator experiences while driving an
AI agent through MCP tools.

It does not authenticate, authorize, or modify traffic -- it observes and
reports.

Quick start:
  1. Point mcpaudit at your MCP server: mcpaudit proxy --target-command ./my-server
  2. Or rewrite a host's mcp.json once: mcpaudit configure
  3. Generate a report: mcpaudit report --type usability

Configuration:
  Config is loaded from mcpaudit.yaml in the current directory,
  $HOME/.mcpaudit/, or /etc/mcpaudit/.

  Environment variables can override config values with the MCP_AUDIT_ prefix.
  Example: MCP_AUDIT_HOST=cursor MCP_AUDIT_WINDOW_SECONDS=45

Commands:
  proxy         Run the stdio proxy supervisor against an upstream MCP server
  report        Generate a trace, detailed, or usability report
  proxy-status  Print store size, last record timestamp, and child PID stats
  configure     One-shot rewrite (or restore) of a host's MCP config
  version       Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcpaudit.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
