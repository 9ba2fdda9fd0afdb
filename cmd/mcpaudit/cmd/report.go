package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/reportsink"
	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/store"
	"github.com/cogtrace/mcpaudit/internal/config"
	"github.com/cogtrace/mcpaudit/internal/domain/flow"
	"github.com/cogtrace/mcpaudit/internal/domain/report"
	"github.com/cogtrace/mcpaudit/internal/domain/scoring"
)

var (
	reportType   string
	reportSince  string
	reportServer string
	reportFormat string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a trace, detailed, or usability report from captured records",
	Long: `report reads the message and decision stores and renders one of three
report families:

  trace      MCP-side call/timeline only, no scoring
  detailed   full flow structure with LLM Decision Record correlation
  usability  aggregate cognitive-load score, usability metrics, and insights

Output is written under report.output_dir (or --output) using the default
filename <type>_report[_<server>]_<timestamp>.<ext> unless --output names a
file directly.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportType, "type", "usability", "report type: trace, detailed, or usability")
	reportCmd.Flags().StringVar(&reportSince, "since", "", "only include records at or after this duration ago (e.g. 1h, 30m)")
	reportCmd.Flags().StringVar(&reportServer, "server", "", "restrict the report to a single server")
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "output format: json, html, or txt (default from config)")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "write the report to this path instead of the default location")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	exitCode, err := runReportInternal(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if exitCode != exitOK {
		os.Exit(exitCode)
	}
	return nil
}

func runReportInternal(cmd *cobra.Command) (int, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return exitConfigIOError, fmt.Errorf("load config: %w", err)
	}

	switch reportType {
	case "trace", "detailed", "usability":
	default:
		return exitInvalidArgs, fmt.Errorf("invalid --type %q; must be trace, detailed, or usability", reportType)
	}

	format := reportsink.Format(reportFormat)
	if format == "" {
		format = reportsink.Format(cfg.Report.DefaultFormat)
	}
	switch format {
	case reportsink.FormatJSON, reportsink.FormatHTML, reportsink.FormatTXT:
	default:
		return exitInvalidArgs, fmt.Errorf("invalid --format %q; must be json, html, or txt", format)
	}

	window, err := reportWindow(reportSince, reportServer)
	if err != nil {
		return exitInvalidArgs, err
	}

	reader := store.NewReader(cfg.Store.OutputDir, cfg.Store.MessagesFile, cfg.Store.DecisionsFile)
	records, err := reader.ReadMessages(context.Background(), store.Filter{Since: window.Since, Server: window.Server})
	if err != nil {
		return exitCaptureDisk, fmt.Errorf("read message store: %w", err)
	}
	decisions, err := reader.ReadDecisions(context.Background())
	if err != nil {
		return exitCaptureDisk, fmt.Errorf("read decision store: %w", err)
	}

	builder := report.NewBuilder(flow.NewReconstructor(cfg.Proxy.WindowSeconds), scoring.NewScorer(toScoringWeights(cfg.Scoring.Weights)))

	outputPath := reportOutputPath(cfg, window, format)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return exitCaptureDisk, fmt.Errorf("create report output directory: %w", err)
	}
	dest, err := os.Create(outputPath)
	if err != nil {
		return exitCaptureDisk, fmt.Errorf("open report output: %w", err)
	}
	defer dest.Close()

	switch reportType {
	case "trace":
		err = reportsink.WriteTrace(dest, format, builder.BuildTrace(records, window))
	case "detailed":
		err = reportsink.WriteDetailed(dest, format, builder.BuildDetailed(records, decisions, window))
	case "usability":
		err = reportsink.WriteUsability(dest, format, builder.BuildUsability(records, decisions, window))
	}
	if err != nil {
		return exitOther, fmt.Errorf("render report: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), dest.Name())
	return exitOK, nil
}

// reportWindow parses --since (a duration string relative to now, e.g.
// "1h") into a report.Window with an absolute Since time.
func reportWindow(since, server string) (report.Window, error) {
	if since == "" {
		return report.Window{Server: server}, nil
	}
	d, err := time.ParseDuration(since)
	if err != nil {
		return report.Window{}, fmt.Errorf("invalid --since %q: %w", since, err)
	}
	if d < 0 {
		return report.Window{}, errors.New("--since must be positive")
	}
	return report.Window{Since: time.Now().Add(-d), Server: server}, nil
}

// reportOutputPath resolves --output, falling back to the default filename
// under the report output directory.
func reportOutputPath(cfg *config.Config, w report.Window, format reportsink.Format) string {
	if reportOutput != "" {
		return reportOutput
	}
	dir := cfg.Report.OutputDir
	if dir == "" {
		dir = cfg.Store.OutputDir
	}
	return filepath.Join(dir, reportsink.Filename(reportType, w.Server, format, time.Now()))
}
