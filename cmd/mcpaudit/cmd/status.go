package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/cogtrace/mcpaudit/internal/adapter/outbound/store"
	"github.com/cogtrace/mcpaudit/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "proxy-status",
	Short: "Report whether a proxy is running and summarize its captured state",
	Long: `proxy-status inspects the capture store's PID files and message file to
report whether a proxy (and its spawned upstream server) is currently
running, how many messages have been captured so far, and the upstream
process's live CPU% and resident memory.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	exitCode, err := runStatusInternal(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if exitCode != exitOK {
		os.Exit(exitCode)
	}
	return nil
}

func runStatusInternal(cmd *cobra.Command) (int, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return exitConfigIOError, fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()

	proxyPID := readPIDFile(pidFilePath(cfg.Store.OutputDir))
	childPID := readPIDFile(childPIDFilePath(cfg.Store.OutputDir))

	if proxyPID == 0 {
		fmt.Fprintln(out, "proxy: not running")
	} else {
		fmt.Fprintf(out, "proxy: running (pid %d)\n", proxyPID)
	}

	if childPID != 0 {
		printChildStatus(out, childPID)
	}

	reader := store.NewReader(cfg.Store.OutputDir, cfg.Store.MessagesFile, cfg.Store.DecisionsFile)
	count, err := reader.Count()
	if err != nil {
		fmt.Fprintf(out, "messages captured: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "messages captured: %d\n", count)
	}

	if last, ok := lastMessageTimestamp(reader); ok {
		fmt.Fprintf(out, "last message at: %s\n", last.Format(time.RFC3339))
	}

	return exitOK, nil
}

// printChildStatus writes the upstream server's live CPU% and resident
// memory to out, or a one-line reason it couldn't be read (the process may
// have already exited).
func printChildStatus(out io.Writer, pid int) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		fmt.Fprintf(out, "upstream server: pid %d not found (%v)\n", pid, err)
		return
	}

	cpuPct, cpuErr := proc.CPUPercent()
	memInfo, memErr := proc.MemoryInfo()

	switch {
	case cpuErr == nil && memErr == nil && memInfo != nil:
		fmt.Fprintf(out, "upstream server: pid %d, cpu %.1f%%, rss %.1f MiB\n",
			pid, cpuPct, float64(memInfo.RSS)/(1024*1024))
	case cpuErr == nil:
		fmt.Fprintf(out, "upstream server: pid %d, cpu %.1f%%, rss unavailable\n", pid, cpuPct)
	default:
		fmt.Fprintf(out, "upstream server: pid %d, live stats unavailable (%v)\n", pid, cpuErr)
	}
}

// lastMessageTimestamp returns the timestamp of the most recently captured
// message, if any exist.
func lastMessageTimestamp(reader *store.Reader) (time.Time, bool) {
	records, err := reader.ReadMessages(context.Background(), store.Filter{})
	if err != nil || len(records) == 0 {
		return time.Time{}, false
	}
	return records[len(records)-1].Timestamp, true
}
