package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cogtrace/mcpaudit/internal/config"
)

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// correlationTTL parses cfg.Proxy.CorrelationTTL, falling back to 10
// minutes on an unparseable value rather than failing startup over it.
func correlationTTL(cfg *config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Proxy.CorrelationTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// exportInterval converts cfg.Metrics.ExportIntervalSeconds to a Duration,
// falling back to 10 seconds.
func exportInterval(cfg *config.Config) time.Duration {
	if cfg.Metrics.ExportIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.Metrics.ExportIntervalSeconds) * time.Second
}

// pidFilePath returns the path of the PID file for a running proxy writing
// into the given capture output directory. proxy-status reads this file to
// find the running proxy (and, through it, its spawned upstream child).
func pidFilePath(outputDir string) string {
	if outputDir == "" {
		return filepath.Join(os.TempDir(), "mcpaudit-proxy.pid")
	}
	return filepath.Join(outputDir, "proxy.pid")
}

// writePIDFile writes the current process PID to path, creating parent
// directories as needed.
func writePIDFile(path string) error {
	return writePID(path, os.Getpid())
}

// writePID writes an arbitrary PID (not necessarily the current process's)
// to path, creating parent directories as needed.
func writePID(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// readPIDFile returns the PID recorded at path, or 0 if it cannot be read
// or parsed.
func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// childPIDFilePath returns the path of the sidecar file recording the
// upstream server's PID, alongside the proxy's own PID file.
func childPIDFilePath(outputDir string) string {
	if outputDir == "" {
		return filepath.Join(os.TempDir(), "mcpaudit-child.pid")
	}
	return filepath.Join(outputDir, "child.pid")
}

// pidProvider is satisfied by *upstream.StdioSupervisor; kept narrow here so
// this file doesn't need to import the upstream package.
type pidProvider interface {
	PID() int
}

// watchChildPID polls sup for its spawned PID and writes it to path as soon
// as it's known, so a separate proxy-status invocation can find it. It gives
// up once ctx is done.
func watchChildPID(ctx context.Context, sup pidProvider, path string) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if pid := sup.PID(); pid != 0 {
			_ = writePID(path, pid)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
