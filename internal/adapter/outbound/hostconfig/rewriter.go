// Package hostconfig rewrites an MCP host's config file (e.g. an IDE's
// mcp.json) so that each configured server is launched through mcpaudit
// proxy instead of directly, with a timestamped backup and restore path.
package hostconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// marker is the first injected arg mcpaudit looks for to detect an
// already-rewritten entry, making the rewrite idempotent.
const marker = "--target-command"

// backupSuffixLayout produces the timestamped backup filename suffix.
const backupSuffixLayout = "20060102_150405"

// Rewriter rewrites `mcpServers` entries in a host config file to route
// through a mcpaudit proxy invocation, and can restore the original.
type Rewriter struct {
	// ProxyExecutable is the path written into the rewritten "command"
	// field (normally the currently running mcpaudit binary).
	ProxyExecutable string
}

// NewRewriter builds a Rewriter that injects proxyExecutable as the new
// launch command for every server entry.
func NewRewriter(proxyExecutable string) *Rewriter {
	return &Rewriter{ProxyExecutable: proxyExecutable}
}

// Rewrite reads the host config at path, backs it up with a timestamped
// suffix, and rewrites every mcpServers.* entry so its command is
// r.ProxyExecutable and its args are
// "--target-command <original command> --target-args <original args...>",
// preserving every other field verbatim. Entries already rewritten (first
// arg is "--target-command") are left untouched.
func (r *Rewriter) Rewrite(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("hostconfig: read %s: %w", path, err)
	}

	if err := backup(path, raw); err != nil {
		return err
	}

	servers := gjson.GetBytes(raw, "mcpServers")
	if !servers.Exists() {
		return fmt.Errorf("hostconfig: %s has no mcpServers object", path)
	}

	out := raw
	var rewriteErr error
	servers.ForEach(func(key, value gjson.Result) bool {
		if alreadyRewritten(value) {
			return true
		}

		origCommand := value.Get("command").String()
		origArgs := stringSlice(value.Get("args"))

		newArgs := append([]string{marker, origCommand, "--target-args"}, origArgs...)

		base := fmt.Sprintf("mcpServers.%s", key.String())
		out, rewriteErr = sjson.SetBytes(out, base+".command", r.ProxyExecutable)
		if rewriteErr != nil {
			return false
		}
		out, rewriteErr = sjson.SetBytes(out, base+".args", newArgs)
		return rewriteErr == nil
	})
	if rewriteErr != nil {
		return fmt.Errorf("hostconfig: rewrite %s: %w", path, rewriteErr)
	}

	return os.WriteFile(path, out, 0o600)
}

// Restore finds the most recent backup for path and copies it back,
// undoing Rewrite. Returns an error if no backup exists.
func (r *Rewriter) Restore(path string) error {
	backupPath, err := latestBackup(path)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("hostconfig: read backup %s: %w", backupPath, err)
	}
	return os.WriteFile(path, raw, 0o600)
}

func backup(path string, raw []byte) error {
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().UTC().Format(backupSuffixLayout))
	if err := os.WriteFile(backupPath, raw, 0o600); err != nil {
		return fmt.Errorf("hostconfig: write backup %s: %w", backupPath, err)
	}
	return nil
}

func alreadyRewritten(entry gjson.Result) bool {
	args := entry.Get("args")
	if !args.IsArray() {
		return false
	}
	first := args.Array()
	return len(first) > 0 && first[0].String() == marker
}

func stringSlice(arr gjson.Result) []string {
	if !arr.IsArray() {
		return nil
	}
	var out []string
	for _, v := range arr.Array() {
		out = append(out, v.String())
	}
	return out
}
