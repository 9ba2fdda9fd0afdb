package hostconfig

import (
	"fmt"
	"path/filepath"
	"sort"
)

// latestBackup returns the most recent "<path>.backup.<timestamp>" file,
// chosen by lexicographic (== chronological, given the fixed-width
// timestamp layout) ordering of the suffix.
func latestBackup(path string) (string, error) {
	matches, err := filepath.Glob(path + ".backup.*")
	if err != nil {
		return "", fmt.Errorf("hostconfig: glob backups for %s: %w", path, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("hostconfig: no backup found for %s", path)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
