package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
)

// Filter narrows ReadMessages to a time range and/or server name. A zero
// Since means no lower bound; an empty Server means all servers.
type Filter struct {
	Since  time.Time
	Server string
}

func (f Filter) matches(rec message.RawMessageRecord) bool {
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if f.Server != "" && rec.Server != f.Server {
		return false
	}
	return true
}

// Reader reads back previously captured records for flow reconstruction and
// report generation. It takes no lock: FileStore's lock is advisory and does
// not stop plain reads, so Reader may read a file the proxy is still
// appending to. Each call scans the file from the start; an undecodable
// final line (a record still being written) is skipped, while an
// undecodable line followed by further lines is an error.
type Reader struct {
	dir              string
	messagesRelPath  string
	decisionsRelPath string
}

// NewReader builds a Reader over the same directory and filenames a
// FileStore was configured with.
func NewReader(dir, messagesRelPath, decisionsRelPath string) *Reader {
	return &Reader{dir: dir, messagesRelPath: messagesRelPath, decisionsRelPath: decisionsRelPath}
}

// ReadMessages streams every Raw Message Record matching filter, in file
// order (which is capture order, since records are only ever appended).
func (r *Reader) ReadMessages(_ context.Context, filter Filter) ([]message.RawMessageRecord, error) {
	path := joinIfRel(r.dir, r.messagesRelPath)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	var records []message.RawMessageRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	var pending error
	for scanner.Scan() {
		line++
		if pending != nil {
			return nil, pending
		}
		var rec message.RawMessageRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			pending = fmt.Errorf("messages file line %d: %w", line, err)
			continue
		}
		if filter.matches(rec) {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan messages file: %w", err)
	}
	return records, nil
}

// ReadDecisions streams every LLM Decision Record. Returns nil, nil if no
// decisions file was ever configured or created.
func (r *Reader) ReadDecisions(_ context.Context) ([]message.LLMDecisionRecord, error) {
	if r.decisionsRelPath == "" {
		return nil, nil
	}
	path := joinIfRel(r.dir, r.decisionsRelPath)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open decisions file: %w", err)
	}
	defer f.Close()

	var decisions []message.LLMDecisionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	var pending error
	for scanner.Scan() {
		line++
		if pending != nil {
			return nil, pending
		}
		var dec message.LLMDecisionRecord
		if err := json.Unmarshal(scanner.Bytes(), &dec); err != nil {
			pending = fmt.Errorf("decisions file line %d: %w", line, err)
			continue
		}
		decisions = append(decisions, dec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan decisions file: %w", err)
	}
	return decisions, nil
}

// Count reports the number of Raw Message Records captured so far, for
// proxy-status. It is a plain line count and does not validate JSON.
func (r *Reader) Count() (int, error) {
	return countLines(joinIfRel(r.dir, r.messagesRelPath))
}

func joinIfRel(dir, rel string) string {
	if rel == "" {
		return dir
	}
	if os.IsPathSeparator(rel[0]) {
		return rel
	}
	return dir + string(os.PathSeparator) + rel
}
