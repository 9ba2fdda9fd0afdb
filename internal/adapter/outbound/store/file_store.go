// Package store provides file-based persistence for Raw Message Records and
// LLM Decision Records using JSON Lines, one record per append. Unlike a
// rotating audit log, capture files are never rotated or size-capped: a
// recording session's entire history lives in one file per stream, and an
// advisory flock guards against two proxy processes writing the same
// directory concurrently.
package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cogtrace/mcpaudit/internal/domain/message"
)

// FileStore persists Raw Message Records and LLM Decision Records as
// newline-delimited JSON, appending under an exclusive file lock so a
// capture failure (disk full, permission change) can be isolated to a
// single record without corrupting file framing.
type FileStore struct {
	mu sync.Mutex

	messagesPath string
	messagesFile *os.File

	decisionsPath string
	decisionsFile *os.File

	logger *slog.Logger
	closed bool
}

// NewFileStore creates (or opens for append) the messages and decisions
// files under dir, creating dir if necessary. decisionsRelPath may be empty
// if the host adapter never supplies LLM Decision Records; CaptureDecision
// then returns an error on first use.
func NewFileStore(dir, messagesRelPath, decisionsRelPath string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	messagesPath := filepath.Join(dir, messagesRelPath)
	messagesFile, err := openAppendLocked(messagesPath)
	if err != nil {
		return nil, fmt.Errorf("open messages file: %w", err)
	}

	var decisionsPath string
	var decisionsFile *os.File
	if decisionsRelPath != "" {
		decisionsPath = filepath.Join(dir, decisionsRelPath)
		decisionsFile, err = openAppendLocked(decisionsPath)
		if err != nil {
			_ = messagesFile.Close()
			return nil, fmt.Errorf("open decisions file: %w", err)
		}
	}

	return &FileStore{
		messagesPath:  messagesPath,
		messagesFile:  messagesFile,
		decisionsPath: decisionsPath,
		decisionsFile: decisionsFile,
		logger:        logger,
	}, nil
}

func openAppendLocked(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	if err := flockLock(f.Fd()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return f, nil
}

// Capture appends rec to the messages file. It implements
// internal/domain/proxy.Capturer; a returned error is treated by the
// capture queue as a dropped capture and never propagated to the forwarding
// path.
func (s *FileStore) Capture(_ context.Context, rec message.RawMessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal message record: %w", err)
	}
	return s.writeLine(s.messagesFile, data)
}

// CaptureDecision appends dec to the decisions file.
func (s *FileStore) CaptureDecision(_ context.Context, dec message.LLMDecisionRecord) error {
	if s.decisionsFile == nil {
		return fmt.Errorf("no decisions file configured")
	}
	data, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}
	return s.writeLine(s.decisionsFile, data)
}

func (s *FileStore) writeLine(f *os.File, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	line := append(data, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Flush syncs both files to disk.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.messagesFile.Sync(); err != nil {
		return err
	}
	if s.decisionsFile != nil {
		return s.decisionsFile.Sync()
	}
	return nil
}

// Close releases the file locks and closes the underlying files. Safe to
// call once; subsequent calls are no-ops.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.messagesFile.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := flockUnlock(s.messagesFile.Fd()); err != nil {
		errs = append(errs, err)
	}
	if err := s.messagesFile.Close(); err != nil {
		errs = append(errs, err)
	}

	if s.decisionsFile != nil {
		if err := s.decisionsFile.Sync(); err != nil {
			errs = append(errs, err)
		}
		if err := flockUnlock(s.decisionsFile.Fd()); err != nil {
			errs = append(errs, err)
		}
		if err := s.decisionsFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close store: %v", errs)
	}
	return nil
}

// MessagesPath returns the path of the messages file, for status reporting.
func (s *FileStore) MessagesPath() string { return s.messagesPath }

// countLines is used by proxy-status to report a cheap record count without
// fully decoding the file.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}
