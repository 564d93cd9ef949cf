// Package audit appends one CSV row per terminal pipeline outcome.
package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var header = []string{"timestamp", "owner", "locator", "status", "message"}

// Row is one audit record.
type Row struct {
	Time    time.Time
	Owner   string
	Locator string
	Status  string
	Message string
}

// Trail is an append-only CSV file safe for concurrent writers.
type Trail struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// Open opens or creates the CSV at path, writing the header for a new file.
func Open(path string) (*Trail, error) {
	if path == "" {
		return nil, errors.New("audit log path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat audit log: %w", err)
	}
	trail := &Trail{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := trail.write(header); err != nil {
			file.Close()
			return nil, err
		}
	}
	return trail, nil
}

// Append writes one row and flushes it before returning.
func (t *Trail) Append(row Row) error {
	if t == nil {
		return nil
	}
	ts := row.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return t.write([]string{ts.Format(time.RFC3339), row.Owner, row.Locator, row.Status, row.Message})
}

func (t *Trail) write(record []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return errors.New("audit log closed")
	}
	if err := t.w.Write(record); err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush audit row: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	t.w.Flush()
	t.w = nil
	return t.file.Close()
}
