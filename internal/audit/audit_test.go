package audit_test

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wavelift/internal/audit"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestTrailWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.csv")
	for i := range 2 {
		trail, err := audit.Open(path)
		if err != nil {
			t.Fatalf("Open returned error: %v", err)
		}
		if err := trail.Append(audit.Row{Time: time.Unix(0, 0).UTC(), Owner: "o", Locator: fmt.Sprintf("u%d", i), Status: "success", Message: "s3://b/k, with comma"}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
		if err := trail.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
	}
	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][4] != "message" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][4] != "s3://b/k, with comma" {
		t.Fatalf("expected quoted message preserved, got %q", rows[1][4])
	}
}

func TestTrailConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	trail, err := audit.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	const writers = 50
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := trail.Append(audit.Row{Owner: "o", Locator: fmt.Sprintf("https://example.com/%d", i), Status: "success"}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if err := trail.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != writers+1 {
		t.Fatalf("expected %d rows, got %d", writers+1, len(rows))
	}
	seen := map[string]bool{}
	for _, row := range rows[1:] {
		if seen[row[2]] {
			t.Fatalf("duplicate row for %s", row[2])
		}
		seen[row[2]] = true
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	trail, err := audit.Open(filepath.Join(t.TempDir(), "a.csv"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	_ = trail.Close()
	if err := trail.Append(audit.Row{}); err == nil {
		t.Fatal("expected error after close")
	}
	var nilTrail *audit.Trail
	if err := nilTrail.Append(audit.Row{}); err != nil {
		t.Fatalf("nil trail should be a no-op, got %v", err)
	}
}
