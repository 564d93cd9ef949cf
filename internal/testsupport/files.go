package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// patternPeriod is prime so no power-of-two chunk of a pattern repeats
// another chunk at a different offset.
const patternPeriod = 251

// Pattern returns size bytes where byte i is i mod 251. Chunks taken at
// different offsets differ, so a reassembled upload that swapped, dropped, or
// duplicated a part never matches the source.
func Pattern(size int64) []byte {
	if size < 0 {
		size = 0
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % patternPeriod)
	}
	return data
}

// WritePatternFile writes Pattern(size) to path, creating parent directories,
// and returns the bytes written.
func WritePatternFile(t testing.TB, path string, size int64) []byte {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := Pattern(size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
