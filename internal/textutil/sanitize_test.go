package textutil_test

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"wavelift/internal/textutil"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"plain", "Morning Podcast", 100, "Morning Podcast"},
		{"separators", `AC/DC: Live? "Best" <Of> | 2020*`, 100, "AC_DC_ Live_ _Best_ _Of_ _ 2020_"},
		{"control chars", "line\nbreak\ttab", 100, "line_break_tab"},
		{"edge dots and spaces", "  ..hidden name.. ", 100, "hidden name"},
		{"empty", "", 100, "unnamed"},
		{"only dots", "...", 100, "unnamed"},
		{"nfc", "Café", 100, "Café"},
		{"truncate keeps extension", strings.Repeat("a", 30) + ".wav", 20, strings.Repeat("a", 16) + ".wav"},
		{"truncate without extension", strings.Repeat("b", 30), 10, strings.Repeat("b", 10)},
		{"dotted title is not an extension", "Mr. Smith Goes To Washington", 12, "Mr. Smith Go"},
		{"default length", strings.Repeat("c", 150), 0, strings.Repeat("c", textutil.DefaultMaxLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textutil.Sanitize(tt.input, tt.max); got != tt.want {
				t.Fatalf("Sanitize(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotentAndSafe(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"a/b\\c:d*e?f\"g<h>i|j",
		"\x00\x01\x7f\u0085 name",
		"trailing dot.",
		"日本語のタイトル／スラッシュ",
		"é́́ combining",
		strings.Repeat("long title ", 30) + ".mp3",
		strings.Repeat("x", 99) + ". tail",
		"\xff\xfe invalid utf8",
		"....wav",
		"a" + strings.Repeat(" ", 50) + "b",
	}
	for _, max := range []int{16, 40, 100} {
		for _, in := range inputs {
			once := textutil.Sanitize(in, max)
			twice := textutil.Sanitize(once, max)
			if once != twice {
				t.Fatalf("not idempotent for %q (max %d): %q -> %q", in, max, once, twice)
			}
			if once == "" {
				t.Fatalf("empty output for %q", in)
			}
			if n := utf8.RuneCountInString(once); n > max {
				t.Fatalf("output %q exceeds %d runes (%d)", once, max, n)
			}
			if strings.ContainsAny(once, `/\:*?"<>|`) {
				t.Fatalf("forbidden character in %q", once)
			}
			for _, r := range once {
				if unicode.IsControl(r) {
					t.Fatalf("control character in %q", once)
				}
			}
		}
	}
}

func TestArtifactKey(t *testing.T) {
	key := textutil.ArtifactKey("audio/", "Some/Owner", "Episode: 1", "abc123", ".wav", 100)
	want := "audio/Some_Owner/Episode_ 1_abc123.wav"
	if key != want {
		t.Fatalf("ArtifactKey = %q, want %q", key, want)
	}

	noFolder := textutil.ArtifactKey("", "owner", "title", "id", "wav", 100)
	if noFolder != "owner/title_id.wav" {
		t.Fatalf("unexpected key without folder: %q", noFolder)
	}
}

func TestArtifactKeyPreservesIDAndExtension(t *testing.T) {
	id := "dQw4w9WgXcQ"
	key := textutil.ArtifactKey("f", "o", strings.Repeat("very long title ", 20), id, ".wav", 60)
	file := key[strings.LastIndex(key, "/")+1:]
	if !strings.HasSuffix(file, "_"+id+".wav") {
		t.Fatalf("expected id and extension preserved, got %q", file)
	}
	if n := utf8.RuneCountInString(file); n > 60 {
		t.Fatalf("file segment too long: %d runes", n)
	}
}

func TestArtifactKeyDistinctIDsDoNotCollide(t *testing.T) {
	a := textutil.ArtifactKey("f", "o", "Same?Title", "id1", ".wav", 100)
	b := textutil.ArtifactKey("f", "o", "Same*Title", "id2", ".wav", 100)
	if a == b {
		t.Fatalf("expected distinct keys, both %q", a)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello_world"},
		{"  ", "unknown"},
		{"--abc--", "abc"},
		{"A-1_b", "a-1_b"},
	}
	for _, tt := range tests {
		if got := textutil.SanitizeToken(tt.input); got != tt.want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
