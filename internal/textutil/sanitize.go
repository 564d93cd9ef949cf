package textutil

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength bounds a sanitized path segment in runes.
const DefaultMaxLength = 100

// Fallback replaces names that sanitize to nothing.
const Fallback = "unnamed"

const maxExtensionRunes = 10

// Sanitize converts an arbitrary title into a single safe path segment.
// The result is NFC-normalized, contains none of / \ : * ? " < > | or control
// characters, has no leading or trailing dots or spaces, is never empty, and
// is at most maxLength runes long with any short extension preserved.
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	out := sanitizeOnce(name, maxLength)
	// Truncation can leave a string that NFC recomposes; settle on a fixed point.
	for range 3 {
		next := sanitizeOnce(out, maxLength)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func sanitizeOnce(name string, maxLength int) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if isForbidden(r) {
			return '_'
		}
		return r
	}, name)
	name = trimEdges(name)
	if name == "" {
		return Fallback
	}
	if utf8.RuneCountInString(name) > maxLength {
		name = truncate(name, maxLength)
	}
	if name == "" {
		return Fallback
	}
	return name
}

func isForbidden(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return r == utf8.RuneError || unicode.IsControl(r)
}

func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// truncate shortens name to maxLength runes, keeping a short extension intact.
func truncate(name string, maxLength int) string {
	ext := extension(name)
	extRunes := utf8.RuneCountInString(ext)
	if extRunes >= maxLength {
		ext, extRunes = "", 0
	}
	stem := []rune(strings.TrimSuffix(name, ext))
	keep := maxLength - extRunes
	if keep < len(stem) {
		stem = stem[:keep]
	}
	base := trimEdges(string(stem))
	if base == "" {
		return trimEdges(strings.TrimLeft(ext, "."))
	}
	return base + ext
}

func extension(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == name || utf8.RuneCountInString(ext) > maxExtensionRunes {
		return ""
	}
	if strings.IndexFunc(ext, unicode.IsSpace) >= 0 {
		return ""
	}
	return ext
}

// ArtifactKey builds folder/owner/title_id.ext. The title is shortened first so
// the id and extension always survive the length bound of the file segment.
func ArtifactKey(folder, owner, title, id, ext string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	safeOwner := Sanitize(owner, maxLength)
	safeID := Sanitize(id, maxLength)
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	budget := maxLength - utf8.RuneCountInString(safeID) - utf8.RuneCountInString(ext) - 1
	if budget < 8 {
		budget = 8
	}
	safeTitle := Sanitize(strings.TrimSuffix(title, ext), budget)

	file := safeTitle + "_" + safeID + ext
	return path.Join(strings.Trim(folder, "/"), safeOwner, file)
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
