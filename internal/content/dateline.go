package content

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Recognized leading date line layouts, longest first.
var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006-01-02 15:04", true},
	{"2006-01-02", false},
}

// DateLayout is the plain-date form stamped into sources that lack an
// explicit date line.
const DateLayout = "2006-01-02"

// parseDateLine reports whether line is a recognized date line and, if
// so, its timestamp and whether a clock time was given.
func parseDateLine(line string) (time.Time, bool, bool) {
	line = strings.TrimSpace(line)
	for _, l := range dateLayouts {
		if when, err := time.Parse(l.layout, line); err == nil {
			return when, l.hasTime, true
		}
	}
	return time.Time{}, false, false
}

// firstContentLine returns the first line of raw after skipping
// leading whitespace.
func firstContentLine(raw []byte) string {
	text := strings.TrimLeft(string(raw), " \t\r\n")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// StripDateLine removes a recognized leading date line (and the blank
// line after it) from raw, returning raw unchanged when none is
// present. Rendering uses this so the date is presentation metadata,
// not body text.
func StripDateLine(raw []byte) []byte {
	text := string(raw)
	trimmed := strings.TrimLeft(text, " \t\r\n")
	line := trimmed
	rest := ""
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		line, rest = trimmed[:i], trimmed[i+1:]
	}
	if _, _, ok := parseDateLine(line); !ok {
		return raw
	}
	return []byte(strings.TrimLeft(rest, "\r\n"))
}

// EnsureDateLine stamps a plain date line at the top of the source at
// path when its first content line is not already a recognized date.
// The stamped date is the file's own mtime. Returns whether the file
// was mutated. Idempotent: a second call finds the date and does
// nothing.
func EnsureDateLine(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat source %s: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read source %s: %w", path, err)
	}

	if _, _, ok := parseDateLine(firstContentLine(raw)); ok {
		return false, nil
	}

	stamped := info.ModTime().Format(DateLayout) + "\n\n" + string(raw)
	if err := os.WriteFile(path, []byte(stamped), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write source %s: %w", path, err)
	}
	return true, nil
}
