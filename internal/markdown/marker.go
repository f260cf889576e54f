package markdown

import "strings"

// InsertMoreMarker places the read-more marker at the first run of
// three or more consecutive newlines that follows at least one
// non-blank paragraph. A source that already carries a marker, or that
// has no qualifying newline run, is returned unchanged. A run before
// any paragraph never qualifies, so a preview can never be empty.
func InsertMoreMarker(src []byte) []byte {
	text := string(src)
	if strings.Contains(text, MoreMarker) {
		return src
	}

	offset := 0
	for {
		i := strings.Index(text[offset:], "\n\n\n")
		if i < 0 {
			return src
		}
		i += offset

		if strings.TrimSpace(text[:i]) != "" {
			j := i
			for j < len(text) && text[j] == '\n' {
				j++
			}
			return []byte(text[:i] + "\n\n" + MoreMarker + "\n\n" + text[j:])
		}

		// Run precedes any content, look for the next one.
		offset = i + 1
	}
}
