package stringutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SampleLong samples a possibly long string down to something suitable for
// inclusion in a log line, keeping content from the beginning and annotating
// how much was cut. Useful when reflecting user input like query strings into
// logs in case someone sent something degenerately long.
func SampleLong(s string) string {
	const sampleLength = 100

	if utf8.RuneCountInString(s) <= sampleLength {
		return s
	}

	runes := []rune(s)
	return fmt.Sprintf("%s ... [TRUNCATED; total_length: %v characters]",
		string(runes[0:sampleLength]), len(runes))
}

// TruncateRunes cuts s down to at most limit runes, appending an ellipsis
// when anything was cut. Operating on runes rather than bytes means a
// multi-byte character is never split down the middle.
func TruncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return strings.TrimRight(string(runes[0:limit]), " \t\n") + "…"
}
