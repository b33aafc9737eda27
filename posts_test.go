package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePageNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "Absent", raw: "", want: 1},
		{name: "One", raw: "1", want: 1},
		{name: "Large", raw: "9000", want: 9000},
		{name: "Zero", raw: "0", want: 1},
		{name: "Negative", raw: "-3", want: 1},
		{name: "Garbage", raw: "banana", want: 1},
		{name: "Float", raw: "1.5", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parsePageNumber(tt.raw))
		})
	}
}

func TestTrimNewlineSuffix(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "AddsNewline", input: "# Hi", want: "# Hi\n"},
		{name: "CollapsesTrailing", input: "# Hi\n\n\n", want: "# Hi\n"},
		{name: "TrimsSurroundingSpace", input: "  # Hi  \n", want: "# Hi\n"},
		{name: "Empty", input: "", want: "\n"},
		{name: "InteriorNewlinesKept", input: "a\n\nb", want: "a\n\nb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, trimNewlineSuffix(tt.input))
		})
	}
}

func TestISO8601(t *testing.T) {
	require.Equal(t, "2022-11-09T10:11:12Z", iso8601(stableTime))

	// Non-UTC input normalizes to UTC.
	est := time.FixedZone("EST", -5*60*60)
	require.Equal(t, "2022-11-09T15:11:12Z", iso8601(time.Date(2022, 11, 9, 10, 11, 12, 0, est)))
}
