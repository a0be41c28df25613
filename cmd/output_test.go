package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "unchanged when width is 0",
			input:    "/music/song.mp3",
			width:    0,
			expected: "/music/song.mp3",
		},
		{
			name:     "unchanged when it fits",
			input:    "/music/song.mp3",
			width:    15,
			expected: "/music/song.mp3",
		},
		{
			name:     "keeps the file name",
			input:    "/home/user/music/albums/01 Psycho CEO.mp3",
			width:    20,
			expected: "...01 Psycho CEO.mp3",
		},
		{
			name:     "wide characters",
			input:    "/music/日本語の曲.mp3",
			width:    12,
			expected: "...の曲.mp3",
		},
		{
			name:     "width smaller than ellipsis",
			input:    "/music/song.mp3",
			width:    2,
			expected: "..",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateLeft(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("truncateLeft(%q, %d) = %q, want %q", tt.input, tt.width, result, tt.expected)
			}
			if tt.width > 0 {
				if w := runewidth.StringWidth(result); w > tt.width {
					t.Errorf("result width = %d, exceeds %d", w, tt.width)
				}
			}
		})
	}
}

func TestTruncateRight(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "unchanged when it fits",
			input:    "playing",
			width:    10,
			expected: "playing",
		},
		{
			name:     "truncate long text with ellipsis",
			input:    "enqueueing: enqueue /a/very/long/path.mp3",
			width:    20,
			expected: "enqueueing: enque...",
		},
		{
			name:     "no limit",
			input:    "pausing",
			width:    -1,
			expected: "pausing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := truncateRight(tt.input, tt.width); result != tt.expected {
				t.Errorf("truncateRight(%q, %d) = %q, want %q", tt.input, tt.width, result, tt.expected)
			}
		})
	}
}

func TestParseHistoryLine(t *testing.T) {
	entry, ok := parseHistoryLine("2026-01-02T03:04:05Z\tenqueue\t422\tdecode a.flac: unsupported audio format")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if entry.action != "enqueue" || entry.status != "422" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.message != "decode a.flac: unsupported audio format" {
		t.Errorf("message = %q", entry.message)
	}

	empty, ok := parseHistoryLine("2026-01-02T03:04:05Z\t\t400\tno command provided")
	if !ok || empty.action != "-" {
		t.Errorf("empty action entry = %+v, %v", empty, ok)
	}

	for _, bad := range []string{"", "only\tthree\tfields", "t\ta\tnot-a-status\tm"} {
		if _, ok := parseHistoryLine(bad); ok {
			t.Errorf("parseHistoryLine(%q) succeeded", bad)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"#", "File"}, [][]string{{"1", "/music/a.mp3"}, {"2"}}, []columnAlignment{alignRight})

	for _, want := range []string{"#", "FILE", "/music/a.mp3"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	if renderTable(nil, nil, nil) != "" {
		t.Error("expected empty output without headers")
	}
}

func TestTerminalWidthNonTerminal(t *testing.T) {
	if got := terminalWidth(&bytes.Buffer{}); got != defaultWidth {
		t.Errorf("terminalWidth = %d, want %d", got, defaultWidth)
	}
}
