package task

import (
	"strings"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxRunes int
		want     string
	}{
		{"empty string", "", 10, ""},
		{"zero max", "hello", 0, ""},
		{"negative max", "hello", -1, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"max 3", "hello", 3, "h"},
		{"max 4", "hello", 4, "h..."},
		{"unicode exact", "你好世界", 4, "你好世界"},
		{"unicode truncate", "你好世界test", 6, "你好世..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.s, tt.maxRunes); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.s, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestStripControl(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"with tab", "hello\tworld", "hello\tworld"},
		{"ANSI color", "\x1b[31mred\x1b[0m", "red"},
		{"ANSI complex", "\x1b[1;31;40mtext\x1b[0m", "text"},
		{"control chars", "hello\x00\x01\x02world", "helloworld"},
		{"incomplete escape", "\x1b[", ""},
		{"escape without bracket", "\x1bA", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripControl(tt.s); got != tt.want {
				t.Errorf("stripControl(%q) = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestCommandPreview(t *testing.T) {
	tests := []struct {
		argv []string
		max  int
		want string
	}{
		{[]string{"./scripts/generate_tests.sh"}, 120, "./scripts/generate_tests.sh"},
		{[]string{"echo", "hello world"}, 120, `echo "hello world"`},
		{[]string{"printf", ""}, 120, `printf ""`},
		{[]string{"echo", "\x1b[31mred\x1b[0m"}, 120, "echo red"},
		{[]string{"sleep", "10"}, 6, "sle..."},
	}
	for _, tt := range tests {
		if got := commandPreview(tt.argv, tt.max); got != tt.want {
			t.Errorf("commandPreview(%q, %d) = %q, want %q", tt.argv, tt.max, got, tt.want)
		}
	}
}

func BenchmarkCommandPreview(b *testing.B) {
	argv := strings.Fields(strings.Repeat("\x1b[31mred\x1b[0m text ", 50))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		commandPreview(argv, commandPreviewLimit)
	}
}
