package task

import (
	"strconv"
	"strings"
)

// commandPreview renders argv for log lines. Terminal escapes and control
// bytes are dropped, arguments with blanks are quoted and the result is cut
// to maxRunes without splitting a UTF-8 sequence.
func commandPreview(argv []string, maxRunes int) string {
	parts := make([]string, 0, len(argv))
	for _, arg := range argv {
		arg = stripControl(arg)
		if arg == "" || strings.ContainsAny(arg, " \t\n") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return truncateRunes(strings.Join(parts, " "), maxRunes)
}

// stripControl removes CSI escape sequences and control bytes other than
// newline and tab.
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inCSI := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\x1b' && i+1 < len(s) && s[i+1] == '[':
			inCSI = true
			i++
		case inCSI:
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				inCSI = false
			}
		case c >= 32 || c == '\n' || c == '\t':
			b.WriteByte(c)
		}
	}
	return b.String()
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes < 4 {
		return string(runes[:1])
	}
	return string(runes[:maxRunes-3]) + "..."
}
