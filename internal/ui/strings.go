package ui

import (
	"fmt"
	"strings"
	"time"
)

// truncateMiddle shortens a string by removing characters from the middle,
// preserving both the beginning and end.
func truncateMiddle(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	keep := limit - 1
	prefix := (keep + 1) / 2
	suffix := keep - prefix
	return string(runes[:prefix]) + "…" + string(runes[len(runes)-suffix:])
}

// groupDigits inserts thousands separators into a decimal string.
// Anything that is not a plain non-negative integer is returned unchanged.
func groupDigits(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return value
		}
	}
	if len(value) <= 3 {
		return value
	}
	var b strings.Builder
	lead := len(value) % 3
	if lead > 0 {
		b.WriteString(value[:lead])
	}
	for i := lead; i < len(value); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(value[i : i+3])
	}
	return b.String()
}

// humanizeAge renders how long ago t was, relative to now.
func humanizeAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// ternary returns a if cond is true, otherwise b.
func ternary(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
