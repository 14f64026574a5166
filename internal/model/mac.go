package model

import (
	"net"
	"regexp"
	"strings"
)

var macPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}`),
	regexp.MustCompile(`[0-9A-Fa-f]{2}(?:-[0-9A-Fa-f]{2}){5}`),
	regexp.MustCompile(`[0-9A-Fa-f]{12}`),
}

// NormalizeMAC returns the canonical lowercase colon-separated form of the
// first MAC literal found in s, or "" when there is none.
func NormalizeMAC(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if hw, err := net.ParseMAC(s); err == nil && len(hw) == 6 {
		return hw.String()
	}
	for _, re := range macPatterns {
		m := re.FindString(s)
		if m == "" {
			continue
		}
		return formatHex(stripSeparators(m))
	}
	return ""
}

// IsMAC reports whether s is already in canonical form.
func IsMAC(s string) bool {
	return s != "" && NormalizeMAC(s) == s
}

func stripSeparators(s string) string {
	return strings.NewReplacer(":", "", "-", "").Replace(strings.ToLower(s))
}

func formatHex(hex12 string) string {
	var sb strings.Builder
	sb.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(hex12[i : i+2])
	}
	return sb.String()
}
