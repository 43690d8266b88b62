package validators

import "strings"

// SanitizeString trims whitespace, drops control characters (uploaded file
// names are caller-controlled), and caps the length.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	trimmed = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, trimmed)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
