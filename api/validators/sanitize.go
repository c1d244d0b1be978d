package validators

import "strings"

// SanitizeString trims surrounding whitespace and hard-caps the length.
// Reference ids, actor ids, and free-text reasons pass through here before
// they reach a service.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
