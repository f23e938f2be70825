package normalization

import (
	"strings"
)

// ParseInputString canonicalizes free-form identity input, currently
// emails, by trimming and lowercasing.
func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func ParseInputStringPtr(input *string) *string {
	if input == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*input))
	return &normalized
}
