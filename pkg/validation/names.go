package validation

import (
	"fmt"
	"strings"
)

const (
	minNameLength = 3
	maxNameLength = 100
)

// NormalizeName trims and validates a display name such as a course, module,
// or chapter title. Names must be 3-100 characters after trimming.
func NormalizeName(value string) (string, error) {
	normalized := strings.TrimSpace(value)
	if len(normalized) < minNameLength || len(normalized) > maxNameLength {
		return "", fmt.Errorf("invalid name. Use %d-%d characters", minNameLength, maxNameLength)
	}
	return normalized, nil
}
